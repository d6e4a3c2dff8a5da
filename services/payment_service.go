package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"waitroom/config"
	"waitroom/durable"
	"waitroom/internal/pg"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
	"waitroom/store"
	"waitroom/utils"
)

// paymentRecords is the slice of the durable layer this service needs.
type paymentRecords interface {
	TicketType(ctx context.Context, id string) (*models.TicketType, error)
	SavePayment(ctx context.Context, eventID, userID string, pay *models.Payment) error
	SetPaymentResult(ctx context.Context, pgOrderID, paymentStatus, pgPaymentKey string, raw []byte) error
	MarkReservationPaid(ctx context.Context, reservationID string) error
	PaymentByOrderID(ctx context.Context, pgOrderID string) (*durable.PaymentRow, error)
	LatestPayment(ctx context.Context, eventID, userID string) (*durable.PaymentRow, error)
}

// PaymentService runs the gateway handshake: initiate against a live
// reservation, confirm through the gateway behind a circuit breaker, and
// resolve webhooks. Completion is the only path that durably consumes stock.
type PaymentService struct {
	store    *store.Store
	config   *config.Config
	records  paymentRecords
	gateway  pg.Adapter
	breaker  *utils.CircuitBreaker
	writer   *Writer
	notifier *Notifier
	monitor  *monitoring.Monitor
}

func NewPaymentService(st *store.Store, cfg *config.Config, records paymentRecords, gateway pg.Adapter, writer *Writer, notifier *Notifier, monitor *monitoring.Monitor) *PaymentService {
	return &PaymentService{
		store:    st,
		config:   cfg,
		records:  records,
		gateway:  gateway,
		breaker:  utils.NewCircuitBreaker("payment-gateway"),
		writer:   writer,
		notifier: notifier,
		monitor:  monitor,
	}
}

// Initiate opens the payment window for the user's live reservation. Calling
// it again while a payment is pending returns the existing payment unchanged.
// The gateway learns the order reference before anything is written, so a
// gateway rejection leaves no pending record anywhere.
func (s *PaymentService) Initiate(ctx context.Context, eventID, userID string) (*models.Payment, error) {
	state, err := s.userState(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if state == models.StatePaying {
		if existing, err := s.livePayment(ctx, eventID, userID); err == nil {
			return existing, nil
		}
	}
	if state != models.StateReserving {
		return nil, status.ErrNotReserving
	}

	rsv, err := s.liveReservation(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	tt, err := s.records.TicketType(ctx, rsv.TicketTypeID)
	if err != nil {
		return nil, err
	}
	amount := tt.Price.Mul(decimal.NewFromInt(int64(rsv.Quantity))).IntPart()

	// One order reference per attempt; the millisecond stamp keeps retries
	// after a failed attempt distinct at the gateway.
	orderID := fmt.Sprintf("TKT-%s-%s-%d", eventID, userID, time.Now().UnixMilli())

	if _, err := s.breaker.Execute(ctx, func() (any, error) {
		return nil, s.gateway.CreateOrder(ctx, orderID, amount)
	}); err != nil {
		s.monitor.TrackOperation("payment_initiate", eventID, "gateway_error")
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	now := time.Now().UnixMilli()
	pay := &models.Payment{
		PaymentID:     uuid.NewString(),
		ReservationID: rsv.ReservationID,
		TicketTypeID:  rsv.TicketTypeID,
		Quantity:      rsv.Quantity,
		Amount:        amount,
		PgOrderID:     orderID,
		CreatedAt:     now,
		ExpiresAt:     now + int64(ec.PaymentTTLSeconds)*1000,
	}
	payJSON, err := json.Marshal(pay)
	if err != nil {
		return nil, fmt.Errorf("encode payment: %w", err)
	}

	ttl := time.Duration(ec.PaymentTTLSeconds) * time.Second
	if err := s.store.Client.Set(ctx, store.PaymentKey(eventID, userID), payJSON, ttl).Err(); err != nil {
		return nil, fmt.Errorf("write payment: %w", err)
	}
	if err := s.store.Client.Set(ctx, store.StateKey(eventID, userID),
		string(models.StatePaying), ttl).Err(); err != nil {
		return nil, fmt.Errorf("set paying state: %w", err)
	}

	s.writer.Enqueue(Job{
		Name: "save_payment",
		Run: func(jctx context.Context) error {
			return s.records.SavePayment(jctx, eventID, userID, pay)
		},
	})

	s.monitor.TrackOperation("payment_initiate", eventID, "ok")
	slog.Info("payment initiated",
		"event_id", eventID, "user_id", userID,
		"pg_order_id", orderID, "amount", amount)

	return pay, nil
}

// Confirm captures the payment with the gateway. A transport failure leaves
// the pending payment untouched so the client can retry within the window; a
// gateway rejection is final for this payment attempt.
func (s *PaymentService) Confirm(ctx context.Context, eventID, userID, paymentKey string) (*models.PaymentStatus, error) {
	pay, err := s.livePayment(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	res, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.Confirm(ctx, paymentKey, pay.PgOrderID, pay.Amount)
	})
	if err != nil {
		s.monitor.TrackOperation("payment_confirm", eventID, "gateway_error")
		return nil, fmt.Errorf("gateway confirm: %w", err)
	}
	verdict := res.(*pg.ConfirmResult)

	if !verdict.Success {
		s.failPayment(ctx, eventID, userID, pay, verdict.RawResponse)
		return nil, status.ErrFailedPayment
	}

	if err := s.complete(ctx, eventID, userID, pay, verdict); err != nil {
		return nil, err
	}

	return &models.PaymentStatus{
		PaymentID: pay.PaymentID,
		PgOrderID: pay.PgOrderID,
		Amount:    pay.Amount,
		Status:    models.PaymentConfirmed,
	}, nil
}

// failPayment records the gateway rejection and removes the live payment.
// The reservation and its stock hold stay in place until their own windows
// lapse, at which point the reconciliation sweep restores the stock.
func (s *PaymentService) failPayment(ctx context.Context, eventID, userID string, pay *models.Payment, raw []byte) {
	s.writer.Enqueue(Job{
		Name: "payment_failed",
		Run: func(jctx context.Context) error {
			return s.records.SetPaymentResult(jctx, pay.PgOrderID, models.PaymentFailed, "", raw)
		},
	})

	if err := s.store.Client.Del(ctx, store.PaymentKey(eventID, userID)).Err(); err != nil {
		slog.Error("delete failed payment", "pg_order_id", pay.PgOrderID, "error", err)
	}

	s.monitor.TrackOperation("payment_confirm", eventID, "failed")
	s.notifier.NotifyPayment(eventID, userID, models.PaymentFailed)
}

// complete finalizes a confirmed purchase: durable verdict, COMPLETED state
// held for the retention period, live records dropped, and the active slot
// released so admission can reuse it next tick.
func (s *PaymentService) complete(ctx context.Context, eventID, userID string, pay *models.Payment, verdict *pg.ConfirmResult) error {
	s.writer.Enqueue(Job{
		Name: "payment_confirmed",
		Run: func(jctx context.Context) error {
			if err := s.records.SetPaymentResult(jctx, pay.PgOrderID, models.PaymentConfirmed, verdict.PaymentKey, verdict.RawResponse); err != nil {
				return err
			}
			return s.records.MarkReservationPaid(jctx, pay.ReservationID)
		},
	})

	if err := s.store.Client.Set(ctx, store.StateKey(eventID, userID),
		string(models.StateCompleted), s.config.CompletedRetention).Err(); err != nil {
		return fmt.Errorf("set completed state: %w", err)
	}
	if err := s.store.Client.Del(ctx,
		store.PaymentKey(eventID, userID),
		store.ReservationKey(eventID, userID)).Err(); err != nil {
		return fmt.Errorf("drop live records: %w", err)
	}

	// Release the concurrency permit and recount. Sequential, not scripted:
	// an inconsistency here self-corrects on the next expiry sweep.
	if err := s.store.Client.HDel(ctx, store.ActiveKey(eventID), userID).Err(); err != nil {
		return fmt.Errorf("release active slot: %w", err)
	}
	active, err := s.store.Client.HLen(ctx, store.ActiveKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("recount active slots: %w", err)
	}
	if err := s.store.Client.Set(ctx, store.ActiveCountKey(eventID), active, 0).Err(); err != nil {
		return fmt.Errorf("write active count: %w", err)
	}

	s.monitor.TrackOperation("payment_confirm", eventID, "ok")
	s.notifier.NotifyPayment(eventID, userID, models.PaymentConfirmed)
	slog.Info("purchase completed",
		"event_id", eventID, "user_id", userID, "pg_order_id", pay.PgOrderID)
	return nil
}

// webhookEnvelope is the gateway's push notification shape.
type webhookEnvelope struct {
	EventType string `json:"eventType"`
	Data      struct {
		PaymentKey string `json:"paymentKey"`
		OrderID    string `json:"orderId"`
		Status     string `json:"status"`
	} `json:"data"`
}

// HandleWebhook resolves a gateway push for an order. Verification happens
// over the raw body; processing is idempotent because only a durable pending
// payment is ever acted on.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifySignature(body, signature) {
		return fmt.Errorf("invalid webhook signature")
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode webhook: %w", err)
	}
	if env.Data.OrderID == "" {
		return fmt.Errorf("webhook missing order id")
	}

	row, err := s.records.PaymentByOrderID(ctx, env.Data.OrderID)
	if err != nil {
		return err
	}
	if row.Status != models.PaymentPending {
		slog.Debug("webhook for settled payment ignored",
			"pg_order_id", env.Data.OrderID, "status", row.Status)
		return nil
	}

	switch env.Data.Status {
	case "DONE":
		pay, err := s.livePayment(ctx, row.EventID, row.UserID)
		if err == nil {
			return s.complete(ctx, row.EventID, row.UserID, pay, &pg.ConfirmResult{
				Success:     true,
				PaymentKey:  env.Data.PaymentKey,
				RawResponse: body,
			})
		}
		// Live record already expired; keep the durable trail truthful.
		if err := s.records.SetPaymentResult(ctx, row.PgOrderID, models.PaymentConfirmed, env.Data.PaymentKey, body); err != nil {
			return err
		}
		return s.records.MarkReservationPaid(ctx, row.ReservationID)

	case "CANCELED", "EXPIRED", "ABORTED":
		return s.records.SetPaymentResult(ctx, row.PgOrderID, models.PaymentFailed, "", body)

	default:
		slog.Warn("unhandled webhook status",
			"pg_order_id", env.Data.OrderID, "status", env.Data.Status)
		return nil
	}
}

// Status reports the user's payment: the live pending record while the
// window is open, the durable verdict afterwards.
func (s *PaymentService) Status(ctx context.Context, eventID, userID string) (*models.PaymentStatus, error) {
	pay, err := s.livePayment(ctx, eventID, userID)
	if err == nil {
		expiresIn := int(time.Until(time.UnixMilli(pay.ExpiresAt)).Seconds())
		if expiresIn < 0 {
			expiresIn = 0
		}
		return &models.PaymentStatus{
			PaymentID: pay.PaymentID,
			PgOrderID: pay.PgOrderID,
			Amount:    pay.Amount,
			Status:    models.PaymentPending,
			ExpiresIn: expiresIn,
		}, nil
	}
	if !errors.Is(err, status.ErrNoPayment) {
		return nil, err
	}

	row, err := s.records.LatestPayment(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, status.ErrNoPayment
	}
	return &models.PaymentStatus{
		PaymentID: row.PaymentID,
		PgOrderID: row.PgOrderID,
		Amount:    row.Amount,
		Status:    row.Status,
	}, nil
}

func (s *PaymentService) userState(ctx context.Context, eventID, userID string) (models.State, error) {
	raw, err := s.store.Client.Get(ctx, store.StateKey(eventID, userID)).Result()
	if err == redis.Nil {
		return models.StateNotInQueue, nil
	}
	if err != nil {
		return "", fmt.Errorf("read user state: %w", err)
	}
	return models.ParseState(raw), nil
}

func (s *PaymentService) liveReservation(ctx context.Context, eventID, userID string) (*models.Reservation, error) {
	raw, err := s.store.Client.Get(ctx, store.ReservationKey(eventID, userID)).Result()
	if err == redis.Nil {
		return nil, status.ErrNoReservation
	}
	if err != nil {
		return nil, fmt.Errorf("read reservation: %w", err)
	}
	var rsv models.Reservation
	if err := json.Unmarshal([]byte(raw), &rsv); err != nil {
		return nil, fmt.Errorf("decode reservation: %w", err)
	}
	return &rsv, nil
}

func (s *PaymentService) livePayment(ctx context.Context, eventID, userID string) (*models.Payment, error) {
	raw, err := s.store.Client.Get(ctx, store.PaymentKey(eventID, userID)).Result()
	if err == redis.Nil {
		return nil, status.ErrNoPayment
	}
	if err != nil {
		return nil, fmt.Errorf("read payment: %w", err)
	}
	var pay models.Payment
	if err := json.Unmarshal([]byte(raw), &pay); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &pay, nil
}
