package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"waitroom/config"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
	"waitroom/store"
)

// reservationRecords is the slice of the durable layer this service needs.
type reservationRecords interface {
	TicketType(ctx context.Context, id string) (*models.TicketType, error)
	TicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	PurchasedQuantity(ctx context.Context, eventID, userID, ticketTypeID string) (int, error)
	SaveReservation(ctx context.Context, eventID, userID string, rsv *models.Reservation) error
	CancelPendingReservation(ctx context.Context, eventID, userID string) error
}

// ReservationService runs the stock hold protocol. The decrement itself is a
// script; everything around it (per-user limit, durable audit trail) is
// advisory or best-effort.
type ReservationService struct {
	store   *store.Store
	config  *config.Config
	records reservationRecords
	writer  *Writer
	monitor *monitoring.Monitor
}

func NewReservationService(st *store.Store, cfg *config.Config, records reservationRecords, writer *Writer, monitor *monitoring.Monitor) *ReservationService {
	return &ReservationService{
		store:   st,
		config:  cfg,
		records: records,
		writer:  writer,
		monitor: monitor,
	}
}

// reserveReply mirrors the JSON the reserve script returns.
type reserveReply struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason"`
	Remaining int64  `json:"remaining"`
}

// Reserve holds quantity units of a ticket type for an ACTIVE user. The
// per-user limit check reads durable history before the script runs, so it is
// advisory under races; the stock decrement itself can never oversell.
func (s *ReservationService) Reserve(ctx context.Context, eventID, userID, ticketTypeID string, quantity int) (*models.ReserveResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d", quantity)
	}

	tt, err := s.records.TicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	if tt.EventID != eventID {
		return nil, fmt.Errorf("ticket type %s does not belong to event %s", ticketTypeID, eventID)
	}

	if tt.MaxPerUser > 0 {
		purchased, err := s.records.PurchasedQuantity(ctx, eventID, userID, ticketTypeID)
		if err != nil {
			return nil, err
		}
		if purchased+quantity > tt.MaxPerUser {
			return nil, status.ErrMaxPerUser
		}
	}

	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	now := time.Now().UnixMilli()
	rsv := &models.Reservation{
		ReservationID: uuid.NewString(),
		TicketTypeID:  ticketTypeID,
		Quantity:      quantity,
		CreatedAt:     now,
		ExpiresAt:     now + int64(ec.ReservationTTLSeconds)*1000,
	}
	rsvJSON, err := json.Marshal(rsv)
	if err != nil {
		return nil, fmt.Errorf("encode reservation: %w", err)
	}

	res, err := s.store.RunScript(ctx, store.ReserveScript,
		[]string{
			store.StateKey(eventID, userID),
			store.StockKey(eventID),
			store.ReservationKey(eventID, userID),
		},
		ticketTypeID,
		quantity,
		string(rsvJSON),
		ec.ReservationTTLSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("reserve script: %w", err)
	}

	reply, err := decodeReserveReply(res)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		s.monitor.TrackOperation("reserve", eventID, reply.Reason)
		switch reply.Reason {
		case "NOT_ACTIVE":
			return nil, status.ErrNotActive
		case "ALREADY_RESERVED":
			return nil, status.ErrAlreadyReserved
		case "OUT_OF_STOCK":
			return nil, status.ErrOutOfStock
		default:
			return nil, fmt.Errorf("reserve rejected: %s", reply.Reason)
		}
	}

	s.writer.Enqueue(Job{
		Name: "save_reservation",
		Run: func(jctx context.Context) error {
			return s.records.SaveReservation(jctx, eventID, userID, rsv)
		},
	})

	s.monitor.TrackOperation("reserve", eventID, "ok")
	slog.Info("reservation created",
		"event_id", eventID, "user_id", userID,
		"ticket_type_id", ticketTypeID, "quantity", quantity)

	return &models.ReserveResult{
		ReservationID:  rsv.ReservationID,
		TicketTypeID:   ticketTypeID,
		Quantity:       quantity,
		RemainingStock: reply.Remaining,
		ExpiresIn:      ec.ReservationTTLSeconds,
	}, nil
}

// cancelReply mirrors the JSON the cancel script returns.
type cancelReply struct {
	OK           bool   `json:"ok"`
	Reason       string `json:"reason"`
	TicketTypeID string `json:"ticketTypeId"`
	Quantity     int    `json:"quantity"`
	Remaining    int64  `json:"remaining"`
}

// Cancel releases the user's reservation, restores its stock and hands the
// user a fresh ACTIVE window.
func (s *ReservationService) Cancel(ctx context.Context, eventID, userID string) (*models.CancelResult, error) {
	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	res, err := s.store.RunScript(ctx, store.CancelScript,
		[]string{
			store.ReservationKey(eventID, userID),
			store.StockKey(eventID),
			store.StateKey(eventID, userID),
			store.ActiveKey(eventID),
		},
		userID,
		ec.ActiveTTLSeconds,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("cancel script: %w", err)
	}

	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("cancel script: unexpected reply type %T", res)
	}
	var reply cancelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode cancel result: %w", err)
	}
	if !reply.OK {
		return nil, status.ErrNoReservation
	}

	s.writer.Enqueue(Job{
		Name: "cancel_reservation",
		Run: func(jctx context.Context) error {
			return s.records.CancelPendingReservation(jctx, eventID, userID)
		},
	})

	s.monitor.TrackOperation("reserve_cancel", eventID, "ok")
	return &models.CancelResult{
		TicketTypeID:   reply.TicketTypeID,
		Quantity:       reply.Quantity,
		RemainingStock: reply.Remaining,
	}, nil
}

// Current returns the user's live reservation.
func (s *ReservationService) Current(ctx context.Context, eventID, userID string) (*models.Reservation, error) {
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

// ListTicketTypes returns the event's catalog with remaining stock overlaid
// from the live ledger while the event is open.
func (s *ReservationService) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	types, err := s.records.TicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}

	live, err := s.store.Client.HGetAll(ctx, store.StockKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read live stock: %w", err)
	}
	if len(live) == 0 {
		return types, nil
	}

	for i := range types {
		if v, ok := atoi(live[types[i].ID]); ok {
			types[i].RemainingStock = v
		} else if live[types[i].ID] == "0" {
			types[i].RemainingStock = 0
		}
	}
	return types, nil
}

func decodeReserveReply(res any) (*reserveReply, error) {
	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("reserve script: unexpected reply type %T", res)
	}
	var reply reserveReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode reserve result: %w", err)
	}
	return &reply, nil
}
