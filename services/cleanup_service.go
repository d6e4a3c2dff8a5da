package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waitroom/durable"
	"waitroom/monitoring"
	"waitroom/store"
)

// cleanupRecords is the slice of the durable layer the reconciliation sweep
// needs.
type cleanupRecords interface {
	ExpiredPendingReservations(ctx context.Context, now time.Time, limit int) ([]durable.ReservationRow, error)
	MarkReservationExpired(ctx context.Context, id string) error
	ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]durable.PaymentRow, error)
	MarkPaymentCancelled(ctx context.Context, id string) error
}

const sweepBatchSize = 200

// CleanupService reconciles durable records against the live store. Redis
// TTLs delete live keys on their own; this sweep settles the durable rows
// those keys left behind: expired pending reservations get their stock back,
// expired pending payments are closed out.
type CleanupService struct {
	store   *store.Store
	records cleanupRecords
	monitor *monitoring.Monitor
}

func NewCleanupService(st *store.Store, records cleanupRecords, monitor *monitoring.Monitor) *CleanupService {
	return &CleanupService{
		store:   st,
		records: records,
		monitor: monitor,
	}
}

// Sweep runs one reconciliation pass. Each settled row is marked before the
// next pass can see it, so re-running the sweep (or running it from two
// replicas) never restores the same stock twice.
func (s *CleanupService) Sweep(ctx context.Context) error {
	started := time.Now()
	defer func() {
		s.monitor.TrackSweep("reconciliation", time.Since(started))
	}()

	if err := s.sweepReservations(ctx); err != nil {
		return err
	}
	return s.sweepPayments(ctx)
}

func (s *CleanupService) sweepReservations(ctx context.Context) error {
	rows, err := s.records.ExpiredPendingReservations(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list expired reservations: %w", err)
	}

	for _, row := range rows {
		// A surviving live key means the hold is still in force (clock
		// skew between the durable row and the Redis TTL). Leave it for
		// the next pass.
		exists, err := s.store.Client.Exists(ctx, store.ReservationKey(row.EventID, row.UserID)).Result()
		if err != nil {
			return fmt.Errorf("check live reservation: %w", err)
		}
		if exists > 0 {
			continue
		}

		// Mark first: a crash between mark and restore loses one restore,
		// a crash the other way around would double stock. The persistence
		// sync makes the durable mirror catch up either way.
		if err := s.records.MarkReservationExpired(ctx, row.ID); err != nil {
			return fmt.Errorf("mark reservation %s expired: %w", row.ReservationID, err)
		}
		remaining, err := s.store.Client.HIncrBy(ctx, store.StockKey(row.EventID),
			row.TicketTypeID, int64(row.Quantity)).Result()
		if err != nil {
			return fmt.Errorf("restore stock for reservation %s: %w", row.ReservationID, err)
		}

		slog.Info("expired reservation settled",
			"reservation_id", row.ReservationID, "event_id", row.EventID,
			"ticket_type_id", row.TicketTypeID, "quantity", row.Quantity,
			"remaining", remaining)
	}
	return nil
}

// sweepPayments closes out pending payments whose window lapsed. Stock is
// not touched here: the payment's reservation row is still pending and the
// reservation sweep restores its stock when that row lapses.
func (s *CleanupService) sweepPayments(ctx context.Context) error {
	rows, err := s.records.ExpiredPendingPayments(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list expired payments: %w", err)
	}

	for _, row := range rows {
		exists, err := s.store.Client.Exists(ctx, store.PaymentKey(row.EventID, row.UserID)).Result()
		if err != nil {
			return fmt.Errorf("check live payment: %w", err)
		}
		if exists > 0 {
			continue
		}

		if err := s.records.MarkPaymentCancelled(ctx, row.ID); err != nil {
			return fmt.Errorf("mark payment %s cancelled: %w", row.PaymentID, err)
		}
		slog.Info("expired payment settled",
			"payment_id", row.PaymentID, "event_id", row.EventID,
			"pg_order_id", row.PgOrderID)
	}
	return nil
}
