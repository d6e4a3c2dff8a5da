package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"waitroom/monitoring"
	"waitroom/store"
)

// persistenceRecords is the slice of the durable layer the sync needs.
type persistenceRecords interface {
	UpdateRemainingStock(ctx context.Context, ticketTypeID string, remaining int) error
}

// PersistenceService periodically mirrors the live stock ledger into the
// durable ticket_types rows and refreshes the queue gauges. Pure
// write-behind: nothing on the request path waits for it.
type PersistenceService struct {
	store   *store.Store
	records persistenceRecords
	monitor *monitoring.Monitor
}

func NewPersistenceService(st *store.Store, records persistenceRecords, monitor *monitoring.Monitor) *PersistenceService {
	return &PersistenceService{
		store:   st,
		records: records,
		monitor: monitor,
	}
}

// SyncStock mirrors every open event's live stock into the durable rows.
// Individual row failures are logged and skipped so one bad row cannot stall
// the rest of the sync.
func (s *PersistenceService) SyncStock(ctx context.Context) error {
	started := time.Now()
	defer func() {
		s.monitor.TrackSweep("stock_sync", time.Since(started))
	}()

	eventIDs, err := s.openEvents(ctx)
	if err != nil {
		return err
	}

	for _, eventID := range eventIDs {
		live, err := s.store.Client.HGetAll(ctx, store.StockKey(eventID)).Result()
		if err != nil {
			return fmt.Errorf("read stock for event %s: %w", eventID, err)
		}

		for ttID, raw := range live {
			remaining, err := strconv.Atoi(raw)
			if err != nil {
				slog.Warn("unparsable live stock value",
					"event_id", eventID, "ticket_type_id", ttID, "value", raw)
				continue
			}
			if err := s.records.UpdateRemainingStock(ctx, ttID, remaining); err != nil {
				slog.Error("stock sync row failed",
					"event_id", eventID, "ticket_type_id", ttID, "error", err)
				continue
			}
			s.monitor.SetRemainingStock(eventID, ttID, int64(remaining))
		}
	}
	return nil
}

// UpdateQueueMetrics refreshes the waiting/active gauges for every open
// event.
func (s *PersistenceService) UpdateQueueMetrics(ctx context.Context) error {
	eventIDs, err := s.openEvents(ctx)
	if err != nil {
		return err
	}

	for _, eventID := range eventIDs {
		waiting, err := s.store.Client.ZCard(ctx, store.WaitingKey(eventID)).Result()
		if err != nil {
			return fmt.Errorf("queue depth for event %s: %w", eventID, err)
		}
		active, err := s.store.Client.HLen(ctx, store.ActiveKey(eventID)).Result()
		if err != nil {
			return fmt.Errorf("active count for event %s: %w", eventID, err)
		}
		s.monitor.SetQueueDepths(eventID, waiting, active)
	}
	return nil
}

func (s *PersistenceService) openEvents(ctx context.Context) ([]string, error) {
	ids, err := s.store.Client.SMembers(ctx, store.OpenEventsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}
	return ids, nil
}
