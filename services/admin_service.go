package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"waitroom/config"
	"waitroom/durable"
	"waitroom/models"
	"waitroom/monitoring"
	"waitroom/store"
)

// adminRecords is the slice of the durable layer the admin workflow needs.
type adminRecords interface {
	Event(ctx context.Context, eventID string) (*durable.EventRow, error)
	CreateEvent(ctx context.Context, in durable.EventInput, ticketTypes []durable.TicketTypeInput) (*durable.EventRow, error)
	UpdateEvent(ctx context.Context, eventID string, patch map[string]any) (*durable.EventRow, error)
	SetEventStatus(ctx context.Context, eventID, eventStatus string) error
	TicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	OpenEventIDs(ctx context.Context) ([]string, error)
	UpdateRemainingStock(ctx context.Context, ticketTypeID string, remaining int) error
}

// AdminService owns the event lifecycle. Opening an event seeds the live
// store from durable truth; closing it drains live truth back. In between,
// Redis is authoritative and event config is immutable.
type AdminService struct {
	store   *store.Store
	config  *config.Config
	records adminRecords
	monitor *monitoring.Monitor
}

func NewAdminService(st *store.Store, cfg *config.Config, records adminRecords, monitor *monitoring.Monitor) *AdminService {
	return &AdminService{
		store:   st,
		config:  cfg,
		records: records,
		monitor: monitor,
	}
}

// CreateEvent writes a closed event with its ticket types, applying process
// defaults for any capacity knob left at zero.
func (s *AdminService) CreateEvent(ctx context.Context, in durable.EventInput, ticketTypes []durable.TicketTypeInput) (*durable.EventRow, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("event title is required")
	}
	if len(ticketTypes) == 0 {
		return nil, fmt.Errorf("at least one ticket type is required")
	}
	for _, tt := range ticketTypes {
		if tt.Name == "" || tt.TotalStock <= 0 {
			return nil, fmt.Errorf("ticket type needs a name and positive stock")
		}
	}

	if in.MaxActive <= 0 {
		in.MaxActive = s.config.DefaultMaxActive
	}
	if in.ActiveTTLSeconds <= 0 {
		in.ActiveTTLSeconds = s.config.DefaultActiveTTL
	}
	if in.ReservationTTLSeconds <= 0 {
		in.ReservationTTLSeconds = s.config.DefaultReservationTTL
	}
	if in.PaymentTTLSeconds <= 0 {
		in.PaymentTTLSeconds = s.config.DefaultPaymentTTL
	}

	return s.records.CreateEvent(ctx, in, ticketTypes)
}

// UpdateEvent patches capacity config on a closed event. Config is immutable
// while the event is open: live flows already priced their TTLs in.
func (s *AdminService) UpdateEvent(ctx context.Context, eventID string, patch map[string]any) (*durable.EventRow, error) {
	ev, err := s.records.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == "open" {
		return nil, fmt.Errorf("event %s is open; close it before changing config", eventID)
	}
	return s.records.UpdateEvent(ctx, eventID, patch)
}

// OpenEvent seeds the live store from durable truth and makes the event
// visible to the queue: config hash, stock ledger from remaining_stock, a
// zeroed admission counter, then membership in the open set last so no
// request sees a half-seeded event.
func (s *AdminService) OpenEvent(ctx context.Context, eventID string) error {
	ev, err := s.records.Event(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.Status == "open" {
		return nil
	}

	types, err := s.records.TicketTypes(ctx, eventID)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return fmt.Errorf("event %s has no ticket types", eventID)
	}

	if err := s.seedLiveStore(ctx, ev, types); err != nil {
		return err
	}

	if err := s.store.Client.SAdd(ctx, store.OpenEventsKey(), eventID).Err(); err != nil {
		return fmt.Errorf("add to open events: %w", err)
	}
	if err := s.records.SetEventStatus(ctx, eventID, "open"); err != nil {
		return err
	}

	slog.Info("event opened", "event_id", eventID, "max_active", ev.MaxActive)
	return nil
}

func (s *AdminService) seedLiveStore(ctx context.Context, ev *durable.EventRow, types []models.TicketType) error {
	eventID := ev.ID

	if err := s.store.Client.HSet(ctx, store.ConfigKey(eventID), map[string]any{
		cfgFieldMaxActive:      ev.MaxActive,
		cfgFieldActiveTTL:      ev.ActiveTTLSeconds,
		cfgFieldReservationTTL: ev.ReservationTTLSeconds,
		cfgFieldPaymentTTL:     ev.PaymentTTLSeconds,
		cfgFieldStatus:         "open",
	}).Err(); err != nil {
		return fmt.Errorf("seed event config: %w", err)
	}

	stock := make(map[string]any, len(types))
	for _, tt := range types {
		stock[tt.ID] = tt.RemainingStock
	}
	if err := s.store.Client.HSet(ctx, store.StockKey(eventID), stock).Err(); err != nil {
		return fmt.Errorf("seed stock ledger: %w", err)
	}

	// SetNX so an accidental re-open never zeroes a counter with live
	// occupants behind it.
	if err := s.store.Client.SetNX(ctx, store.ActiveCountKey(eventID), 0, 0).Err(); err != nil {
		return fmt.Errorf("seed active counter: %w", err)
	}
	return nil
}

// CloseEvent removes the event from the open set, drains the live stock
// ledger back into durable truth and flips the durable status. Live per-user
// keys are left to expire on their own TTLs.
func (s *AdminService) CloseEvent(ctx context.Context, eventID string) error {
	if err := s.store.Client.SRem(ctx, store.OpenEventsKey(), eventID).Err(); err != nil {
		return fmt.Errorf("remove from open events: %w", err)
	}
	if err := s.store.Client.HSet(ctx, store.ConfigKey(eventID),
		cfgFieldStatus, "closed").Err(); err != nil {
		return fmt.Errorf("mark config closed: %w", err)
	}

	if err := s.drainStock(ctx, eventID); err != nil {
		slog.Error("final stock drain failed", "event_id", eventID, "error", err)
	}

	if err := s.records.SetEventStatus(ctx, eventID, "closed"); err != nil {
		return err
	}

	slog.Info("event closed", "event_id", eventID)
	return nil
}

func (s *AdminService) drainStock(ctx context.Context, eventID string) error {
	live, err := s.store.Client.HGetAll(ctx, store.StockKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("read live stock: %w", err)
	}
	for ttID, raw := range live {
		remaining, err := strconv.Atoi(raw)
		if err != nil {
			slog.Warn("skipping unparsable stock value",
				"event_id", eventID, "ticket_type_id", ttID, "value", raw)
			continue
		}
		if err := s.records.UpdateRemainingStock(ctx, ttID, remaining); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the live operational snapshot for one event.
func (s *AdminService) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	open, err := s.store.Client.SIsMember(ctx, store.OpenEventsKey(), eventID).Result()
	if err != nil {
		return nil, fmt.Errorf("check open events: %w", err)
	}
	totalWaiting, err := s.store.Client.ZCard(ctx, store.WaitingKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue depth: %w", err)
	}
	activeCount, err := s.store.Client.Get(ctx, store.ActiveCountKey(eventID)).Int64()
	if err == redis.Nil {
		activeCount = 0
	} else if err != nil {
		return nil, fmt.Errorf("read active count: %w", err)
	}

	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	rawStock, err := s.store.Client.HGetAll(ctx, store.StockKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read live stock: %w", err)
	}
	stock := make(map[string]int64, len(rawStock))
	for ttID, raw := range rawStock {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			stock[ttID] = v
		}
	}

	return &models.EventStats{
		EventID:      eventID,
		IsOpen:       open,
		TotalWaiting: totalWaiting,
		ActiveCount:  activeCount,
		MaxActive:    ec.MaxActive,
		Stock:        stock,
	}, nil
}

// AdjustStock applies a manual correction to the live ledger (oversell
// remediation, allotment release). The ledger never goes negative: an
// adjustment that would is rolled back and rejected.
func (s *AdminService) AdjustStock(ctx context.Context, eventID, ticketTypeID string, delta int) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("delta must be non-zero")
	}

	remaining, err := s.store.Client.HIncrBy(ctx, store.StockKey(eventID), ticketTypeID, int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}
	if remaining < 0 {
		if err := s.store.Client.HIncrBy(ctx, store.StockKey(eventID), ticketTypeID, int64(-delta)).Err(); err != nil {
			return 0, fmt.Errorf("roll back stock adjustment: %w", err)
		}
		return 0, fmt.Errorf("adjustment would drive stock negative")
	}

	if err := s.records.UpdateRemainingStock(ctx, ticketTypeID, int(remaining)); err != nil {
		slog.Warn("durable stock mirror update failed",
			"ticket_type_id", ticketTypeID, "error", err)
	}
	slog.Info("stock adjusted",
		"event_id", eventID, "ticket_type_id", ticketTypeID,
		"delta", delta, "remaining", remaining)
	return remaining, nil
}

// RestoreOpenEvents rebuilds the live open-events set from durable truth
// after a restart. Events whose config hash survived in Redis keep their
// live state; only a wiped store is re-seeded.
func (s *AdminService) RestoreOpenEvents(ctx context.Context) error {
	ids, err := s.records.OpenEventIDs(ctx)
	if err != nil {
		return err
	}

	for _, eventID := range ids {
		if err := s.store.Client.SAdd(ctx, store.OpenEventsKey(), eventID).Err(); err != nil {
			return fmt.Errorf("restore open event %s: %w", eventID, err)
		}

		exists, err := s.store.Client.Exists(ctx, store.ConfigKey(eventID)).Result()
		if err != nil {
			return fmt.Errorf("check config for event %s: %w", eventID, err)
		}
		if exists > 0 {
			continue
		}

		ev, err := s.records.Event(ctx, eventID)
		if err != nil {
			return err
		}
		types, err := s.records.TicketTypes(ctx, eventID)
		if err != nil {
			return err
		}
		if err := s.seedLiveStore(ctx, ev, types); err != nil {
			return err
		}
		slog.Warn("re-seeded live store for open event", "event_id", eventID)
	}

	if len(ids) > 0 {
		slog.Info("restored open events", "count", len(ids))
	}
	return nil
}
