package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"waitroom/config"
	"waitroom/monitoring"
	"waitroom/store"
)

// AdmissionService moves users from the waiting line into active slots and
// reaps slots whose window lapsed. Both operations run as single scripts, so
// concurrent ticks from multiple replicas cannot over-admit; the per-event
// lock only prevents wasted duplicate work.
type AdmissionService struct {
	store    *store.Store
	config   *config.Config
	notifier *Notifier
	monitor  *monitoring.Monitor
}

func NewAdmissionService(st *store.Store, cfg *config.Config, notifier *Notifier, monitor *monitoring.Monitor) *AdmissionService {
	return &AdmissionService{
		store:    st,
		config:   cfg,
		notifier: notifier,
		monitor:  monitor,
	}
}

// ProcessAdmission promotes up to (maxActive - activeCount) users in strict
// queue order. Returns the promoted user ids.
func (s *AdmissionService) ProcessAdmission(ctx context.Context, eventID string) ([]string, error) {
	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	res, err := s.store.RunScript(ctx, store.AdmissionScript,
		[]string{
			store.WaitingKey(eventID),
			store.ActiveKey(eventID),
			store.ActiveCountKey(eventID),
		},
		ec.MaxActive,
		time.Now().UnixMilli(),
		ec.ActiveTTLSeconds,
		store.StateKeyPrefix(eventID),
	)
	if err != nil {
		return nil, fmt.Errorf("admission script: %w", err)
	}

	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("admission script: unexpected reply type %T", res)
	}

	var promoted []string
	if err := json.Unmarshal([]byte(raw), &promoted); err != nil {
		return nil, fmt.Errorf("decode admission result: %w", err)
	}

	if len(promoted) > 0 {
		s.monitor.TrackPromoted(eventID, len(promoted))
		slog.Info("admitted users", "event_id", eventID, "count", len(promoted))

		for _, userID := range promoted {
			s.notifier.NotifyAdmitted(eventID, userID, ec.ActiveTTLSeconds)
		}
	}

	return promoted, nil
}

// ExpireActiveSlots drops active slots past their expiry and rewrites the
// counter from the surviving hash. Users mid-reservation or mid-payment keep
// their state; only plain ACTIVE state keys are cleared.
func (s *AdmissionService) ExpireActiveSlots(ctx context.Context, eventID string) (int64, error) {
	res, err := s.store.RunScript(ctx, store.ExpireActiveScript,
		[]string{
			store.ActiveKey(eventID),
			store.ActiveCountKey(eventID),
		},
		time.Now().UnixMilli(),
		store.StateKeyPrefix(eventID),
	)
	if err != nil {
		return 0, fmt.Errorf("expire active script: %w", err)
	}

	removed, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("expire active script: unexpected reply type %T", res)
	}
	if removed > 0 {
		slog.Info("expired active slots", "event_id", eventID, "count", removed)
	}
	return removed, nil
}

// NotifyQueuePositions pushes throttled position updates to the front of the
// line after an admission tick shifted everyone forward.
func (s *AdmissionService) NotifyQueuePositions(ctx context.Context, eventID string) error {
	if s.notifier == nil {
		return nil
	}

	// Only the front section gets realtime pushes; everyone else polls.
	users, err := s.store.Client.ZRange(ctx, store.WaitingKey(eventID), 0, 199).Result()
	if err != nil {
		return fmt.Errorf("read queue head: %w", err)
	}

	for i, userID := range users {
		position := int64(i)
		if shouldNotifyPosition(position) {
			s.notifier.NotifyPosition(eventID, userID, position)
		}
	}
	return nil
}
