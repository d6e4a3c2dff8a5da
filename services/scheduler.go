package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"waitroom/config"
	"waitroom/store"
)

// Scheduler drives the background loops: admission ticks, expiry sweeps,
// stock sync and metrics refresh. Every tick works on whatever events are
// open at that moment; the per-event admission lock keeps concurrent
// replicas from duplicating the same tick.
type Scheduler struct {
	store       *store.Store
	config      *config.Config
	admission   *AdmissionService
	cleanup     *CleanupService
	persistence *PersistenceService

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(st *store.Store, cfg *config.Config, admission *AdmissionService, cleanup *CleanupService, persistence *PersistenceService) *Scheduler {
	return &Scheduler{
		store:       st,
		config:      cfg,
		admission:   admission,
		cleanup:     cleanup,
		persistence: persistence,
		stopChan:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.loop(s.config.AdmissionInterval, s.admissionTick)
	s.loop(s.config.CleanupInterval, s.cleanupTick)
	s.loop(s.config.SyncInterval, s.syncTick)
	s.loop(s.config.MetricsInterval, s.metricsTick)
	slog.Info("background scheduler started",
		"admission_interval", s.config.AdmissionInterval,
		"cleanup_interval", s.config.CleanupInterval)
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	slog.Info("background scheduler stopped")
}

func (s *Scheduler) loop(interval time.Duration, tick func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				tick(ctx)
				cancel()
			}
		}
	}()
}

// admissionTick promotes waiting users for every open event. The lock is a
// tick deduplicator, not a correctness guard: a replica that loses the race
// simply skips the event this round.
func (s *Scheduler) admissionTick(ctx context.Context) {
	eventIDs, err := s.store.Client.SMembers(ctx, store.OpenEventsKey()).Result()
	if err != nil {
		slog.Error("admission tick: list open events", "error", err)
		return
	}

	for _, eventID := range eventIDs {
		acquired, err := s.store.AcquireLock(ctx,
			store.AdmissionLockKey(eventID), s.config.AdmissionLockTTL)
		if err != nil {
			slog.Error("admission tick: acquire lock", "event_id", eventID, "error", err)
			continue
		}
		if !acquired {
			continue
		}

		if _, err := s.admission.ProcessAdmission(ctx, eventID); err != nil {
			slog.Error("admission tick failed", "event_id", eventID, "error", err)
			continue
		}
		if err := s.admission.NotifyQueuePositions(ctx, eventID); err != nil {
			slog.Warn("queue position notify failed", "event_id", eventID, "error", err)
		}
	}
}

// cleanupTick reaps lapsed active slots and settles durable leftovers.
func (s *Scheduler) cleanupTick(ctx context.Context) {
	eventIDs, err := s.store.Client.SMembers(ctx, store.OpenEventsKey()).Result()
	if err != nil {
		slog.Error("cleanup tick: list open events", "error", err)
		return
	}

	for _, eventID := range eventIDs {
		if _, err := s.admission.ExpireActiveSlots(ctx, eventID); err != nil {
			slog.Error("active slot expiry failed", "event_id", eventID, "error", err)
		}
	}

	if err := s.cleanup.Sweep(ctx); err != nil {
		slog.Error("reconciliation sweep failed", "error", err)
	}
}

func (s *Scheduler) syncTick(ctx context.Context) {
	if err := s.persistence.SyncStock(ctx); err != nil {
		slog.Error("stock sync failed", "error", err)
	}
}

func (s *Scheduler) metricsTick(ctx context.Context) {
	if err := s.persistence.UpdateQueueMetrics(ctx); err != nil {
		slog.Error("metrics refresh failed", "error", err)
	}
}
