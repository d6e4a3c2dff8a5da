package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"waitroom/config"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
	"waitroom/store"
)

// QueueService owns the waiting line: entry, position reads and voluntary
// exit. Admission out of the line is the AdmissionService's job.
type QueueService struct {
	store    *store.Store
	config   *config.Config
	notifier *Notifier
	monitor  *monitoring.Monitor
}

func NewQueueService(st *store.Store, cfg *config.Config, notifier *Notifier, monitor *monitoring.Monitor) *QueueService {
	return &QueueService{
		store:    st,
		config:   cfg,
		notifier: notifier,
		monitor:  monitor,
	}
}

// Enter puts the user in the waiting line. Re-entry is idempotent: a user
// already waiting keeps the original enqueue timestamp, and a user already
// past the line just gets their current state back with rank -1.
func (s *QueueService) Enter(ctx context.Context, eventID, userID string) (*models.EnterResult, error) {
	open, err := s.store.Client.SIsMember(ctx, store.OpenEventsKey(), eventID).Result()
	if err != nil {
		return nil, fmt.Errorf("check open events: %w", err)
	}
	if !open {
		return nil, status.ErrEventNotOpen
	}

	state, err := s.userState(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	switch state {
	case models.StateActive, models.StateReserving, models.StatePaying, models.StateCompleted:
		return &models.EnterResult{Rank: -1, State: state}, nil

	case models.StateWaiting:
		rank, err := s.waitingRank(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		if rank < 0 {
			// State key says waiting but the zset entry is gone
			// (flushed or manually removed). Re-enqueue at the back.
			return s.enqueue(ctx, eventID, userID)
		}
		return &models.EnterResult{Rank: rank, State: models.StateWaiting}, nil

	default: // NOT_IN_QUEUE, LEFT
		return s.enqueue(ctx, eventID, userID)
	}
}

func (s *QueueService) enqueue(ctx context.Context, eventID, userID string) (*models.EnterResult, error) {
	now := time.Now().UnixMilli()

	if err := s.store.Client.ZAddNX(ctx, store.WaitingKey(eventID), redis.Z{
		Score:  float64(now),
		Member: userID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("enqueue user: %w", err)
	}

	if err := s.store.Client.Set(ctx, store.StateKey(eventID, userID),
		string(models.StateWaiting), s.config.WaitingStateTTL).Err(); err != nil {
		return nil, fmt.Errorf("set waiting state: %w", err)
	}

	rank, err := s.waitingRank(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	s.monitor.TrackOperation("queue_enter", eventID, "ok")
	slog.Debug("user entered queue", "event_id", eventID, "user_id", userID, "rank", rank)

	return &models.EnterResult{Rank: rank, State: models.StateWaiting}, nil
}

// Status reports the user's state plus queue-wide depth numbers. A WAITING
// state whose zset membership has vanished is self-healed back to
// NOT_IN_QUEUE so the client can re-enter.
func (s *QueueService) Status(ctx context.Context, eventID, userID string) (*models.QueueStatus, error) {
	totalWaiting, err := s.store.Client.ZCard(ctx, store.WaitingKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue depth: %w", err)
	}
	activeCount, err := s.activeCount(ctx, eventID)
	if err != nil {
		return nil, err
	}

	state, err := s.userState(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	out := &models.QueueStatus{
		State:        state,
		Rank:         -1,
		TotalWaiting: totalWaiting,
		ActiveCount:  activeCount,
	}

	if state == models.StateWaiting {
		rank, err := s.waitingRank(ctx, eventID, userID)
		if err != nil {
			return nil, err
		}
		if rank < 0 {
			if err := s.store.Client.Del(ctx, store.StateKey(eventID, userID)).Err(); err != nil {
				return nil, fmt.Errorf("clear stale waiting state: %w", err)
			}
			out.State = models.StateNotInQueue
		} else {
			out.Rank = rank
		}
	}

	out.Message = statusMessage(out.State, out.Rank)
	return out, nil
}

// Leave removes a waiting user from the line. Only WAITING users can leave;
// everyone else either is not in line or holds resources that expire on
// their own.
func (s *QueueService) Leave(ctx context.Context, eventID, userID string) error {
	state, err := s.userState(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if state != models.StateWaiting {
		return status.ErrNotWaiting
	}

	if err := s.store.Client.ZRem(ctx, store.WaitingKey(eventID), userID).Err(); err != nil {
		return fmt.Errorf("remove from queue: %w", err)
	}
	if err := s.store.Client.Set(ctx, store.StateKey(eventID, userID),
		string(models.StateLeft), s.config.LeftStateTTL).Err(); err != nil {
		return fmt.Errorf("set left state: %w", err)
	}

	s.monitor.TrackOperation("queue_leave", eventID, "ok")
	return nil
}

// EventInfo is the public snapshot of one event's queue.
func (s *QueueService) EventInfo(ctx context.Context, eventID string) (*models.EventInfo, error) {
	open, err := s.store.Client.SIsMember(ctx, store.OpenEventsKey(), eventID).Result()
	if err != nil {
		return nil, fmt.Errorf("check open events: %w", err)
	}

	totalWaiting, err := s.store.Client.ZCard(ctx, store.WaitingKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue depth: %w", err)
	}
	activeCount, err := s.activeCount(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ec, err := loadEventConfig(ctx, s.store, s.config, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event config: %w", err)
	}

	return &models.EventInfo{
		EventID:      eventID,
		IsOpen:       open,
		TotalWaiting: totalWaiting,
		ActiveCount:  activeCount,
		MaxActive:    ec.MaxActive,
	}, nil
}

func (s *QueueService) userState(ctx context.Context, eventID, userID string) (models.State, error) {
	raw, err := s.store.Client.Get(ctx, store.StateKey(eventID, userID)).Result()
	if err == redis.Nil {
		return models.StateNotInQueue, nil
	}
	if err != nil {
		return "", fmt.Errorf("read user state: %w", err)
	}
	return models.ParseState(raw), nil
}

// waitingRank returns the zero-based position, or -1 when the user is not in
// the zset.
func (s *QueueService) waitingRank(ctx context.Context, eventID, userID string) (int64, error) {
	rank, err := s.store.Client.ZRank(ctx, store.WaitingKey(eventID), userID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("read queue rank: %w", err)
	}
	return rank, nil
}

func (s *QueueService) activeCount(ctx context.Context, eventID string) (int64, error) {
	count, err := s.store.Client.Get(ctx, store.ActiveCountKey(eventID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read active count: %w", err)
	}
	return count, nil
}

func statusMessage(state models.State, rank int64) string {
	switch state {
	case models.StateWaiting:
		return fmt.Sprintf("You are #%d in line", rank+1)
	case models.StateActive:
		return "It's your turn! You can reserve tickets now."
	case models.StateReserving:
		return "Tickets reserved. Complete payment before the hold expires."
	case models.StatePaying:
		return "Payment in progress."
	case models.StateCompleted:
		return "Purchase complete."
	case models.StateLeft:
		return "You left the queue."
	default:
		return "You are not in the queue."
	}
}
