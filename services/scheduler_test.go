package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/monitoring"
	"waitroom/store"
)

func setupScheduler() (*Scheduler, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	st := store.New(db)
	cfg := testConfig()
	monitor := monitoring.NewMonitor()
	admission := NewAdmissionService(st, cfg, nil, monitor)
	cleanup := NewCleanupService(st, newFakeRecords(), monitor)
	persistence := NewPersistenceService(st, newFakeRecords(), monitor)
	return NewScheduler(st, cfg, admission, cleanup, persistence), mock
}

func TestScheduler_AdmissionTick_RunsWhenLockWon(t *testing.T) {
	s, mock := setupScheduler()

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1"})
	mock.ExpectSetNX(store.AdmissionLockKey("ev1"), "1", 5*time.Second).SetVal(true)
	mock.ExpectHGetAll(store.ConfigKey("ev1")).SetVal(map[string]string{
		"maxActive": "10",
	})
	mock.CustomMatch(anyArgs).
		ExpectEvalSha(store.AdmissionScript.Hash(), admissionKeys("ev1"), "*", "*", "*", "*").
		SetVal(`["u1"]`)

	s.admissionTick(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A replica that loses the lock race skips the event without touching the
// queue.
func TestScheduler_AdmissionTick_SkipsWhenLockLost(t *testing.T) {
	s, mock := setupScheduler()

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1"})
	mock.ExpectSetNX(store.AdmissionLockKey("ev1"), "1", 5*time.Second).SetVal(false)

	s.admissionTick(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_AdmissionTick_NoOpenEvents(t *testing.T) {
	s, mock := setupScheduler()

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{})

	s.admissionTick(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_StartStop(t *testing.T) {
	s, mock := setupScheduler()
	s.config.AdmissionInterval = time.Hour
	s.config.CleanupInterval = time.Hour
	s.config.SyncInterval = time.Hour
	s.config.MetricsInterval = time.Hour

	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
