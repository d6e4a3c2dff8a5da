package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/monitoring"
	"waitroom/store"
)

func setupPersistenceService(records *fakeRecords) (*PersistenceService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	svc := NewPersistenceService(store.New(db), records, monitoring.NewMonitor())
	return svc, mock
}

func TestPersistenceService_SyncStock(t *testing.T) {
	records := newFakeRecords()
	svc, mock := setupPersistenceService(records)

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1"})
	mock.ExpectHGetAll(store.StockKey("ev1")).SetVal(map[string]string{
		"tt1": "42",
		"tt2": "0",
	})

	require.NoError(t, svc.SyncStock(context.Background()))
	assert.Equal(t, 42, records.stockUpdates["tt1"])
	assert.Equal(t, 0, records.stockUpdates["tt2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistenceService_SyncStock_RowFailureDoesNotStallSync(t *testing.T) {
	records := newFakeRecords()
	records.updateStockFn = func(ticketTypeID string, remaining int) error {
		if ticketTypeID == "tt-bad" {
			return errors.New("row write failed")
		}
		return nil
	}
	svc, mock := setupPersistenceService(records)

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1"})
	mock.ExpectHGetAll(store.StockKey("ev1")).SetVal(map[string]string{
		"tt-bad":  "10",
		"tt-good": "20",
	})

	require.NoError(t, svc.SyncStock(context.Background()))
	assert.Equal(t, 20, records.stockUpdates["tt-good"])
	assert.NotContains(t, records.stockUpdates, "tt-bad")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistenceService_SyncStock_SkipsGarbageValues(t *testing.T) {
	records := newFakeRecords()
	svc, mock := setupPersistenceService(records)

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1"})
	mock.ExpectHGetAll(store.StockKey("ev1")).SetVal(map[string]string{
		"tt1": "not-a-number",
	})

	require.NoError(t, svc.SyncStock(context.Background()))
	assert.Empty(t, records.stockUpdates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistenceService_SyncStock_NoOpenEvents(t *testing.T) {
	records := newFakeRecords()
	svc, mock := setupPersistenceService(records)

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{})

	require.NoError(t, svc.SyncStock(context.Background()))
	assert.Empty(t, records.stockUpdates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistenceService_UpdateQueueMetrics(t *testing.T) {
	svc, mock := setupPersistenceService(newFakeRecords())

	mock.ExpectSMembers(store.OpenEventsKey()).SetVal([]string{"ev1", "ev2"})
	mock.ExpectZCard(store.WaitingKey("ev1")).SetVal(500)
	mock.ExpectHLen(store.ActiveKey("ev1")).SetVal(100)
	mock.ExpectZCard(store.WaitingKey("ev2")).SetVal(0)
	mock.ExpectHLen(store.ActiveKey("ev2")).SetVal(0)

	require.NoError(t, svc.UpdateQueueMetrics(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
