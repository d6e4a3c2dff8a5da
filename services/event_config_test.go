package services

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/store"
)

func TestLoadEventConfig(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := store.New(db)

	mock.ExpectHGetAll(store.ConfigKey("ev1")).SetVal(map[string]string{
		"maxActive":      "50",
		"activeTtl":      "120",
		"reservationTtl": "60",
		"paymentTtl":     "90",
		"status":         "open",
	})

	ec, err := loadEventConfig(context.Background(), st, testConfig(), "ev1")
	require.NoError(t, err)
	assert.Equal(t, 50, ec.MaxActive)
	assert.Equal(t, 120, ec.ActiveTTLSeconds)
	assert.Equal(t, 60, ec.ReservationTTLSeconds)
	assert.Equal(t, 90, ec.PaymentTTLSeconds)
	assert.Equal(t, "open", ec.Status)
}

func TestLoadEventConfig_DefaultsFillGaps(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := store.New(db)

	mock.ExpectHGetAll(store.ConfigKey("ev1")).SetVal(map[string]string{
		"maxActive": "50",
	})

	ec, err := loadEventConfig(context.Background(), st, testConfig(), "ev1")
	require.NoError(t, err)
	assert.Equal(t, 50, ec.MaxActive)
	assert.Equal(t, 600, ec.ActiveTTLSeconds)
	assert.Equal(t, 300, ec.ReservationTTLSeconds)
	assert.Equal(t, 300, ec.PaymentTTLSeconds)
}

func TestLoadEventConfig_IgnoresGarbage(t *testing.T) {
	db, mock := redismock.NewClientMock()
	st := store.New(db)

	mock.ExpectHGetAll(store.ConfigKey("ev1")).SetVal(map[string]string{
		"maxActive": "not-a-number",
		"activeTtl": "-5",
	})

	ec, err := loadEventConfig(context.Background(), st, testConfig(), "ev1")
	require.NoError(t, err)
	assert.Equal(t, 100, ec.MaxActive)
	assert.Equal(t, 600, ec.ActiveTTLSeconds)
}
