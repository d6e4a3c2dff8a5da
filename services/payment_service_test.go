package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/durable"
	"waitroom/internal/pg"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
	"waitroom/store"
)

// fakeGateway is a scriptable pg.Adapter.
type fakeGateway struct {
	createOrderErr error
	confirmResult  *pg.ConfirmResult
	confirmErr     error
	validSignature bool

	createdOrders []string
	confirmCalls  int
}

func (g *fakeGateway) Provider() string { return "fake" }

func (g *fakeGateway) CreateOrder(ctx context.Context, orderID string, amount int64) error {
	g.createdOrders = append(g.createdOrders, orderID)
	return g.createOrderErr
}

func (g *fakeGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*pg.ConfirmResult, error) {
	g.confirmCalls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmResult, nil
}

func (g *fakeGateway) VerifySignature(body []byte, signature string) bool {
	return g.validSignature
}

func setupPaymentService(records *fakeRecords, gateway *fakeGateway) (*PaymentService, redismock.ClientMock, *Writer) {
	db, mock := redismock.NewClientMock()
	writer := NewWriter(16)
	writer.Start()
	svc := NewPaymentService(store.New(db), testConfig(), records, gateway, writer, nil, monitoring.NewMonitor())
	return svc, mock, writer
}

func livePaymentJSON(t *testing.T) (models.Payment, string) {
	t.Helper()
	pay := models.Payment{
		PaymentID:     "p1",
		ReservationID: "r1",
		TicketTypeID:  "tt1",
		Quantity:      2,
		Amount:        100000,
		PgOrderID:     "TKT-ev1-u1-1700000000000",
		CreatedAt:     1700000000000,
		ExpiresAt:     time.Now().Add(4 * time.Minute).UnixMilli(),
	}
	raw, err := json.Marshal(pay)
	require.NoError(t, err)
	return pay, string(raw)
}

func TestPaymentService_Initiate(t *testing.T) {
	records := newFakeRecords()
	records.ticketTypeFn = func(id string) (*models.TicketType, error) {
		return standardTicketType(id), nil
	}
	gateway := &fakeGateway{}
	svc, mock, writer := setupPaymentService(records, gateway)

	mock.ExpectGet(store.StateKey("ev1", "u1")).SetVal("RESERVING")
	mock.ExpectGet(store.ReservationKey("ev1", "u1")).
		SetVal(`{"reservationId":"r1","ticketTypeId":"tt1","quantity":2,"createdAt":1700000000000,"expiresAt":1700000300000}`)
	mock.ExpectHGetAll(store.ConfigKey("ev1")).SetVal(map[string]string{
		"paymentTtl": "300",
	})
	mock.CustomMatch(anyArgs).ExpectSet(store.PaymentKey("ev1", "u1"), "", 300*time.Second).SetVal("OK")
	mock.ExpectSet(store.StateKey("ev1", "u1"), "PAYING", 300*time.Second).SetVal("OK")

	pay, err := svc.Initiate(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "r1", pay.ReservationID)
	assert.Equal(t, int64(100000), pay.Amount, "2 x 50000")
	assert.NotEmpty(t, pay.PaymentID)
	assert.Contains(t, pay.PgOrderID, "TKT-ev1-u1-")

	require.Len(t, gateway.createdOrders, 1, "gateway learns the order before any record exists")
	assert.Equal(t, pay.PgOrderID, gateway.createdOrders[0])

	writer.Stop()
	require.Len(t, records.savedPayments, 1)
	assert.Equal(t, pay.PaymentID, records.savedPayments[0].PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Initiate_IdempotentWhilePaying(t *testing.T) {
	records := newFakeRecords()
	gateway := &fakeGateway{}
	svc, mock, writer := setupPaymentService(records, gateway)
	defer writer.Stop()

	_, raw := livePaymentJSON(t)
	mock.ExpectGet(store.StateKey("ev1", "u1")).SetVal("PAYING")
	mock.ExpectGet(store.PaymentKey("ev1", "u1")).SetVal(raw)

	pay, err := svc.Initiate(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", pay.PaymentID)
	assert.Empty(t, gateway.createdOrders, "no second gateway order")
	assert.Empty(t, records.savedPayments)
}

func TestPaymentService_Initiate_NotReserving(t *testing.T) {
	svc, mock, writer := setupPaymentService(newFakeRecords(), &fakeGateway{})
	defer writer.Stop()

	mock.ExpectGet(store.StateKey("ev1", "u1")).SetVal("ACTIVE")

	_, err := svc.Initiate(context.Background(), "ev1", "u1")
	assert.ErrorIs(t, err, status.ErrNotReserving)
}

func TestPaymentService_Initiate_GatewayRejectionLeavesNothingPending(t *testing.T) {
	records := newFakeRecords()
	records.ticketTypeFn = func(id string) (*models.TicketType, error) {
		return standardTicketType(id), nil
	}
	gateway := &fakeGateway{createOrderErr: errors.New("order rejected")}
	svc, mock, writer := setupPaymentService(records, gateway)
	defer writer.Stop()

	mock.ExpectGet(store.StateKey("ev1", "u1")).SetVal("RESERVING")
	mock.ExpectGet(store.ReservationKey("ev1", "u1")).
		SetVal(`{"reservationId":"r1","ticketTypeId":"tt1","quantity":1,"createdAt":1,"expiresAt":2}`)

	_, err := svc.Initiate(context.Background(), "ev1", "u1")
	assert.Error(t, err)
	assert.Empty(t, records.savedPayments)
	assert.NoError(t, mock.ExpectationsWereMet(), "no live payment was written")
}

func TestPaymentService_Confirm_Success(t *testing.T) {
	records := newFakeRecords()
	gateway := &fakeGateway{
		confirmResult: &pg.ConfirmResult{Success: true, PaymentKey: "pk-1", RawResponse: []byte(`{}`)},
	}
	svc, mock, writer := setupPaymentService(records, gateway)

	pay, raw := livePaymentJSON(t)
	mock.ExpectGet(store.PaymentKey("ev1", "u1")).SetVal(raw)

	// Completion: COMPLETED state, live records dropped, slot released,
	// counter rewritten from the hash length.
	mock.ExpectSet(store.StateKey("ev1", "u1"), "COMPLETED", 24*time.Hour).SetVal("OK")
	mock.ExpectDel(store.PaymentKey("ev1", "u1"), store.ReservationKey("ev1", "u1")).SetVal(2)
	mock.ExpectHDel(store.ActiveKey("ev1"), "u1").SetVal(1)
	mock.ExpectHLen(store.ActiveKey("ev1")).SetVal(7)
	mock.ExpectSet(store.ActiveCountKey("ev1"), int64(7), 0).SetVal("OK")

	res, err := svc.Confirm(context.Background(), "ev1", "u1", "pk-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, res.Status)
	assert.Equal(t, pay.PgOrderID, res.PgOrderID)

	writer.Stop()
	assert.Equal(t, []string{pay.PgOrderID + ":confirmed"}, records.paymentResults)
	assert.Equal(t, []string{"r1"}, records.paidReservations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_GatewayDeclined(t *testing.T) {
	records := newFakeRecords()
	gateway := &fakeGateway{
		confirmResult: &pg.ConfirmResult{Success: false, Message: "insufficient funds", RawResponse: []byte(`{}`)},
	}
	svc, mock, writer := setupPaymentService(records, gateway)

	pay, raw := livePaymentJSON(t)
	mock.ExpectGet(store.PaymentKey("ev1", "u1")).SetVal(raw)
	// Only the live payment is dropped; reservation and stock stay until
	// their windows lapse.
	mock.ExpectDel(store.PaymentKey("ev1", "u1")).SetVal(1)

	_, err := svc.Confirm(context.Background(), "ev1", "u1", "pk-1")
	assert.ErrorIs(t, err, status.ErrFailedPayment)

	writer.Stop()
	assert.Equal(t, []string{pay.PgOrderID + ":failed"}, records.paymentResults)
	assert.Empty(t, records.paidReservations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_TransportErrorKeepsPending(t *testing.T) {
	records := newFakeRecords()
	gateway := &fakeGateway{confirmErr: errors.New("connection reset")}
	svc, mock, writer := setupPaymentService(records, gateway)
	defer writer.Stop()

	_, raw := livePaymentJSON(t)
	mock.ExpectGet(store.PaymentKey("ev1", "u1")).SetVal(raw)

	_, err := svc.Confirm(context.Background(), "ev1", "u1", "pk-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, status.ErrFailedPayment)
	assert.Empty(t, records.paymentResults, "verdict is not recorded on transport failure")
	assert.NoError(t, mock.ExpectationsWereMet(), "live payment untouched")
}

func TestPaymentService_Confirm_NoPayment(t *testing.T) {
	svc, mock, writer := setupPaymentService(newFakeRecords(), &fakeGateway{})
	defer writer.Stop()

	mock.ExpectGet(store.PaymentKey("ev1", "u1")).RedisNil()

	_, err := svc.Confirm(context.Background(), "ev1", "u1", "pk-1")
	assert.ErrorIs(t, err, status.ErrNoPayment)
}

func TestPaymentService_Status_LivePending(t *testing.T) {
	svc, mock, writer := setupPaymentService(newFakeRecords(), &fakeGateway{})
	defer writer.Stop()

	_, raw := livePaymentJSON(t)
	mock.ExpectGet(store.PaymentKey("ev1", "u1")).SetVal(raw)

	ps, err := svc.Status(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, ps.Status)
	assert.Greater(t, ps.ExpiresIn, 0)
}

func TestPaymentService_Status_DurableFallback(t *testing.T) {
	records := newFakeRecords()
	records.latestPaymentFn = func(eventID, userID string) (*durable.PaymentRow, error) {
		return &durable.PaymentRow{
			PaymentID: "p1",
			PgOrderID: "TKT-ev1-u1-1",
			Amount:    100000,
			Status:    models.PaymentConfirmed,
		}, nil
	}
	svc, mock, writer := setupPaymentService(records, &fakeGateway{})
	defer writer.Stop()

	mock.ExpectGet(store.PaymentKey("ev1", "u1")).RedisNil()

	ps, err := svc.Status(context.Background(), "ev1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, ps.Status)
	assert.Equal(t, 0, ps.ExpiresIn)
}

func TestPaymentService_Status_None(t *testing.T) {
	svc, mock, writer := setupPaymentService(newFakeRecords(), &fakeGateway{})
	defer writer.Stop()

	mock.ExpectGet(store.PaymentKey("ev1", "u1")).RedisNil()

	_, err := svc.Status(context.Background(), "ev1", "u1")
	assert.ErrorIs(t, err, status.ErrNoPayment)
}

func TestPaymentService_HandleWebhook_BadSignature(t *testing.T) {
	svc, _, writer := setupPaymentService(newFakeRecords(), &fakeGateway{validSignature: false})
	defer writer.Stop()

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")
	assert.Error(t, err)
}

func TestPaymentService_HandleWebhook_SettledPaymentIgnored(t *testing.T) {
	records := newFakeRecords()
	records.paymentByOrderFn = func(pgOrderID string) (*durable.PaymentRow, error) {
		return &durable.PaymentRow{PgOrderID: pgOrderID, Status: models.PaymentConfirmed}, nil
	}
	svc, _, writer := setupPaymentService(records, &fakeGateway{validSignature: true})
	defer writer.Stop()

	body := []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"orderId":"TKT-ev1-u1-1","status":"DONE"}}`)
	err := svc.HandleWebhook(context.Background(), body, "sig")
	assert.NoError(t, err)
	assert.Empty(t, records.paymentResults, "nothing to do for an already settled payment")
}

func TestPaymentService_HandleWebhook_CancelledOrder(t *testing.T) {
	records := newFakeRecords()
	records.paymentByOrderFn = func(pgOrderID string) (*durable.PaymentRow, error) {
		return &durable.PaymentRow{
			PgOrderID: pgOrderID,
			Status:    models.PaymentPending,
			EventID:   "ev1",
			UserID:    "u1",
		}, nil
	}
	svc, _, writer := setupPaymentService(records, &fakeGateway{validSignature: true})
	defer writer.Stop()

	body := []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"orderId":"TKT-ev1-u1-1","status":"CANCELED"}}`)
	err := svc.HandleWebhook(context.Background(), body, "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"TKT-ev1-u1-1:failed"}, records.paymentResults)
}

func TestPaymentService_HandleWebhook_DoneAfterLiveExpiry(t *testing.T) {
	records := newFakeRecords()
	records.paymentByOrderFn = func(pgOrderID string) (*durable.PaymentRow, error) {
		return &durable.PaymentRow{
			PgOrderID:     pgOrderID,
			ReservationID: "r1",
			Status:        models.PaymentPending,
			EventID:       "ev1",
			UserID:        "u1",
		}, nil
	}
	svc, mock, writer := setupPaymentService(records, &fakeGateway{validSignature: true})
	defer writer.Stop()

	mock.ExpectGet(store.PaymentKey("ev1", "u1")).RedisNil()

	body := []byte(`{"eventType":"PAYMENT_STATUS_CHANGED","data":{"paymentKey":"pk-1","orderId":"TKT-ev1-u1-1","status":"DONE"}}`)
	err := svc.HandleWebhook(context.Background(), body, "sig")
	require.NoError(t, err)
	assert.Equal(t, []string{"TKT-ev1-u1-1:confirmed"}, records.paymentResults)
	assert.Equal(t, []string{"r1"}, records.paidReservations)
}
