package services

import (
	"context"
	"time"

	"waitroom/durable"
	"waitroom/models"
)

// fakeRecords is an in-test durable layer. Every method delegates to an
// optional func field and records the call so tests can assert on the
// write-behind traffic without a database.
type fakeRecords struct {
	ticketTypeFn        func(id string) (*models.TicketType, error)
	purchasedFn         func(eventID, userID, ticketTypeID string) (int, error)
	latestPaymentFn     func(eventID, userID string) (*durable.PaymentRow, error)
	paymentByOrderFn    func(pgOrderID string) (*durable.PaymentRow, error)
	expiredRsvFn        func() ([]durable.ReservationRow, error)
	expiredPayFn        func() ([]durable.PaymentRow, error)
	ticketTypesFn       func(eventID string) ([]models.TicketType, error)
	eventFn             func(eventID string) (*durable.EventRow, error)
	openIDsFn           func() ([]string, error)
	updateStockFn       func(ticketTypeID string, remaining int) error

	savedReservations  []models.Reservation
	cancelledUsers     []string
	savedPayments      []models.Payment
	paymentResults     []string // "<orderID>:<status>"
	paidReservations   []string
	expiredMarked      []string
	cancelledPayments  []string
	stockUpdates       map[string]int
	createdEvents      []durable.EventInput
	updatedPatches     []map[string]any
	eventStatuses      []string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{stockUpdates: map[string]int{}}
}

func (f *fakeRecords) TicketType(ctx context.Context, id string) (*models.TicketType, error) {
	if f.ticketTypeFn != nil {
		return f.ticketTypeFn(id)
	}
	return &models.TicketType{ID: id}, nil
}

func (f *fakeRecords) TicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	if f.ticketTypesFn != nil {
		return f.ticketTypesFn(eventID)
	}
	return nil, nil
}

func (f *fakeRecords) PurchasedQuantity(ctx context.Context, eventID, userID, ticketTypeID string) (int, error) {
	if f.purchasedFn != nil {
		return f.purchasedFn(eventID, userID, ticketTypeID)
	}
	return 0, nil
}

func (f *fakeRecords) SaveReservation(ctx context.Context, eventID, userID string, rsv *models.Reservation) error {
	f.savedReservations = append(f.savedReservations, *rsv)
	return nil
}

func (f *fakeRecords) CancelPendingReservation(ctx context.Context, eventID, userID string) error {
	f.cancelledUsers = append(f.cancelledUsers, userID)
	return nil
}

func (f *fakeRecords) MarkReservationPaid(ctx context.Context, reservationID string) error {
	f.paidReservations = append(f.paidReservations, reservationID)
	return nil
}

func (f *fakeRecords) SavePayment(ctx context.Context, eventID, userID string, pay *models.Payment) error {
	f.savedPayments = append(f.savedPayments, *pay)
	return nil
}

func (f *fakeRecords) SetPaymentResult(ctx context.Context, pgOrderID, paymentStatus, pgPaymentKey string, raw []byte) error {
	f.paymentResults = append(f.paymentResults, pgOrderID+":"+paymentStatus)
	return nil
}

func (f *fakeRecords) PaymentByOrderID(ctx context.Context, pgOrderID string) (*durable.PaymentRow, error) {
	if f.paymentByOrderFn != nil {
		return f.paymentByOrderFn(pgOrderID)
	}
	return nil, nil
}

func (f *fakeRecords) LatestPayment(ctx context.Context, eventID, userID string) (*durable.PaymentRow, error) {
	if f.latestPaymentFn != nil {
		return f.latestPaymentFn(eventID, userID)
	}
	return nil, nil
}

func (f *fakeRecords) ExpiredPendingReservations(ctx context.Context, now time.Time, limit int) ([]durable.ReservationRow, error) {
	if f.expiredRsvFn != nil {
		return f.expiredRsvFn()
	}
	return nil, nil
}

func (f *fakeRecords) MarkReservationExpired(ctx context.Context, id string) error {
	f.expiredMarked = append(f.expiredMarked, id)
	return nil
}

func (f *fakeRecords) ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]durable.PaymentRow, error) {
	if f.expiredPayFn != nil {
		return f.expiredPayFn()
	}
	return nil, nil
}

func (f *fakeRecords) MarkPaymentCancelled(ctx context.Context, id string) error {
	f.cancelledPayments = append(f.cancelledPayments, id)
	return nil
}

func (f *fakeRecords) UpdateRemainingStock(ctx context.Context, ticketTypeID string, remaining int) error {
	if f.updateStockFn != nil {
		if err := f.updateStockFn(ticketTypeID, remaining); err != nil {
			return err
		}
	}
	f.stockUpdates[ticketTypeID] = remaining
	return nil
}

func (f *fakeRecords) Event(ctx context.Context, eventID string) (*durable.EventRow, error) {
	if f.eventFn != nil {
		return f.eventFn(eventID)
	}
	return &durable.EventRow{ID: eventID, Status: "closed"}, nil
}

func (f *fakeRecords) CreateEvent(ctx context.Context, in durable.EventInput, ticketTypes []durable.TicketTypeInput) (*durable.EventRow, error) {
	f.createdEvents = append(f.createdEvents, in)
	return &durable.EventRow{
		ID:        "ev-new",
		Title:     in.Title,
		MaxActive: in.MaxActive,
		Status:    "closed",
	}, nil
}

func (f *fakeRecords) UpdateEvent(ctx context.Context, eventID string, patch map[string]any) (*durable.EventRow, error) {
	f.updatedPatches = append(f.updatedPatches, patch)
	return &durable.EventRow{ID: eventID, Status: "closed"}, nil
}

func (f *fakeRecords) SetEventStatus(ctx context.Context, eventID, eventStatus string) error {
	f.eventStatuses = append(f.eventStatuses, eventID+":"+eventStatus)
	return nil
}

func (f *fakeRecords) OpenEventIDs(ctx context.Context) ([]string, error) {
	if f.openIDsFn != nil {
		return f.openIDsFn()
	}
	return nil, nil
}
