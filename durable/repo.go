// Package durable is the system-of-record boundary. Everything here is
// best-effort from the live path's perspective: the Redis store stays
// authoritative for admission and inventory while an event is open, and
// these records exist for audit, reporting and crash-recovery bootstrap.
package durable

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"waitroom/models"
)

const (
	CollectionEvents       = "ticketing_events"
	CollectionTicketTypes  = "ticket_types"
	CollectionReservations = "reservations"
	CollectionPayments     = "payments"
)

type Repo struct {
	app core.App
}

func NewRepo(app core.App) *Repo {
	return &Repo{app: app}
}

// ReservationRow is the durable reservation shape handed to the cleanup
// sweep.
type ReservationRow struct {
	ID            string
	ReservationID string
	EventID       string
	UserID        string
	TicketTypeID  string
	Quantity      int
	Status        string
	ExpiresAt     time.Time
}

type PaymentRow struct {
	ID            string
	PaymentID     string
	ReservationID string
	EventID       string
	UserID        string
	PgOrderID     string
	Amount        int64
	Status        string
	ExpiresAt     time.Time
}

func (r *Repo) TicketType(ctx context.Context, id string) (*models.TicketType, error) {
	rec, err := r.app.FindRecordById(CollectionTicketTypes, id)
	if err != nil {
		return nil, fmt.Errorf("find ticket type %s: %w", id, err)
	}
	return ticketTypeFromRecord(rec), nil
}

func (r *Repo) TicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionTicketTypes,
		"event_id = {:eventId}",
		"created",
		0,
		0,
		dbx.Params{"eventId": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("find ticket types for event %s: %w", eventID, err)
	}

	out := make([]models.TicketType, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *ticketTypeFromRecord(rec))
	}
	return out, nil
}

func ticketTypeFromRecord(rec *core.Record) *models.TicketType {
	return &models.TicketType{
		ID:             rec.Id,
		EventID:        rec.GetString("event_id"),
		Name:           rec.GetString("name"),
		Description:    rec.GetString("description"),
		Price:          decimal.NewFromFloat(rec.GetFloat("price")),
		TotalStock:     rec.GetInt("total_stock"),
		RemainingStock: rec.GetInt("remaining_stock"),
		MaxPerUser:     rec.GetInt("max_per_user"),
	}
}

// PurchasedQuantity sums a user's reservation quantities that still count
// against maxPerUser (pending or paid) for one ticket type.
func (r *Repo) PurchasedQuantity(ctx context.Context, eventID, userID, ticketTypeID string) (int, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionReservations,
		"event_id = {:eventId} && user_id = {:userId} && ticket_type_id = {:typeId} && (status = 'pending' || status = 'paid')",
		"",
		0,
		0,
		dbx.Params{"eventId": eventID, "userId": userID, "typeId": ticketTypeID},
	)
	if err != nil {
		return 0, fmt.Errorf("count purchased quantity: %w", err)
	}

	total := 0
	for _, rec := range recs {
		total += rec.GetInt("quantity")
	}
	return total, nil
}

func (r *Repo) SaveReservation(ctx context.Context, eventID, userID string, rsv *models.Reservation) error {
	col, err := r.app.FindCollectionByNameOrId(CollectionReservations)
	if err != nil {
		return err
	}

	rec := core.NewRecord(col)
	rec.Set("reservation_id", rsv.ReservationID)
	rec.Set("event_id", eventID)
	rec.Set("user_id", userID)
	rec.Set("ticket_type_id", rsv.TicketTypeID)
	rec.Set("quantity", rsv.Quantity)
	rec.Set("status", models.ReservationPending)
	rec.Set("expires_at", time.UnixMilli(rsv.ExpiresAt).UTC())
	return r.app.SaveWithContext(ctx, rec)
}

// CancelPendingReservation flips the user's pending reservation for an event
// to cancelled.
func (r *Repo) CancelPendingReservation(ctx context.Context, eventID, userID string) error {
	rec, err := r.app.FindFirstRecordByFilter(
		CollectionReservations,
		"event_id = {:eventId} && user_id = {:userId} && status = 'pending'",
		dbx.Params{"eventId": eventID, "userId": userID},
	)
	if err != nil {
		return fmt.Errorf("find pending reservation: %w", err)
	}
	rec.Set("status", models.ReservationCancelled)
	return r.app.SaveWithContext(ctx, rec)
}

func (r *Repo) MarkReservationPaid(ctx context.Context, reservationID string) error {
	rec, err := r.app.FindFirstRecordByFilter(
		CollectionReservations,
		"reservation_id = {:rsvId}",
		dbx.Params{"rsvId": reservationID},
	)
	if err != nil {
		return fmt.Errorf("find reservation %s: %w", reservationID, err)
	}
	rec.Set("status", models.ReservationPaid)
	return r.app.SaveWithContext(ctx, rec)
}

func (r *Repo) SavePayment(ctx context.Context, eventID, userID string, pay *models.Payment) error {
	col, err := r.app.FindCollectionByNameOrId(CollectionPayments)
	if err != nil {
		return err
	}

	rec := core.NewRecord(col)
	rec.Set("payment_id", pay.PaymentID)
	rec.Set("reservation_id", pay.ReservationID)
	rec.Set("event_id", eventID)
	rec.Set("user_id", userID)
	rec.Set("pg_order_id", pay.PgOrderID)
	rec.Set("amount", pay.Amount)
	rec.Set("status", models.PaymentPending)
	rec.Set("expires_at", time.UnixMilli(pay.ExpiresAt).UTC())
	return r.app.SaveWithContext(ctx, rec)
}

func (r *Repo) PaymentByOrderID(ctx context.Context, pgOrderID string) (*PaymentRow, error) {
	rec, err := r.app.FindFirstRecordByFilter(
		CollectionPayments,
		"pg_order_id = {:orderId}",
		dbx.Params{"orderId": pgOrderID},
	)
	if err != nil {
		return nil, fmt.Errorf("find payment by order id %s: %w", pgOrderID, err)
	}
	return paymentRowFromRecord(rec), nil
}

func paymentRowFromRecord(rec *core.Record) *PaymentRow {
	return &PaymentRow{
		ID:            rec.Id,
		PaymentID:     rec.GetString("payment_id"),
		ReservationID: rec.GetString("reservation_id"),
		EventID:       rec.GetString("event_id"),
		UserID:        rec.GetString("user_id"),
		PgOrderID:     rec.GetString("pg_order_id"),
		Amount:        int64(rec.GetFloat("amount")),
		Status:        rec.GetString("status"),
		ExpiresAt:     rec.GetDateTime("expires_at").Time(),
	}
}

// SetPaymentResult records the gateway's verdict. The raw response is kept
// for dispute handling.
func (r *Repo) SetPaymentResult(ctx context.Context, pgOrderID, status, pgPaymentKey string, raw []byte) error {
	rec, err := r.app.FindFirstRecordByFilter(
		CollectionPayments,
		"pg_order_id = {:orderId}",
		dbx.Params{"orderId": pgOrderID},
	)
	if err != nil {
		return fmt.Errorf("find payment by order id %s: %w", pgOrderID, err)
	}
	rec.Set("status", status)
	if pgPaymentKey != "" {
		rec.Set("pg_payment_key", pgPaymentKey)
	}
	if len(raw) > 0 {
		rec.Set("pg_response", string(raw))
	}
	return r.app.SaveWithContext(ctx, rec)
}

// LatestPayment returns the most recent durable payment for a user, used as
// the status fallback once the live record is gone.
func (r *Repo) LatestPayment(ctx context.Context, eventID, userID string) (*PaymentRow, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionPayments,
		"event_id = {:eventId} && user_id = {:userId}",
		"-created",
		1,
		0,
		dbx.Params{"eventId": eventID, "userId": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("find latest payment: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return paymentRowFromRecord(recs[0]), nil
}

// ExpiredPendingReservations lists reservations whose window lapsed while
// their durable row is still pending. The sweep restores their stock and
// marks them expired; a marked row can never be returned again.
func (r *Repo) ExpiredPendingReservations(ctx context.Context, now time.Time, limit int) ([]ReservationRow, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionReservations,
		"status = 'pending' && expires_at < {:now}",
		"expires_at",
		limit,
		0,
		dbx.Params{"now": nowString(now)},
	)
	if err != nil {
		return nil, fmt.Errorf("find expired reservations: %w", err)
	}

	out := make([]ReservationRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ReservationRow{
			ID:            rec.Id,
			ReservationID: rec.GetString("reservation_id"),
			EventID:       rec.GetString("event_id"),
			UserID:        rec.GetString("user_id"),
			TicketTypeID:  rec.GetString("ticket_type_id"),
			Quantity:      rec.GetInt("quantity"),
			Status:        rec.GetString("status"),
			ExpiresAt:     rec.GetDateTime("expires_at").Time(),
		})
	}
	return out, nil
}

func (r *Repo) MarkReservationExpired(ctx context.Context, id string) error {
	rec, err := r.app.FindRecordById(CollectionReservations, id)
	if err != nil {
		return err
	}
	rec.Set("status", models.ReservationExpired)
	return r.app.SaveWithContext(ctx, rec)
}

func (r *Repo) ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]PaymentRow, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionPayments,
		"status = 'pending' && expires_at < {:now}",
		"expires_at",
		limit,
		0,
		dbx.Params{"now": nowString(now)},
	)
	if err != nil {
		return nil, fmt.Errorf("find expired payments: %w", err)
	}

	out := make([]PaymentRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *paymentRowFromRecord(rec))
	}
	return out, nil
}

func (r *Repo) MarkPaymentCancelled(ctx context.Context, id string) error {
	rec, err := r.app.FindRecordById(CollectionPayments, id)
	if err != nil {
		return err
	}
	rec.Set("status", models.PaymentCancelled)
	return r.app.SaveWithContext(ctx, rec)
}

// UpdateRemainingStock write-behinds one live stock value into the durable
// mirror. Issued in bulk by the persistence sync, so it goes straight
// through dbx instead of the record lifecycle.
func (r *Repo) UpdateRemainingStock(ctx context.Context, ticketTypeID string, remaining int) error {
	_, err := r.app.DB().Update(
		CollectionTicketTypes,
		dbx.Params{"remaining_stock": remaining},
		dbx.HashExp{"id": ticketTypeID},
	).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("sync stock for ticket type %s: %w", ticketTypeID, err)
	}
	return nil
}

func nowString(t time.Time) string {
	dt, _ := types.ParseDateTime(t.UTC())
	return dt.String()
}
