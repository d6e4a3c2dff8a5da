package durable

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// EventRow is the durable event shape used by the admin workflow.
type EventRow struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	EventDate             time.Time `json:"event_date"`
	Venue                 string    `json:"venue"`
	MaxActive             int       `json:"max_active"`
	ActiveTTLSeconds      int       `json:"active_ttl_seconds"`
	ReservationTTLSeconds int       `json:"reservation_ttl_seconds"`
	PaymentTTLSeconds     int       `json:"payment_ttl_seconds"`
	Status                string    `json:"status"`
}

type EventInput struct {
	Title                 string
	Description           string
	EventDate             time.Time
	Venue                 string
	MaxActive             int
	ActiveTTLSeconds      int
	ReservationTTLSeconds int
	PaymentTTLSeconds     int
}

type TicketTypeInput struct {
	Name        string
	Description string
	Price       float64
	TotalStock  int
	MaxPerUser  int
}

func eventRowFromRecord(rec *core.Record) *EventRow {
	return &EventRow{
		ID:                    rec.Id,
		Title:                 rec.GetString("title"),
		Description:           rec.GetString("description"),
		EventDate:             rec.GetDateTime("event_date").Time(),
		Venue:                 rec.GetString("venue"),
		MaxActive:             rec.GetInt("max_active"),
		ActiveTTLSeconds:      rec.GetInt("active_ttl_seconds"),
		ReservationTTLSeconds: rec.GetInt("reservation_ttl_seconds"),
		PaymentTTLSeconds:     rec.GetInt("payment_ttl_seconds"),
		Status:                rec.GetString("status"),
	}
}

func (r *Repo) Event(ctx context.Context, eventID string) (*EventRow, error) {
	rec, err := r.app.FindRecordById(CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, err)
	}
	return eventRowFromRecord(rec), nil
}

// CreateEvent writes the event (closed) plus its ticket types with
// remaining stock initialized to total stock.
func (r *Repo) CreateEvent(ctx context.Context, in EventInput, ticketTypes []TicketTypeInput) (*EventRow, error) {
	eventCol, err := r.app.FindCollectionByNameOrId(CollectionEvents)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(eventCol)
	rec.Set("title", in.Title)
	rec.Set("description", in.Description)
	rec.Set("event_date", in.EventDate.UTC())
	rec.Set("venue", in.Venue)
	rec.Set("max_active", in.MaxActive)
	rec.Set("active_ttl_seconds", in.ActiveTTLSeconds)
	rec.Set("reservation_ttl_seconds", in.ReservationTTLSeconds)
	rec.Set("payment_ttl_seconds", in.PaymentTTLSeconds)
	rec.Set("status", "closed")
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}

	typeCol, err := r.app.FindCollectionByNameOrId(CollectionTicketTypes)
	if err != nil {
		return nil, err
	}
	for _, tt := range ticketTypes {
		typeRec := core.NewRecord(typeCol)
		typeRec.Set("event_id", rec.Id)
		typeRec.Set("name", tt.Name)
		typeRec.Set("description", tt.Description)
		typeRec.Set("price", tt.Price)
		typeRec.Set("total_stock", tt.TotalStock)
		typeRec.Set("remaining_stock", tt.TotalStock)
		typeRec.Set("max_per_user", tt.MaxPerUser)
		if err := r.app.SaveWithContext(ctx, typeRec); err != nil {
			return nil, fmt.Errorf("save ticket type %q: %w", tt.Name, err)
		}
	}

	return eventRowFromRecord(rec), nil
}

// UpdateEvent patches capacity config. Callers must have verified the event
// is not open: config is immutable while live.
func (r *Repo) UpdateEvent(ctx context.Context, eventID string, patch map[string]any) (*EventRow, error) {
	rec, err := r.app.FindRecordById(CollectionEvents, eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, err)
	}
	for field, value := range patch {
		rec.Set(field, value)
	}
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}
	return eventRowFromRecord(rec), nil
}

// SetEventStatus flips the durable lifecycle status and stamps the
// corresponding timestamp.
func (r *Repo) SetEventStatus(ctx context.Context, eventID, eventStatus string) error {
	rec, err := r.app.FindRecordById(CollectionEvents, eventID)
	if err != nil {
		return fmt.Errorf("find event %s: %w", eventID, err)
	}
	rec.Set("status", eventStatus)
	switch eventStatus {
	case "open":
		rec.Set("opened_at", time.Now().UTC())
	case "closed":
		rec.Set("closed_at", time.Now().UTC())
	}
	return r.app.SaveWithContext(ctx, rec)
}

// OpenEventIDs lists durable events currently marked open, used to restore
// the live open-events set after a restart.
func (r *Repo) OpenEventIDs(ctx context.Context) ([]string, error) {
	recs, err := r.app.FindRecordsByFilter(CollectionEvents, "status = 'open'", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("find open events: %w", err)
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.Id)
	}
	return ids, nil
}
