package models

import "github.com/shopspring/decimal"

// EventConfig mirrors the per-event capacity configuration kept in the
// config hash while an event is open. Durable fields are owned by the admin
// workflow and immutable while status is "open".
type EventConfig struct {
	MaxActive             int    `json:"max_active"`
	ActiveTTLSeconds      int    `json:"active_ttl_seconds"`
	ReservationTTLSeconds int    `json:"reservation_ttl_seconds"`
	PaymentTTLSeconds     int    `json:"payment_ttl_seconds"`
	Status                string `json:"status"` // closed, open, paused
}

type TicketType struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	TotalStock     int             `json:"total_stock"`
	RemainingStock int             `json:"remaining_stock"`
	MaxPerUser     int             `json:"max_per_user"`
}

// ActiveSlot is one of maxActive concurrency permits, stored in the active
// hash keyed by user id. Timestamps are unix milliseconds.
type ActiveSlot struct {
	EnteredAt int64 `json:"enteredAt"`
	ExpiresAt int64 `json:"expiresAt"`
}

type EventInfo struct {
	EventID      string `json:"event_id"`
	IsOpen       bool   `json:"is_open"`
	TotalWaiting int64  `json:"total_waiting"`
	ActiveCount  int64  `json:"active_count"`
	MaxActive    int    `json:"max_active"`
}

// EventStats is the admin-facing snapshot: queue depths plus the live stock
// ledger keyed by ticket type id.
type EventStats struct {
	EventID      string           `json:"event_id"`
	IsOpen       bool             `json:"is_open"`
	TotalWaiting int64            `json:"total_waiting"`
	ActiveCount  int64            `json:"active_count"`
	MaxActive    int              `json:"max_active"`
	Stock        map[string]int64 `json:"stock"`
}
