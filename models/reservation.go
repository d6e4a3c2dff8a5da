package models

// Reservation is the live reservation record, stored as JSON under the
// per-user reservation key with TTL = reservationTtl. The durable copy in
// the reservations collection is the audit trail. Timestamps are unix
// milliseconds.
type Reservation struct {
	ReservationID string `json:"reservationId"`
	TicketTypeID  string `json:"ticketTypeId"`
	Quantity      int    `json:"quantity"`
	CreatedAt     int64  `json:"createdAt"`
	ExpiresAt     int64  `json:"expiresAt"`
}

const (
	ReservationPending   = "pending"
	ReservationPaid      = "paid"
	ReservationExpired   = "expired"
	ReservationCancelled = "cancelled"
)

type ReserveResult struct {
	ReservationID  string `json:"reservation_id"`
	TicketTypeID   string `json:"ticket_type_id"`
	Quantity       int    `json:"quantity"`
	RemainingStock int64  `json:"remaining_stock"`
	ExpiresIn      int    `json:"expires_in"`
}

type CancelResult struct {
	TicketTypeID   string `json:"ticket_type_id"`
	Quantity       int    `json:"quantity"`
	RemainingStock int64  `json:"remaining_stock"`
}
