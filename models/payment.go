package models

// Payment is the live payment record kept under the per-user payment key
// while the gateway handshake is pending. After resolution the durable copy
// in the payments collection is the system of record.
type Payment struct {
	PaymentID     string `json:"paymentId"`
	ReservationID string `json:"reservationId"`
	TicketTypeID  string `json:"ticketTypeId"`
	Quantity      int    `json:"quantity"`
	Amount        int64  `json:"amount"`
	PgOrderID     string `json:"pgOrderId"`
	CreatedAt     int64  `json:"createdAt"`
	ExpiresAt     int64  `json:"expiresAt"`
}

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

type PaymentStatus struct {
	PaymentID string `json:"payment_id"`
	PgOrderID string `json:"pg_order_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	ExpiresIn int    `json:"expires_in"`
}
