package status

import "errors"

// Precondition rejections. These map one-to-one onto the reasons returned by
// the store scripts and are translated to user-facing responses at the HTTP
// boundary.
var (
	ErrEventNotOpen    = errors.New("ticketing: event is not open")
	ErrNotWaiting      = errors.New("queue: user is not in waiting state")
	ErrNotActive       = errors.New("reservation: user is not in active state")
	ErrAlreadyReserved = errors.New("reservation: reservation already in progress")
	ErrOutOfStock      = errors.New("reservation: ticket type out of stock")
	ErrMaxPerUser      = errors.New("reservation: per-user purchase limit reached")
	ErrNoReservation   = errors.New("reservation: no reservation found")
	ErrNotReserving    = errors.New("payment: user is not in reserving state")
	ErrNoPayment       = errors.New("payment: no payment found")
	ErrFailedPayment   = errors.New("payment: gateway confirmation failed")
)
