package handlers

import (
	"errors"

	"github.com/pocketbase/pocketbase/apis"

	"waitroom/internal/status"
)

// toAPIError maps service rejections onto HTTP responses. Precondition
// failures are 409s (the client's view of the flow is stale), lookups that
// found nothing are 404s, everything else stays a 400 so internals never
// leak through the boundary.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, status.ErrEventNotOpen):
		return apis.NewNotFoundError("Event is not open for ticketing", err)
	case errors.Is(err, status.ErrNotWaiting):
		return apis.NewApiError(409, "You are not in the waiting queue", err)
	case errors.Is(err, status.ErrNotActive):
		return apis.NewApiError(409, "It is not your turn yet", err)
	case errors.Is(err, status.ErrAlreadyReserved):
		return apis.NewApiError(409, "You already have a reservation in progress", err)
	case errors.Is(err, status.ErrOutOfStock):
		return apis.NewApiError(409, "This ticket type is sold out", err)
	case errors.Is(err, status.ErrMaxPerUser):
		return apis.NewApiError(409, "Purchase limit for this ticket type reached", err)
	case errors.Is(err, status.ErrNoReservation):
		return apis.NewNotFoundError("No reservation found", err)
	case errors.Is(err, status.ErrNotReserving):
		return apis.NewApiError(409, "No reservation to pay for", err)
	case errors.Is(err, status.ErrNoPayment):
		return apis.NewNotFoundError("No payment found", err)
	case errors.Is(err, status.ErrFailedPayment):
		return apis.NewApiError(402, "Payment was declined by the gateway", err)
	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
