package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/services"
)

type ReservationHandler struct {
	reservations *services.ReservationService
}

func NewReservationHandler(reservations *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Tickets lists the event's ticket types with live remaining stock.
func (h *ReservationHandler) Tickets(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	types, err := h.reservations.ListTicketTypes(e.Request.Context(), eventID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket_types": types})
}

// Reserve holds tickets for an admitted user.
func (h *ReservationHandler) Reserve(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var req struct {
		TicketTypeID string `json:"ticket_type_id"`
		Quantity     int    `json:"quantity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketTypeID == "" {
		return apis.NewBadRequestError("Ticket type ID required", nil)
	}
	if req.Quantity <= 0 {
		return apis.NewBadRequestError("Quantity must be positive", nil)
	}

	result, err := h.reservations.Reserve(e.Request.Context(), eventID, e.Auth.Id, req.TicketTypeID, req.Quantity)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Cancel releases the user's reservation and restores its stock.
func (h *ReservationHandler) Cancel(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	result, err := h.reservations.Cancel(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Current returns the user's live reservation.
func (h *ReservationHandler) Current(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	rsv, err := h.reservations.Current(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, rsv)
}
