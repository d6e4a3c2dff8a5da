package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/durable"
	"waitroom/services"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type ticketTypeRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	TotalStock  int     `json:"total_stock"`
	MaxPerUser  int     `json:"max_per_user"`
}

type createEventRequest struct {
	Title                 string              `json:"title"`
	Description           string              `json:"description"`
	EventDate             string              `json:"event_date"`
	Venue                 string              `json:"venue"`
	MaxActive             int                 `json:"max_active"`
	ActiveTTLSeconds      int                 `json:"active_ttl_seconds"`
	ReservationTTLSeconds int                 `json:"reservation_ttl_seconds"`
	PaymentTTLSeconds     int                 `json:"payment_ttl_seconds"`
	TicketTypes           []ticketTypeRequest `json:"ticket_types"`
}

// CreateEvent writes a new (closed) event with its ticket types.
func (h *AdminHandler) CreateEvent(e *core.RequestEvent) error {
	var req createEventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	var eventDate time.Time
	if req.EventDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.EventDate)
		if err != nil {
			return apis.NewBadRequestError("event_date must be RFC3339", err)
		}
		eventDate = parsed
	}

	types := make([]durable.TicketTypeInput, 0, len(req.TicketTypes))
	for _, tt := range req.TicketTypes {
		types = append(types, durable.TicketTypeInput{
			Name:        tt.Name,
			Description: tt.Description,
			Price:       tt.Price,
			TotalStock:  tt.TotalStock,
			MaxPerUser:  tt.MaxPerUser,
		})
	}

	row, err := h.admin.CreateEvent(e.Request.Context(), durable.EventInput{
		Title:                 req.Title,
		Description:           req.Description,
		EventDate:             eventDate,
		Venue:                 req.Venue,
		MaxActive:             req.MaxActive,
		ActiveTTLSeconds:      req.ActiveTTLSeconds,
		ReservationTTLSeconds: req.ReservationTTLSeconds,
		PaymentTTLSeconds:     req.PaymentTTLSeconds,
	}, types)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusCreated, row)
}

// UpdateEvent patches capacity config on a closed event.
func (h *AdminHandler) UpdateEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	patch := map[string]any{}
	if err := e.BindBody(&patch); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if len(patch) == 0 {
		return apis.NewBadRequestError("Empty patch", nil)
	}

	row, err := h.admin.UpdateEvent(e.Request.Context(), eventID, patch)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, row)
}

// OpenEvent seeds the live store and starts admitting users.
func (h *AdminHandler) OpenEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.admin.OpenEvent(e.Request.Context(), eventID); err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "open"})
}

// CloseEvent stops ticketing and drains live stock back to durable rows.
func (h *AdminHandler) CloseEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.admin.CloseEvent(e.Request.Context(), eventID); err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "closed"})
}

// Stats returns the live operational snapshot for one event.
func (h *AdminHandler) Stats(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	stats, err := h.admin.Stats(e.Request.Context(), eventID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, stats)
}

// AdjustStock applies a signed correction to the live stock ledger.
func (h *AdminHandler) AdjustStock(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var req struct {
		TicketTypeID string `json:"ticket_type_id"`
		Delta        int    `json:"delta"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketTypeID == "" {
		return apis.NewBadRequestError("Ticket type ID required", nil)
	}

	remaining, err := h.admin.AdjustStock(e.Request.Context(), eventID, req.TicketTypeID, req.Delta)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"ticket_type_id": req.TicketTypeID,
		"remaining":      remaining,
	})
}
