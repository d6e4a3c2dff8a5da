package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/services"
)

// signatureHeader carries the gateway's HMAC over the webhook body.
const signatureHeader = "Toss-Signature"

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initiate opens the payment window for the user's reservation.
func (h *PaymentHandler) Initiate(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	pay, err := h.payments.Initiate(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, pay)
}

// Confirm captures the payment with the gateway using the key the client
// obtained from the gateway's checkout flow.
func (h *PaymentHandler) Confirm(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var req struct {
		PaymentKey string `json:"payment_key"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.PaymentKey == "" {
		return apis.NewBadRequestError("Payment key required", nil)
	}

	result, err := h.payments.Confirm(e.Request.Context(), eventID, e.Auth.Id, req.PaymentKey)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Status reports the user's current or most recent payment.
func (h *PaymentHandler) Status(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	ps, err := h.payments.Status(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ps)
}

// Webhook resolves gateway pushes. The signature is verified over the raw
// body, so the body is read before any decoding happens.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Unreadable body", err)
	}

	signature := e.Request.Header.Get(signatureHeader)
	if err := h.payments.HandleWebhook(e.Request.Context(), body, signature); err != nil {
		slog.Warn("webhook rejected", "error", err)
		return apis.NewBadRequestError("Webhook rejected", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
