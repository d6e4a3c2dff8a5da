package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/services"
)

type QueueHandler struct {
	queue *services.QueueService
}

func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Enter puts the authenticated user into the event's waiting queue.
func (h *QueueHandler) Enter(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	result, err := h.queue.Enter(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, result)
}

// Status reports the user's position and the queue depth.
func (h *QueueHandler) Status(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	qs, err := h.queue.Status(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, qs)
}

// Leave removes a waiting user from the queue.
func (h *QueueHandler) Leave(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.queue.Leave(e.Request.Context(), eventID, e.Auth.Id); err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"message": "Left the queue"})
}

// Info is the public (unauthenticated) snapshot of one event's queue.
func (h *QueueHandler) Info(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	info, err := h.queue.EventInfo(e.Request.Context(), eventID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, info)
}
