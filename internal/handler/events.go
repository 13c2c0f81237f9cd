package handler

import (
	"net"
	"net/http"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

func eventResponses(events []model.Event) []model.EventResponse {
	out := make([]model.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, model.NewEventResponse(e))
	}
	return out
}

// CreateEvent handles POST /users/{userId}/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req model.NewEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.events.Create(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.NewEventResponse(*e))
}

// ListUserEvents handles GET /users/{userId}/events?from=&size=
func (h *Handler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	from, err := queryInt(r, "from", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", 10)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.events.GetUserEvents(r.Context(), userID, from, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponses(events))
}

// GetUserEvent handles GET /users/{userId}/events/{eventId}
func (h *Handler) GetUserEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.events.GetUserEvent(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewEventResponse(*e))
}

// AuthorUpdateEvent handles PATCH /users/{userId}/events/{eventId}
func (h *Handler) AuthorUpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.events.AuthorUpdate(r.Context(), userID, eventID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewEventResponse(*e))
}

// AdminUpdateEvent handles PATCH /admin/events/{eventId}
func (h *Handler) AdminUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.events.AdminUpdate(r.Context(), eventID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewEventResponse(*e))
}

// GetPublishedEvent handles GET /events/{eventId}
// Every call is reported to the statistics service as a view.
func (h *Handler) GetPublishedEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.events.GetPublishedEvent(r.Context(), eventID, r.URL.Path, clientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewEventResponse(*e))
}

// clientIP returns the caller address without its port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
