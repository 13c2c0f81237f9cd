package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

// CreateRequest handles POST /users/{userId}/requests?eventId=
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	eventID, err := parseID(r.URL.Query().Get("eventId"), "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.admission.CreateRequest(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.NewRequestView(*req))
}

// ListUserRequests handles GET /users/{userId}/requests
func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	requests, err := h.admission.ListUserRequests(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewRequestViews(requests))
}

// CancelRequest handles PATCH /users/{userId}/requests/{requestId}/cancel
// A second cancel deletes the request and answers with status DELETED.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	requestID, err := pathID(r, "requestId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.admission.CancelRequest(r.Context(), userID, requestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewRequestView(*req))
}

// ListEventRequests handles GET /users/{userId}/events/{eventId}/requests
func (h *Handler) ListEventRequests(w http.ResponseWriter, r *http.Request) {
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

	requests, err := h.admission.ListEventRequests(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewRequestViews(requests))
}

// ResolveRequests handles PATCH /users/{userId}/events/{eventId}/requests
func (h *Handler) ResolveRequests(w http.ResponseWriter, r *http.Request) {
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
	var update model.StatusUpdateRequest
	if err := decodeJSON(w, r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.admission.BatchResolve(r.Context(), userID, eventID, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusUpdateResponse{
		ConfirmedRequests: model.NewRequestViews(result.Confirmed),
		RejectedRequests:  model.NewRequestViews(result.Rejected),
	})
}
