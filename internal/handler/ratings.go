package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

const defaultTopRatings = 10

// AddExpectation handles POST /users/{userId}/expectations/{eventId}
func (h *Handler) AddExpectation(w http.ResponseWriter, r *http.Request) {
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

	st, err := h.ratings.AddExpectationVote(r.Context(), userID, eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.NewEventRating(*st))
}

// AddSatisfaction handles POST /users/{userId}/satisfactions/{eventId}?rating=
func (h *Handler) AddSatisfaction(w http.ResponseWriter, r *http.Request) {
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

	st, err := h.ratings.AddSatisfactionVote(r.Context(), userID, eventID, r.URL.Query().Get("rating"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.NewEventRating(*st))
}

// GetEventRating handles GET /ratings/events/{eventId}
func (h *Handler) GetEventRating(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	st, err := h.ratings.GetEventRating(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewEventRating(*st))
}

// TopRatings handles GET /ratings/top?n=
func (h *Handler) TopRatings(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", defaultTopRatings)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rated, err := h.ratings.TopRatings(r.Context(), n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]model.RatedEventResponse, 0, len(rated))
	for _, re := range rated {
		out = append(out, model.NewRatedEventResponse(re))
	}
	writeJSON(w, http.StatusOK, out)
}
