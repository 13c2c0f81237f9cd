// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/service"
)

// Handler holds all HTTP handlers for the event admission API.
type Handler struct {
	events    *service.EventService
	admission *service.AdmissionService
	ratings   *service.RatingService
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Handler.
func New(events *service.EventService, admission *service.AdmissionService, ratings *service.RatingService, logger *slog.Logger) *Handler {
	return &Handler{
		events:    events,
		admission: admission,
		ratings:   ratings,
		logger:    service.ResolveLogger(logger),
		now:       time.Now,
	}
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(RequestID)               // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(AccessLog(h.logger))     // structured access log
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/users/{userId}", func(r chi.Router) {
		r.Post("/events", h.CreateEvent)
		r.Get("/events", h.ListUserEvents)
		r.Get("/events/{eventId}", h.GetUserEvent)
		r.Patch("/events/{eventId}", h.AuthorUpdateEvent)
		r.Get("/events/{eventId}/requests", h.ListEventRequests)
		r.Patch("/events/{eventId}/requests", h.ResolveRequests)

		r.Post("/requests", h.CreateRequest)
		r.Get("/requests", h.ListUserRequests)
		r.Patch("/requests/{requestId}/cancel", h.CancelRequest)

		r.Post("/expectations/{eventId}", h.AddExpectation)
		r.Post("/satisfactions/{eventId}", h.AddSatisfaction)
	})

	r.Patch("/admin/events/{eventId}", h.AdminUpdateEvent)
	r.Get("/events/{eventId}", h.GetPublishedEvent)

	r.Get("/ratings/events/{eventId}", h.GetEventRating)
	r.Get("/ratings/top", h.TopRatings)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, apperr.NotFound("ROUTE_NOT_FOUND", "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the standard error envelope. Errors that are not
// domain errors are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := model.ErrorResponse{Timestamp: model.FormatDateTime(h.now())}
	status := http.StatusInternalServerError
	if e, ok := apperr.As(err); ok {
		status = statusFor(e.Kind)
		resp.Reason = string(e.Code)
		resp.Message = e.Message
	} else {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
		resp.Reason = "INTERNAL_ERROR"
		resp.Message = "internal server error"
	}
	resp.Status = strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation(apperr.CodeInvalidRequestBody, "invalid request body: %v", err).Wrap(err)
	}
	return nil
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(apperr.CodeInvalidIdentifier, "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name), name)
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(apperr.CodeInvalidPage, "%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
