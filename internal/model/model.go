// Package model defines the core domain types for the event admission system.
package model

import (
	"strings"
	"time"
)

// DateTimeLayout is the wire format for every date-time value. Values are
// always rendered in UTC; fractional seconds and zone names are dropped.
const DateTimeLayout = "2006-01-02 15:04:05"

// ParseDateTime parses a DateTimeLayout string as a UTC instant.
func ParseDateTime(s string) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, strings.TrimSpace(s), time.UTC)
}

// FormatDateTime renders t in DateTimeLayout (UTC).
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// EventState is the moderation state of an event.
type EventState string

const (
	EventPending   EventState = "PENDING"
	EventPublished EventState = "PUBLISHED"
	EventCanceled  EventState = "CANCELED"
)

// RequestStatus is the status of a participation request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestConfirmed RequestStatus = "CONFIRMED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCanceled  RequestStatus = "CANCELED"

	// RequestDeleted is never stored. It is reported when a second
	// cancellation removes the request row.
	RequestDeleted RequestStatus = "DELETED"
)

// AuthorAction is a state action an event initiator may attach to an update.
type AuthorAction string

const (
	AuthorNoAction     AuthorAction = ""
	AuthorSendToReview AuthorAction = "SEND_TO_REVIEW"
	AuthorCancelReview AuthorAction = "CANCEL_REVIEW"
)

// ParseAuthorAction maps a raw state action onto the closed author action set.
// An empty string means no action.
func ParseAuthorAction(raw string) (AuthorAction, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return AuthorNoAction, true
	case string(AuthorSendToReview):
		return AuthorSendToReview, true
	case string(AuthorCancelReview):
		return AuthorCancelReview, true
	default:
		return "", false
	}
}

// AdminAction is a state action a moderator may attach to an update.
type AdminAction string

const (
	AdminNoAction     AdminAction = ""
	AdminPublishEvent AdminAction = "PUBLISH_EVENT"
	AdminRejectEvent  AdminAction = "REJECT_EVENT"
)

// ParseAdminAction maps a raw state action onto the closed admin action set.
// An empty string means no action.
func ParseAdminAction(raw string) (AdminAction, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return AdminNoAction, true
	case string(AdminPublishEvent):
		return AdminPublishEvent, true
	case string(AdminRejectEvent):
		return AdminRejectEvent, true
	default:
		return "", false
	}
}

// ParseTargetStatus maps a raw batch-resolve status onto CONFIRMED or REJECTED.
func ParseTargetStatus(raw string) (RequestStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(RequestConfirmed):
		return RequestConfirmed, true
	case string(RequestRejected):
		return RequestRejected, true
	default:
		return "", false
	}
}

// Location is a point on the map where an event takes place.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is an activity with a bounded number of participation slots.
type Event struct {
	ID                int64
	Annotation        string
	Description       string
	Title             string
	CategoryID        int64
	InitiatorID       int64
	Location          Location
	EventDate         time.Time
	CreatedOn         time.Time
	PublishedOn       *time.Time
	Paid              bool
	ParticipantLimit  int
	RequestModeration bool
	State             EventState
	ConfirmedRequests int
	Views             int64
}

// Unlimited reports whether the event accepts any number of participants.
func (e *Event) Unlimited() bool {
	return e.ParticipantLimit == 0
}

// HasFreeSlots reports whether another confirmed participant fits.
func (e *Event) HasFreeSlots() bool {
	return e.Unlimited() || e.ConfirmedRequests < e.ParticipantLimit
}

// ParticipationRequest is a user's registration for an event.
type ParticipationRequest struct {
	ID          int64
	EventID     int64
	RequesterID int64
	Status      RequestStatus
	Created     time.Time
}

// EventStats is the rating aggregate kept alongside each event.
type EventStats struct {
	EventID                 int64
	ExpectationRate         int64
	SummarySatisfactionRate int64
	SatisfactionVotes       int64
}

// AverageSatisfaction returns the mean satisfaction score, or 0 without votes.
func (s EventStats) AverageSatisfaction() float64 {
	if s.SatisfactionVotes == 0 {
		return 0
	}
	return float64(s.SummarySatisfactionRate) / float64(s.SatisfactionVotes)
}

// ExpectationVote marks a user's interest in an upcoming event.
type ExpectationVote struct {
	EventID int64
	UserID  int64
	Created time.Time
}

// SatisfactionVote is a user's 1-10 score for an event they attended.
type SatisfactionVote struct {
	EventID int64
	UserID  int64
	Rating  int
	Created time.Time
}

// RatedEvent pairs an event with its rating aggregate.
type RatedEvent struct {
	Event Event
	Stats EventStats
}

// ─── Inputs ───────────────────────────────────────────────────────────────────

// NewEventRequest is the payload for creating an event.
type NewEventRequest struct {
	Annotation        string    `json:"annotation"`
	Category          int64     `json:"category"`
	Description       string    `json:"description"`
	EventDate         string    `json:"eventDate"`
	Location          *Location `json:"location"`
	Paid              *bool     `json:"paid"`
	ParticipantLimit  *int      `json:"participantLimit"`
	RequestModeration *bool     `json:"requestModeration"`
	Title             string    `json:"title"`
}

// EventPatch is a partial event update. Nil fields are left untouched.
type EventPatch struct {
	Annotation        *string   `json:"annotation"`
	Category          *int64    `json:"category"`
	Description       *string   `json:"description"`
	EventDate         *string   `json:"eventDate"`
	Location          *Location `json:"location"`
	Paid              *bool     `json:"paid"`
	ParticipantLimit  *int      `json:"participantLimit"`
	RequestModeration *bool     `json:"requestModeration"`
	Title             *string   `json:"title"`
	StateAction       string    `json:"stateAction"`
}

// StatusUpdateRequest is the payload for resolving a batch of requests.
type StatusUpdateRequest struct {
	RequestIDs []int64 `json:"requestIds"`
	Status     string  `json:"status"`
}

// StatusUpdateResult lists the requests actually transitioned by a batch call.
type StatusUpdateResult struct {
	Confirmed []ParticipationRequest
	Rejected  []ParticipationRequest
}

// ─── Responses ────────────────────────────────────────────────────────────────

// EventResponse is the full JSON representation of an event.
type EventResponse struct {
	ID                int64    `json:"id"`
	Annotation        string   `json:"annotation"`
	Category          int64    `json:"category"`
	ConfirmedRequests int      `json:"confirmedRequests"`
	CreatedOn         string   `json:"createdOn"`
	Description       string   `json:"description"`
	EventDate         string   `json:"eventDate"`
	Initiator         int64    `json:"initiator"`
	Location          Location `json:"location"`
	Paid              bool     `json:"paid"`
	ParticipantLimit  int      `json:"participantLimit"`
	PublishedOn       *string  `json:"publishedOn"`
	RequestModeration bool     `json:"requestModeration"`
	Title             string   `json:"title"`
	Views             int64    `json:"views"`
	State             string   `json:"state"`
}

// NewEventResponse renders an event for the wire.
func NewEventResponse(e Event) EventResponse {
	resp := EventResponse{
		ID:                e.ID,
		Annotation:        e.Annotation,
		Category:          e.CategoryID,
		ConfirmedRequests: e.ConfirmedRequests,
		CreatedOn:         FormatDateTime(e.CreatedOn),
		Description:       e.Description,
		EventDate:         FormatDateTime(e.EventDate),
		Initiator:         e.InitiatorID,
		Location:          e.Location,
		Paid:              e.Paid,
		ParticipantLimit:  e.ParticipantLimit,
		RequestModeration: e.RequestModeration,
		Title:             e.Title,
		Views:             e.Views,
		State:             string(e.State),
	}
	if e.PublishedOn != nil {
		published := FormatDateTime(*e.PublishedOn)
		resp.PublishedOn = &published
	}
	return resp
}

// RequestView is the JSON representation of a participation request. The
// identifier fields are nil only for the synthetic DELETED view.
type RequestView struct {
	ID        *int64 `json:"id"`
	Event     *int64 `json:"event"`
	Status    string `json:"status"`
	Requester *int64 `json:"requester"`
	Created   string `json:"created"`
}

// NewRequestView renders a request. A DELETED request renders as the
// synthetic view with nil identifiers.
func NewRequestView(r ParticipationRequest) RequestView {
	if r.Status == RequestDeleted {
		return DeletedRequestView(r.Created)
	}
	id, eventID, requesterID := r.ID, r.EventID, r.RequesterID
	return RequestView{
		ID:        &id,
		Event:     &eventID,
		Status:    string(r.Status),
		Requester: &requesterID,
		Created:   FormatDateTime(r.Created),
	}
}

// DeletedRequestView is reported after a cancelled request row is removed.
func DeletedRequestView(now time.Time) RequestView {
	return RequestView{
		Status:  string(RequestDeleted),
		Created: FormatDateTime(now),
	}
}

// NewRequestViews renders a slice of requests, never returning nil.
func NewRequestViews(requests []ParticipationRequest) []RequestView {
	views := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		views = append(views, NewRequestView(r))
	}
	return views
}

// StatusUpdateResponse is the JSON representation of a batch resolution.
type StatusUpdateResponse struct {
	ConfirmedRequests []RequestView `json:"confirmedRequests"`
	RejectedRequests  []RequestView `json:"rejectedRequests"`
}

// EventRating is the per-event rating answer.
type EventRating struct {
	EventID           int64   `json:"eventId"`
	ExpectationRate   int64   `json:"expectationRate"`
	SatisfactionRate  float64 `json:"satisfactionRate"`
	SatisfactionVotes int64   `json:"satisfactionVotes"`
}

// NewEventRating derives the rating answer from an aggregate.
func NewEventRating(s EventStats) EventRating {
	return EventRating{
		EventID:           s.EventID,
		ExpectationRate:   s.ExpectationRate,
		SatisfactionRate:  s.AverageSatisfaction(),
		SatisfactionVotes: s.SatisfactionVotes,
	}
}

// RatedEventResponse is one entry of the top ratings list.
type RatedEventResponse struct {
	EventID          int64   `json:"eventId"`
	Title            string  `json:"eventTitle"`
	Category         int64   `json:"eventCategory"`
	Initiator        int64   `json:"initiator"`
	EventDate        string  `json:"eventDateTime"`
	PublishedOn      *string `json:"eventPublishedOn"`
	Views            int64   `json:"eventViews"`
	ExpectationRate  int64   `json:"expectationRate"`
	SatisfactionRate float64 `json:"satisfactionRate"`
}

// NewRatedEventResponse renders one top ratings entry.
func NewRatedEventResponse(r RatedEvent) RatedEventResponse {
	resp := RatedEventResponse{
		EventID:          r.Event.ID,
		Title:            r.Event.Title,
		Category:         r.Event.CategoryID,
		Initiator:        r.Event.InitiatorID,
		EventDate:        FormatDateTime(r.Event.EventDate),
		Views:            r.Event.Views,
		ExpectationRate:  r.Stats.ExpectationRate,
		SatisfactionRate: r.Stats.AverageSatisfaction(),
	}
	if r.Event.PublishedOn != nil {
		published := FormatDateTime(*r.Event.PublishedOn)
		resp.PublishedOn = &published
	}
	return resp
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
