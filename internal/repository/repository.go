// Package repository implements persistence for events, participation
// requests and rating aggregates.
//
// Every read-modify-write sequence on an event runs inside Store.InTx and
// starts with Tx.LockEvent, which gives one writer per event at a time:
// PostgreSQL takes a row lock with SELECT … FOR UPDATE, the in-memory store
// serialises whole transactions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate")

// Store opens transactions.
type Store interface {
	// InTx runs fn in a single transaction. A non-nil error from fn rolls
	// back everything fn wrote and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CategoryExists(ctx context.Context, categoryID int64) (bool, error)

	// CreateEvent inserts e and sets e.ID.
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, eventID int64) (*model.Event, error)
	// LockEvent reads the event and holds an exclusive lock on it until the
	// transaction ends.
	LockEvent(ctx context.Context, eventID int64) (*model.Event, error)
	// UpdateEvent writes every mutable event field except views.
	UpdateEvent(ctx context.Context, e *model.Event) error
	ListEventsByInitiator(ctx context.Context, initiatorID int64, offset, limit int) ([]model.Event, error)
	IncrementViews(ctx context.Context, eventID int64) error
	SetConfirmedRequests(ctx context.Context, eventID int64, confirmed int) error

	// CreateRequest inserts r and sets r.ID. A second request for the same
	// (event, requester) pair fails with ErrDuplicate.
	CreateRequest(ctx context.Context, r *model.ParticipationRequest) error
	GetRequestByRequester(ctx context.Context, requestID, requesterID int64) (*model.ParticipationRequest, error)
	// ListRequestsByIDs returns the requests among requestIDs that belong to
	// eventID, ordered by requester id.
	ListRequestsByIDs(ctx context.Context, eventID int64, requestIDs []int64) ([]model.ParticipationRequest, error)
	// ListRequestsByEvent returns an event's requests ordered by requester id.
	ListRequestsByEvent(ctx context.Context, eventID int64) ([]model.ParticipationRequest, error)
	// ListRequestsByRequester returns a user's requests ordered by id.
	ListRequestsByRequester(ctx context.Context, requesterID int64) ([]model.ParticipationRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID int64, status model.RequestStatus) error
	DeleteRequest(ctx context.Context, requestID int64) error
	CountRequests(ctx context.Context, eventID int64, status model.RequestStatus) (int, error)
	HasRequest(ctx context.Context, eventID, requesterID int64, status model.RequestStatus) (bool, error)

	CreateStats(ctx context.Context, eventID int64) error
	GetStats(ctx context.Context, eventID int64) (*model.EventStats, error)
	// CreateExpectationVote fails with ErrDuplicate on a second vote.
	CreateExpectationVote(ctx context.Context, v model.ExpectationVote) error
	// CreateSatisfactionVote fails with ErrDuplicate on a second vote.
	CreateSatisfactionVote(ctx context.Context, v model.SatisfactionVote) error
	AddExpectation(ctx context.Context, eventID int64) error
	AddSatisfaction(ctx context.Context, eventID int64, rating int) error
	// TopRatedEvents returns up to limit published events dated at or after
	// from, by expectation rate descending.
	TopRatedEvents(ctx context.Context, from time.Time, limit int) ([]model.RatedEvent, error)
}
