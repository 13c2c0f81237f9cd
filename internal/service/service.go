// Package service implements the event moderation state machine, the
// participation admission engine and the rating aggregator on top of the
// repository layer.
//
// Every operation that reads and then conditionally writes an event runs in a
// single repository transaction that starts by locking the event row, so two
// callers racing on the same event are serialised.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
	"github.com/Shivanand-hulikatti/event-admission/internal/stats"
)

const (
	// AuthorLeadTime is the minimum distance between now and the event date
	// for the initiator to create or reschedule an event.
	AuthorLeadTime = 2 * time.Hour
	// AdminLeadTime is the minimum distance between now and the event date
	// for a moderator to publish an event.
	AdminLeadTime = 1 * time.Hour
)

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/event-admission/internal/service")

// Deps are the collaborators shared by every service.
type Deps struct {
	Store  repository.Store
	Logger *slog.Logger
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
	// Hits records public event views. Defaults to stats.Disabled.
	Hits stats.Recorder
}

type base struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
	hits   stats.Recorder
}

func newBase(d Deps) base {
	b := base{
		store:  d.Store,
		logger: ResolveLogger(d.Logger),
		now:    d.Now,
		hits:   d.Hits,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.hits == nil {
		b.hits = stats.Disabled{}
	}
	return b
}

// ResolveLogger returns logger, or slog.Default when logger is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// clock returns the current instant in UTC, truncated to whole seconds as the
// wire format carries no fractions.
func (b base) clock() time.Time {
	return b.now().UTC().Truncate(time.Second)
}

func eventAttr(id int64) attribute.KeyValue { return attribute.Int64("event.id", id) }
func userAttr(id int64) attribute.KeyValue  { return attribute.Int64("user.id", id) }

func (b base) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish ends span and reports err. Domain errors are expected outcomes;
// anything else is logged as a failure.
func (b base) finish(ctx context.Context, span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if apperr.KindOf(err) == "" {
		b.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
	}
}

// ─── Transaction helpers ──────────────────────────────────────────────────────

func requireUser(ctx context.Context, tx repository.Tx, userID int64) error {
	ok, err := tx.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user %d: %w", userID, err)
	}
	if !ok {
		return apperr.NotFound(apperr.CodeUserNotFound, "user with id=%d was not found", userID)
	}
	return nil
}

func requireCategory(ctx context.Context, tx repository.Tx, categoryID int64) error {
	ok, err := tx.CategoryExists(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("check category %d: %w", categoryID, err)
	}
	if !ok {
		return apperr.NotFound(apperr.CodeCategoryNotFound, "category with id=%d was not found", categoryID)
	}
	return nil
}

func eventNotFound(eventID int64) error {
	return apperr.NotFound(apperr.CodeEventNotFound, "event with id=%d was not found", eventID)
}

// getEvent reads an event without locking it.
func getEvent(ctx context.Context, tx repository.Tx, eventID int64) (*model.Event, error) {
	e, err := tx.GetEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, eventNotFound(eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	return e, nil
}

// lockEvent reads an event and holds its write lock until the transaction ends.
func lockEvent(ctx context.Context, tx repository.Tx, eventID int64) (*model.Event, error) {
	e, err := tx.LockEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, eventNotFound(eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock event %d: %w", eventID, err)
	}
	return e, nil
}

// lockOwnedEvent locks an event initiated by initiatorID. Someone else's event
// is reported as missing.
func lockOwnedEvent(ctx context.Context, tx repository.Tx, initiatorID, eventID int64) (*model.Event, error) {
	e, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if e.InitiatorID != initiatorID {
		return nil, apperr.NotFound(apperr.CodeEventNotFound, "event with id=%d was not found for user id=%d", eventID, initiatorID)
	}
	return e, nil
}

// reconcileConfirmed recomputes the event's confirmed-request cache from the
// request rows and stores it.
func reconcileConfirmed(ctx context.Context, tx repository.Tx, eventID int64) (int, error) {
	confirmed, err := tx.CountRequests(ctx, eventID, model.RequestConfirmed)
	if err != nil {
		return 0, fmt.Errorf("count confirmed requests: %w", err)
	}
	if err := tx.SetConfirmedRequests(ctx, eventID, confirmed); err != nil {
		return 0, fmt.Errorf("store confirmed requests: %w", err)
	}
	return confirmed, nil
}
