package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// EventService owns the moderation state machine and the event read paths.
type EventService struct {
	base
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(d Deps) *EventService {
	return &EventService{base: newBase(d)}
}

type lengthRule struct {
	field    string
	min, max int
}

var (
	annotationRule  = lengthRule{field: "annotation", min: 20, max: 2000}
	descriptionRule = lengthRule{field: "description", min: 20, max: 7000}
	titleRule       = lengthRule{field: "title", min: 3, max: 120}
)

func (r lengthRule) check(value string) error {
	n := utf8.RuneCountInString(value)
	if strings.TrimSpace(value) == "" || n < r.min || n > r.max {
		return apperr.Validation(apperr.CodeInvalidField,
			"field %s must be between %d and %d characters, got %d", r.field, r.min, r.max, n)
	}
	return nil
}

func checkParticipantLimit(limit *int) error {
	if limit != nil && (*limit < 0 || *limit > math.MaxInt32) {
		return apperr.Validation(apperr.CodeInvalidField,
			"field participantLimit must be between 0 and %d, got %d", math.MaxInt32, *limit)
	}
	return nil
}

func parseEventDate(raw string) (time.Time, error) {
	t, err := model.ParseDateTime(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(apperr.CodeInvalidDateTime,
			"field eventDate must match %q, got %q", model.DateTimeLayout, raw).Wrap(err)
	}
	return t, nil
}

// checkAuthorLeadTime rejects event dates closer than AuthorLeadTime.
func checkAuthorLeadTime(now, eventDate time.Time) error {
	if eventDate.Before(now.Add(AuthorLeadTime)) {
		return apperr.Validation(apperr.CodeLeadTimeNotMet,
			"event date %s must be at least %s after now", model.FormatDateTime(eventDate), AuthorLeadTime)
	}
	return nil
}

func validateNewEvent(req model.NewEventRequest) (time.Time, error) {
	for _, c := range []struct {
		rule  lengthRule
		value string
	}{
		{annotationRule, req.Annotation},
		{descriptionRule, req.Description},
		{titleRule, req.Title},
	} {
		if err := c.rule.check(c.value); err != nil {
			return time.Time{}, err
		}
	}
	if req.Location == nil {
		return time.Time{}, apperr.Validation(apperr.CodeInvalidField, "field location is required")
	}
	if err := checkParticipantLimit(req.ParticipantLimit); err != nil {
		return time.Time{}, err
	}
	return parseEventDate(req.EventDate)
}

// validatePatch checks every present patch field and returns the parsed
// event date when the patch carries one.
func validatePatch(p model.EventPatch) (*time.Time, error) {
	for _, c := range []struct {
		rule  lengthRule
		value *string
	}{
		{annotationRule, p.Annotation},
		{descriptionRule, p.Description},
		{titleRule, p.Title},
	} {
		if c.value == nil {
			continue
		}
		if err := c.rule.check(*c.value); err != nil {
			return nil, err
		}
	}
	if err := checkParticipantLimit(p.ParticipantLimit); err != nil {
		return nil, err
	}
	if p.EventDate == nil {
		return nil, nil
	}
	t, err := parseEventDate(*p.EventDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// applyPatch copies the present patch fields onto e.
func applyPatch(ctx context.Context, tx repository.Tx, e *model.Event, p model.EventPatch, eventDate *time.Time) error {
	if p.Category != nil {
		if err := requireCategory(ctx, tx, *p.Category); err != nil {
			return err
		}
		e.CategoryID = *p.Category
	}
	if p.Annotation != nil {
		e.Annotation = *p.Annotation
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if eventDate != nil {
		e.EventDate = *eventDate
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Paid != nil {
		e.Paid = *p.Paid
	}
	if p.ParticipantLimit != nil {
		e.ParticipantLimit = *p.ParticipantLimit
	}
	if p.RequestModeration != nil {
		e.RequestModeration = *p.RequestModeration
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	return nil
}

func saveEvent(ctx context.Context, tx repository.Tx, e *model.Event) error {
	if err := tx.UpdateEvent(ctx, e); err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	return nil
}

// Create persists a new PENDING event for initiatorID together with its
// zeroed rating aggregate.
func (s *EventService) Create(ctx context.Context, initiatorID int64, req model.NewEventRequest) (_ *model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.Create", userAttr(initiatorID))
	defer func() { s.finish(ctx, span, "create event", err) }()

	eventDate, err := validateNewEvent(req)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := checkAuthorLeadTime(now, eventDate); err != nil {
		return nil, err
	}

	e := &model.Event{
		Annotation:        req.Annotation,
		Description:       req.Description,
		Title:             req.Title,
		CategoryID:        req.Category,
		InitiatorID:       initiatorID,
		Location:          *req.Location,
		EventDate:         eventDate,
		CreatedOn:         now,
		RequestModeration: true,
		State:             model.EventPending,
	}
	if req.Paid != nil {
		e.Paid = *req.Paid
	}
	if req.ParticipantLimit != nil {
		e.ParticipantLimit = *req.ParticipantLimit
	}
	if req.RequestModeration != nil {
		e.RequestModeration = *req.RequestModeration
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		if err := requireCategory(ctx, tx, req.Category); err != nil {
			return err
		}
		if err := tx.CreateEvent(ctx, e); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if err := tx.CreateStats(ctx, e.ID); err != nil {
			return fmt.Errorf("insert event stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "event created", "event_id", e.ID, "user_id", initiatorID, "event_date", model.FormatDateTime(e.EventDate))
	return e, nil
}

// AuthorUpdate applies the initiator's patch and optional state action.
//
// CANCEL_REVIEW moves PENDING to CANCELED and ignores the field patch.
// SEND_TO_REVIEW moves CANCELED back to PENDING and applies the patch.
// A published event cannot be edited by its initiator.
func (s *EventService) AuthorUpdate(ctx context.Context, initiatorID, eventID int64, patch model.EventPatch) (_ *model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.AuthorUpdate", userAttr(initiatorID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "author update", err) }()

	action, ok := model.ParseAuthorAction(patch.StateAction)
	if !ok {
		return nil, apperr.Validation(apperr.CodeInvalidAction, "unknown state action %q", patch.StateAction)
	}
	eventDate, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	var updated *model.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		e, err := lockOwnedEvent(ctx, tx, initiatorID, eventID)
		if err != nil {
			return err
		}
		if e.State == model.EventPublished {
			return apperr.Conflict(apperr.CodeEventPublished, "cannot edit a published event")
		}

		switch action {
		case model.AuthorCancelReview:
			if e.State != model.EventPending {
				return apperr.Conflict(apperr.CodeEventNotPending, "only a pending event can be withdrawn from review, state is %s", e.State)
			}
			e.State = model.EventCanceled
			updated = e
			return saveEvent(ctx, tx, e)
		case model.AuthorSendToReview:
			if e.State != model.EventCanceled {
				return apperr.Conflict(apperr.CodeEventNotCanceled, "only a canceled event can be sent to review, state is %s", e.State)
			}
			e.State = model.EventPending
		}

		if eventDate != nil {
			if err := checkAuthorLeadTime(now, *eventDate); err != nil {
				return err
			}
		}
		if err := applyPatch(ctx, tx, e, patch, eventDate); err != nil {
			return err
		}
		updated = e
		return saveEvent(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "event updated by initiator", "event_id", eventID, "user_id", initiatorID, "action", string(action), "state", string(updated.State))
	return updated, nil
}

// AdminUpdate applies a moderator's patch and optional state action.
//
// PUBLISH_EVENT moves PENDING to PUBLISHED when the event is at least
// AdminLeadTime away. REJECT_EVENT moves PENDING to CANCELED and ignores the
// patch. Without an action the patch is applied in any state.
func (s *EventService) AdminUpdate(ctx context.Context, eventID int64, patch model.EventPatch) (_ *model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.AdminUpdate", eventAttr(eventID))
	defer func() { s.finish(ctx, span, "admin update", err) }()

	action, ok := model.ParseAdminAction(patch.StateAction)
	if !ok {
		return nil, apperr.Validation(apperr.CodeInvalidAction, "unknown state action %q", patch.StateAction)
	}
	eventDate, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	var updated *model.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		e, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		switch action {
		case model.AdminPublishEvent:
			switch e.State {
			case model.EventCanceled:
				return apperr.Conflict(apperr.CodePublishNotRequested, "cannot publish event: the initiator has not requested publication")
			case model.EventPublished:
				return apperr.Conflict(apperr.CodeEventPublished, "cannot publish event: it is already published")
			}
			if e.EventDate.Before(now.Add(AdminLeadTime)) {
				return apperr.Conflict(apperr.CodePublishLeadTimeNotMet,
					"cannot publish event: event date %s is less than %s away", model.FormatDateTime(e.EventDate), AdminLeadTime)
			}
			e.State = model.EventPublished
			published := now
			e.PublishedOn = &published
		case model.AdminRejectEvent:
			if e.State != model.EventPending {
				if e.State == model.EventPublished {
					return apperr.Conflict(apperr.CodeEventPublished, "cannot reject event: it is already published")
				}
				return apperr.Conflict(apperr.CodeEventNotPending, "cannot reject event in state %s", e.State)
			}
			e.State = model.EventCanceled
			updated = e
			return saveEvent(ctx, tx, e)
		}

		if eventDate != nil {
			if err := checkAuthorLeadTime(now, *eventDate); err != nil {
				return err
			}
		}
		if err := applyPatch(ctx, tx, e, patch, eventDate); err != nil {
			return err
		}
		updated = e
		return saveEvent(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "event updated by moderator", "event_id", eventID, "action", string(action), "state", string(updated.State))
	return updated, nil
}

// GetUserEvents lists the events initiated by initiatorID in ascending id
// order, skipping from and returning at most size.
func (s *EventService) GetUserEvents(ctx context.Context, initiatorID int64, from, size int) (_ []model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.GetUserEvents", userAttr(initiatorID))
	defer func() { s.finish(ctx, span, "list user events", err) }()

	if from < 0 || size <= 0 {
		return nil, apperr.Validation(apperr.CodeInvalidPage, "from must be >= 0 and size > 0, got from=%d size=%d", from, size)
	}

	var events []model.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		var err error
		events, err = tx.ListEventsByInitiator(ctx, initiatorID, from, size)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetUserEvent returns one of initiatorID's events.
func (s *EventService) GetUserEvent(ctx context.Context, initiatorID, eventID int64) (_ *model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.GetUserEvent", userAttr(initiatorID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "get user event", err) }()

	var e *model.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		var err error
		e, err = getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.InitiatorID != initiatorID {
			return apperr.NotFound(apperr.CodeEventNotFound, "event with id=%d was not found for user id=%d", eventID, initiatorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetPublishedEvent returns a published event and records the view with the
// statistics service. A first-time view from ip increments the event's views.
// A failing statistics service never fails the read.
func (s *EventService) GetPublishedEvent(ctx context.Context, eventID int64, uri, ip string) (_ *model.Event, err error) {
	ctx, span := s.startSpan(ctx, "EventService.GetPublishedEvent", eventAttr(eventID))
	defer func() { s.finish(ctx, span, "get published event", err) }()

	var e *model.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		e, err = getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.State != model.EventPublished {
			return apperr.NotFound(apperr.CodeEventNotFound, "published event with id=%d was not found", eventID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	firstTime, hitErr := s.hits.Hit(ctx, uri, ip)
	if hitErr != nil {
		s.logger.WarnContext(ctx, "stats hit failed", "event_id", eventID, "uri", uri, "error", hitErr)
		return e, nil
	}
	if !firstTime {
		return e, nil
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.IncrementViews(ctx, eventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return eventNotFound(eventID)
			}
			return fmt.Errorf("increment views: %w", err)
		}
		var err error
		e, err = getEvent(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
