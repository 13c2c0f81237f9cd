package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

const (
	minRating = 1
	maxRating = 10
)

// RatingService records expectation and satisfaction votes and answers
// rating queries.
type RatingService struct {
	base
}

// NewRatingService constructs a RatingService with its dependencies.
func NewRatingService(d Deps) *RatingService {
	return &RatingService{base: newBase(d)}
}

func parseRating(raw string) (int, error) {
	rating, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || rating < minRating || rating > maxRating {
		return 0, apperr.Validation(apperr.CodeInvalidRating,
			"rating must be an integer between %d and %d, got %q", minRating, maxRating, raw)
	}
	return rating, nil
}

// ensureStats returns the event's aggregate, creating a zeroed one if the
// event predates it.
func ensureStats(ctx context.Context, tx repository.Tx, eventID int64) (*model.EventStats, error) {
	st, err := tx.GetStats(ctx, eventID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get event stats: %w", err)
	}
	if err := tx.CreateStats(ctx, eventID); err != nil {
		return nil, fmt.Errorf("insert event stats: %w", err)
	}
	return &model.EventStats{EventID: eventID}, nil
}

func readStats(ctx context.Context, tx repository.Tx, eventID int64) (*model.EventStats, error) {
	st, err := tx.GetStats(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.EventStats{EventID: eventID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event stats: %w", err)
	}
	return st, nil
}

// AddExpectationVote marks userID's interest in an upcoming published event.
// Each user may mark an event once.
func (s *RatingService) AddExpectationVote(ctx context.Context, userID, eventID int64) (_ *model.EventStats, err error) {
	ctx, span := s.startSpan(ctx, "RatingService.AddExpectationVote", userAttr(userID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "add expectation vote", err) }()

	now := s.clock()
	var st *model.EventStats
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		e, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.State != model.EventPublished {
			return apperr.Conflict(apperr.CodeEventNotPublished, "event with id=%d is not published", eventID)
		}
		if !e.EventDate.After(now) {
			return apperr.Conflict(apperr.CodeEventAlreadyStarted, "event with id=%d has already started", eventID)
		}
		if _, err := ensureStats(ctx, tx, eventID); err != nil {
			return err
		}

		vote := model.ExpectationVote{EventID: eventID, UserID: userID, Created: now}
		if err := tx.CreateExpectationVote(ctx, vote); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict(apperr.CodeAlreadyMarked,
					"user id=%d already marked event id=%d", userID, eventID).Wrap(err)
			}
			return fmt.Errorf("insert expectation vote: %w", err)
		}
		if err := tx.AddExpectation(ctx, eventID); err != nil {
			return fmt.Errorf("add expectation: %w", err)
		}
		st, err = readStats(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "expectation vote recorded", "event_id", eventID, "user_id", userID, "expectation_rate", st.ExpectationRate)
	return st, nil
}

// AddSatisfactionVote records userID's 1-10 score for a published event that
// has already started and that userID was confirmed to attend. Each user may
// rate an event once.
func (s *RatingService) AddSatisfactionVote(ctx context.Context, userID, eventID int64, ratingRaw string) (_ *model.EventStats, err error) {
	ctx, span := s.startSpan(ctx, "RatingService.AddSatisfactionVote", userAttr(userID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "add satisfaction vote", err) }()

	rating, err := parseRating(ratingRaw)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var st *model.EventStats
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		e, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.State != model.EventPublished {
			return apperr.Conflict(apperr.CodeEventNotPublished, "event with id=%d is not published", eventID)
		}
		if e.EventDate.After(now) {
			return apperr.Conflict(apperr.CodeEventNotStarted, "event with id=%d has not started yet", eventID)
		}
		attended, err := tx.HasRequest(ctx, eventID, userID, model.RequestConfirmed)
		if err != nil {
			return fmt.Errorf("check participation: %w", err)
		}
		if !attended {
			return apperr.Conflict(apperr.CodeNotParticipant,
				"user id=%d has no confirmed participation in event id=%d", userID, eventID)
		}
		if _, err := ensureStats(ctx, tx, eventID); err != nil {
			return err
		}

		vote := model.SatisfactionVote{EventID: eventID, UserID: userID, Rating: rating, Created: now}
		if err := tx.CreateSatisfactionVote(ctx, vote); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict(apperr.CodeAlreadyRated,
					"user id=%d already rated event id=%d", userID, eventID).Wrap(err)
			}
			return fmt.Errorf("insert satisfaction vote: %w", err)
		}
		if err := tx.AddSatisfaction(ctx, eventID, rating); err != nil {
			return fmt.Errorf("add satisfaction: %w", err)
		}
		st, err = readStats(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "satisfaction vote recorded", "event_id", eventID, "user_id", userID, "rating", rating)
	return st, nil
}

// GetEventRating returns the rating aggregate of a published event.
func (s *RatingService) GetEventRating(ctx context.Context, eventID int64) (_ *model.EventStats, err error) {
	ctx, span := s.startSpan(ctx, "RatingService.GetEventRating", eventAttr(eventID))
	defer func() { s.finish(ctx, span, "get event rating", err) }()

	var st *model.EventStats
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		e, err := getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.State != model.EventPublished {
			return apperr.Conflict(apperr.CodeEventNotPublished, "event with id=%d is not published", eventID)
		}
		st, err = readStats(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// TopRatings returns up to n upcoming published events ordered by
// expectation rate, highest first.
func (s *RatingService) TopRatings(ctx context.Context, n int) (_ []model.RatedEvent, err error) {
	ctx, span := s.startSpan(ctx, "RatingService.TopRatings")
	defer func() { s.finish(ctx, span, "top ratings", err) }()

	if n <= 0 {
		return nil, apperr.Validation(apperr.CodeInvalidPage, "n must be positive, got %d", n)
	}

	now := s.clock()
	var rated []model.RatedEvent
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		rated, err = tx.TopRatedEvents(ctx, now, n)
		if err != nil {
			return fmt.Errorf("top rated events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rated, nil
}
