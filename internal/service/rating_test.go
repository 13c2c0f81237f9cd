package service

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

func TestExpectationVoteOncePerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.publishedEvent(t, 0, true)

	st, err := env.ratings.AddExpectationVote(ctx, 2, e.ID)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if st.ExpectationRate != 1 {
		t.Fatalf("expected rate 1, got %d", st.ExpectationRate)
	}
	if _, err := env.ratings.AddExpectationVote(ctx, 3, e.ID); err != nil {
		t.Fatalf("second user vote: %v", err)
	}

	_, err = env.ratings.AddExpectationVote(ctx, 2, e.ID)
	expectKind(t, err, apperr.KindConflict, apperr.CodeAlreadyMarked)

	rating, err := env.ratings.GetEventRating(ctx, e.ID)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if rating.ExpectationRate != 2 {
		t.Fatalf("duplicate vote must leave aggregate unchanged, got %d", rating.ExpectationRate)
	}
}

func TestExpectationVoteRequiresUpcomingPublishedEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := env.createEvent(t, 0, true)
	e := env.publishedEvent(t, 0, true)

	_, err := env.ratings.AddExpectationVote(ctx, 2, pending.ID)
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotPublished)

	env.clock.Advance(3 * time.Hour)
	_, err = env.ratings.AddExpectationVote(ctx, 2, e.ID)
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventAlreadyStarted)
}

func TestSatisfactionVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.publishedEvent(t, 0, false)

	for _, user := range []int64{2, 3} {
		if _, err := env.admission.CreateRequest(ctx, user, e.ID); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}

	_, err := env.ratings.AddSatisfactionVote(ctx, 2, e.ID, "8")
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotStarted)

	env.clock.Advance(4 * time.Hour)

	for _, raw := range []string{"0", "11", "five", ""} {
		_, err = env.ratings.AddSatisfactionVote(ctx, 2, e.ID, raw)
		expectKind(t, err, apperr.KindValidation, apperr.CodeInvalidRating)
	}

	_, err = env.ratings.AddSatisfactionVote(ctx, 4, e.ID, "8")
	expectKind(t, err, apperr.KindConflict, apperr.CodeNotParticipant)

	if _, err := env.ratings.AddSatisfactionVote(ctx, 2, e.ID, "8"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	st, err := env.ratings.AddSatisfactionVote(ctx, 3, e.ID, " 5 ")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if st.SummarySatisfactionRate != 13 || st.AverageSatisfaction() != 6.5 {
		t.Fatalf("unexpected aggregate %+v", st)
	}

	_, err = env.ratings.AddSatisfactionVote(ctx, 2, e.ID, "1")
	expectKind(t, err, apperr.KindConflict, apperr.CodeAlreadyRated)

	rating, err := env.ratings.GetEventRating(ctx, e.ID)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if got := model.NewEventRating(*rating); got.SatisfactionRate != 6.5 || got.SatisfactionVotes != 2 {
		t.Fatalf("duplicate vote must leave aggregate unchanged, got %+v", got)
	}
}

func TestGetEventRatingRequiresPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 0, true)

	_, err := env.ratings.GetEventRating(ctx, e.ID)
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotPublished)

	_, err = env.ratings.GetEventRating(ctx, 999)
	expectKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)

	published := env.publishedEvent(t, 0, true)
	rating, err := env.ratings.GetEventRating(ctx, published.ID)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if rating.ExpectationRate != 0 || rating.AverageSatisfaction() != 0 {
		t.Fatalf("expected zero rating, got %+v", rating)
	}
}

func TestTopRatings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	low := env.publishedEvent(t, 0, true)
	high := env.publishedEvent(t, 0, true)
	mid := env.publishedEvent(t, 0, true)
	env.createEvent(t, 0, true)

	votes := map[int64]int{low.ID: 1, high.ID: 3, mid.ID: 2}
	for eventID, n := range votes {
		for user := int64(2); user < int64(2+n); user++ {
			if _, err := env.ratings.AddExpectationVote(ctx, user, eventID); err != nil {
				t.Fatalf("vote: %v", err)
			}
		}
	}

	top, err := env.ratings.TopRatings(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].Event.ID != high.ID || top[1].Event.ID != mid.ID {
		t.Fatalf("unexpected top list %+v", top)
	}

	all, err := env.ratings.TopRatings(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected only published events, got %d", len(all))
	}

	env.clock.Advance(4 * time.Hour)
	past, err := env.ratings.TopRatings(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("expected past events to be excluded, got %+v", past)
	}

	_, err = env.ratings.TopRatings(ctx, 0)
	expectKind(t, err, apperr.KindValidation, apperr.CodeInvalidPage)
}
