package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

func TestCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e, err := env.events.Create(ctx, organizer, newEventRequest(testNow.Add(3*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.State != model.EventPending || e.ConfirmedRequests != 0 || e.Views != 0 {
		t.Fatalf("unexpected new event %+v", e)
	}
	if e.Paid || e.ParticipantLimit != 0 || !e.RequestModeration {
		t.Fatalf("expected paid=false limit=0 moderation=true, got %+v", e)
	}
	if !e.CreatedOn.Equal(testNow) || e.PublishedOn != nil {
		t.Fatalf("unexpected timestamps %+v", e)
	}

	_ = env.store.InTx(ctx, func(tx repository.Tx) error {
		st, err := tx.GetStats(ctx, e.ID)
		if err != nil {
			t.Fatalf("expected zeroed stats row, got %v", err)
		}
		if st.ExpectationRate != 0 || st.SummarySatisfactionRate != 0 {
			t.Fatalf("expected zeroed stats, got %+v", st)
		}
		return nil
	})
}

func TestCreateAuthorLeadTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.events.Create(ctx, organizer, newEventRequest(testNow.Add(2*time.Hour))); err != nil {
		t.Fatalf("exactly two hours ahead must be accepted: %v", err)
	}

	_, err := env.events.Create(ctx, organizer, newEventRequest(testNow.Add(2*time.Hour-time.Second)))
	expectKind(t, err, apperr.KindValidation, apperr.CodeLeadTimeNotMet)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	date := testNow.Add(24 * time.Hour)

	tests := []struct {
		name   string
		mutate func(*model.NewEventRequest)
		kind   apperr.Kind
		code   apperr.Code
	}{
		{"short title", func(r *model.NewEventRequest) { r.Title = "ab" }, apperr.KindValidation, apperr.CodeInvalidField},
		{"short annotation", func(r *model.NewEventRequest) { r.Annotation = "too short" }, apperr.KindValidation, apperr.CodeInvalidField},
		{"long description", func(r *model.NewEventRequest) { r.Description = strings.Repeat("x", 7001) }, apperr.KindValidation, apperr.CodeInvalidField},
		{"missing location", func(r *model.NewEventRequest) { r.Location = nil }, apperr.KindValidation, apperr.CodeInvalidField},
		{"negative limit", func(r *model.NewEventRequest) { r.ParticipantLimit = ptr(-1) }, apperr.KindValidation, apperr.CodeInvalidField},
		{"limit beyond int32", func(r *model.NewEventRequest) { r.ParticipantLimit = ptr(math.MaxInt32 + 1) }, apperr.KindValidation, apperr.CodeInvalidField},
		{"bad date", func(r *model.NewEventRequest) { r.EventDate = "2026-10-20T10:00:00" }, apperr.KindValidation, apperr.CodeInvalidDateTime},
		{"unknown category", func(r *model.NewEventRequest) { r.Category = 99 }, apperr.KindNotFound, apperr.CodeCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newEventRequest(date)
			tt.mutate(&req)
			_, err := env.events.Create(ctx, organizer, req)
			expectKind(t, err, tt.kind, tt.code)
		})
	}

	_, err := env.events.Create(ctx, 404, newEventRequest(date))
	expectKind(t, err, apperr.KindNotFound, apperr.CodeUserNotFound)
}

func TestAuthorCancelAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 5, true)

	canceled, err := env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{
		StateAction: "CANCEL_REVIEW",
		Title:       ptr("Ignored title"),
	})
	if err != nil {
		t.Fatalf("cancel review: %v", err)
	}
	if canceled.State != model.EventCanceled || canceled.Title != e.Title {
		t.Fatalf("expected CANCELED with untouched title, got %s %q", canceled.State, canceled.Title)
	}

	_, err = env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{StateAction: "CANCEL_REVIEW"})
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotPending)

	resubmitted, err := env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{
		StateAction: "SEND_TO_REVIEW",
		Title:       ptr("Board games marathon"),
	})
	if err != nil {
		t.Fatalf("send to review: %v", err)
	}
	if resubmitted.State != model.EventPending || resubmitted.Title != "Board games marathon" {
		t.Fatalf("expected PENDING with new title, got %s %q", resubmitted.State, resubmitted.Title)
	}

	_, err = env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{StateAction: "SEND_TO_REVIEW"})
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotCanceled)
}

func TestAuthorUpdatePatchAndRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 5, true)

	updated, err := env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{
		Paid:             ptr(true),
		ParticipantLimit: ptr(10),
		EventDate:        ptr(model.FormatDateTime(testNow.Add(48 * time.Hour))),
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !updated.Paid || updated.ParticipantLimit != 10 || updated.State != model.EventPending {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if !updated.EventDate.Equal(testNow.Add(48 * time.Hour)) {
		t.Fatalf("unexpected event date %v", updated.EventDate)
	}
	if updated.Description != e.Description {
		t.Fatal("absent fields must be left untouched")
	}

	_, err = env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{
		EventDate: ptr(model.FormatDateTime(testNow.Add(time.Hour))),
	})
	expectKind(t, err, apperr.KindValidation, apperr.CodeLeadTimeNotMet)

	_, err = env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	expectKind(t, err, apperr.KindValidation, apperr.CodeInvalidAction)

	_, err = env.events.AuthorUpdate(ctx, 2, e.ID, model.EventPatch{Paid: ptr(false)})
	expectKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)

	_, err = env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{Category: ptr(int64(42))})
	expectKind(t, err, apperr.KindNotFound, apperr.CodeCategoryNotFound)
}

func TestAuthorCannotEditPublishedEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.publishedEvent(t, 5, true)

	for _, action := range []string{"", "CANCEL_REVIEW", "SEND_TO_REVIEW"} {
		_, err := env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{StateAction: action, Paid: ptr(true)})
		expectKind(t, err, apperr.KindConflict, apperr.CodeEventPublished)
	}
	if got := env.event(t, e.ID); got.State != model.EventPublished || got.Paid {
		t.Fatalf("published event must stay untouched, got %+v", got)
	}
}

func TestAdminPublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 5, true)

	published, err := env.events.AdminUpdate(ctx, e.ID, model.EventPatch{
		StateAction: "PUBLISH_EVENT",
		Title:       ptr("Moderated title"),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.State != model.EventPublished || published.PublishedOn == nil || !published.PublishedOn.Equal(testNow) {
		t.Fatalf("expected PUBLISHED at now, got %+v", published)
	}
	if published.Title != "Moderated title" {
		t.Fatalf("expected patch to be applied, got %q", published.Title)
	}

	// Scenario E: publishing twice conflicts.
	_, err = env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventPublished)

	_, err = env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "REJECT_EVENT"})
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventPublished)

	// Post-publication edits without an action stay PUBLISHED.
	edited, err := env.events.AdminUpdate(ctx, e.ID, model.EventPatch{Paid: ptr(true)})
	if err != nil {
		t.Fatalf("edit published: %v", err)
	}
	if edited.State != model.EventPublished || !edited.Paid {
		t.Fatalf("expected published edit, got %+v", edited)
	}
}

func TestAdminPublishCanceledEventConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 5, true)

	if _, err := env.events.AuthorUpdate(ctx, organizer, e.ID, model.EventPatch{StateAction: "CANCEL_REVIEW"}); err != nil {
		t.Fatalf("cancel review: %v", err)
	}
	_, err := env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	expectKind(t, err, apperr.KindConflict, apperr.CodePublishNotRequested)

	_, err = env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "REJECT_EVENT"})
	expectKind(t, err, apperr.KindConflict, apperr.CodeEventNotPending)
}

func TestAdminPublishLeadTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 0, true)

	env.clock.Advance(2*time.Hour + time.Second)
	_, err := env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	expectKind(t, err, apperr.KindConflict, apperr.CodePublishLeadTimeNotMet)
	if got := env.event(t, e.ID); got.State != model.EventPending {
		t.Fatalf("expected PENDING after failed publish, got %s", got.State)
	}

	e2 := env.createEvent(t, 0, true)
	_, err = env.events.AdminUpdate(ctx, e2.ID, model.EventPatch{
		StateAction: "PUBLISH_EVENT",
		EventDate:   ptr(model.FormatDateTime(env.clock.Now().Add(90 * time.Minute))),
	})
	expectKind(t, err, apperr.KindValidation, apperr.CodeLeadTimeNotMet)
}

func TestAdminReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.createEvent(t, 5, true)

	rejected, err := env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "reject_event", Title: ptr("Ignored")})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.State != model.EventCanceled || rejected.Title != e.Title {
		t.Fatalf("expected CANCELED without patch, got %s %q", rejected.State, rejected.Title)
	}

	_, err = env.events.AdminUpdate(ctx, e.ID, model.EventPatch{StateAction: "SEND_TO_REVIEW"})
	expectKind(t, err, apperr.KindValidation, apperr.CodeInvalidAction)

	_, err = env.events.AdminUpdate(ctx, 999, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	expectKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)
}

func TestGetUserEventsPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		ids = append(ids, env.createEvent(t, 0, true).ID)
	}

	page, err := env.events.GetUserEvents(ctx, organizer, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] || page[1].ID != ids[2] {
		t.Fatalf("unexpected page %+v", page)
	}

	page, err = env.events.GetUserEvents(ctx, organizer, 1, math.MaxInt)
	if err != nil {
		t.Fatalf("list with huge size: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] {
		t.Fatalf("expected the last 2 events, got %+v", page)
	}

	_, err = env.events.GetUserEvents(ctx, organizer, 0, 0)
	expectKind(t, err, apperr.KindValidation, apperr.CodeInvalidPage)

	if _, err := env.events.GetUserEvent(ctx, organizer, ids[0]); err != nil {
		t.Fatalf("get own event: %v", err)
	}
	_, err = env.events.GetUserEvent(ctx, 2, ids[0])
	expectKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)
}

func TestGetPublishedEventCountsFirstTimeViews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := env.createEvent(t, 0, true)
	e := env.publishedEvent(t, 0, true)

	_, err := env.events.GetPublishedEvent(ctx, pending.ID, "/events/1", "10.0.0.1")
	expectKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)
	if env.hits.calls != 0 {
		t.Fatal("unpublished event must not be recorded as a hit")
	}

	got, err := env.events.GetPublishedEvent(ctx, e.ID, "/events/2", "10.0.0.1")
	if err != nil {
		t.Fatalf("first view: %v", err)
	}
	if got.Views != 1 {
		t.Fatalf("expected 1 view, got %d", got.Views)
	}

	got, err = env.events.GetPublishedEvent(ctx, e.ID, "/events/2", "10.0.0.1")
	if err != nil {
		t.Fatalf("repeat view: %v", err)
	}
	if got.Views != 1 {
		t.Fatalf("repeat view must not count, got %d", got.Views)
	}

	env.hits.err = errors.New("stats down")
	got, err = env.events.GetPublishedEvent(ctx, e.ID, "/events/2", "10.0.0.2")
	if err != nil {
		t.Fatalf("stats failure must not fail the read: %v", err)
	}
	if got.Views != 1 {
		t.Fatalf("failed hit must not count, got %d", got.Views)
	}
}
