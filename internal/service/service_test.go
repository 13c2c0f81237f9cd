package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeHits struct {
	mu    sync.Mutex
	seen  map[string]bool
	err   error
	calls int
}

func (h *fakeHits) Hit(_ context.Context, uri, ip string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return false, h.err
	}
	if h.seen == nil {
		h.seen = make(map[string]bool)
	}
	key := uri + "|" + ip
	if h.seen[key] {
		return false, nil
	}
	h.seen[key] = true
	return true, nil
}

type testEnv struct {
	store     *repository.MemoryStore
	clock     *fakeClock
	hits      *fakeHits
	events    *EventService
	admission *AdmissionService
	ratings   *RatingService
}

const (
	organizer  int64 = 1
	categoryID int64 = 1
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	for id := int64(1); id <= 20; id++ {
		store.AddUser(id)
	}
	store.AddCategory(categoryID)

	clock := &fakeClock{t: testNow}
	hits := &fakeHits{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := Deps{Store: store, Logger: logger, Now: clock.Now, Hits: hits}
	return &testEnv{
		store:     store,
		clock:     clock,
		hits:      hits,
		events:    NewEventService(deps),
		admission: NewAdmissionService(deps),
		ratings:   NewRatingService(deps),
	}
}

func ptr[T any](v T) *T { return &v }

func newEventRequest(eventDate time.Time) model.NewEventRequest {
	return model.NewEventRequest{
		Annotation:  "An evening of cooperative board games",
		Category:    categoryID,
		Description: "Bring friends, we provide the games and the snacks.",
		EventDate:   model.FormatDateTime(eventDate),
		Location:    &model.Location{Lat: 55.75, Lon: 37.61},
		Title:       "Board games night",
	}
}

// createEvent creates a PENDING event three hours from now.
func (env *testEnv) createEvent(t *testing.T, limit int, moderated bool) *model.Event {
	t.Helper()
	req := newEventRequest(env.clock.Now().Add(3 * time.Hour))
	req.ParticipantLimit = ptr(limit)
	req.RequestModeration = ptr(moderated)
	e, err := env.events.Create(context.Background(), organizer, req)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

// publishedEvent creates and publishes an event.
func (env *testEnv) publishedEvent(t *testing.T, limit int, moderated bool) *model.Event {
	t.Helper()
	e := env.createEvent(t, limit, moderated)
	published, err := env.events.AdminUpdate(context.Background(), e.ID, model.EventPatch{StateAction: "PUBLISH_EVENT"})
	if err != nil {
		t.Fatalf("publish event: %v", err)
	}
	return published
}

func (env *testEnv) event(t *testing.T, eventID int64) model.Event {
	t.Helper()
	var e model.Event
	err := env.store.InTx(context.Background(), func(tx repository.Tx) error {
		got, err := tx.GetEvent(context.Background(), eventID)
		if err != nil {
			return err
		}
		e = *got
		return nil
	})
	if err != nil {
		t.Fatalf("read event %d: %v", eventID, err)
	}
	return e
}

// assertQuota checks that the cached confirmed count matches the request rows
// and stays within the limit.
func (env *testEnv) assertQuota(t *testing.T, eventID int64) {
	t.Helper()
	e := env.event(t, eventID)
	var confirmed int
	_ = env.store.InTx(context.Background(), func(tx repository.Tx) error {
		var err error
		confirmed, err = tx.CountRequests(context.Background(), eventID, model.RequestConfirmed)
		return err
	})
	if e.ConfirmedRequests != confirmed {
		t.Fatalf("expected confirmedRequests %d to match confirmed rows %d", e.ConfirmedRequests, confirmed)
	}
	if e.ParticipantLimit > 0 && e.ConfirmedRequests > e.ParticipantLimit {
		t.Fatalf("confirmedRequests %d exceeds limit %d", e.ConfirmedRequests, e.ParticipantLimit)
	}
}

func expectKind(t *testing.T, err error, kind apperr.Kind, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, code)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %q (%v)", kind, got, err)
	}
	if code != "" && !apperr.Is(err, code) {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestStorageFailureIsNotADomainError(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewEventService(Deps{Store: failingStore{err: boom}, Now: func() time.Time { return testNow }})

	_, err := svc.GetUserEvent(context.Background(), 1, 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if kind := apperr.KindOf(err); kind != "" {
		t.Fatalf("expected internal error, got kind %s", kind)
	}
}

type failingStore struct {
	err error
}

func (s failingStore) InTx(context.Context, func(repository.Tx) error) error {
	return s.err
}
