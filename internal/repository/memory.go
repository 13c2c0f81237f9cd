package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

// MemoryStore is an in-process Store used by tests and STORAGE=memory runs.
//
// Transactions are serialised behind one mutex. Each transaction works on a
// copy of the state that replaces the live state only when fn succeeds, so a
// failed transaction leaves nothing behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type voteKey struct {
	eventID int64
	userID  int64
}

type memState struct {
	nextEventID   int64
	nextRequestID int64

	users      map[int64]struct{}
	categories map[int64]struct{}

	events        map[int64]model.Event
	requests      map[int64]model.ParticipationRequest
	stats         map[int64]model.EventStats
	expectations  map[voteKey]model.ExpectationVote
	satisfactions map[voteKey]model.SatisfactionVote
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:         make(map[int64]struct{}),
		categories:    make(map[int64]struct{}),
		events:        make(map[int64]model.Event),
		requests:      make(map[int64]model.ParticipationRequest),
		stats:         make(map[int64]model.EventStats),
		expectations:  make(map[voteKey]model.ExpectationVote),
		satisfactions: make(map[voteKey]model.SatisfactionVote),
	}}
}

// AddUser registers a user id. Users are managed outside this service.
func (s *MemoryStore) AddUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[userID] = struct{}{}
}

// AddCategory registers a category id. Categories are managed outside this service.
func (s *MemoryStore) AddCategory(categoryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.categories[categoryID] = struct{}{}
}

// InTx runs fn against a staged copy of the state.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&memTx{st: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (st *memState) clone() *memState {
	return &memState{
		nextEventID:   st.nextEventID,
		nextRequestID: st.nextRequestID,
		users:         maps.Clone(st.users),
		categories:    maps.Clone(st.categories),
		events:        maps.Clone(st.events),
		requests:      maps.Clone(st.requests),
		stats:         maps.Clone(st.stats),
		expectations:  maps.Clone(st.expectations),
		satisfactions: maps.Clone(st.satisfactions),
	}
}

type memTx struct {
	st *memState
}

func (t *memTx) UserExists(_ context.Context, userID int64) (bool, error) {
	_, ok := t.st.users[userID]
	return ok, nil
}

func (t *memTx) CategoryExists(_ context.Context, categoryID int64) (bool, error) {
	_, ok := t.st.categories[categoryID]
	return ok, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (t *memTx) CreateEvent(_ context.Context, e *model.Event) error {
	t.st.nextEventID++
	e.ID = t.st.nextEventID
	t.st.events[e.ID] = *e
	return nil
}

func (t *memTx) GetEvent(_ context.Context, eventID int64) (*model.Event, error) {
	e, ok := t.st.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// LockEvent is GetEvent: the whole transaction already holds the store lock.
func (t *memTx) LockEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	return t.GetEvent(ctx, eventID)
}

func (t *memTx) UpdateEvent(_ context.Context, e *model.Event) error {
	current, ok := t.st.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *e
	updated.Views = current.Views
	updated.CreatedOn = current.CreatedOn
	updated.InitiatorID = current.InitiatorID
	t.st.events[e.ID] = updated
	return nil
}

func (t *memTx) ListEventsByInitiator(_ context.Context, initiatorID int64, offset, limit int) ([]model.Event, error) {
	var events []model.Event
	for _, e := range t.st.events {
		if e.InitiatorID == initiatorID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return page(events, offset, limit), nil
}

func (t *memTx) IncrementViews(_ context.Context, eventID int64) error {
	e, ok := t.st.events[eventID]
	if !ok {
		return ErrNotFound
	}
	e.Views++
	t.st.events[eventID] = e
	return nil
}

func (t *memTx) SetConfirmedRequests(_ context.Context, eventID int64, confirmed int) error {
	e, ok := t.st.events[eventID]
	if !ok {
		return ErrNotFound
	}
	e.ConfirmedRequests = confirmed
	t.st.events[eventID] = e
	return nil
}

// ─── Participation requests ───────────────────────────────────────────────────

func (t *memTx) CreateRequest(_ context.Context, r *model.ParticipationRequest) error {
	for _, existing := range t.st.requests {
		if existing.EventID == r.EventID && existing.RequesterID == r.RequesterID {
			return ErrDuplicate
		}
	}
	t.st.nextRequestID++
	r.ID = t.st.nextRequestID
	t.st.requests[r.ID] = *r
	return nil
}

func (t *memTx) GetRequestByRequester(_ context.Context, requestID, requesterID int64) (*model.ParticipationRequest, error) {
	r, ok := t.st.requests[requestID]
	if !ok || r.RequesterID != requesterID {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memTx) ListRequestsByIDs(_ context.Context, eventID int64, requestIDs []int64) ([]model.ParticipationRequest, error) {
	seen := make(map[int64]struct{}, len(requestIDs))
	var requests []model.ParticipationRequest
	for _, id := range requestIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := t.st.requests[id]; ok && r.EventID == eventID {
			requests = append(requests, r)
		}
	}
	sortByRequester(requests)
	return requests, nil
}

func (t *memTx) ListRequestsByEvent(_ context.Context, eventID int64) ([]model.ParticipationRequest, error) {
	var requests []model.ParticipationRequest
	for _, r := range t.st.requests {
		if r.EventID == eventID {
			requests = append(requests, r)
		}
	}
	sortByRequester(requests)
	return requests, nil
}

func (t *memTx) ListRequestsByRequester(_ context.Context, requesterID int64) ([]model.ParticipationRequest, error) {
	var requests []model.ParticipationRequest
	for _, r := range t.st.requests {
		if r.RequesterID == requesterID {
			requests = append(requests, r)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests, nil
}

func (t *memTx) UpdateRequestStatus(_ context.Context, requestID int64, status model.RequestStatus) error {
	r, ok := t.st.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	t.st.requests[requestID] = r
	return nil
}

func (t *memTx) DeleteRequest(_ context.Context, requestID int64) error {
	if _, ok := t.st.requests[requestID]; !ok {
		return ErrNotFound
	}
	delete(t.st.requests, requestID)
	return nil
}

func (t *memTx) CountRequests(_ context.Context, eventID int64, status model.RequestStatus) (int, error) {
	n := 0
	for _, r := range t.st.requests {
		if r.EventID == eventID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (t *memTx) HasRequest(_ context.Context, eventID, requesterID int64, status model.RequestStatus) (bool, error) {
	for _, r := range t.st.requests {
		if r.EventID == eventID && r.RequesterID == requesterID && r.Status == status {
			return true, nil
		}
	}
	return false, nil
}

// ─── Ratings ──────────────────────────────────────────────────────────────────

func (t *memTx) CreateStats(_ context.Context, eventID int64) error {
	if _, ok := t.st.stats[eventID]; ok {
		return ErrDuplicate
	}
	t.st.stats[eventID] = model.EventStats{EventID: eventID}
	return nil
}

func (t *memTx) GetStats(_ context.Context, eventID int64) (*model.EventStats, error) {
	s, ok := t.st.stats[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memTx) CreateExpectationVote(_ context.Context, v model.ExpectationVote) error {
	key := voteKey{eventID: v.EventID, userID: v.UserID}
	if _, ok := t.st.expectations[key]; ok {
		return ErrDuplicate
	}
	t.st.expectations[key] = v
	return nil
}

func (t *memTx) CreateSatisfactionVote(_ context.Context, v model.SatisfactionVote) error {
	key := voteKey{eventID: v.EventID, userID: v.UserID}
	if _, ok := t.st.satisfactions[key]; ok {
		return ErrDuplicate
	}
	t.st.satisfactions[key] = v
	return nil
}

func (t *memTx) AddExpectation(_ context.Context, eventID int64) error {
	s, ok := t.st.stats[eventID]
	if !ok {
		return ErrNotFound
	}
	s.ExpectationRate++
	t.st.stats[eventID] = s
	return nil
}

func (t *memTx) AddSatisfaction(_ context.Context, eventID int64, rating int) error {
	s, ok := t.st.stats[eventID]
	if !ok {
		return ErrNotFound
	}
	s.SummarySatisfactionRate += int64(rating)
	s.SatisfactionVotes++
	t.st.stats[eventID] = s
	return nil
}

func (t *memTx) TopRatedEvents(_ context.Context, from time.Time, limit int) ([]model.RatedEvent, error) {
	var rated []model.RatedEvent
	for id, s := range t.st.stats {
		e, ok := t.st.events[id]
		if !ok || e.State != model.EventPublished || e.EventDate.Before(from) {
			continue
		}
		rated = append(rated, model.RatedEvent{Event: e, Stats: s})
	}
	sort.Slice(rated, func(i, j int) bool {
		if rated[i].Stats.ExpectationRate != rated[j].Stats.ExpectationRate {
			return rated[i].Stats.ExpectationRate > rated[j].Stats.ExpectationRate
		}
		return rated[i].Event.ID < rated[j].Event.ID
	})
	return page(rated, 0, limit), nil
}

func sortByRequester(requests []model.ParticipationRequest) {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].RequesterID != requests[j].RequesterID {
			return requests[i].RequesterID < requests[j].RequesterID
		}
		return requests[i].ID < requests[j].ID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit >= 0 && limit < end-offset {
		end = offset + limit
	}
	return items[offset:end]
}

var _ Store = (*MemoryStore)(nil)
var _ Tx = (*memTx)(nil)
