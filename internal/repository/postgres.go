package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const eventColumns = `id, annotation, description, title, category_id, initiator_id,
	lat, lon, event_date, created_on, published_on, paid, participant_limit,
	request_moderation, state, confirmed_requests, views`

const requestColumns = `id, event_id, requester_id, status, created`

// PostgresStore is the pgx-backed Store. It uses pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx runs fn inside a READ COMMITTED transaction. Serialisation per event
// comes from the row lock taken by LockEvent, not from the isolation level.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (t *pgTx) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := t.tx.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (t *pgTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	ok, err := t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return ok, nil
}

func (t *pgTx) CategoryExists(ctx context.Context, categoryID int64) (bool, error) {
	ok, err := t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, categoryID)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return ok, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e     model.Event
		state string
	)
	err := row.Scan(
		&e.ID, &e.Annotation, &e.Description, &e.Title, &e.CategoryID, &e.InitiatorID,
		&e.Location.Lat, &e.Location.Lon, &e.EventDate, &e.CreatedOn, &e.PublishedOn,
		&e.Paid, &e.ParticipantLimit, &e.RequestModeration, &state, &e.ConfirmedRequests, &e.Views,
	)
	if err != nil {
		return nil, err
	}
	e.State = model.EventState(state)
	e.EventDate = e.EventDate.UTC()
	e.CreatedOn = e.CreatedOn.UTC()
	if e.PublishedOn != nil {
		published := e.PublishedOn.UTC()
		e.PublishedOn = &published
	}
	return &e, nil
}

func (t *pgTx) CreateEvent(ctx context.Context, e *model.Event) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO events (annotation, description, title, category_id, initiator_id,
			lat, lon, event_date, created_on, published_on, paid, participant_limit,
			request_moderation, state, confirmed_requests, views)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		e.Annotation, e.Description, e.Title, e.CategoryID, e.InitiatorID,
		e.Location.Lat, e.Location.Lon, e.EventDate, e.CreatedOn, e.PublishedOn, e.Paid, e.ParticipantLimit,
		e.RequestModeration, string(e.State), e.ConfirmedRequests, e.Views,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (t *pgTx) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// LockEvent acquires an exclusive row-level lock on the event.
//
// Two transactions that both read confirmed_requests before either writes
// would both see a free slot and overbook the event. SELECT … FOR UPDATE
// blocks any other FOR UPDATE on the same row until this transaction commits
// or rolls back, so the check-then-write sequences on one event run one at a
// time while different events proceed concurrently.
func (t *pgTx) LockEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, nil
}

func (t *pgTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET annotation = $2, description = $3, title = $4, category_id = $5,
			lat = $6, lon = $7, event_date = $8, published_on = $9, paid = $10,
			participant_limit = $11, request_moderation = $12, state = $13, confirmed_requests = $14
		 WHERE id = $1`,
		e.ID, e.Annotation, e.Description, e.Title, e.CategoryID,
		e.Location.Lat, e.Location.Lon, e.EventDate, e.PublishedOn, e.Paid,
		e.ParticipantLimit, e.RequestModeration, string(e.State), e.ConfirmedRequests,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListEventsByInitiator(ctx context.Context, initiatorID int64, offset, limit int) ([]model.Event, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE initiator_id = $1
		 ORDER BY id ASC
		 OFFSET $2 LIMIT $3`,
		initiatorID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (t *pgTx) IncrementViews(ctx context.Context, eventID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE events SET views = views + 1 WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetConfirmedRequests(ctx context.Context, eventID int64, confirmed int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events SET confirmed_requests = $2 WHERE id = $1`,
		eventID, confirmed,
	)
	if err != nil {
		return fmt.Errorf("store confirmed_requests: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Participation requests ───────────────────────────────────────────────────

func scanRequest(row scanner) (*model.ParticipationRequest, error) {
	var (
		r      model.ParticipationRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.RequesterID, &status, &r.Created); err != nil {
		return nil, err
	}
	r.Status = model.RequestStatus(status)
	r.Created = r.Created.UTC()
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]model.ParticipationRequest, error) {
	defer rows.Close()

	var requests []model.ParticipationRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (t *pgTx) CreateRequest(ctx context.Context, r *model.ParticipationRequest) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO participation_requests (event_id, requester_id, status, created)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		r.EventID, r.RequesterID, string(r.Status), r.Created,
	).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (t *pgTx) GetRequestByRequester(ctx context.Context, requestID, requesterID int64) (*model.ParticipationRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE id = $1 AND requester_id = $2`,
		requestID, requesterID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (t *pgTx) ListRequestsByIDs(ctx context.Context, eventID int64, requestIDs []int64) ([]model.ParticipationRequest, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE event_id = $1 AND id = ANY($2)
		 ORDER BY requester_id ASC
		 FOR UPDATE`,
		eventID, requestIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests by ids: %w", err)
	}
	return collectRequests(rows)
}

func (t *pgTx) ListRequestsByEvent(ctx context.Context, eventID int64) ([]model.ParticipationRequest, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE event_id = $1
		 ORDER BY requester_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event requests: %w", err)
	}
	return collectRequests(rows)
}

func (t *pgTx) ListRequestsByRequester(ctx context.Context, requesterID int64) ([]model.ParticipationRequest, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+requestColumns+` FROM participation_requests
		 WHERE requester_id = $1
		 ORDER BY id ASC`,
		requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user requests: %w", err)
	}
	return collectRequests(rows)
}

func (t *pgTx) UpdateRequestStatus(ctx context.Context, requestID int64, status model.RequestStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE participation_requests SET status = $2 WHERE id = $1`,
		requestID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteRequest(ctx context.Context, requestID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM participation_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CountRequests(ctx context.Context, eventID int64, status model.RequestStatus) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM participation_requests WHERE event_id = $1 AND status = $2`,
		eventID, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

func (t *pgTx) HasRequest(ctx context.Context, eventID, requesterID int64, status model.RequestStatus) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM participation_requests
			WHERE event_id = $1 AND requester_id = $2 AND status = $3
		)`,
		eventID, requesterID, string(status),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check request: %w", err)
	}
	return ok, nil
}

// ─── Ratings ──────────────────────────────────────────────────────────────────

func (t *pgTx) CreateStats(ctx context.Context, eventID int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO event_stats (event_id, expectation_rate, satisfaction_sum, satisfaction_votes)
		 VALUES ($1, 0, 0, 0)`,
		eventID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert event stats: %w", err)
	}
	return nil
}

func (t *pgTx) GetStats(ctx context.Context, eventID int64) (*model.EventStats, error) {
	s := model.EventStats{EventID: eventID}
	err := t.tx.QueryRow(ctx,
		`SELECT expectation_rate, satisfaction_sum, satisfaction_votes
		 FROM event_stats WHERE event_id = $1`,
		eventID,
	).Scan(&s.ExpectationRate, &s.SummarySatisfactionRate, &s.SatisfactionVotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event stats: %w", err)
	}
	return &s, nil
}

func (t *pgTx) CreateExpectationVote(ctx context.Context, v model.ExpectationVote) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO expectation_votes (event_id, user_id, created) VALUES ($1, $2, $3)`,
		v.EventID, v.UserID, v.Created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert expectation vote: %w", err)
	}
	return nil
}

func (t *pgTx) CreateSatisfactionVote(ctx context.Context, v model.SatisfactionVote) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO satisfaction_votes (event_id, user_id, rating, created) VALUES ($1, $2, $3, $4)`,
		v.EventID, v.UserID, v.Rating, v.Created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert satisfaction vote: %w", err)
	}
	return nil
}

func (t *pgTx) AddExpectation(ctx context.Context, eventID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE event_stats SET expectation_rate = expectation_rate + 1 WHERE event_id = $1`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("increment expectation_rate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) AddSatisfaction(ctx context.Context, eventID int64, rating int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE event_stats
		 SET satisfaction_sum = satisfaction_sum + $2, satisfaction_votes = satisfaction_votes + 1
		 WHERE event_id = $1`,
		eventID, rating,
	)
	if err != nil {
		return fmt.Errorf("add satisfaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) TopRatedEvents(ctx context.Context, from time.Time, limit int) ([]model.RatedEvent, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT e.id, e.annotation, e.description, e.title, e.category_id, e.initiator_id,
			e.lat, e.lon, e.event_date, e.created_on, e.published_on, e.paid, e.participant_limit,
			e.request_moderation, e.state, e.confirmed_requests, e.views,
			s.expectation_rate, s.satisfaction_sum, s.satisfaction_votes
		 FROM event_stats s
		 JOIN events e ON e.id = s.event_id
		 WHERE e.state = $1 AND e.event_date >= $2
		 ORDER BY s.expectation_rate DESC, e.id ASC
		 LIMIT $3`,
		string(model.EventPublished), from, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top rated events: %w", err)
	}
	defer rows.Close()

	var rated []model.RatedEvent
	for rows.Next() {
		var (
			r     model.RatedEvent
			state string
		)
		e := &r.Event
		err := rows.Scan(
			&e.ID, &e.Annotation, &e.Description, &e.Title, &e.CategoryID, &e.InitiatorID,
			&e.Location.Lat, &e.Location.Lon, &e.EventDate, &e.CreatedOn, &e.PublishedOn,
			&e.Paid, &e.ParticipantLimit, &e.RequestModeration, &state, &e.ConfirmedRequests, &e.Views,
			&r.Stats.ExpectationRate, &r.Stats.SummarySatisfactionRate, &r.Stats.SatisfactionVotes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rated event: %w", err)
		}
		e.State = model.EventState(state)
		e.EventDate = e.EventDate.UTC()
		e.CreatedOn = e.CreatedOn.UTC()
		r.Stats.EventID = e.ID
		rated = append(rated, r)
	}
	return rated, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
var _ Tx = (*pgTx)(nil)
