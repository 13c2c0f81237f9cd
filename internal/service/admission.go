package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-admission/internal/apperr"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// AdmissionService decides the status of participation requests and keeps
// every event's confirmed-request count inside its participant limit.
type AdmissionService struct {
	base
}

// NewAdmissionService constructs an AdmissionService with its dependencies.
func NewAdmissionService(d Deps) *AdmissionService {
	return &AdmissionService{base: newBase(d)}
}

// initialStatus decides the status of a new request for e.
func initialStatus(e *model.Event) (model.RequestStatus, error) {
	if e.RequestModeration {
		if e.Unlimited() {
			return model.RequestConfirmed, nil
		}
		return model.RequestPending, nil
	}
	if e.HasFreeSlots() {
		return model.RequestConfirmed, nil
	}
	return "", apperr.Conflict(apperr.CodeNoFreeSlots, "event with id=%d has no free slots", e.ID)
}

// CreateRequest registers userID for a published event.
func (s *AdmissionService) CreateRequest(ctx context.Context, userID, eventID int64) (_ *model.ParticipationRequest, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.CreateRequest", userAttr(userID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "create request", err) }()

	now := s.clock()
	var req *model.ParticipationRequest
	var confirmed int
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		e, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.InitiatorID == userID {
			return apperr.Conflict(apperr.CodeOwnEvent, "the initiator cannot request participation in their own event")
		}
		if e.State != model.EventPublished {
			return apperr.Conflict(apperr.CodeEventNotPublished, "event with id=%d is not published", eventID)
		}
		status, err := initialStatus(e)
		if err != nil {
			return err
		}

		req = &model.ParticipationRequest{
			EventID:     eventID,
			RequesterID: userID,
			Status:      status,
			Created:     now,
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict(apperr.CodeDuplicateRequest,
					"user id=%d already requested participation in event id=%d", userID, eventID).Wrap(err)
			}
			return fmt.Errorf("insert request: %w", err)
		}
		confirmed, err = reconcileConfirmed(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "participation requested",
		"event_id", eventID, "user_id", userID, "request_id", req.ID,
		"status", string(req.Status), "confirmed_requests", confirmed)
	return req, nil
}

// BatchResolve confirms or rejects a set of requests for an event owned by
// initiatorID.
//
// Confirmation walks the PENDING requests in ascending requester order and
// rejects whatever no longer fits the remaining quota. Rejection fails as a
// whole when any listed request is already CONFIRMED. Only requests that
// actually changed status are reported.
func (s *AdmissionService) BatchResolve(ctx context.Context, initiatorID, eventID int64, update model.StatusUpdateRequest) (_ model.StatusUpdateResult, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.BatchResolve", userAttr(initiatorID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "batch resolve", err) }()

	target, ok := model.ParseTargetStatus(update.Status)
	if !ok {
		return model.StatusUpdateResult{}, apperr.Validation(apperr.CodeInvalidStatus,
			"status must be %s or %s, got %q", model.RequestConfirmed, model.RequestRejected, update.Status)
	}

	var result model.StatusUpdateResult
	var confirmed int
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		e, err := lockOwnedEvent(ctx, tx, initiatorID, eventID)
		if err != nil {
			return err
		}

		switch target {
		case model.RequestConfirmed:
			result, err = confirmBatch(ctx, tx, e, update.RequestIDs)
		case model.RequestRejected:
			result, err = rejectBatch(ctx, tx, e, update.RequestIDs)
		}
		if err != nil {
			return err
		}
		confirmed, err = reconcileConfirmed(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return model.StatusUpdateResult{}, err
	}

	s.logger.InfoContext(ctx, "participation requests resolved",
		"event_id", eventID, "user_id", initiatorID, "target", string(target),
		"confirmed", len(result.Confirmed), "rejected", len(result.Rejected),
		"confirmed_requests", confirmed)
	return result, nil
}

func confirmBatch(ctx context.Context, tx repository.Tx, e *model.Event, ids []int64) (model.StatusUpdateResult, error) {
	var result model.StatusUpdateResult
	// Unmoderated unlimited events admit everyone on creation; nothing to do.
	if !e.RequestModeration && e.Unlimited() {
		return result, nil
	}

	quota := e.ParticipantLimit - e.ConfirmedRequests
	if quota <= 0 {
		return result, apperr.Conflict(apperr.CodeNoFreeSlots, "event with id=%d has no free slots", e.ID)
	}

	requests, err := tx.ListRequestsByIDs(ctx, e.ID, ids)
	if err != nil {
		return result, fmt.Errorf("list requests: %w", err)
	}
	for _, r := range requests {
		if r.Status != model.RequestPending {
			continue
		}
		if quota == 0 {
			r.Status = model.RequestRejected
			result.Rejected = append(result.Rejected, r)
		} else {
			r.Status = model.RequestConfirmed
			result.Confirmed = append(result.Confirmed, r)
			quota--
		}
		if err := tx.UpdateRequestStatus(ctx, r.ID, r.Status); err != nil {
			return result, fmt.Errorf("update request %d: %w", r.ID, err)
		}
	}
	return result, nil
}

func rejectBatch(ctx context.Context, tx repository.Tx, e *model.Event, ids []int64) (model.StatusUpdateResult, error) {
	var result model.StatusUpdateResult
	requests, err := tx.ListRequestsByIDs(ctx, e.ID, ids)
	if err != nil {
		return result, fmt.Errorf("list requests: %w", err)
	}
	for _, r := range requests {
		if r.Status == model.RequestConfirmed {
			return result, apperr.Conflict(apperr.CodeRequestApproved,
				"request id=%d is already approved; resend with a valid set", r.ID)
		}
	}
	for _, r := range requests {
		if r.Status != model.RequestPending {
			continue
		}
		r.Status = model.RequestRejected
		if err := tx.UpdateRequestStatus(ctx, r.ID, r.Status); err != nil {
			return result, fmt.Errorf("update request %d: %w", r.ID, err)
		}
		result.Rejected = append(result.Rejected, r)
	}
	return result, nil
}

// CancelRequest withdraws requesterID's request.
//
// PENDING and CONFIRMED requests become CANCELED, releasing the slot of a
// confirmed one. Cancelling an already CANCELED request deletes it and
// returns a request with status DELETED and zero identifiers. A REJECTED
// request is returned unchanged.
func (s *AdmissionService) CancelRequest(ctx context.Context, requesterID, requestID int64) (_ *model.ParticipationRequest, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.CancelRequest", userAttr(requesterID))
	defer func() { s.finish(ctx, span, "cancel request", err) }()

	now := s.clock()
	var result *model.ParticipationRequest
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, requesterID); err != nil {
			return err
		}
		r, err := getOwnRequest(ctx, tx, requestID, requesterID)
		if err != nil {
			return err
		}
		span.SetAttributes(eventAttr(r.EventID))
		if _, err := lockEvent(ctx, tx, r.EventID); err != nil {
			return err
		}
		// Re-read under the event lock; a batch resolve may have moved it.
		r, err = getOwnRequest(ctx, tx, requestID, requesterID)
		if err != nil {
			return err
		}

		switch r.Status {
		case model.RequestConfirmed, model.RequestPending:
			wasConfirmed := r.Status == model.RequestConfirmed
			r.Status = model.RequestCanceled
			if err := tx.UpdateRequestStatus(ctx, r.ID, r.Status); err != nil {
				return fmt.Errorf("update request %d: %w", r.ID, err)
			}
			if wasConfirmed {
				if _, err := reconcileConfirmed(ctx, tx, r.EventID); err != nil {
					return err
				}
			}
			result = r
		case model.RequestCanceled:
			if err := tx.DeleteRequest(ctx, r.ID); err != nil {
				return fmt.Errorf("delete request %d: %w", r.ID, err)
			}
			result = &model.ParticipationRequest{Status: model.RequestDeleted, Created: now}
		default:
			result = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "participation request cancelled",
		"request_id", requestID, "user_id", requesterID, "status", string(result.Status))
	return result, nil
}

func getOwnRequest(ctx context.Context, tx repository.Tx, requestID, requesterID int64) (*model.ParticipationRequest, error) {
	r, err := tx.GetRequestByRequester(ctx, requestID, requesterID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeRequestNotFound,
			"request with id=%d was not found for user id=%d", requestID, requesterID)
	}
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", requestID, err)
	}
	return r, nil
}

// ListEventRequests returns the requests for an event owned by initiatorID,
// in ascending requester order.
func (s *AdmissionService) ListEventRequests(ctx context.Context, initiatorID, eventID int64) (_ []model.ParticipationRequest, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.ListEventRequests", userAttr(initiatorID), eventAttr(eventID))
	defer func() { s.finish(ctx, span, "list event requests", err) }()

	var requests []model.ParticipationRequest
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, initiatorID); err != nil {
			return err
		}
		e, err := getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if e.InitiatorID != initiatorID {
			return apperr.NotFound(apperr.CodeEventNotFound, "event with id=%d was not found for user id=%d", eventID, initiatorID)
		}
		requests, err = tx.ListRequestsByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list event requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ListUserRequests returns userID's own requests in ascending id order.
func (s *AdmissionService) ListUserRequests(ctx context.Context, userID int64) (_ []model.ParticipationRequest, err error) {
	ctx, span := s.startSpan(ctx, "AdmissionService.ListUserRequests", userAttr(userID))
	defer func() { s.finish(ctx, span, "list user requests", err) }()

	var requests []model.ParticipationRequest
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		requests, err = tx.ListRequestsByRequester(ctx, userID)
		if err != nil {
			return fmt.Errorf("list user requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}
