package core

import (
	"context"
	"fmt"
	"strings"
)

// Transition drives the request along one forward edge of the lifecycle
// table. The store applies the move as a compare-and-swap on the loaded
// status, so two racing callers serialize there: the loser observes
// ErrInvalidTransition and must re-fetch.
//
// Side effects are bound to the edge being entered:
//   - IN_PROGRESS: a fresh arrival code is generated and startTime recorded.
//   - IN_COMPLETION: a fresh completion code is generated.
//   - COMPLETED: completionTime recorded, the hold captured, the winning
//     offer retired, and the mechanic released.
func (s *Service) Transition(ctx context.Context, requestID string, target RequestStatus) (ServiceRequest, error) {
	if s == nil || s.requestStore == nil {
		return ServiceRequest{}, fmt.Errorf("core: service is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ServiceRequest{}, s.mapError(fmt.Errorf("core: request id is required"))
	}
	if !target.IsKnown() {
		return ServiceRequest{}, s.mapError(fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, target))
	}

	request, err := s.requestStore.Get(ctx, requestID)
	if err != nil {
		return ServiceRequest{}, s.mapError(err)
	}
	if !requestTransitionAllowed(request.Status, target) {
		s.count(ctx, metricTransitionRejected, map[string]string{
			"from": string(request.Status),
			"to":   string(target),
		})
		return ServiceRequest{}, s.mapError(fmt.Errorf(
			"%w: %s -> %s", ErrInvalidTransition, request.Status, target,
		))
	}

	update := TransitionUpdate{
		RequestID: requestID,
		From:      request.Status,
		To:        target,
	}
	now := s.now()

	switch target {
	case RequestStatusInProgress:
		code, codeErr := s.codeIssuer.Generate()
		if codeErr != nil {
			return ServiceRequest{}, s.mapError(codeErr)
		}
		update.ArrivalCode = code
		startTime := now
		update.StartTime = &startTime
	case RequestStatusInCompletion:
		code, codeErr := s.codeIssuer.Generate()
		if codeErr != nil {
			return ServiceRequest{}, s.mapError(codeErr)
		}
		update.CompletionCode = code
	case RequestStatusCompleted:
		completionTime := now
		update.CompletionTime = &completionTime
	}

	updated, err := s.requestStore.ApplyTransition(ctx, update)
	if err != nil {
		return ServiceRequest{}, s.mapError(err)
	}
	s.count(ctx, metricTransitions, map[string]string{
		"from": string(request.Status),
		"to":   string(target),
	})

	if target == RequestStatusCompleted {
		updated = s.settleCompletion(ctx, updated)
	}
	return updated, nil
}

// settleCompletion runs the COMPLETED side effects after the status row has
// landed: capture the hold, retire the winning offer, release the mechanic.
// Capture failure is surfaced through the returned request's payment fields
// staying empty; the transition itself is already durable.
func (s *Service) settleCompletion(ctx context.Context, request ServiceRequest) ServiceRequest {
	now := s.now()

	if strings.TrimSpace(request.PaymentHoldID) != "" && request.PaymentID == "" {
		captured, err := s.captureHold(ctx, request)
		if err != nil {
			s.logger.Error("payment capture failed at completion",
				"request_id", request.ID,
				"hold_id", request.PaymentHoldID,
				"error", err,
			)
		} else {
			request = captured
		}
	}

	s.expireAcceptedOffer(ctx, request.ID, now)
	if strings.TrimSpace(request.MechanicID) != "" {
		s.releaseMechanic(ctx, request.MechanicID)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventServiceCompleted,
		ServiceRequestID: request.ID,
		MechanicID:       request.MechanicID,
		ClientID:         request.ClientID,
		Payload: map[string]any{
			"total_amount": request.TotalAmount,
		},
	})
	s.notify(ctx, request.ClientID, "service_completed", map[string]any{
		"request_id": request.ID,
	})
	s.recordActivity(ctx, request.MechanicID, "request.complete", request.ID, ActivityStatusOK, nil)
	return request
}
