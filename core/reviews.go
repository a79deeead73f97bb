package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SubmitReview records the customer's review of a completed request. One
// review per request, enforced by the store's uniqueness constraint; the
// mechanic's average rating is recomputed in the same transaction.
func (s *Service) SubmitReview(ctx context.Context, in CreateReviewInput) (Review, error) {
	if s == nil || s.reviewStore == nil || s.requestStore == nil {
		return Review{}, fmt.Errorf("core: review store is not configured")
	}
	in.ServiceRequestID = strings.TrimSpace(in.ServiceRequestID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.Comment = strings.TrimSpace(in.Comment)

	candidate := Review{
		ServiceRequestID: in.ServiceRequestID,
		ClientID:         in.ClientID,
		Rating:           in.Rating,
		Comment:          in.Comment,
	}
	if err := candidate.Validate(); err != nil {
		return Review{}, s.mapError(err)
	}

	request, err := s.requestStore.Get(ctx, in.ServiceRequestID)
	if err != nil {
		return Review{}, s.mapError(err)
	}
	if request.Status != RequestStatusCompleted {
		return Review{}, s.mapError(fmt.Errorf(
			"%w: reviews open once the request is COMPLETED, request %s is %s",
			ErrInvalidState, request.ID, request.Status,
		))
	}
	if request.ClientID != in.ClientID {
		return Review{}, s.mapError(fmt.Errorf("core: review client does not match request owner"))
	}
	in.MechanicID = request.MechanicID

	review, err := s.reviewStore.Create(ctx, in)
	if err != nil {
		return Review{}, s.mapError(err)
	}

	s.recordActivity(ctx, in.ClientID, "review.create", request.ID, ActivityStatusOK, map[string]any{
		"rating": in.Rating,
	})
	return review, nil
}

// ReviewFor is a read; missing reviews report found false.
func (s *Service) ReviewFor(ctx context.Context, requestID string) (Review, bool, error) {
	if s == nil || s.reviewStore == nil {
		return Review{}, false, fmt.Errorf("core: review store is not configured")
	}
	review, err := s.reviewStore.GetByRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Review{}, false, nil
		}
		return Review{}, false, s.mapError(err)
	}
	return review, true, nil
}
