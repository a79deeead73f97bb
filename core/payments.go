package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrHoldAlreadySettled is returned by gateway adapters when a capture or
// refund targets a hold the gateway already settled. The choreography treats
// it as success, which makes both calls safe to repeat.
var ErrHoldAlreadySettled = errors.New("core: payment hold already settled")

// authorizeHold reserves funds for an ACCEPTED request and promotes it to
// PAYMENT_AUTHORIZED with the hold reference stamped onto the row.
func (s *Service) authorizeHold(ctx context.Context, request ServiceRequest) (ServiceRequest, error) {
	if request.TotalAmount <= 0 {
		return ServiceRequest{}, fmt.Errorf("%w: request %s has no amount to authorize", ErrPaymentGateway, request.ID)
	}
	currency := request.Currency
	if strings.TrimSpace(currency) == "" {
		currency = s.config.Currency
	}

	holdID, err := s.paymentGateway.Authorize(ctx, request.TotalAmount, currency)
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("%w: authorize for request %s: %v", ErrPaymentGateway, request.ID, err)
	}

	s.recordPaymentEvent(ctx, PaymentEvent{
		ServiceRequestID: request.ID,
		Kind:             PaymentEventAuthorized,
		GatewayRef:       holdID,
		Amount:           request.TotalAmount,
		Currency:         currency,
	})

	updated, err := s.requestStore.ApplyTransition(ctx, TransitionUpdate{
		RequestID:     request.ID,
		From:          RequestStatusAccepted,
		To:            RequestStatusPaymentAuthorized,
		PaymentHoldID: holdID,
	})
	if err != nil {
		return ServiceRequest{}, err
	}

	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventPaymentHeld,
		ServiceRequestID: updated.ID,
		MechanicID:       updated.MechanicID,
		ClientID:         updated.ClientID,
		Payload: map[string]any{
			"hold_id": holdID,
			"amount":  updated.TotalAmount,
		},
	})
	return updated, nil
}

// captureHold converts the hold into a payment at COMPLETED. A gateway
// report of "already captured" counts as success; the core never captures
// before COMPLETED and never re-authorizes.
func (s *Service) captureHold(ctx context.Context, request ServiceRequest) (ServiceRequest, error) {
	paymentID, err := s.paymentGateway.Capture(ctx, request.PaymentHoldID)
	if err != nil && !errors.Is(err, ErrHoldAlreadySettled) {
		return ServiceRequest{}, fmt.Errorf("%w: capture for request %s: %v", ErrPaymentGateway, request.ID, err)
	}
	if paymentID == "" {
		paymentID = request.PaymentHoldID
	}

	s.recordPaymentEvent(ctx, PaymentEvent{
		ServiceRequestID: request.ID,
		Kind:             PaymentEventCaptured,
		GatewayRef:       paymentID,
		Amount:           request.TotalAmount,
		Currency:         request.Currency,
	})

	updated, err := s.requestStore.ApplyTransition(ctx, TransitionUpdate{
		RequestID: request.ID,
		From:      request.Status,
		To:        request.Status,
		PaymentID: paymentID,
	})
	if err != nil {
		return ServiceRequest{}, err
	}

	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventPaymentCaptured,
		ServiceRequestID: updated.ID,
		MechanicID:       updated.MechanicID,
		ClientID:         updated.ClientID,
		Payload: map[string]any{
			"payment_id": paymentID,
			"amount":     updated.TotalAmount,
		},
	})
	return updated, nil
}

// refundHold voids the hold on cancellation; "already refunded" is success.
func (s *Service) refundHold(ctx context.Context, request ServiceRequest) error {
	refundID, err := s.paymentGateway.Refund(ctx, request.PaymentHoldID)
	if err != nil && !errors.Is(err, ErrHoldAlreadySettled) {
		return fmt.Errorf("%w: refund for request %s: %v", ErrPaymentGateway, request.ID, err)
	}
	if refundID == "" {
		refundID = request.PaymentHoldID
	}
	s.recordPaymentEvent(ctx, PaymentEvent{
		ServiceRequestID: request.ID,
		Kind:             PaymentEventRefunded,
		GatewayRef:       refundID,
		Amount:           request.TotalAmount,
		Currency:         request.Currency,
	})
	return nil
}

// AuthorizationConfirmation is the gateway's asynchronous confirmation of a
// hold, delivered via webhook.
type AuthorizationConfirmation struct {
	HoldID           string
	ServiceRequestID string
	Metadata         map[string]any
}

// ConfirmAuthorization consumes the gateway webhook idempotently. Replays
// are absorbed by the payment ledger; if the request is still ACCEPTED with
// a matching hold pending, it is promoted to PAYMENT_AUTHORIZED.
func (s *Service) ConfirmAuthorization(ctx context.Context, in AuthorizationConfirmation) error {
	if s == nil || s.requestStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	in.HoldID = strings.TrimSpace(in.HoldID)
	in.ServiceRequestID = strings.TrimSpace(in.ServiceRequestID)
	if in.HoldID == "" || in.ServiceRequestID == "" {
		return s.mapError(fmt.Errorf("core: hold id and service request id are required"))
	}

	if s.paymentEventStore != nil {
		_, created, err := s.paymentEventStore.Record(ctx, PaymentEvent{
			ServiceRequestID: in.ServiceRequestID,
			Kind:             PaymentEventAuthorizeConfirmed,
			GatewayRef:       in.HoldID,
			Metadata:         in.Metadata,
			CreatedAt:        s.now(),
		})
		if err != nil {
			return s.mapError(err)
		}
		if !created {
			// Replay; already consumed.
			return nil
		}
	}

	request, err := s.requestStore.Get(ctx, in.ServiceRequestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Request cancelled before the confirmation arrived.
			return nil
		}
		return s.mapError(err)
	}
	if request.Status != RequestStatusAccepted {
		return nil
	}

	if _, err := s.requestStore.ApplyTransition(ctx, TransitionUpdate{
		RequestID:     request.ID,
		From:          RequestStatusAccepted,
		To:            RequestStatusPaymentAuthorized,
		PaymentHoldID: in.HoldID,
	}); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Lost the race against the synchronous authorize path.
			return nil
		}
		return s.mapError(err)
	}
	return nil
}

func (s *Service) recordPaymentEvent(ctx context.Context, event PaymentEvent) {
	if s.paymentEventStore == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if _, _, err := s.paymentEventStore.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record payment event",
			"request_id", event.ServiceRequestID,
			"kind", string(event.Kind),
			"error", err,
		)
	}
}
