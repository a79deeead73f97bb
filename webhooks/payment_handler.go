package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// ConfirmationService is the slice of the dispatch core the payment intake
// needs; *core.Service satisfies it.
type ConfirmationService interface {
	ConfirmAuthorization(ctx context.Context, in core.AuthorizationConfirmation) error
}

type authorizationPayload struct {
	EventType        string         `json:"event_type"`
	ServiceRequestID string         `json:"service_request_id"`
	HoldID           string         `json:"hold_id"`
	Metadata         map[string]any `json:"metadata"`
}

// PaymentAuthorizationHandler translates gateway authorization callbacks into
// ConfirmAuthorization calls. Unknown event types are accepted and dropped so
// the gateway does not retry them forever.
type PaymentAuthorizationHandler struct {
	service ConfirmationService
}

func NewPaymentAuthorizationHandler(service ConfirmationService) *PaymentAuthorizationHandler {
	return &PaymentAuthorizationHandler{service: service}
}

func (h *PaymentAuthorizationHandler) Handle(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if h == nil || h.service == nil {
		return InboundResult{}, fmt.Errorf("webhooks: confirmation service is required")
	}

	var payload authorizationPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
		}, fmt.Errorf("webhooks: decode authorization payload: %w", err)
	}

	eventType := strings.TrimSpace(strings.ToLower(payload.EventType))
	if eventType != "" && eventType != "payment.authorized" {
		return InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"event_type": eventType,
				"ignored":    true,
			},
		}, nil
	}

	err := h.service.ConfirmAuthorization(ctx, core.AuthorizationConfirmation{
		ServiceRequestID: strings.TrimSpace(payload.ServiceRequestID),
		HoldID:           strings.TrimSpace(payload.HoldID),
		Metadata:         payload.Metadata,
	})
	if err != nil {
		return InboundResult{
			Accepted:   false,
			StatusCode: http.StatusInternalServerError,
		}, err
	}

	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"service_request_id": strings.TrimSpace(payload.ServiceRequestID),
		},
	}, nil
}

var _ Handler = (*PaymentAuthorizationHandler)(nil)
