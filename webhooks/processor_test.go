package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

func TestProcessor_DeliversOnceAndDedupesReplays(t *testing.T) {
	handled := 0
	processor := NewProcessor(nil, NewMemoryDeliveryLedger(), handlerFunc(func(_ context.Context, req InboundRequest) (InboundResult, error) {
		handled++
		return InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}))

	req := InboundRequest{
		GatewayID: "stripe",
		Headers:   map[string]string{"X-Delivery-Id": "evt_1"},
		Body:      []byte(`{}`),
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process first delivery: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %#v", result)
	}
	if handled != 1 {
		t.Fatalf("expected one handler invocation, got %d", handled)
	}

	replay, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process replay: %v", err)
	}
	if handled != 1 {
		t.Fatalf("expected replay short-circuited, handler ran %d times", handled)
	}
	if deduped, _ := replay.Metadata["deduped"].(bool); !deduped {
		t.Fatalf("expected dedupe marker, got %#v", replay.Metadata)
	}
}

func TestProcessor_VerifierRejectionReturnsUnauthorized(t *testing.T) {
	processor := NewProcessor(
		verifierFunc(func(_ context.Context, _ InboundRequest) error {
			return fmt.Errorf("bad signature")
		}),
		NewMemoryDeliveryLedger(),
		handlerFunc(func(_ context.Context, _ InboundRequest) (InboundResult, error) {
			t.Fatalf("handler must not run for rejected deliveries")
			return InboundResult{}, nil
		}),
	)

	result, err := processor.Process(context.Background(), InboundRequest{
		GatewayID: "stripe",
		Headers:   map[string]string{"X-Delivery-Id": "evt_1"},
	})
	if err == nil {
		t.Fatalf("expected verification error")
	}
	if result.Accepted || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestProcessor_HandlerFailureSchedulesRetry(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	attempts := 0
	processor := NewProcessor(nil, ledger, handlerFunc(func(_ context.Context, _ InboundRequest) (InboundResult, error) {
		attempts++
		if attempts == 1 {
			return InboundResult{}, fmt.Errorf("downstream unavailable")
		}
		return InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}))
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Millisecond, Max: time.Millisecond}

	req := InboundRequest{
		GatewayID: "stripe",
		Headers:   map[string]string{"X-Delivery-Id": "evt_1"},
	}

	if _, err := processor.Process(context.Background(), req); err == nil {
		t.Fatalf("expected first delivery to fail")
	}
	record, err := ledger.Get(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatalf("get delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready after failure, got %s", record.Status)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("process retry: %v", err)
	}
	record, err = ledger.Get(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatalf("get delivery record: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed after retry, got %s", record.Status)
	}
	if attempts != 2 {
		t.Fatalf("expected two handler attempts, got %d", attempts)
	}
}

func TestProcessor_ExhaustedAttemptsParkDeliveryDead(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	processor := NewProcessor(nil, ledger, handlerFunc(func(_ context.Context, _ InboundRequest) (InboundResult, error) {
		return InboundResult{}, fmt.Errorf("still broken")
	}))
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Millisecond, Max: time.Millisecond}
	processor.MaxAttempts = 2

	req := InboundRequest{
		GatewayID: "stripe",
		Headers:   map[string]string{"X-Delivery-Id": "evt_1"},
	}

	for i := 0; i < 2; i++ {
		time.Sleep(3 * time.Millisecond)
		if _, err := processor.Process(context.Background(), req); err == nil {
			t.Fatalf("expected handler failure on attempt %d", i+1)
		}
	}

	record, err := ledger.Get(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatalf("get delivery record: %v", err)
	}
	if record.Status != DeliveryStatusDead {
		t.Fatalf("expected dead delivery after max attempts, got %s", record.Status)
	}
}

func TestProcessor_MissingDeliveryIDIsRejected(t *testing.T) {
	processor := NewProcessor(nil, NewMemoryDeliveryLedger(), handlerFunc(func(_ context.Context, _ InboundRequest) (InboundResult, error) {
		return InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}))

	if _, err := processor.Process(context.Background(), InboundRequest{GatewayID: "stripe"}); err == nil {
		t.Fatalf("expected error without delivery id")
	}
}

func TestExponentialRetryPolicy_DelaysGrowAndCap(t *testing.T) {
	policy := ExponentialRetryPolicy{Initial: time.Second, Max: 8 * time.Second}

	if got := policy.NextDelay(1); got != time.Second {
		t.Fatalf("expected initial delay, got %v", got)
	}
	if got := policy.NextDelay(3); got != 4*time.Second {
		t.Fatalf("expected doubled delay, got %v", got)
	}
	if got := policy.NextDelay(10); got != 8*time.Second {
		t.Fatalf("expected capped delay, got %v", got)
	}
}

func TestPaymentAuthorizationHandler_ConfirmsAuthorization(t *testing.T) {
	var confirmed core.AuthorizationConfirmation
	handler := NewPaymentAuthorizationHandler(confirmationFunc(func(_ context.Context, in core.AuthorizationConfirmation) error {
		confirmed = in
		return nil
	}))

	body := []byte(`{"event_type":"payment.authorized","service_request_id":"req_1","hold_id":"hold_1"}`)
	result, err := handler.Handle(context.Background(), InboundRequest{GatewayID: "stripe", Body: body})
	if err != nil {
		t.Fatalf("handle authorization: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: %#v", result)
	}
	if confirmed.ServiceRequestID != "req_1" || confirmed.HoldID != "hold_1" {
		t.Fatalf("unexpected confirmation: %#v", confirmed)
	}
}

func TestPaymentAuthorizationHandler_IgnoresUnknownEventTypes(t *testing.T) {
	handler := NewPaymentAuthorizationHandler(confirmationFunc(func(_ context.Context, _ core.AuthorizationConfirmation) error {
		t.Fatalf("unknown events must not reach the service")
		return nil
	}))

	body := []byte(`{"event_type":"payout.created","service_request_id":"req_1"}`)
	result, err := handler.Handle(context.Background(), InboundRequest{GatewayID: "stripe", Body: body})
	if err != nil {
		t.Fatalf("handle unknown event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected unknown event accepted and dropped")
	}
	if ignored, _ := result.Metadata["ignored"].(bool); !ignored {
		t.Fatalf("expected ignored marker, got %#v", result.Metadata)
	}
}

func TestPaymentAuthorizationHandler_MalformedPayloadIsRetryable(t *testing.T) {
	handler := NewPaymentAuthorizationHandler(confirmationFunc(func(_ context.Context, _ core.AuthorizationConfirmation) error {
		return nil
	}))

	result, err := handler.Handle(context.Background(), InboundRequest{GatewayID: "stripe", Body: []byte(`{not json`)})
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if result.Accepted || result.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected result: %#v", result)
	}
}

type handlerFunc func(ctx context.Context, req InboundRequest) (InboundResult, error)

func (f handlerFunc) Handle(ctx context.Context, req InboundRequest) (InboundResult, error) {
	return f(ctx, req)
}

type verifierFunc func(ctx context.Context, req InboundRequest) error

func (f verifierFunc) Verify(ctx context.Context, req InboundRequest) error {
	return f(ctx, req)
}

type confirmationFunc func(ctx context.Context, in core.AuthorizationConfirmation) error

func (f confirmationFunc) ConfirmAuthorization(ctx context.Context, in core.AuthorizationConfirmation) error {
	return f(ctx, in)
}
