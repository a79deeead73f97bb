package core

import (
	"context"
	"strings"
	"testing"
)

func TestRandomCodeIssuer_ShapeAndPadding(t *testing.T) {
	issuer := RandomCodeIssuer{}
	for i := 0; i < 50; i++ {
		code, err := issuer.Generate()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected six digits, got %q", code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected decimal digits only, got %q", code)
		}
	}
}

func TestExactMatchPolicy(t *testing.T) {
	policy := ExactMatchPolicy{}
	ctx := context.Background()

	if err := policy.Verify(ctx, "req_1", "123456", "123456"); err != nil {
		t.Fatalf("matching code rejected: %v", err)
	}
	if err := policy.Verify(ctx, "req_1", "123456", " 123456 "); err != nil {
		t.Fatalf("presented code should be trimmed: %v", err)
	}
	if err := policy.Verify(ctx, "req_1", "123456", "654321"); err == nil {
		t.Fatal("mismatched code must be rejected")
	}
	if err := policy.Verify(ctx, "req_1", "123456", "12345"); err == nil {
		t.Fatal("shorter code must be rejected")
	}
	if err := policy.Verify(ctx, "req_1", "", "123456"); err == nil {
		t.Fatal("empty stored code must be rejected")
	}
}

func TestValidateArrival(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	inProgress := env.driveToStatus(t, request.ID, RequestStatusInProgress)

	// Wrong code leaves the request where it is.
	_, err := env.service.ValidateArrival(ctx, request.ID, "000000")
	if code := dispatchTextCode(err); code != DispatchErrorInvalidCode {
		t.Fatalf("expected %s, got %s (%v)", DispatchErrorInvalidCode, code, err)
	}
	if got, _ := env.store.Get(ctx, request.ID); got.Status != RequestStatusInProgress {
		t.Fatalf("failed validation must not move the request, got %s", got.Status)
	}

	updated, err := env.service.ValidateArrival(ctx, request.ID, inProgress.ArrivalCode)
	if err != nil {
		t.Fatalf("arrival validation failed: %v", err)
	}
	if updated.Status != RequestStatusServicing {
		t.Fatalf("expected SERVICING, got %s", updated.Status)
	}
}

func TestValidateArrival_RequiresInProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)

	_, err := env.service.ValidateArrival(ctx, request.ID, "111111")
	if code := dispatchTextCode(err); code != DispatchErrorInvalidState {
		t.Fatalf("expected %s outside IN_PROGRESS, got %s (%v)", DispatchErrorInvalidState, code, err)
	}
}

func TestValidateCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	inCompletion := env.driveToStatus(t, request.ID, RequestStatusInCompletion)

	if _, err := env.service.ValidateCompletion(ctx, request.ID, "999999"); err == nil {
		t.Fatal("wrong completion code must be rejected")
	}
	if env.gateway.captures != 0 {
		t.Fatal("failed validation must not capture")
	}

	updated, err := env.service.ValidateCompletion(ctx, request.ID, inCompletion.CompletionCode)
	if err != nil {
		t.Fatalf("completion validation failed: %v", err)
	}
	if updated.Status != RequestStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", updated.Status)
	}
	if env.gateway.captures != 1 {
		t.Fatalf("expected capture after completion, got %d", env.gateway.captures)
	}
}

func TestValidateCompletion_ArrivalCodeDoesNotUnlockCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	env.driveToStatus(t, request.ID, RequestStatusInCompletion)

	loaded, _ := env.store.Get(ctx, request.ID)
	if loaded.ArrivalCode == "" || loaded.CompletionCode == "" {
		t.Fatal("both codes should be minted by now")
	}
	if _, err := env.service.ValidateCompletion(ctx, request.ID, loaded.ArrivalCode); err == nil {
		t.Fatal("the arrival code must not pass the completion checkpoint")
	}
}
