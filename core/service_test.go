package core

import (
	"context"
	"errors"
	"testing"
)

func TestNewService_RequiresStoresAndGateway(t *testing.T) {
	if _, err := NewService(DefaultConfig()); err == nil {
		t.Fatal("expected error without a request store")
	}

	store := newMemStore()
	if _, err := NewService(DefaultConfig(),
		WithRequestStore(store),
		WithOfferStore(offerStoreAdapter{store: store}),
	); err == nil {
		t.Fatal("expected error without a payment gateway")
	}
}

func TestNewService_DefaultsConfig(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.service.Config()
	if cfg.Currency != "USD" {
		t.Fatalf("expected default currency, got %s", cfg.Currency)
	}
	if cfg.Offers.ListingLimit != 4 {
		t.Fatalf("expected default listing limit, got %d", cfg.Offers.ListingLimit)
	}
}

func TestCreateRequest_LiveArbitrationClearsBinding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "tow",
		MechanicID:  "mech_1",
		TotalAmount: 99,
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if request.Status != RequestStatusRequested {
		t.Fatalf("expected REQUESTED, got %s", request.Status)
	}
	if request.MechanicID != "" || request.TotalAmount != 0 {
		t.Fatalf("live request must not carry a premature binding, got mechanic=%q amount=%v",
			request.MechanicID, request.TotalAmount)
	}
	if request.Currency != "USD" {
		t.Fatalf("expected configured currency fallback, got %s", request.Currency)
	}
	if err := request.CheckInvariants(); err != nil {
		t.Fatalf("fresh request violates invariants: %v", err)
	}
}

func TestCreateRequest_Booked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "oil_change",
		Booked:      true,
	}); err == nil {
		t.Fatal("expected booked request without mechanic to fail")
	}

	request, err := env.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "oil_change",
		Booked:      true,
		MechanicID:  "mech_1",
		TotalAmount: 80,
	})
	if err != nil {
		t.Fatalf("booked create failed: %v", err)
	}
	if request.Status != RequestStatusBooked {
		t.Fatalf("expected BOOKED, got %s", request.Status)
	}
	if request.MechanicID != "mech_1" || request.TotalAmount != 80 {
		t.Fatal("booked request must keep its agreed mechanic and amount")
	}
	if err := request.CheckInvariants(); err != nil {
		t.Fatalf("booked request violates invariants: %v", err)
	}
}

func TestCreateRequest_RejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.CreateRequest(ctx, CreateRequestInput{ServiceType: "tow"}); err == nil {
		t.Fatal("expected missing client id to fail")
	}
	if _, err := env.service.CreateRequest(ctx, CreateRequestInput{ClientID: "client_1"}); err == nil {
		t.Fatal("expected missing service type to fail")
	}
}

func TestGetRequest_MissingReportsNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, found, err := env.service.GetRequest(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing request should not error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing request")
	}
}

func TestCancel_BeforeAcceptanceDropsOffers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "battery",
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	offer, err := env.service.SubmitOffer(ctx, SubmitOfferInput{
		ServiceRequestID: request.ID,
		MechanicID:       "mech_1",
		Price:            40,
	})
	if err != nil {
		t.Fatalf("submit offer failed: %v", err)
	}

	if err := env.service.Cancel(ctx, request.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, found, _ := env.service.GetRequest(ctx, request.ID); found {
		t.Fatal("cancelled request should be gone")
	}
	if _, err := env.store.GetOffer(ctx, offer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("offers must go with the request, got %v", err)
	}
	if env.gateway.refunds != 0 {
		t.Fatal("no hold existed, nothing to refund")
	}
}

func TestCancel_AfterHoldRefundsAndReleasesMechanic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	if request.Status != RequestStatusPaymentAuthorized {
		t.Fatalf("expected PAYMENT_AUTHORIZED after acceptance, got %s", request.Status)
	}
	if mechanic, _ := env.store.GetMechanic(ctx, "mech_1"); mechanic.IsAvailable {
		t.Fatal("accepted mechanic should be marked busy")
	}

	if err := env.service.Cancel(ctx, request.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if env.gateway.refunds != 1 {
		t.Fatalf("expected exactly one refund, got %d", env.gateway.refunds)
	}
	if mechanic, _ := env.store.GetMechanic(ctx, "mech_1"); !mechanic.IsAvailable {
		t.Fatal("cancel must release the mechanic")
	}

	found := false
	for _, name := range env.store.eventNames() {
		if name == EventRequestCancelled {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a cancellation lifecycle event")
	}
}

func TestCancel_SecondCancelObservesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	if err := env.service.Cancel(ctx, request.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	err := env.service.Cancel(ctx, request.ID)
	if err == nil {
		t.Fatal("second cancel must fail")
	}
	if !errors.Is(err, ErrNotFound) && dispatchTextCode(err) != DispatchErrorNotFound {
		t.Fatalf("expected not-found on second cancel, got %v", err)
	}
	if env.gateway.refunds != 1 {
		t.Fatalf("second cancel must not refund again, got %d refunds", env.gateway.refunds)
	}
}

func TestCancel_CompletedRequestIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, _ := env.acceptedRequest(t)
	env.driveToStatus(t, request.ID, RequestStatusCompleted)

	if err := env.service.Cancel(ctx, request.ID); err == nil {
		t.Fatal("cancel after COMPLETED must fail")
	}
	if _, found, _ := env.service.GetRequest(ctx, request.ID); !found {
		t.Fatal("completed request must survive a cancel attempt")
	}
}
