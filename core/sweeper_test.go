package core

import (
	"context"
	"testing"
	"time"
)

func TestOfferSweeper_SweepOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.service.CreateRequest(ctx, CreateRequestInput{
		ClientID:    "client_1",
		ServiceType: "tow",
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	stale, err := env.service.SubmitOffer(ctx, SubmitOfferInput{
		ServiceRequestID: request.ID,
		MechanicID:       "mech_1",
		Price:            50,
		ExpiresAt:        past,
	})
	if err != nil {
		t.Fatalf("submit stale offer failed: %v", err)
	}
	fresh, err := env.service.SubmitOffer(ctx, SubmitOfferInput{
		ServiceRequestID: request.ID,
		MechanicID:       "mech_2",
		Price:            60,
		ExpiresAt:        future,
	})
	if err != nil {
		t.Fatalf("submit fresh offer failed: %v", err)
	}

	sweeper, err := NewOfferSweeper(offerStoreAdapter{store: env.store}, nil, 0)
	if err != nil {
		t.Fatalf("sweeper construction failed: %v", err)
	}
	reclaimed, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one reclaimed offer, got %d", reclaimed)
	}

	if offer, _ := env.store.GetOffer(ctx, stale.ID); offer.Status != OfferStatusExpired {
		t.Fatalf("stale offer must be expired, got %s", offer.Status)
	}
	if offer, _ := env.store.GetOffer(ctx, fresh.ID); offer.Status != OfferStatusPending {
		t.Fatalf("fresh offer must stay pending, got %s", offer.Status)
	}

	// Second sweep finds nothing left.
	reclaimed, err = sweeper.SweepOnce(ctx)
	if err != nil || reclaimed != 0 {
		t.Fatalf("expected an empty second sweep, got %d %v", reclaimed, err)
	}
}

func TestOfferSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)

	sweeper, err := NewOfferSweeper(offerStoreAdapter{store: env.store}, nil, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("sweeper construction failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}
