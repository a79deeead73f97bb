package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// step moves roughly n meters north of the given point.
func step(p core.GeoPoint, meters float64) core.GeoPoint {
	return core.GeoPoint{
		Latitude:  p.Latitude + meters/111320.0,
		Longitude: p.Longitude,
	}
}

func newClock(start time.Time) (*time.Time, func() time.Time) {
	current := start
	return &current, func() time.Time { return current }
}

func TestPolicy_FirstSampleAdmitted(t *testing.T) {
	policy := NewPolicy(NewMemoryStateStore(), 5*time.Second, 25)
	ctx := context.Background()

	decision, err := policy.Observe(ctx, "req_1", core.GeoPoint{Latitude: 52.52, Longitude: 13.40})
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if !decision.Admit {
		t.Fatal("first sample must be admitted")
	}
}

func TestPolicy_RequiresBothBounds(t *testing.T) {
	clock, now := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	policy := NewPolicy(NewMemoryStateStore(), 5*time.Second, 25)
	policy.Now = now
	ctx := context.Background()

	origin := core.GeoPoint{Latitude: 52.52, Longitude: 13.40}
	if _, err := policy.Observe(ctx, "req_1", origin); err != nil {
		t.Fatalf("seed sample failed: %v", err)
	}

	// Enough displacement, not enough time.
	*clock = clock.Add(2 * time.Second)
	decision, err := policy.Observe(ctx, "req_1", step(origin, 100))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if decision.Admit {
		t.Fatal("sample inside the minimum interval must be suppressed")
	}

	// Enough time, not enough displacement.
	*clock = clock.Add(10 * time.Second)
	decision, err = policy.Observe(ctx, "req_1", step(origin, 5))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if decision.Admit {
		t.Fatal("sample inside the minimum displacement must be suppressed")
	}

	// Both bounds exceeded.
	*clock = clock.Add(10 * time.Second)
	decision, err = policy.Observe(ctx, "req_1", step(origin, 100))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if !decision.Admit {
		t.Fatalf("expected admission, elapsed=%s moved=%.1fm", decision.Elapsed, decision.Moved)
	}
}

func TestPolicy_SuppressedSampleKeepsReferencePoint(t *testing.T) {
	clock, now := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	policy := NewPolicy(NewMemoryStateStore(), 5*time.Second, 25)
	policy.Now = now
	ctx := context.Background()

	origin := core.GeoPoint{Latitude: 52.52, Longitude: 13.40}
	if _, err := policy.Observe(ctx, "req_1", origin); err != nil {
		t.Fatalf("seed sample failed: %v", err)
	}

	// Creep in sub-threshold steps; each alone is suppressed, and because the
	// reference point never advances, the accumulated displacement eventually
	// clears the bound.
	position := origin
	admitted := false
	for i := 0; i < 5; i++ {
		*clock = clock.Add(6 * time.Second)
		position = step(position, 10)
		decision, err := policy.Observe(ctx, "req_1", position)
		if err != nil {
			t.Fatalf("observe failed: %v", err)
		}
		if decision.Admit {
			admitted = true
			break
		}
	}
	if !admitted {
		t.Fatal("accumulated displacement past the bound must eventually admit")
	}
}

func TestPolicy_KeysAreIndependent(t *testing.T) {
	policy := NewPolicy(NewMemoryStateStore(), time.Hour, 1000)
	ctx := context.Background()

	origin := core.GeoPoint{Latitude: 52.52, Longitude: 13.40}
	if admit, err := policy.Admit(ctx, "req_1", origin); err != nil || !admit {
		t.Fatalf("first sample for req_1 must be admitted, admit=%v err=%v", admit, err)
	}
	if admit, err := policy.Admit(ctx, "req_2", origin); err != nil || !admit {
		t.Fatalf("first sample for req_2 must be admitted, admit=%v err=%v", admit, err)
	}
	if admit, _ := policy.Admit(ctx, "req_1", origin); admit {
		t.Fatal("second identical sample for req_1 must be suppressed")
	}
}

func TestPolicy_ForgetResetsKey(t *testing.T) {
	policy := NewPolicy(NewMemoryStateStore(), time.Hour, 1000)
	ctx := context.Background()

	origin := core.GeoPoint{Latitude: 52.52, Longitude: 13.40}
	if _, err := policy.Observe(ctx, "req_1", origin); err != nil {
		t.Fatalf("seed sample failed: %v", err)
	}
	if admit, _ := policy.Admit(ctx, "req_1", origin); admit {
		t.Fatal("expected suppression before forget")
	}

	if err := policy.Forget(ctx, "req_1"); err != nil {
		t.Fatalf("forget failed: %v", err)
	}
	if admit, _ := policy.Admit(ctx, "req_1", origin); !admit {
		t.Fatal("the next sample after forget must be admitted")
	}
}

func TestMemoryStateStore(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); err != ErrStateNotFound {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	state := State{Key: "req_1", Position: core.GeoPoint{Latitude: 1}, AdmittedAt: time.Now().UTC()}
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err := store.Get(ctx, "req_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Position.Latitude != 1 {
		t.Fatalf("unexpected state %+v", got)
	}

	if err := store.Delete(ctx, "req_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "req_1"); err != ErrStateNotFound {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}
}
