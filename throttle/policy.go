// Package throttle bounds write amplification on high-frequency position
// updates: a sample is admitted only once both the minimum interval and the
// minimum displacement since the last admitted sample have been exceeded.
package throttle

import (
	"context"
	"errors"
	"time"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

var ErrStateNotFound = errors.New("throttle: state not found")

// State is the last admitted sample for one key.
type State struct {
	Key        string
	Position   core.GeoPoint
	AdmittedAt time.Time
}

type StateStore interface {
	Get(ctx context.Context, key string) (State, error)
	Upsert(ctx context.Context, state State) error
	Delete(ctx context.Context, key string) error
}

type Decision struct {
	Admit    bool
	Elapsed  time.Duration
	Moved    float64
	Previous *State
}

// Policy suppresses a sample while either bound still holds; both must be
// exceeded to admit. The first sample for a key is always admitted.
type Policy struct {
	Store           StateStore
	MinInterval     time.Duration
	MinDisplacement float64
	Now             func() time.Time
}

func NewPolicy(store StateStore, minInterval time.Duration, minDisplacement float64) *Policy {
	return &Policy{
		Store:           store,
		MinInterval:     minInterval,
		MinDisplacement: minDisplacement,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

// Observe evaluates one sample and, when admitted, records it as the new
// reference point.
func (p *Policy) Observe(ctx context.Context, key string, position core.GeoPoint) (Decision, error) {
	if p == nil || p.Store == nil {
		return Decision{Admit: true}, nil
	}
	now := p.now()

	previous, err := p.Store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			return Decision{}, err
		}
		next := State{Key: key, Position: position, AdmittedAt: now}
		if err := p.Store.Upsert(ctx, next); err != nil {
			return Decision{}, err
		}
		return Decision{Admit: true}, nil
	}

	elapsed := now.Sub(previous.AdmittedAt)
	moved := previous.Position.DistanceMeters(position)
	decision := Decision{
		Elapsed:  elapsed,
		Moved:    moved,
		Previous: &previous,
	}
	if elapsed < p.MinInterval || moved < p.MinDisplacement {
		return decision, nil
	}

	next := State{Key: key, Position: position, AdmittedAt: now}
	if err := p.Store.Upsert(ctx, next); err != nil {
		return Decision{}, err
	}
	decision.Admit = true
	return decision, nil
}

// Admit adapts Observe to the core.LocationThrottle contract.
func (p *Policy) Admit(ctx context.Context, key string, position core.GeoPoint) (bool, error) {
	decision, err := p.Observe(ctx, key, position)
	if err != nil {
		return false, err
	}
	return decision.Admit, nil
}

var _ core.LocationThrottle = (*Policy)(nil)

// Forget drops the reference point for a key, e.g. when its request leaves
// the broadcast window.
func (p *Policy) Forget(ctx context.Context, key string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Delete(ctx, key)
}

func (p *Policy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
