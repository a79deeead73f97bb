package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LocationUpdate is one broadcast position sample.
type LocationUpdate struct {
	ServiceRequestID string
	Position         GeoPoint
	At               time.Time
}

// ReportLocation ingests a mechanic position sample for a request. The
// sample is persisted and broadcast only while the request is IN_ROUTE and
// only when it clears the throttle (minimum interval and displacement).
// The return value reports whether the sample was admitted.
func (s *Service) ReportLocation(ctx context.Context, requestID string, position GeoPoint) (bool, error) {
	if s == nil || s.requestStore == nil {
		return false, fmt.Errorf("core: service is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return false, s.mapError(fmt.Errorf("core: request id is required"))
	}

	request, err := s.requestStore.Get(ctx, requestID)
	if err != nil {
		return false, s.mapError(err)
	}
	if request.Status != RequestStatusInRoute {
		if s.locationThrottle != nil {
			_ = s.locationThrottle.Forget(ctx, requestID)
		}
		return false, s.mapError(fmt.Errorf(
			"%w: location broadcast is only active while IN_ROUTE, request %s is %s",
			ErrInvalidState, request.ID, request.Status,
		))
	}

	if s.locationThrottle != nil {
		admit, throttleErr := s.locationThrottle.Admit(ctx, requestID, position)
		if throttleErr != nil {
			return false, s.mapError(throttleErr)
		}
		if !admit {
			s.count(ctx, metricLocationDropped, nil)
			return false, nil
		}
	}

	now := s.now()
	written, err := s.requestStore.UpdateMechanicLocation(ctx, requestID, position, now)
	if err != nil {
		return false, s.mapError(err)
	}
	if !written {
		// The request left IN_ROUTE between the read and the write.
		return false, nil
	}
	if s.locationSink != nil {
		s.locationSink.Publish(requestID, position, now)
	}
	return true, nil
}

// Position returns the latest mechanic position for the request. Outside the
// IN_ROUTE window it reports no position rather than a stale one; a missing
// request likewise reports nothing.
func (s *Service) Position(ctx context.Context, requestID string) (GeoPoint, bool, error) {
	if s == nil || s.requestStore == nil {
		return GeoPoint{}, false, fmt.Errorf("core: service is not configured")
	}
	request, err := s.requestStore.Get(ctx, strings.TrimSpace(requestID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return GeoPoint{}, false, nil
		}
		return GeoPoint{}, false, s.mapError(err)
	}
	if request.Status != RequestStatusInRoute || request.MechanicLocation == nil {
		return GeoPoint{}, false, nil
	}
	return *request.MechanicLocation, true, nil
}

// LocationBroadcaster fans admitted samples out to subscribers. Subscribers
// that fall behind drop older samples; poll and subscribe consumers converge
// on the same latest position within one throttle interval.
type LocationBroadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[int]chan LocationUpdate
	nextID      int
}

func NewLocationBroadcaster() *LocationBroadcaster {
	return &LocationBroadcaster{
		subscribers: map[string]map[int]chan LocationUpdate{},
	}
}

func (b *LocationBroadcaster) Publish(requestID string, position GeoPoint, at time.Time) {
	if b == nil {
		return
	}
	update := LocationUpdate{
		ServiceRequestID: requestID,
		Position:         position,
		At:               at,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[requestID] {
		select {
		case ch <- update:
		default:
			// Drop the oldest buffered sample so the latest one lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

// Subscribe registers a consumer for one request's position stream. The
// returned cancel function releases the subscription; the channel is closed
// once cancelled.
func (b *LocationBroadcaster) Subscribe(requestID string) (<-chan LocationUpdate, func()) {
	if b == nil {
		ch := make(chan LocationUpdate)
		close(ch)
		return ch, func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[requestID] == nil {
		b.subscribers[requestID] = map[int]chan LocationUpdate{}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan LocationUpdate, 1)
	b.subscribers[requestID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subscribers[requestID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subscribers, requestID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

var _ LocationSink = (*LocationBroadcaster)(nil)
