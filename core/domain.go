package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidState                = errors.New("core: operation not allowed in current request state")
	ErrInvalidTransition           = errors.New("core: invalid service request status transition")
	ErrOfferNotAvailable           = errors.New("core: offer is no longer available")
	ErrCannotWithdrawAcceptedOffer = errors.New("core: accepted offer cannot be withdrawn while request is active")
	ErrInvalidCode                 = errors.New("core: verification code does not match")
	ErrPaymentGateway              = errors.New("core: payment gateway operation failed")
	ErrPersistence                 = errors.New("core: persistence operation failed")
	ErrNotFound                    = errors.New("core: not found")
	ErrInvalidOfferStatusChange    = errors.New("core: invalid offer status change")
	ErrReviewAlreadyExists         = errors.New("core: request already has a review")
)

type RequestStatus string

const (
	RequestStatusRequested         RequestStatus = "REQUESTED"
	RequestStatusBooked            RequestStatus = "BOOKED"
	RequestStatusAccepted          RequestStatus = "ACCEPTED"
	RequestStatusPaymentAuthorized RequestStatus = "PAYMENT_AUTHORIZED"
	RequestStatusInRoute           RequestStatus = "IN_ROUTE"
	RequestStatusInProgress        RequestStatus = "IN_PROGRESS"
	RequestStatusServicing         RequestStatus = "SERVICING"
	RequestStatusInCompletion      RequestStatus = "IN_COMPLETION"
	RequestStatusCompleted         RequestStatus = "COMPLETED"
)

// requestTransitions is the single source of truth for forward lifecycle
// edges. Cancellation is out-of-band and never appears here.
var requestTransitions = map[RequestStatus]map[RequestStatus]struct{}{
	RequestStatusRequested: {
		RequestStatusAccepted: {},
	},
	RequestStatusBooked: {
		RequestStatusCompleted: {},
	},
	RequestStatusAccepted: {
		RequestStatusPaymentAuthorized: {},
	},
	RequestStatusPaymentAuthorized: {
		RequestStatusInRoute:   {},
		RequestStatusServicing: {},
	},
	RequestStatusInRoute: {
		RequestStatusInProgress: {},
	},
	RequestStatusInProgress: {
		RequestStatusServicing: {},
	},
	RequestStatusServicing: {
		RequestStatusInCompletion: {},
	},
	RequestStatusInCompletion: {
		RequestStatusCompleted: {},
	},
	RequestStatusCompleted: {},
}

func requestTransitionAllowed(current, next RequestStatus) bool {
	_, ok := requestTransitions[current][next]
	return ok
}

// IsKnown reports whether the status is a member of the closed status set.
func (s RequestStatus) IsKnown() bool {
	_, ok := requestTransitions[s]
	return ok
}

// IsTerminal reports whether the status has no outgoing forward edges.
func (s RequestStatus) IsTerminal() bool {
	next, ok := requestTransitions[s]
	return ok && len(next) == 0
}

// Assigned reports whether a mechanic must be bound to the request in this
// status. mechanicId is non-null iff the status is in the assigned window;
// BOOKED is in the window because booked requests bind their mechanic at
// creation.
func (s RequestStatus) Assigned() bool {
	switch s {
	case RequestStatusBooked,
		RequestStatusAccepted,
		RequestStatusPaymentAuthorized,
		RequestStatusInRoute,
		RequestStatusInProgress,
		RequestStatusServicing,
		RequestStatusInCompletion,
		RequestStatusCompleted:
		return true
	}
	return false
}

type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

func (p GeoPoint) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
func (p GeoPoint) DistanceMeters(other GeoPoint) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLng := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

type ServiceRequest struct {
	ID               string
	ClientID         string
	MechanicID       string
	Status           RequestStatus
	ServiceType      string
	Description      string
	Location         GeoPoint
	MechanicLocation *GeoPoint
	ArrivalCode      string
	CompletionCode   string
	PaymentHoldID    string
	PaymentID        string
	TotalAmount      float64
	Currency         string
	StartTime        *time.Time
	CompletionTime   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TransitionTo applies a forward lifecycle edge in memory. Side effects bound
// to the edge (codes, timestamps, capture) are orchestrated by the Service;
// persistence guards the same edge with a compare-and-swap on status.
func (r *ServiceRequest) TransitionTo(status RequestStatus, now time.Time) error {
	if r == nil {
		return nil
	}
	if !requestTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

// CheckInvariants verifies the mechanic-binding invariant for the request.
func (r ServiceRequest) CheckInvariants() error {
	assigned := strings.TrimSpace(r.MechanicID) != ""
	if r.Status.Assigned() && !assigned {
		return fmt.Errorf("core: request %s in %s has no mechanic bound", r.ID, r.Status)
	}
	if !r.Status.Assigned() && assigned {
		return fmt.Errorf("core: request %s in %s has mechanic %s bound", r.ID, r.Status, r.MechanicID)
	}
	return nil
}

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusExpired  OfferStatus = "EXPIRED"
)

var offerTransitions = map[OfferStatus]map[OfferStatus]struct{}{
	OfferStatusPending: {
		OfferStatusAccepted: {},
		OfferStatusExpired:  {},
	},
	OfferStatusAccepted: {
		OfferStatusExpired: {},
	},
	OfferStatusExpired: {},
}

type ServiceOffer struct {
	ID               string
	ServiceRequestID string
	MechanicID       string
	Status           OfferStatus
	Price            float64
	Note             string
	ExpiresAt        time.Time
	Location         GeoPoint
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TransitionTo applies an offer status change. Expiry is idempotent: moving
// an EXPIRED offer to EXPIRED again is a no-op, matching terminal cleanup
// being safe to repeat.
func (o *ServiceOffer) TransitionTo(status OfferStatus, now time.Time) error {
	if o == nil {
		return nil
	}
	if o.Status == status {
		o.UpdatedAt = now
		return nil
	}
	if _, ok := offerTransitions[o.Status][status]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOfferStatusChange, o.Status, status)
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

// Live reports whether the offer should appear in active listings.
func (o ServiceOffer) Live(now time.Time) bool {
	if o.Status != OfferStatusPending && o.Status != OfferStatusAccepted {
		return false
	}
	return o.ExpiresAt.After(now)
}

// Mechanic is the read-mostly projection this core consumes; the profile
// collaborator owns the record.
type Mechanic struct {
	ID              string
	UserID          string
	DisplayName     string
	IsAvailable     bool
	Rating          float64
	ReviewCount     int
	ServicesOffered []string
	Location        GeoPoint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicProfile is the subset of mechanic fields exposed to customers when
// listing offers.
type PublicProfile struct {
	MechanicID  string
	DisplayName string
	Rating      float64
	ReviewCount int
	Location    GeoPoint
}

func (m Mechanic) PublicProfile() PublicProfile {
	return PublicProfile{
		MechanicID:  m.ID,
		DisplayName: m.DisplayName,
		Rating:      m.Rating,
		ReviewCount: m.ReviewCount,
		Location:    m.Location,
	}
}

type Review struct {
	ID               string
	ServiceRequestID string
	ClientID         string
	MechanicID       string
	Rating           int
	Comment          string
	CreatedAt        time.Time
}

func (r Review) Validate() error {
	if strings.TrimSpace(r.ServiceRequestID) == "" {
		return fmt.Errorf("core: review requires a service request id")
	}
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("core: review requires a client id")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("core: review rating must be between 1 and 5, got %d", r.Rating)
	}
	return nil
}

type PaymentEventKind string

const (
	PaymentEventAuthorized         PaymentEventKind = "authorized"
	PaymentEventAuthorizeConfirmed PaymentEventKind = "authorize_confirmed"
	PaymentEventCaptured           PaymentEventKind = "captured"
	PaymentEventRefunded           PaymentEventKind = "refunded"
)

// PaymentEvent is one row of the payment ledger; GatewayRef plus Kind dedupe
// webhook replays.
type PaymentEvent struct {
	ID               string
	ServiceRequestID string
	Kind             PaymentEventKind
	GatewayRef       string
	Amount           float64
	Currency         string
	Metadata         map[string]any
	CreatedAt        time.Time
}

type ActivityStatus string

const (
	ActivityStatusOK    ActivityStatus = "ok"
	ActivityStatusWarn  ActivityStatus = "warn"
	ActivityStatusError ActivityStatus = "error"
)

type ActivityEntry struct {
	ID        string
	Actor     string
	Action    string
	Object    string
	ObjectID  string
	Status    ActivityStatus
	Metadata  map[string]any
	CreatedAt time.Time
}

// LifecycleEvent is an outbox row produced inside the same transaction as
// the state change it describes and delivered asynchronously.
type LifecycleEvent struct {
	ID               string
	Name             string
	ServiceRequestID string
	MechanicID       string
	ClientID         string
	OccurredAt       time.Time
	Payload          map[string]any
	Metadata         map[string]any
}

const (
	EventOfferSubmitted   = "dispatch.offer.submitted"
	EventOfferAccepted    = "dispatch.offer.accepted"
	EventRequestCancelled = "dispatch.request.cancelled"
	EventPaymentHeld      = "dispatch.payment.held"
	EventPaymentCaptured  = "dispatch.payment.captured"
	EventServiceCompleted = "dispatch.service.completed"
)
