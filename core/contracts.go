package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateRequestInput struct {
	ClientID    string
	ServiceType string
	Description string
	Location    GeoPoint
	Currency    string
	// Booked marks a pre-scheduled request that bypasses live arbitration.
	Booked      bool
	MechanicID  string
	TotalAmount float64
}

type SubmitOfferInput struct {
	ServiceRequestID string
	MechanicID       string
	Price            float64
	Note             string
	ExpiresAt        time.Time
	Location         GeoPoint
}

// TransitionUpdate carries a guarded status move plus the columns the edge
// stamps. The store must require the row to match From and report exactly one
// affected row, otherwise the caller lost the race. From == To stamps fields
// under the same guard without moving status.
type TransitionUpdate struct {
	RequestID      string
	From           RequestStatus
	To             RequestStatus
	ArrivalCode    string
	CompletionCode string
	PaymentHoldID  string
	PaymentID      string
	StartTime      *time.Time
	CompletionTime *time.Time
}

// AcceptOfferOutcome reports the rows touched by the arbitration transaction.
type AcceptOfferOutcome struct {
	Request       ServiceRequest
	Offer         ServiceOffer
	DiscardedBids int
}

type RequestStore interface {
	Create(ctx context.Context, in CreateRequestInput) (ServiceRequest, error)
	Get(ctx context.Context, id string) (ServiceRequest, error)
	// ApplyTransition performs the compare-and-swap status move. It returns
	// ErrInvalidTransition wrapped when zero rows matched the guard.
	ApplyTransition(ctx context.Context, in TransitionUpdate) (ServiceRequest, error)
	// DeleteCascade removes the request and every offer bound to it in one
	// transaction, returning the deleted snapshot. COMPLETED requests are
	// excluded from the guard; missing rows surface ErrNotFound.
	DeleteCascade(ctx context.Context, id string) (ServiceRequest, error)
	// UpdateMechanicLocation persists a position sample only while the row is
	// IN_ROUTE; it reports whether a row was written.
	UpdateMechanicLocation(ctx context.Context, id string, position GeoPoint, at time.Time) (bool, error)
}

type OfferStore interface {
	Insert(ctx context.Context, in SubmitOfferInput) (ServiceOffer, error)
	Get(ctx context.Context, id string) (ServiceOffer, error)
	// ListActive returns live offers for the request, oldest first, capped at
	// limit. A missing request yields an empty slice, not an error.
	ListActive(ctx context.Context, requestID string, limit int, now time.Time) ([]ServiceOffer, error)
	// Accept runs the single-winner transaction: CAS the target offer from
	// PENDING to ACCEPTED, delete sibling PENDING offers, and bind mechanic,
	// amount, and ACCEPTED status onto the request row. A lost race surfaces
	// ErrOfferNotAvailable.
	Accept(ctx context.Context, offerID string, requestID string, now time.Time) (AcceptOfferOutcome, error)
	// AcceptedFor returns the single ACCEPTED offer bound to the request, or
	// ErrNotFound when arbitration has not resolved.
	AcceptedFor(ctx context.Context, requestID string) (ServiceOffer, error)
	Delete(ctx context.Context, id string) error
	// Expire is idempotent; expiring an EXPIRED offer is a no-op.
	Expire(ctx context.Context, id string, now time.Time) (ServiceOffer, error)
	// ExpireStale bulk-expires PENDING offers whose expiresAt has passed and
	// returns the number of rows reclaimed.
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type MechanicStore interface {
	Get(ctx context.Context, id string) (Mechanic, error)
	GetMany(ctx context.Context, ids []string) (map[string]Mechanic, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

type CreateReviewInput struct {
	ServiceRequestID string
	ClientID         string
	MechanicID       string
	Rating           int
	Comment          string
}

type ReviewStore interface {
	// Create inserts the review and recomputes the mechanic average rating in
	// the same transaction. A duplicate serviceRequestId surfaces
	// ErrReviewAlreadyExists via the store uniqueness constraint.
	Create(ctx context.Context, in CreateReviewInput) (Review, error)
	GetByRequest(ctx context.Context, requestID string) (Review, error)
}

type PaymentEventStore interface {
	// Record appends a ledger row. Replays of the same (gatewayRef, kind)
	// tuple return the existing row with created=false.
	Record(ctx context.Context, event PaymentEvent) (PaymentEvent, bool, error)
}

type ActivityStore interface {
	Append(ctx context.Context, entry ActivityEntry) error
}

type OutboxStore interface {
	Enqueue(ctx context.Context, event LifecycleEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]LifecycleEvent, error)
	Ack(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, cause error, nextAttemptAt time.Time) error
}

// PaymentGateway is the external hold/capture/refund collaborator. Capture
// and Refund must be safe to repeat: a gateway report of "already settled"
// is surfaced as ErrHoldAlreadySettled and treated as success by the
// choreography.
type PaymentGateway interface {
	Authorize(ctx context.Context, amount float64, currency string) (holdID string, err error)
	Capture(ctx context.Context, holdID string) (paymentID string, err error)
	Refund(ctx context.Context, holdID string) (refundID string, err error)
}

type Notification struct {
	Recipient string
	Template  string
	Data      map[string]any
}

// Notifier is fire-and-forget; delivery failure must never roll back a
// lifecycle transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// CodeIssuer mints verification codes. Validation goes through
// VerificationPolicy so an attempt throttle or expiry can be added later
// without changing callers.
type CodeIssuer interface {
	Generate() (string, error)
}

type VerificationPolicy interface {
	Verify(ctx context.Context, requestID string, stored string, presented string) error
}

// DispatchService is the operation surface the command and query packages
// bind to; *Service is the canonical implementation.
type DispatchService interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (ServiceRequest, bool, error)
	SubmitOffer(ctx context.Context, in SubmitOfferInput) (ServiceOffer, error)
	ListActiveOffers(ctx context.Context, requestID string) ([]OfferListing, error)
	AcceptOffer(ctx context.Context, offerID string, requestID string) (ServiceRequest, error)
	WithdrawOffer(ctx context.Context, offerID string) error
	ExpireOffer(ctx context.Context, offerID string) error
	Transition(ctx context.Context, requestID string, target RequestStatus) (ServiceRequest, error)
	ValidateArrival(ctx context.Context, requestID string, code string) (ServiceRequest, error)
	ValidateCompletion(ctx context.Context, requestID string, code string) (ServiceRequest, error)
	Cancel(ctx context.Context, requestID string) error
	ConfirmAuthorization(ctx context.Context, in AuthorizationConfirmation) error
	SubmitReview(ctx context.Context, in CreateReviewInput) (Review, error)
	ReviewFor(ctx context.Context, requestID string) (Review, bool, error)
	ReportLocation(ctx context.Context, requestID string, position GeoPoint) (bool, error)
	Position(ctx context.Context, requestID string) (GeoPoint, bool, error)
}

// LocationThrottle gates position samples on minimum interval and minimum
// displacement; only admitted samples are persisted and broadcast.
type LocationThrottle interface {
	Admit(ctx context.Context, key string, position GeoPoint) (bool, error)
	Forget(ctx context.Context, key string) error
}

// LocationSink receives position samples that survived throttling.
type LocationSink interface {
	Publish(requestID string, position GeoPoint, at time.Time)
}
