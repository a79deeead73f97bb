package dispatch

import (
	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
	"github.com/flabbergg-dev/mech-panic-button-sub001/throttle"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type DispatchService = core.DispatchService

type CreateRequestInput = core.CreateRequestInput
type SubmitOfferInput = core.SubmitOfferInput
type CreateReviewInput = core.CreateReviewInput
type AuthorizationConfirmation = core.AuthorizationConfirmation

type ServiceRequest = core.ServiceRequest
type ServiceOffer = core.ServiceOffer
type OfferListing = core.OfferListing
type Mechanic = core.Mechanic
type Review = core.Review
type GeoPoint = core.GeoPoint
type RequestStatus = core.RequestStatus

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithRequestStore       = core.WithRequestStore
	WithOfferStore         = core.WithOfferStore
	WithMechanicStore      = core.WithMechanicStore
	WithReviewStore        = core.WithReviewStore
	WithPaymentEventStore  = core.WithPaymentEventStore
	WithActivityStore      = core.WithActivityStore
	WithOutboxStore        = core.WithOutboxStore
	WithPaymentGateway     = core.WithPaymentGateway
	WithNotifier           = core.WithNotifier
	WithCodeIssuer         = core.WithCodeIssuer
	WithVerificationPolicy = core.WithVerificationPolicy
	WithLocationThrottle   = core.WithLocationThrottle
	WithLocationSink       = core.WithLocationSink
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a dispatch service with an in-memory location throttle
// derived from the config; pass WithLocationThrottle to replace it.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	location := cfg.Location
	if location.MinInterval <= 0 {
		location.MinInterval = core.DefaultConfig().Location.MinInterval
	}
	if location.MinDisplacement <= 0 {
		location.MinDisplacement = core.DefaultConfig().Location.MinDisplacement
	}
	defaultThrottle := throttle.NewPolicy(
		throttle.NewMemoryStateStore(),
		location.MinInterval,
		location.MinDisplacement,
	)
	merged := append([]Option{WithLocationThrottle(defaultThrottle)}, opts...)
	return core.NewService(cfg, merged...)
}
