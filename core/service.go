package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Service orchestrates the request lifecycle, offer arbitration, payment
// choreography, verification codes, and location broadcast. Handlers are
// stateless; cross-entity invariants are enforced by the store transactions
// the contracts describe, not by in-process locks.
type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	requestStore       RequestStore
	offerStore         OfferStore
	mechanicStore      MechanicStore
	reviewStore        ReviewStore
	paymentEventStore  PaymentEventStore
	activityStore      ActivityStore
	outboxStore        OutboxStore
	paymentGateway     PaymentGateway
	notifier           Notifier
	codeIssuer         CodeIssuer
	verificationPolicy VerificationPolicy
	locationThrottle   LocationThrottle
	locationSink       LocationSink
	now                func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("dispatch", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("dispatch"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.codeIssuer == nil {
		builder.codeIssuer = RandomCodeIssuer{}
	}
	if builder.verificationPolicy == nil {
		builder.verificationPolicy = ExactMatchPolicy{}
	}

	resolved := builder.runtimeConfig
	if strings.TrimSpace(resolved.ServiceName) == "" {
		resolved.ServiceName = DefaultConfig().ServiceName
	}
	if strings.TrimSpace(resolved.Currency) == "" {
		resolved.Currency = DefaultConfig().Currency
	}
	if resolved.Offers.ListingLimit <= 0 {
		resolved.Offers.ListingLimit = DefaultConfig().Offers.ListingLimit
	}
	if resolved.Location.MinInterval <= 0 {
		resolved.Location.MinInterval = DefaultConfig().Location.MinInterval
	}
	if resolved.Location.MinDisplacement <= 0 {
		resolved.Location.MinDisplacement = DefaultConfig().Location.MinDisplacement
	}
	if builder.configProvider != nil {
		loaded, err := builder.configProvider.Load(context.Background(), resolved)
		if err != nil {
			return nil, err
		}
		if builder.optionsResolver != nil {
			merged, resolveErr := builder.optionsResolver.Resolve(DefaultConfig(), loaded, builder.runtimeConfig)
			if resolveErr != nil {
				return nil, resolveErr
			}
			resolved = merged
		} else {
			resolved = loaded
		}
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	if builder.requestStore == nil {
		return nil, fmt.Errorf("core: request store is required")
	}
	if builder.offerStore == nil {
		return nil, fmt.Errorf("core: offer store is required")
	}
	if builder.paymentGateway == nil {
		return nil, fmt.Errorf("core: payment gateway is required")
	}

	return &Service{
		config:             resolved,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		requestStore:       builder.requestStore,
		offerStore:         builder.offerStore,
		mechanicStore:      builder.mechanicStore,
		reviewStore:        builder.reviewStore,
		paymentEventStore:  builder.paymentEventStore,
		activityStore:      builder.activityStore,
		outboxStore:        builder.outboxStore,
		paymentGateway:     builder.paymentGateway,
		notifier:           builder.notifier,
		codeIssuer:         builder.codeIssuer,
		verificationPolicy: builder.verificationPolicy,
		locationThrottle:   builder.locationThrottle,
		locationSink:       builder.locationSink,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return defaultErrorMapper(err)
	}
	return s.errorMapper(err)
}

// CreateRequest opens a new service request in REQUESTED, or BOOKED when the
// input marks a pre-scheduled job with a mechanic already agreed.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (ServiceRequest, error) {
	if s == nil || s.requestStore == nil {
		return ServiceRequest{}, fmt.Errorf("core: service is not configured")
	}
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.ServiceType = strings.TrimSpace(in.ServiceType)
	if in.ClientID == "" {
		return ServiceRequest{}, s.mapError(fmt.Errorf("core: client id is required"))
	}
	if in.ServiceType == "" {
		return ServiceRequest{}, s.mapError(fmt.Errorf("core: service type is required"))
	}
	if strings.TrimSpace(in.Currency) == "" {
		in.Currency = s.config.Currency
	}
	if in.Booked {
		if strings.TrimSpace(in.MechanicID) == "" {
			return ServiceRequest{}, s.mapError(fmt.Errorf("core: booked request requires a mechanic id"))
		}
		if in.TotalAmount <= 0 {
			return ServiceRequest{}, s.mapError(fmt.Errorf("core: booked request requires an agreed amount"))
		}
	} else {
		// Live arbitration binds mechanic and amount at acceptance.
		in.MechanicID = ""
		in.TotalAmount = 0
	}

	request, err := s.requestStore.Create(ctx, in)
	if err != nil {
		return ServiceRequest{}, s.mapError(err)
	}

	s.recordActivity(ctx, request.ClientID, "request.create", request.ID, ActivityStatusOK, map[string]any{
		"service_type": request.ServiceType,
		"status":       string(request.Status),
	})
	return request, nil
}

// GetRequest is a read; a missing id returns the zero request with found
// false so pollers stay simple.
func (s *Service) GetRequest(ctx context.Context, id string) (ServiceRequest, bool, error) {
	if s == nil || s.requestStore == nil {
		return ServiceRequest{}, false, fmt.Errorf("core: service is not configured")
	}
	request, err := s.requestStore.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ServiceRequest{}, false, nil
		}
		return ServiceRequest{}, false, s.mapError(err)
	}
	return request, true, nil
}

// Cancel tears the request down from any pre-COMPLETED state: offers and the
// request row go in one transaction, any hold is refunded, the mechanic is
// released and notified. A second cancel on the same id observes ErrNotFound.
func (s *Service) Cancel(ctx context.Context, requestID string) error {
	if s == nil || s.requestStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return s.mapError(fmt.Errorf("core: request id is required"))
	}

	deleted, err := s.requestStore.DeleteCascade(ctx, requestID)
	if err != nil {
		return s.mapError(err)
	}

	if strings.TrimSpace(deleted.PaymentHoldID) != "" && deleted.PaymentID == "" {
		if refundErr := s.refundHold(ctx, deleted); refundErr != nil {
			// The row is gone; surface the gateway failure without undoing
			// the cancellation.
			s.logger.Error("refund on cancellation failed",
				"request_id", requestID,
				"hold_id", deleted.PaymentHoldID,
				"error", refundErr,
			)
			return s.mapError(refundErr)
		}
	}

	if strings.TrimSpace(deleted.MechanicID) != "" {
		s.releaseMechanic(ctx, deleted.MechanicID)
		s.notify(ctx, deleted.MechanicID, "request_cancelled", map[string]any{
			"request_id":   requestID,
			"service_type": deleted.ServiceType,
		})
	}

	s.publishEvent(ctx, LifecycleEvent{
		Name:             EventRequestCancelled,
		ServiceRequestID: requestID,
		MechanicID:       deleted.MechanicID,
		ClientID:         deleted.ClientID,
		Payload: map[string]any{
			"status_at_cancel": string(deleted.Status),
		},
	})
	s.recordActivity(ctx, deleted.ClientID, "request.cancel", requestID, ActivityStatusOK, nil)
	return nil
}

func (s *Service) releaseMechanic(ctx context.Context, mechanicID string) {
	if s.mechanicStore == nil {
		return
	}
	if err := s.mechanicStore.SetAvailability(ctx, mechanicID, true); err != nil {
		s.logger.Warn("failed to release mechanic availability",
			"mechanic_id", mechanicID,
			"error", err,
		)
	}
}

func (s *Service) notify(ctx context.Context, recipient string, template string, data map[string]any) {
	if s.notifier == nil || strings.TrimSpace(recipient) == "" {
		return
	}
	if err := s.notifier.Notify(ctx, Notification{
		Recipient: recipient,
		Template:  template,
		Data:      data,
	}); err != nil {
		s.logger.Warn("notification delivery failed",
			"recipient", recipient,
			"template", template,
			"error", err,
		)
	}
}

func (s *Service) publishEvent(ctx context.Context, event LifecycleEvent) {
	if s.outboxStore == nil {
		return
	}
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.outboxStore.Enqueue(ctx, event); err != nil {
		s.logger.Warn("failed to enqueue lifecycle event",
			"event", event.Name,
			"request_id", event.ServiceRequestID,
			"error", err,
		)
	}
}

func (s *Service) recordActivity(ctx context.Context, actor string, action string, objectID string, status ActivityStatus, metadata map[string]any) {
	if s.activityStore == nil {
		return
	}
	entry := ActivityEntry{
		ID:        uuid.NewString(),
		Actor:     strings.TrimSpace(actor),
		Action:    action,
		Object:    "service_request",
		ObjectID:  objectID,
		Status:    status,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	if err := s.activityStore.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append activity entry", "action", action, "error", err)
	}
}

func (s *Service) count(ctx context.Context, name string, tags map[string]string) {
	if s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, 1, tags)
}
