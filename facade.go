package dispatch

import (
	"fmt"

	dispatchcommand "github.com/flabbergg-dev/mech-panic-button-sub001/command"
	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
	dispatchquery "github.com/flabbergg-dev/mech-panic-button-sub001/query"
)

// CommandQueryService is the full surface the facade binds handlers against;
// *core.Service satisfies it.
type CommandQueryService interface {
	dispatchcommand.MutatingService
	dispatchquery.ReadingService
}

type Commands struct {
	CreateRequest        *dispatchcommand.CreateRequestCommand
	CancelRequest        *dispatchcommand.CancelRequestCommand
	SubmitOffer          *dispatchcommand.SubmitOfferCommand
	AcceptOffer          *dispatchcommand.AcceptOfferCommand
	WithdrawOffer        *dispatchcommand.WithdrawOfferCommand
	ExpireOffer          *dispatchcommand.ExpireOfferCommand
	Transition           *dispatchcommand.TransitionCommand
	ValidateArrival      *dispatchcommand.ValidateArrivalCommand
	ValidateCompletion   *dispatchcommand.ValidateCompletionCommand
	ConfirmAuthorization *dispatchcommand.ConfirmAuthorizationCommand
	SubmitReview         *dispatchcommand.SubmitReviewCommand
	ReportLocation       *dispatchcommand.ReportLocationCommand
}

type Queries struct {
	GetRequest        *dispatchquery.GetRequestQuery
	ListActiveOffers  *dispatchquery.ListActiveOffersQuery
	GetReview         *dispatchquery.GetReviewQuery
	GetPosition       *dispatchquery.GetPositionQuery
	ListActivity      *dispatchquery.ListActivityQuery
	ListPaymentEvents *dispatchquery.ListPaymentEventsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader     dispatchquery.ActivityReader
	paymentEventReader dispatchquery.PaymentEventReader
}

func WithActivityReader(reader dispatchquery.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func WithPaymentEventReader(reader dispatchquery.PaymentEventReader) FacadeOption {
	return func(options *facadeOptions) {
		options.paymentEventReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("dispatch: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	activityReader := cfg.activityReader
	if activityReader == nil {
		if reader, ok := service.(dispatchquery.ActivityReader); ok {
			activityReader = reader
		}
	}
	paymentEventReader := cfg.paymentEventReader
	if paymentEventReader == nil {
		if reader, ok := service.(dispatchquery.PaymentEventReader); ok {
			paymentEventReader = reader
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateRequest:        dispatchcommand.NewCreateRequestCommand(service),
		CancelRequest:        dispatchcommand.NewCancelRequestCommand(service),
		SubmitOffer:          dispatchcommand.NewSubmitOfferCommand(service),
		AcceptOffer:          dispatchcommand.NewAcceptOfferCommand(service),
		WithdrawOffer:        dispatchcommand.NewWithdrawOfferCommand(service),
		ExpireOffer:          dispatchcommand.NewExpireOfferCommand(service),
		Transition:           dispatchcommand.NewTransitionCommand(service),
		ValidateArrival:      dispatchcommand.NewValidateArrivalCommand(service),
		ValidateCompletion:   dispatchcommand.NewValidateCompletionCommand(service),
		ConfirmAuthorization: dispatchcommand.NewConfirmAuthorizationCommand(service),
		SubmitReview:         dispatchcommand.NewSubmitReviewCommand(service),
		ReportLocation:       dispatchcommand.NewReportLocationCommand(service),
	}
	facade.queries = Queries{
		GetRequest:        dispatchquery.NewGetRequestQuery(service),
		ListActiveOffers:  dispatchquery.NewListActiveOffersQuery(service),
		GetReview:         dispatchquery.NewGetReviewQuery(service),
		GetPosition:       dispatchquery.NewGetPositionQuery(service),
		ListActivity:      dispatchquery.NewListActivityQuery(activityReader),
		ListPaymentEvents: dispatchquery.NewListPaymentEventsQuery(paymentEventReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*core.Service)(nil)
