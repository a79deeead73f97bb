package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

// MutatingService is the slice of the dispatch surface the command handlers
// bind to; *core.Service is the canonical implementation.
type MutatingService interface {
	CreateRequest(ctx context.Context, in core.CreateRequestInput) (core.ServiceRequest, error)
	Cancel(ctx context.Context, requestID string) error
	SubmitOffer(ctx context.Context, in core.SubmitOfferInput) (core.ServiceOffer, error)
	AcceptOffer(ctx context.Context, offerID string, requestID string) (core.ServiceRequest, error)
	WithdrawOffer(ctx context.Context, offerID string) error
	ExpireOffer(ctx context.Context, offerID string) error
	Transition(ctx context.Context, requestID string, target core.RequestStatus) (core.ServiceRequest, error)
	ValidateArrival(ctx context.Context, requestID string, code string) (core.ServiceRequest, error)
	ValidateCompletion(ctx context.Context, requestID string, code string) (core.ServiceRequest, error)
	ConfirmAuthorization(ctx context.Context, in core.AuthorizationConfirmation) error
	SubmitReview(ctx context.Context, in core.CreateReviewInput) (core.Review, error)
	ReportLocation(ctx context.Context, requestID string, position core.GeoPoint) (bool, error)
}

type CreateRequestCommand struct {
	service MutatingService
}

func NewCreateRequestCommand(service MutatingService) *CreateRequestCommand {
	return &CreateRequestCommand{service: service}
}

func (c *CreateRequestCommand) Execute(ctx context.Context, msg CreateRequestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.CreateRequest(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelRequestCommand struct {
	service MutatingService
}

func NewCancelRequestCommand(service MutatingService) *CancelRequestCommand {
	return &CancelRequestCommand{service: service}
}

func (c *CancelRequestCommand) Execute(ctx context.Context, msg CancelRequestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.Cancel(ctx, msg.RequestID)
}

type SubmitOfferCommand struct {
	service MutatingService
}

func NewSubmitOfferCommand(service MutatingService) *SubmitOfferCommand {
	return &SubmitOfferCommand{service: service}
}

func (c *SubmitOfferCommand) Execute(ctx context.Context, msg SubmitOfferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.SubmitOffer(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AcceptOfferCommand struct {
	service MutatingService
}

func NewAcceptOfferCommand(service MutatingService) *AcceptOfferCommand {
	return &AcceptOfferCommand{service: service}
}

func (c *AcceptOfferCommand) Execute(ctx context.Context, msg AcceptOfferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.AcceptOffer(ctx, msg.OfferID, msg.RequestID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type WithdrawOfferCommand struct {
	service MutatingService
}

func NewWithdrawOfferCommand(service MutatingService) *WithdrawOfferCommand {
	return &WithdrawOfferCommand{service: service}
}

func (c *WithdrawOfferCommand) Execute(ctx context.Context, msg WithdrawOfferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.WithdrawOffer(ctx, msg.OfferID)
}

type ExpireOfferCommand struct {
	service MutatingService
}

func NewExpireOfferCommand(service MutatingService) *ExpireOfferCommand {
	return &ExpireOfferCommand{service: service}
}

func (c *ExpireOfferCommand) Execute(ctx context.Context, msg ExpireOfferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.ExpireOffer(ctx, msg.OfferID)
}

type TransitionCommand struct {
	service MutatingService
}

func NewTransitionCommand(service MutatingService) *TransitionCommand {
	return &TransitionCommand{service: service}
}

func (c *TransitionCommand) Execute(ctx context.Context, msg TransitionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.Transition(ctx, msg.RequestID, msg.Target)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ValidateArrivalCommand struct {
	service MutatingService
}

func NewValidateArrivalCommand(service MutatingService) *ValidateArrivalCommand {
	return &ValidateArrivalCommand{service: service}
}

func (c *ValidateArrivalCommand) Execute(ctx context.Context, msg ValidateArrivalMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.ValidateArrival(ctx, msg.RequestID, msg.Code)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ValidateCompletionCommand struct {
	service MutatingService
}

func NewValidateCompletionCommand(service MutatingService) *ValidateCompletionCommand {
	return &ValidateCompletionCommand{service: service}
}

func (c *ValidateCompletionCommand) Execute(ctx context.Context, msg ValidateCompletionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.ValidateCompletion(ctx, msg.RequestID, msg.Code)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConfirmAuthorizationCommand struct {
	service MutatingService
}

func NewConfirmAuthorizationCommand(service MutatingService) *ConfirmAuthorizationCommand {
	return &ConfirmAuthorizationCommand{service: service}
}

func (c *ConfirmAuthorizationCommand) Execute(ctx context.Context, msg ConfirmAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	return c.service.ConfirmAuthorization(ctx, msg.Confirmation)
}

type SubmitReviewCommand struct {
	service MutatingService
}

func NewSubmitReviewCommand(service MutatingService) *SubmitReviewCommand {
	return &SubmitReviewCommand{service: service}
}

func (c *SubmitReviewCommand) Execute(ctx context.Context, msg SubmitReviewMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	out, err := c.service.SubmitReview(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReportLocationCommand struct {
	service MutatingService
}

func NewReportLocationCommand(service MutatingService) *ReportLocationCommand {
	return &ReportLocationCommand{service: service}
}

func (c *ReportLocationCommand) Execute(ctx context.Context, msg ReportLocationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: dispatch service is required")
	}
	admitted, err := c.service.ReportLocation(ctx, msg.RequestID, msg.Position)
	if err != nil {
		return err
	}
	storeResult(ctx, admitted)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
