package command

import (
	"fmt"
	"strings"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

const (
	TypeCreateRequest        = "dispatch.command.request.create"
	TypeCancelRequest        = "dispatch.command.request.cancel"
	TypeSubmitOffer          = "dispatch.command.offer.submit"
	TypeAcceptOffer          = "dispatch.command.offer.accept"
	TypeWithdrawOffer        = "dispatch.command.offer.withdraw"
	TypeExpireOffer          = "dispatch.command.offer.expire"
	TypeTransition           = "dispatch.command.request.transition"
	TypeValidateArrival      = "dispatch.command.arrival.validate"
	TypeValidateCompletion   = "dispatch.command.completion.validate"
	TypeConfirmAuthorization = "dispatch.command.payment.confirm_authorization"
	TypeSubmitReview         = "dispatch.command.review.submit"
	TypeReportLocation       = "dispatch.command.location.report"
)

type CreateRequestMessage struct {
	Input core.CreateRequestInput
}

func (CreateRequestMessage) Type() string { return TypeCreateRequest }

func (m CreateRequestMessage) Validate() error {
	if strings.TrimSpace(m.Input.ClientID) == "" {
		return fmt.Errorf("command: client id is required")
	}
	if strings.TrimSpace(m.Input.ServiceType) == "" {
		return fmt.Errorf("command: service type is required")
	}
	if m.Input.Booked && strings.TrimSpace(m.Input.MechanicID) == "" {
		return fmt.Errorf("command: booked request requires a mechanic id")
	}
	return nil
}

type CancelRequestMessage struct {
	RequestID string
}

func (CancelRequestMessage) Type() string { return TypeCancelRequest }

func (m CancelRequestMessage) Validate() error {
	return requireRequestID(m.RequestID)
}

type SubmitOfferMessage struct {
	Input core.SubmitOfferInput
}

func (SubmitOfferMessage) Type() string { return TypeSubmitOffer }

func (m SubmitOfferMessage) Validate() error {
	if err := requireRequestID(m.Input.ServiceRequestID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.MechanicID) == "" {
		return fmt.Errorf("command: mechanic id is required")
	}
	if m.Input.Price <= 0 {
		return fmt.Errorf("command: offer price must be positive")
	}
	return nil
}

type AcceptOfferMessage struct {
	OfferID   string
	RequestID string
}

func (AcceptOfferMessage) Type() string { return TypeAcceptOffer }

func (m AcceptOfferMessage) Validate() error {
	if strings.TrimSpace(m.OfferID) == "" {
		return fmt.Errorf("command: offer id is required")
	}
	return requireRequestID(m.RequestID)
}

type WithdrawOfferMessage struct {
	OfferID string
}

func (WithdrawOfferMessage) Type() string { return TypeWithdrawOffer }

func (m WithdrawOfferMessage) Validate() error {
	if strings.TrimSpace(m.OfferID) == "" {
		return fmt.Errorf("command: offer id is required")
	}
	return nil
}

type ExpireOfferMessage struct {
	OfferID string
}

func (ExpireOfferMessage) Type() string { return TypeExpireOffer }

func (m ExpireOfferMessage) Validate() error {
	if strings.TrimSpace(m.OfferID) == "" {
		return fmt.Errorf("command: offer id is required")
	}
	return nil
}

type TransitionMessage struct {
	RequestID string
	Target    core.RequestStatus
}

func (TransitionMessage) Type() string { return TypeTransition }

func (m TransitionMessage) Validate() error {
	if err := requireRequestID(m.RequestID); err != nil {
		return err
	}
	if !m.Target.IsKnown() {
		return fmt.Errorf("command: unknown target status %q", m.Target)
	}
	return nil
}

type ValidateArrivalMessage struct {
	RequestID string
	Code      string
}

func (ValidateArrivalMessage) Type() string { return TypeValidateArrival }

func (m ValidateArrivalMessage) Validate() error {
	if err := requireRequestID(m.RequestID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("command: verification code is required")
	}
	return nil
}

type ValidateCompletionMessage struct {
	RequestID string
	Code      string
}

func (ValidateCompletionMessage) Type() string { return TypeValidateCompletion }

func (m ValidateCompletionMessage) Validate() error {
	if err := requireRequestID(m.RequestID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("command: verification code is required")
	}
	return nil
}

type ConfirmAuthorizationMessage struct {
	Confirmation core.AuthorizationConfirmation
}

func (ConfirmAuthorizationMessage) Type() string { return TypeConfirmAuthorization }

func (m ConfirmAuthorizationMessage) Validate() error {
	if err := requireRequestID(m.Confirmation.ServiceRequestID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Confirmation.HoldID) == "" {
		return fmt.Errorf("command: payment hold id is required")
	}
	return nil
}

type SubmitReviewMessage struct {
	Input core.CreateReviewInput
}

func (SubmitReviewMessage) Type() string { return TypeSubmitReview }

func (m SubmitReviewMessage) Validate() error {
	if err := requireRequestID(m.Input.ServiceRequestID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.ClientID) == "" {
		return fmt.Errorf("command: client id is required")
	}
	if m.Input.Rating < 1 || m.Input.Rating > 5 {
		return fmt.Errorf("command: rating must be between 1 and 5")
	}
	return nil
}

type ReportLocationMessage struct {
	RequestID string
	Position  core.GeoPoint
}

func (ReportLocationMessage) Type() string { return TypeReportLocation }

func (m ReportLocationMessage) Validate() error {
	if err := requireRequestID(m.RequestID); err != nil {
		return err
	}
	if m.Position.IsZero() {
		return fmt.Errorf("command: position is required")
	}
	return nil
}

func requireRequestID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("command: service request id is required")
	}
	return nil
}
