package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DispatchErrorBadInput       = "DISPATCH_BAD_INPUT"
	DispatchErrorNotFound       = "DISPATCH_NOT_FOUND"
	DispatchErrorInvalidState   = "DISPATCH_INVALID_STATE"
	DispatchErrorTransition     = "DISPATCH_INVALID_TRANSITION"
	DispatchErrorOfferGone      = "DISPATCH_OFFER_NOT_AVAILABLE"
	DispatchErrorOfferLocked    = "DISPATCH_OFFER_LOCKED"
	DispatchErrorInvalidCode    = "DISPATCH_INVALID_CODE"
	DispatchErrorPaymentGateway = "DISPATCH_PAYMENT_GATEWAY_FAILED"
	DispatchErrorPersistence    = "DISPATCH_PERSISTENCE_FAILED"
	DispatchErrorInternal       = "DISPATCH_INTERNAL_ERROR"
)

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDispatchErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return newDispatchError(err.Error(), goerrors.CategoryNotFound, DispatchErrorNotFound)
	case errors.Is(err, ErrInvalidTransition):
		return newDispatchError(err.Error(), goerrors.CategoryConflict, DispatchErrorTransition)
	case errors.Is(err, ErrInvalidState):
		return newDispatchError(err.Error(), goerrors.CategoryConflict, DispatchErrorInvalidState)
	case errors.Is(err, ErrOfferNotAvailable):
		return newDispatchError(err.Error(), goerrors.CategoryConflict, DispatchErrorOfferGone)
	case errors.Is(err, ErrCannotWithdrawAcceptedOffer):
		return newDispatchError(err.Error(), goerrors.CategoryConflict, DispatchErrorOfferLocked)
	case errors.Is(err, ErrInvalidCode):
		return newDispatchError(err.Error(), goerrors.CategoryBadInput, DispatchErrorInvalidCode)
	case errors.Is(err, ErrPaymentGateway):
		return newDispatchError(err.Error(), goerrors.CategoryExternal, DispatchErrorPaymentGateway)
	case errors.Is(err, ErrPersistence):
		return newDispatchError(err.Error(), goerrors.CategoryInternal, DispatchErrorPersistence)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newDispatchError(err.Error(), goerrors.CategoryNotFound, DispatchErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newDispatchError(err.Error(), goerrors.CategoryBadInput, DispatchErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDispatchErrorEnvelope(mapped)
}

func newDispatchError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDispatchErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureDispatchErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = dispatchHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDispatchTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDispatchTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return DispatchErrorBadInput
	case goerrors.CategoryNotFound:
		return DispatchErrorNotFound
	case goerrors.CategoryConflict:
		return DispatchErrorInvalidState
	case goerrors.CategoryExternal:
		return DispatchErrorPaymentGateway
	default:
		return DispatchErrorInternal
	}
}

func dispatchHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
