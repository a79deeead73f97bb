package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/flabbergg-dev/mech-panic-button-sub001/core"
)

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.DispatchErrorInternal)
}

func queryNotFoundError(message string) error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.DispatchErrorNotFound)
}
