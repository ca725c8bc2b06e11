package callable

import (
	"net/http"

	"github.com/goliatone/go-devices/core"
	goerrors "github.com/goliatone/go-errors"
)

func malformedRequestError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryBadInput, "The request body is not a valid callable payload.").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorInvalidArgument)
}

func unknownFunctionError(name string) error {
	return goerrors.New("Unknown function "+name+".", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.ServiceErrorNotFound).
		WithMetadata(map[string]any{"function": name})
}

func invalidTokenError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryAuth, "The identity token is invalid.").
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorUnauthenticated)
}

func missingIdentityError() error {
	return goerrors.New("You must sign in.", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.ServiceErrorUnauthenticated)
}
