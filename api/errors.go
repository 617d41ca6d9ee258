package api

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-mailsync/pkg/types"
)

// errorPayload maps err onto its status and go-errors response body. Errors
// without a declared status surface as a generic 500 so internals do not leak.
func errorPayload(err error) (int, goerrors.ErrorResponse) {
	status := types.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		generic := goerrors.New(http.StatusText(status), goerrors.CategoryInternal).
			WithCode(status).
			WithTextCode("INTERNAL_ERROR")
		return status, generic.ToErrorResponse(false, nil)
	}

	rich := types.ToRichError(err)
	if rich == nil {
		rich = goerrors.New(http.StatusText(status), goerrors.CategoryInternal)
	}
	// Copy so shared sentinel errors are not mutated by the response.
	rendered := *rich
	rendered.Code = status
	return status, rendered.ToErrorResponse(false, nil)
}
