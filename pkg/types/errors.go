package types

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Text codes attached to client facing errors.
const (
	TextCodeInvalidCursor     = "INVALID_CURSOR"
	TextCodeInvalidLimit      = "INVALID_LIMIT"
	TextCodeInvalidPublicID   = "INVALID_PUBLIC_ID"
	TextCodeInvalidObjectType = "INVALID_OBJECT_TYPE"
	TextCodeInvalidTimestamp  = "INVALID_TIMESTAMP"
	TextCodeInvalidPayload    = "INVALID_PAYLOAD"
	TextCodeVersionConflict   = "VERSION_CONFLICT"
	TextCodeNotFound          = "NOT_FOUND"
	TextCodeActionBlocked     = "ACTION_BLOCKED"
	TextCodeTransient         = "TRANSIENT_FAILURE"
	TextCodeFeatureDisabled   = "FEATURE_DISABLED"
)

var (
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("go-mailsync: service not ready")
	// ErrMissingTransactionLog occurs when no transaction log was supplied.
	ErrMissingTransactionLog = errors.New("go-mailsync: missing transaction log")
	// ErrMissingStore occurs when no object store was supplied.
	ErrMissingStore = errors.New("go-mailsync: missing object store")
	// ErrMissingScheduler occurs when no action scheduler was supplied.
	ErrMissingScheduler = errors.New("go-mailsync: missing action scheduler")
	// ErrMissingActionRepository occurs when no action repository was supplied.
	ErrMissingActionRepository = errors.New("go-mailsync: missing action repository")
	// ErrMissingAccountRepository occurs when no account repository was supplied.
	ErrMissingAccountRepository = errors.New("go-mailsync: missing account repository")
	// ErrMissingProviderRegistry occurs when no provider registry was supplied.
	ErrMissingProviderRegistry = errors.New("go-mailsync: missing provider registry")
	// ErrNamespaceRequired indicates the namespace identifier was omitted.
	ErrNamespaceRequired = errors.New("go-mailsync: namespace id required")
	// ErrRecordIDRequired indicates an object has no identity yet.
	ErrRecordIDRequired = errors.New("go-mailsync: record id required")
)

// NewInputError reports a client caused failure (malformed cursor, limit,
// identifiers or enum values).
func NewInputError(textCode, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(textCode)
}

// NewConflictError reports an optimistic version mismatch.
func NewConflictError(message string, meta ...map[string]any) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeVersionConflict).
		WithMetadata(meta...)
}

// NewNotFoundError reports an identifier that does not resolve within the
// caller's namespace.
func NewNotFoundError(message string, meta ...map[string]any) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(meta...)
}

// NewFeatureDisabledError reports an operation switched off by a feature
// flag.
func NewFeatureDisabledError(key string) *goerrors.Error {
	return goerrors.New("feature disabled: "+key, goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeFeatureDisabled).
		WithMetadata(map[string]any{"feature": key})
}

// NewTransientError wraps a collaborator failure (OAuth, transit encryption,
// remote syncback) so callers can retry.
func NewTransientError(err error, message string) *goerrors.RetryableError {
	if err == nil {
		err = errors.New(message)
	}
	return goerrors.WrapRetryable(err, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(TextCodeTransient)
}

// ActionError blocks scheduling against an account that cannot run actions.
type ActionError struct {
	Code        int
	NamespaceID uuid.UUID
}

// NewActionError builds an ActionError for the namespace.
func NewActionError(code int, namespaceID uuid.UUID) *ActionError {
	return &ActionError{Code: code, NamespaceID: namespaceID}
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("go-mailsync: action error %d for namespace %s", e.Code, e.NamespaceID)
}

// StatusCode exposes the declared HTTP status.
func (e *ActionError) StatusCode() int {
	if e == nil || e.Code == 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// IsActionError reports whether err carries an ActionError.
func IsActionError(err error) bool {
	var target *ActionError
	return errors.As(err, &target)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return goerrors.IsRetryableError(err)
}

// HTTPStatus maps an error onto a status code. Errors that declare their own
// status win; everything else is a 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.StatusCode()
	}
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) && retryable.BaseError != nil && retryable.BaseError.Code != 0 {
		return retryable.BaseError.Code
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) && coded.StatusCode() != 0 {
		return coded.StatusCode()
	}
	return http.StatusInternalServerError
}

// ToRichError converts any error into a go-errors value suitable for API
// responses.
func ToRichError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return goerrors.Wrap(err, goerrors.CategoryAuthz, "action blocked for namespace").
			WithCode(actionErr.StatusCode()).
			WithTextCode(TextCodeActionBlocked).
			WithMetadata(map[string]any{"namespace_id": actionErr.NamespaceID.String()})
	}
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) && retryable.BaseError != nil {
		return retryable.BaseError
	}
	return goerrors.MapToError(err, goerrors.DefaultErrorMappers())
}
