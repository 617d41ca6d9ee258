package provider

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeProviderNotSupported = "PROVIDER_NOT_SUPPORTED"
	TextCodeAuthFailed           = "AUTH_FAILED"
)

var (
	// ErrProviderNotSupported is returned for provider names without a handler.
	ErrProviderNotSupported = errors.New("go-mailsync: provider not supported")
	// ErrInvalidCredentials reports credentials the provider rejected.
	ErrInvalidCredentials = errors.New("go-mailsync: invalid credentials")
	// ErrMissingCredentials reports an account without stored credentials.
	ErrMissingCredentials = errors.New("go-mailsync: missing credentials")
	// ErrInvalidState reports an OAuth state that failed validation.
	ErrInvalidState = errors.New("go-mailsync: invalid oauth state")
)

func notSupported(name string) *goerrors.Error {
	return goerrors.Wrap(ErrProviderNotSupported, goerrors.CategoryValidation, "provider not supported: "+name).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeProviderNotSupported).
		WithMetadata(map[string]any{"provider": name})
}

func authFailed(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeAuthFailed)
}
