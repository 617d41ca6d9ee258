package query

import (
	"context"
	"errors"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
)

// Auth types reported by provider lookups.
const (
	AuthTypeOAuth    = "oauth"
	AuthTypePassword = "password"
)

var errEmailRequired = errors.New("go-mailsync: email address required")

// ProviderResolver returns the handler for a provider name.
type ProviderResolver interface {
	Resolve(name string) (provider.Handler, error)
}

// ProviderLookupInput names the address to classify.
type ProviderLookupInput struct {
	Email string
}

// Type implements gocommand.Message.
func (ProviderLookupInput) Type() string {
	return "query.provider.lookup"
}

// Validate implements gocommand.Message.
func (input ProviderLookupInput) Validate() error {
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return types.NewInputError(types.TextCodeInvalidPayload, errEmailRequired.Error())
	}
	return nil
}

// ProviderLookupResult tells a client how to authenticate an address.
type ProviderLookupResult struct {
	Email        string `json:"email"`
	Provider     string `json:"provider"`
	AuthType     string `json:"auth_type,omitempty"`
	Supported    bool   `json:"supported"`
	IMAPEndpoint string `json:"imap_endpoint,omitempty"`
	SMTPEndpoint string `json:"smtp_endpoint,omitempty"`
}

// ProviderLookupQuery guesses the provider from the e-mail domain and
// reports whether a handler is registered for it.
type ProviderLookupQuery struct {
	providers ProviderResolver
}

// NewProviderLookupQuery builds the query.
func NewProviderLookupQuery(providers ProviderResolver) *ProviderLookupQuery {
	return &ProviderLookupQuery{providers: providers}
}

var _ gocommand.Querier[ProviderLookupInput, ProviderLookupResult] = (*ProviderLookupQuery)(nil)

// Query classifies the address. Unknown domains are reported as unsupported
// rather than failing, so clients can fall back to a custom setup.
func (q *ProviderLookupQuery) Query(_ context.Context, input ProviderLookupInput) (ProviderLookupResult, error) {
	if err := input.Validate(); err != nil {
		return ProviderLookupResult{}, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := provider.ProviderFromAddress(email)
	result := ProviderLookupResult{Email: email, Provider: name}

	info, ok := provider.Lookup(name)
	if !ok {
		return result, nil
	}
	result.IMAPEndpoint = info.IMAPEndpoint
	result.SMTPEndpoint = info.SMTPEndpoint
	result.AuthType = AuthTypeOAuth
	if info.Type == provider.Generic {
		result.AuthType = AuthTypePassword
	}
	if q.providers != nil {
		if _, err := q.providers.Resolve(name); err == nil {
			result.Supported = true
		}
	}
	return result, nil
}

// AuthChallengeInput starts an auth flow. Provider defaults to the one
// guessed from Email.
type AuthChallengeInput struct {
	Provider string
	Email    string
}

// Type implements gocommand.Message.
func (AuthChallengeInput) Type() string {
	return "query.provider.auth_challenge"
}

// Validate implements gocommand.Message.
func (input AuthChallengeInput) Validate() error {
	if strings.TrimSpace(input.Provider) == "" && strings.TrimSpace(input.Email) == "" {
		return types.NewInputError(types.TextCodeInvalidPayload, "provider or email required")
	}
	return nil
}

// AuthChallengeQuery asks the provider handler for the first step of its
// auth flow (an authorization URL with signed state, or a password prompt).
type AuthChallengeQuery struct {
	providers ProviderResolver
}

// NewAuthChallengeQuery builds the query.
func NewAuthChallengeQuery(providers ProviderResolver) *AuthChallengeQuery {
	return &AuthChallengeQuery{providers: providers}
}

var _ gocommand.Querier[AuthChallengeInput, provider.AuthChallenge] = (*AuthChallengeQuery)(nil)

// Query returns the challenge.
func (q *AuthChallengeQuery) Query(ctx context.Context, input AuthChallengeInput) (provider.AuthChallenge, error) {
	if q.providers == nil {
		return provider.AuthChallenge{}, types.ErrMissingProviderRegistry
	}
	if err := input.Validate(); err != nil {
		return provider.AuthChallenge{}, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.ToLower(strings.TrimSpace(input.Provider))
	if name == "" {
		name = provider.ProviderFromAddress(email)
	}
	handler, err := q.providers.Resolve(name)
	if err != nil {
		return provider.AuthChallenge{}, err
	}
	return handler.InteractiveAuth(ctx, email)
}
