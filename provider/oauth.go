package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/pkg/types"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// StateRoute is the securelink route used to sign OAuth state values.
const StateRoute = "oauth_state"

// OAuthConfig holds the client registration for an OAuth provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Sealer     Sealer
	States     types.SecureLinkManager
	HTTPClient *http.Client
	Logger     types.Logger
}

func (d Deps) logger() types.Logger {
	if d.Logger == nil {
		return types.NopLogger{}
	}
	return d.Logger
}

type identifyFunc func(ctx context.Context, client *http.Client) (string, error)

type oauthHandler struct {
	name     string
	config   *oauth2.Config
	deps     Deps
	identify identifyFunc
}

func newOAuthHandler(name string, cfg OAuthConfig, defaults oauth2.Endpoint, scopes []string, deps Deps, identify identifyFunc) *oauthHandler {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = defaults
	}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes
	}
	return &oauthHandler{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		deps:     deps,
		identify: identify,
	}
}

func (h *oauthHandler) Name() string {
	return h.name
}

func (h *oauthHandler) InteractiveAuth(_ context.Context, email string) (AuthChallenge, error) {
	if h.deps.States == nil {
		return AuthChallenge{}, errors.New("provider: state signer not configured")
	}
	state, err := h.deps.States.Generate(StateRoute, types.SecureLinkPayload{
		"provider": h.name,
		"email":    strings.ToLower(strings.TrimSpace(email)),
	})
	if err != nil {
		return AuthChallenge{}, err
	}
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	if email != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", email))
	}
	return AuthChallenge{
		Provider: h.name,
		URL:      h.config.AuthCodeURL(state, opts...),
		State:    state,
	}, nil
}

func (h *oauthHandler) CompleteAuth(ctx context.Context, input AuthInput) (AuthResponse, error) {
	if err := h.checkState(input.State); err != nil {
		return AuthResponse{}, err
	}
	if strings.TrimSpace(input.Code) == "" {
		return AuthResponse{}, types.NewInputError(types.TextCodeInvalidPayload, "authorization code required")
	}
	ctx = h.clientContext(ctx)
	tok, err := h.config.Exchange(ctx, input.Code)
	if err != nil {
		return AuthResponse{}, classifyOAuthError(err, "token exchange failed")
	}
	if tok.RefreshToken == "" {
		return AuthResponse{}, authFailed(ErrMissingCredentials, "provider returned no refresh token")
	}
	email, err := h.identify(ctx, h.config.Client(ctx, tok))
	if err != nil {
		return AuthResponse{}, classifyOAuthError(err, "user info lookup failed")
	}
	scope, _ := tok.Extra("scope").(string)
	h.deps.logger().Info("oauth flow completed", "provider", h.name, "email", email)
	return AuthResponse{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        scope,
	}, nil
}

func (h *oauthHandler) CreateAccount(ctx context.Context, email string, resp AuthResponse) (*account.Account, error) {
	address := resp.Email
	if address == "" {
		address = email
	}
	if strings.TrimSpace(address) == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "email address required")
	}
	info, _ := Lookup(h.name)
	acct := &account.Account{
		EmailAddress: strings.ToLower(strings.TrimSpace(address)),
		Provider:     h.name,
		SyncEnabled:  true,
		IMAPEndpoint: info.IMAPEndpoint,
		SMTPEndpoint: info.SMTPEndpoint,
	}
	if err := h.deps.Sealer.Apply(ctx, acct, Credentials{RefreshToken: resp.RefreshToken, Scope: resp.Scope}); err != nil {
		return nil, err
	}
	return acct, nil
}

// VerifyAccount refreshes an access token from the stored refresh token and
// probes the provider API with it.
func (h *oauthHandler) VerifyAccount(ctx context.Context, acct *account.Account) error {
	creds, err := h.deps.Sealer.Open(ctx, acct)
	if err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		return ErrMissingCredentials
	}
	ctx = h.clientContext(ctx)
	client := oauth2.NewClient(ctx, h.config.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}))
	if _, err := h.identify(ctx, client); err != nil {
		return classifyOAuthError(err, "account verification failed")
	}
	return nil
}

// TokenSource returns a refreshing token source for the account.
func (h *oauthHandler) TokenSource(ctx context.Context, acct *account.Account) (oauth2.TokenSource, error) {
	creds, err := h.deps.Sealer.Open(ctx, acct)
	if err != nil {
		return nil, err
	}
	if creds.RefreshToken == "" {
		return nil, ErrMissingCredentials
	}
	ctx = h.clientContext(ctx)
	return h.config.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), nil
}

func (h *oauthHandler) checkState(state string) error {
	if h.deps.States == nil {
		return errors.New("provider: state signer not configured")
	}
	if strings.TrimSpace(state) == "" {
		return authFailed(ErrInvalidState, "oauth state required")
	}
	payload, err := h.deps.States.Validate(state)
	if err != nil {
		return authFailed(ErrInvalidState, "oauth state rejected")
	}
	if name, _ := payload["provider"].(string); name != h.name {
		return authFailed(ErrInvalidState, "oauth state issued for another provider")
	}
	return nil
}

func (h *oauthHandler) clientContext(ctx context.Context) context.Context {
	if h.deps.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, h.deps.HTTPClient)
}

// classifyOAuthError separates rejected credentials from transport
// failures. Provider 4xx answers mean the grant is unusable.
func classifyOAuthError(err error, message string) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.Response != nil && retrieve.Response.StatusCode >= http.StatusInternalServerError {
			return types.NewTransientError(err, message)
		}
		return authFailed(errors.Join(ErrInvalidCredentials, err), message)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return authFailed(errors.Join(ErrInvalidCredentials, err), message)
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.code < http.StatusInternalServerError {
		return authFailed(errors.Join(ErrInvalidCredentials, err), message)
	}
	return types.NewTransientError(err, message)
}

type httpStatusError struct {
	code int
	url  string
}

func (e *httpStatusError) Error() string {
	return "provider: " + e.url + " returned " + http.StatusText(e.code)
}
