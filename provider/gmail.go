package provider

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig configures the Gmail handler. APIEndpoint overrides the Gmail
// API base URL.
type GmailConfig struct {
	OAuth       OAuthConfig
	APIEndpoint string
}

// GmailHandler provisions Gmail accounts over OAuth and identifies them
// through the Gmail profile endpoint.
type GmailHandler struct {
	*oauthHandler
	apiEndpoint string
}

var _ Handler = (*GmailHandler)(nil)

// NewGmailHandler builds the Gmail handler.
func NewGmailHandler(cfg GmailConfig, deps Deps) *GmailHandler {
	h := &GmailHandler{apiEndpoint: cfg.APIEndpoint}
	h.oauthHandler = newOAuthHandler(Gmail, cfg.OAuth, google.Endpoint,
		[]string{gmail.MailGoogleComScope, "email"}, deps, h.profileEmail)
	return h
}

// Service builds a Gmail API client on top of an authenticated HTTP client.
func (h *GmailHandler) Service(ctx context.Context, client *http.Client) (*gmail.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if h.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(h.apiEndpoint))
	}
	return gmail.NewService(ctx, opts...)
}

func (h *GmailHandler) profileEmail(ctx context.Context, client *http.Client) (string, error) {
	svc, err := h.Service(ctx, client)
	if err != nil {
		return "", err
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}
