package provider

import (
	"context"
	"time"

	"github.com/goliatone/go-mailsync/account"
)

// AuthChallenge is returned when an auth flow starts. OAuth providers fill
// URL and State; password providers ask for a password.
type AuthChallenge struct {
	Provider         string `json:"provider"`
	URL              string `json:"url,omitempty"`
	State            string `json:"state,omitempty"`
	PasswordRequired bool   `json:"password_required,omitempty"`
}

// AuthInput carries what the client sent back to finish an auth flow.
type AuthInput struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	State    string `json:"state"`
	Password string `json:"password"`
	IMAPHost string `json:"imap_server_host"`
	IMAPPort int    `json:"imap_server_port"`
	SMTPHost string `json:"smtp_server_host"`
	SMTPPort int    `json:"smtp_server_port"`
}

// AuthResponse is the provider's answer to a completed auth flow.
type AuthResponse struct {
	Email        string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	Password     string
	IMAPEndpoint string
	SMTPEndpoint string
}

// Handler provisions and verifies accounts for one provider.
type Handler interface {
	Name() string
	InteractiveAuth(ctx context.Context, email string) (AuthChallenge, error)
	CompleteAuth(ctx context.Context, input AuthInput) (AuthResponse, error)
	CreateAccount(ctx context.Context, email string, resp AuthResponse) (*account.Account, error)
	VerifyAccount(ctx context.Context, acct *account.Account) error
}
