package provider

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/pkg/types"
)

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// GenericConfig configures password based providers.
type GenericConfig struct {
	Dial        DialFunc
	DialTimeout time.Duration
}

// GenericHandler provisions password based IMAP/SMTP accounts. One handler
// serves every generic provider through ForProvider.
type GenericHandler struct {
	provider string
	deps     Deps
	dial     DialFunc
	timeout  time.Duration
}

var _ Handler = (*GenericHandler)(nil)

// NewGenericHandler builds the handler registered under Generic.
func NewGenericHandler(cfg GenericConfig, deps Deps) *GenericHandler {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dial := cfg.Dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: timeout}).DialContext
	}
	return &GenericHandler{provider: Generic, deps: deps, dial: dial, timeout: timeout}
}

// ForProvider returns a copy bound to a concrete provider name.
func (h *GenericHandler) ForProvider(name string) Handler {
	clone := *h
	clone.provider = name
	return &clone
}

func (h *GenericHandler) Name() string {
	return h.provider
}

func (h *GenericHandler) InteractiveAuth(_ context.Context, _ string) (AuthChallenge, error) {
	return AuthChallenge{Provider: h.provider, PasswordRequired: true}, nil
}

func (h *GenericHandler) CompleteAuth(_ context.Context, input AuthInput) (AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return AuthResponse{}, types.NewInputError(types.TextCodeInvalidPayload, "email address required")
	}
	if input.Password == "" {
		return AuthResponse{}, types.NewInputError(types.TextCodeInvalidPayload, "password required")
	}
	resp := AuthResponse{Email: email, Password: input.Password}
	if h.provider == Custom {
		if input.IMAPHost == "" || input.IMAPPort <= 0 || input.SMTPHost == "" || input.SMTPPort <= 0 {
			return AuthResponse{}, types.NewInputError(types.TextCodeInvalidPayload, "custom providers require imap and smtp endpoints")
		}
		resp.IMAPEndpoint = net.JoinHostPort(input.IMAPHost, strconv.Itoa(input.IMAPPort))
		resp.SMTPEndpoint = net.JoinHostPort(input.SMTPHost, strconv.Itoa(input.SMTPPort))
	}
	return resp, nil
}

func (h *GenericHandler) CreateAccount(ctx context.Context, email string, resp AuthResponse) (*account.Account, error) {
	address := resp.Email
	if address == "" {
		address = email
	}
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "email address required")
	}
	acct := &account.Account{
		EmailAddress: address,
		Provider:     h.provider,
		SyncEnabled:  true,
		IMAPEndpoint: resp.IMAPEndpoint,
		SMTPEndpoint: resp.SMTPEndpoint,
	}
	if info, ok := Lookup(h.provider); ok && h.provider != Custom {
		acct.IMAPEndpoint = info.IMAPEndpoint
		acct.SMTPEndpoint = info.SMTPEndpoint
	}
	if acct.IMAPEndpoint == "" {
		return nil, types.NewInputError(types.TextCodeInvalidPayload, "imap endpoint required")
	}
	if err := h.deps.Sealer.Apply(ctx, acct, Credentials{Password: resp.Password}); err != nil {
		return nil, err
	}
	return acct, nil
}

// VerifyAccount checks that a password is stored and the IMAP endpoint
// accepts connections. IMAP login itself belongs to the sync engine.
func (h *GenericHandler) VerifyAccount(ctx context.Context, acct *account.Account) error {
	creds, err := h.deps.Sealer.Open(ctx, acct)
	if err != nil {
		return err
	}
	if creds.Password == "" {
		return ErrMissingCredentials
	}
	dialCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	conn, err := h.dial(dialCtx, "tcp", acct.IMAPEndpoint)
	if err != nil {
		h.deps.logger().Error("imap endpoint unreachable", err, "account_id", acct.ID, "endpoint", acct.IMAPEndpoint)
		return types.NewTransientError(err, "imap endpoint unreachable")
	}
	return conn.Close()
}
