package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
)

// CreateAccountInput finishes a provider auth flow and provisions the
// account. Provider defaults to the one guessed from the e-mail domain.
type CreateAccountInput struct {
	Provider string
	Email    string
	Auth     provider.AuthInput
	Verify   bool
	Result   *CreateAccountResult
}

// CreateAccountResult carries the stored account and its namespace.
type CreateAccountResult struct {
	Account   *account.Account
	Namespace *account.Namespace
}

// Type implements gocommand.Message.
func (CreateAccountInput) Type() string {
	return "command.account.create"
}

// Validate implements gocommand.Message.
func (input CreateAccountInput) Validate() error {
	if strings.TrimSpace(input.Email) == "" && strings.TrimSpace(input.Auth.Email) == "" {
		return ErrEmailRequired
	}
	return nil
}

// CreateAccountConfig wires the provisioning command.
type CreateAccountConfig struct {
	Providers ProviderResolver
	Accounts  AccountWriter
	Logger    types.Logger
}

// CreateAccountCommand exchanges the auth grant through the provider handler
// and upserts the account by e-mail address. Re-authenticating an existing
// account replaces its credentials.
type CreateAccountCommand struct {
	providers ProviderResolver
	accounts  AccountWriter
	logger    types.Logger
}

// NewCreateAccountCommand constructs the handler.
func NewCreateAccountCommand(cfg CreateAccountConfig) *CreateAccountCommand {
	return &CreateAccountCommand{
		providers: cfg.Providers,
		accounts:  cfg.Accounts,
		logger:    safeLogger(cfg.Logger),
	}
}

var _ gocommand.Commander[CreateAccountInput] = (*CreateAccountCommand)(nil)

// Execute provisions the account.
func (c *CreateAccountCommand) Execute(ctx context.Context, input CreateAccountInput) error {
	if c.providers == nil {
		return types.ErrMissingProviderRegistry
	}
	if c.accounts == nil {
		return types.ErrMissingAccountRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(input.Auth.Email))
	}
	name := strings.ToLower(strings.TrimSpace(input.Provider))
	if name == "" {
		name = provider.ProviderFromAddress(email)
	}
	handler, err := c.providers.Resolve(name)
	if err != nil {
		return err
	}

	auth := input.Auth
	if auth.Email == "" {
		auth.Email = email
	}
	resp, err := handler.CompleteAuth(ctx, auth)
	if err != nil {
		return err
	}
	acct, err := handler.CreateAccount(ctx, email, resp)
	if err != nil {
		return err
	}
	if input.Verify {
		if err := handler.VerifyAccount(ctx, acct); err != nil {
			return err
		}
	}
	stored, ns, err := c.accounts.UpsertAccount(ctx, acct)
	if err != nil {
		return err
	}

	c.logger.Info("account provisioned",
		"account_id", stored.ID,
		"namespace_id", ns.ID,
		"provider", stored.Provider,
	)
	if input.Result != nil {
		*input.Result = CreateAccountResult{Account: stored, Namespace: ns}
	}
	return nil
}
