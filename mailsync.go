package mailsync

import "github.com/goliatone/go-mailsync/service"

// Re-export the service package entry point so consumers can do
// `mailsync.New(...)` without importing internal wiring helpers.
type (
	Service           = service.Service
	Config            = service.Config
	Commands          = service.Commands
	Queries           = service.Queries
	ActionRepository  = service.ActionRepository
	AccountRepository = service.AccountRepository
)

// New constructs the go-mailsync runtime using the provided configuration.
func New(cfg Config) *Service {
	return service.New(cfg)
}
