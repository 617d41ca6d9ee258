package types

import "time"

// SecureLinkPayload carries data embedded in a signed token.
type SecureLinkPayload map[string]any

// SecureLinkManager signs and validates short lived tokens, such as OAuth
// state values.
type SecureLinkManager interface {
	Generate(route string, payloads ...SecureLinkPayload) (string, error)
	Validate(token string) (map[string]any, error)
}

// SecureLinkConfigurator mirrors the go-urlkit securelink configurator.
type SecureLinkConfigurator interface {
	GetSigningKey() string
	GetExpiration() time.Duration
	GetBaseURL() string
	GetQueryKey() string
	GetRoutes() map[string]string
	GetAsQuery() bool
}
