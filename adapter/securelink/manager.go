// Package securelink signs OAuth state tokens with go-urlkit securelink.
package securelink

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	urlkit "github.com/goliatone/go-urlkit/securelink"
)

var errNotConfigured = errors.New("securelink manager not configured")

// Manager adapts go-urlkit securelink managers to bare tokens. urlkit
// renders full links; OAuth state only needs the token part.
type Manager struct {
	inner    urlkit.Manager
	queryKey string
	asQuery  bool
}

var _ types.SecureLinkManager = (*Manager)(nil)

// NewManager builds a securelink adapter using the configurator interface.
func NewManager(cfg types.SecureLinkConfigurator) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("securelink configurator required")
	}
	inner, err := urlkit.NewManagerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{inner: inner, queryKey: cfg.GetQueryKey(), asQuery: cfg.GetAsQuery()}, nil
}

// Generate signs the payloads for route and returns the token.
func (m *Manager) Generate(route string, payloads ...types.SecureLinkPayload) (string, error) {
	if m == nil || m.inner == nil {
		return "", errNotConfigured
	}
	link, err := m.inner.Generate(route, toPayloads(payloads)...)
	if err != nil {
		return "", err
	}
	return m.extractToken(link)
}

// Validate checks a token and returns the decoded payload.
func (m *Manager) Validate(token string) (map[string]any, error) {
	if m == nil || m.inner == nil {
		return nil, errNotConfigured
	}
	return m.inner.Validate(token)
}

// GetExpiration exposes the manager's expiration duration.
func (m *Manager) GetExpiration() time.Duration {
	if m == nil || m.inner == nil {
		return 0
	}
	return m.inner.GetExpiration()
}

func (m *Manager) extractToken(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if m.asQuery {
		key := m.queryKey
		if key == "" {
			key = "token"
		}
		if token := parsed.Query().Get(key); token != "" {
			return token, nil
		}
		return "", errors.New("securelink: token missing from link")
	}
	token := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if token == "" || token == "." || token == "/" {
		return "", errors.New("securelink: token missing from link")
	}
	return token, nil
}

func toPayloads(payloads []types.SecureLinkPayload) []urlkit.Payload {
	if len(payloads) == 0 {
		return nil
	}
	out := make([]urlkit.Payload, 0, len(payloads))
	for _, payload := range payloads {
		out = append(out, urlkit.Payload(payload))
	}
	return out
}
