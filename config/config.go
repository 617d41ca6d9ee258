package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-persistence-bun"
)

// ErrMissingRequired is returned by Validate when a required key is empty.
var ErrMissingRequired = errors.New("go-mailsync: missing required configuration")

// BaseConfig holds all configuration for the mailsync host.
type BaseConfig struct {
	Server      ServerConfig      `json:"server"`
	Persistence PersistenceConfig `json:"persistence"`
	Delta       DeltaConfig       `json:"delta"`
	Syncback    SyncbackConfig    `json:"syncback"`
	Vault       VaultConfig       `json:"vault"`
	OAuth       OAuthConfig       `json:"oauth"`
	Nats        NatsConfig        `json:"nats"`
	Features    FeaturesConfig    `json:"features"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `json:"port" env:"SERVER_PORT" default:"8978"`
	Host string `json:"host" env:"SERVER_HOST" default:"localhost"`
}

// PersistenceConfig implements persistence.Config interface
type PersistenceConfig struct {
	Debug          bool          `json:"debug" default:"false"`
	Driver         string        `json:"driver" default:"sqlite"`
	Server         string        `json:"server" env:"DB_SERVER" default:"file:mailsync.db?_journal_mode=WAL&cache=shared&_fk=1"`
	PingTimeout    time.Duration `json:"ping_timeout" default:"5s"`
	OtelIdentifier string        `json:"otel_identifier" default:"go-mailsync"`
	CacheAccounts  bool          `json:"cache_accounts" default:"false"`
}

func (c PersistenceConfig) GetDebug() bool                { return c.Debug }
func (c PersistenceConfig) GetDriver() string             { return c.Driver }
func (c PersistenceConfig) GetServer() string             { return c.Server }
func (c PersistenceConfig) GetPingTimeout() time.Duration { return c.PingTimeout }
func (c PersistenceConfig) GetOtelIdentifier() string     { return c.OtelIdentifier }

// DeltaConfig bounds delta reads and transaction retention.
type DeltaConfig struct {
	DefaultLimit  int           `json:"default_limit" default:"100"`
	MaxLimit      int           `json:"max_limit" default:"10000"`
	RetentionDays int           `json:"retention_days" default:"30"`
	PurgeInterval time.Duration `json:"purge_interval" default:"24h"`
}

// SyncbackConfig controls the action worker.
type SyncbackConfig struct {
	Enabled       bool          `json:"enabled" default:"true"`
	PollInterval  time.Duration `json:"poll_interval" default:"1s"`
	RetryInterval time.Duration `json:"retry_interval" default:"30s"`
	BatchSize     int           `json:"batch_size" default:"500"`
	MaxRetries    int           `json:"max_retries" default:"20"`
	Concurrency   int           `json:"concurrency" default:"8"`
}

// VaultConfig selects the transit cipher. When Vault is disabled the local
// AES keyring is used.
type VaultConfig struct {
	Enabled   bool              `json:"enabled" env:"VAULT_ENABLED"`
	Address   string            `json:"address" env:"VAULT_ADDR"`
	Token     string            `json:"token" env:"VAULT_TOKEN"`
	RoleID    string            `json:"role_id" env:"VAULT_ROLE_ID"`
	SecretID  string            `json:"secret_id" env:"VAULT_SECRET_ID"`
	Mount     string            `json:"mount" default:"transit"`
	KeyName   string            `json:"key_name" default:"accounts"`
	LocalKeys map[string]string `json:"local_keys"`
}

// OAuthProviderConfig is the client registration for one provider.
type OAuthProviderConfig struct {
	Enabled      bool     `json:"enabled"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
	Tenant       string   `json:"tenant"`
}

// OAuthConfig holds provider registrations and the state signer settings.
type OAuthConfig struct {
	Gmail   OAuthProviderConfig `json:"gmail"`
	Outlook OAuthProviderConfig `json:"outlook"`
	State   StateConfig         `json:"state"`
}

// StateConfig implements types.SecureLinkConfigurator for OAuth state
// tokens.
type StateConfig struct {
	SigningKey string        `json:"signing_key" env:"OAUTH_STATE_KEY" default:"changeme-state-signing-key-0000000"`
	Expiration time.Duration `json:"expiration" default:"15m"`
	BaseURL    string        `json:"base_url" default:"http://localhost:8978"`
	QueryKey   string        `json:"query_key" default:"state"`
	AsQuery    bool          `json:"as_query" default:"true"`
}

func (c StateConfig) GetSigningKey() string        { return c.SigningKey }
func (c StateConfig) GetExpiration() time.Duration { return c.Expiration }
func (c StateConfig) GetBaseURL() string           { return c.BaseURL }
func (c StateConfig) GetQueryKey() string          { return c.QueryKey }
func (c StateConfig) GetAsQuery() bool             { return c.AsQuery }

// GetRoutes maps the state route onto a path.
func (c StateConfig) GetRoutes() map[string]string {
	return map[string]string{"oauth_state": "/auth/state"}
}

// NatsConfig configures the JetStream notification publisher.
type NatsConfig struct {
	Enabled       bool          `json:"enabled" env:"NATS_ENABLED"`
	URL           string        `json:"url" env:"NATS_URL" default:"nats://127.0.0.1:4222"`
	Stream        string        `json:"stream" default:"MAILSYNC"`
	SubjectPrefix string        `json:"subject_prefix" default:"mailsync"`
	Duplicates    time.Duration `json:"duplicates" default:"2m"`
}

// FeaturesConfig holds global flags and per namespace overrides keyed by
// namespace id.
type FeaturesConfig struct {
	Flags      map[string]bool            `json:"flags"`
	Namespaces map[string]map[string]bool `json:"namespaces"`
}

// GetPersistence returns persistence config
func (c *BaseConfig) GetPersistence() persistence.Config {
	return c.Persistence
}

// GetServer returns server config
func (c *BaseConfig) GetServer() ServerConfig {
	return c.Server
}

// Validate implements config.Validable interface
func (c *BaseConfig) Validate() error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("persistence.server", c.Persistence.Server)
	if c.Vault.Enabled {
		require("vault.address", c.Vault.Address)
		require("vault.key_name", c.Vault.KeyName)
		if c.Vault.Token == "" {
			require("vault.role_id", c.Vault.RoleID)
		}
	}
	for name, p := range map[string]OAuthProviderConfig{
		"gmail":   c.OAuth.Gmail,
		"outlook": c.OAuth.Outlook,
	} {
		if !p.Enabled {
			continue
		}
		require("oauth."+name+".client_id", p.ClientID)
		require("oauth."+name+".client_secret", p.ClientSecret)
		require("oauth."+name+".redirect_url", p.RedirectURL)
	}
	if c.OAuth.Gmail.Enabled || c.OAuth.Outlook.Enabled {
		require("oauth.state.signing_key", c.OAuth.State.SigningKey)
	}
	if c.Nats.Enabled {
		require("nats.url", c.Nats.URL)
	}

	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
}
