package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func validConfig() *BaseConfig {
	return &BaseConfig{
		Persistence: PersistenceConfig{Driver: "sqlite", Server: "file::memory:"},
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateReportsMissingKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Persistence.Server = " "
	cfg.Vault.Enabled = true
	cfg.OAuth.Gmail = OAuthProviderConfig{Enabled: true, ClientID: "id"}

	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingRequired))
	for _, key := range []string{
		"persistence.server",
		"vault.address",
		"vault.role_id",
		"oauth.gmail.client_secret",
		"oauth.gmail.redirect_url",
	} {
		require.Contains(t, err.Error(), key)
	}
	require.NotContains(t, err.Error(), "oauth.gmail.client_id")
	require.NotContains(t, err.Error(), "oauth.outlook")
}

func TestValidateVaultTokenReplacesAppRole(t *testing.T) {
	cfg := validConfig()
	cfg.Vault = VaultConfig{Enabled: true, Address: "http://vault:8200", Token: "root", KeyName: "accounts"}
	require.NoError(t, cfg.Validate())
}

func TestFlagGateDefaults(t *testing.T) {
	gate, err := NewFlagGate(FeaturesConfig{})
	require.NoError(t, err)

	for _, key := range []string{types.FeatureSyncback, types.FeatureTransactionsPurge, types.FeatureDeltaCollapse} {
		enabled, err := gate.Enabled(context.Background(), key)
		require.NoError(t, err)
		require.True(t, enabled, key)
	}
	enabled, err := gate.Enabled(context.Background(), "mailsync.unknown")
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestFlagGateNamespaceOverride(t *testing.T) {
	ns := uuid.New()
	other := uuid.New()
	gate, err := NewFlagGate(FeaturesConfig{
		Flags: map[string]bool{types.FeatureTransactionsPurge: false},
		Namespaces: map[string]map[string]bool{
			ns.String(): {
				types.FeatureSyncback:          false,
				types.FeatureTransactionsPurge: true,
			},
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	enabled, err := gate.EnabledForNamespace(ctx, types.FeatureSyncback, ns)
	require.NoError(t, err)
	require.False(t, enabled)

	enabled, err = gate.EnabledForNamespace(ctx, types.FeatureTransactionsPurge, ns)
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = gate.EnabledForNamespace(ctx, types.FeatureSyncback, other)
	require.NoError(t, err)
	require.True(t, enabled)

	enabled, err = gate.Enabled(ctx, types.FeatureTransactionsPurge)
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestFlagGateRejectsInvalidNamespaceKey(t *testing.T) {
	_, err := NewFlagGate(FeaturesConfig{
		Namespaces: map[string]map[string]bool{"not-a-uuid": {types.FeatureSyncback: false}},
	})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not-a-uuid"))
}
