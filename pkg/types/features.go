package types

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

// Feature flag keys.
const (
	FeatureSyncback          = "mailsync.syncback"
	FeatureTransactionsPurge = "mailsync.transactions.purge"
	FeatureDeltaCollapse     = "mailsync.delta.collapse"
)

// NamespaceGate is implemented by feature gates that can resolve per
// namespace overrides.
type NamespaceGate interface {
	EnabledForNamespace(ctx context.Context, key string, namespaceID uuid.UUID) (bool, error)
}

// FeatureEnabled resolves key for a namespace. Gates that understand
// namespaces are asked directly; other gates receive the namespace as the
// tenant scope. A nil gate enables everything.
func FeatureEnabled(ctx context.Context, gate featuregate.FeatureGate, key string, namespaceID uuid.UUID) (bool, error) {
	if gate == nil {
		return true, nil
	}
	if scoped, ok := gate.(NamespaceGate); ok {
		return scoped.EnabledForNamespace(ctx, key, namespaceID)
	}
	if namespaceID == uuid.Nil {
		return gate.Enabled(ctx, key)
	}
	return gate.Enabled(ctx, key, featuregate.WithScopeSet(featuregate.ScopeSet{
		System:   true,
		TenantID: namespaceID.String(),
	}))
}
