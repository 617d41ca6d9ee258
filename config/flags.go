package config

import (
	"context"
	"fmt"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/pkg/types"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

// DefaultFlags are the flag values used when configuration omits a key.
func DefaultFlags() map[string]bool {
	return map[string]bool{
		types.FeatureSyncback:          true,
		types.FeatureTransactionsPurge: true,
		types.FeatureDeltaCollapse:     true,
	}
}

// FlagGate resolves feature flags from configuration. Namespace overrides
// are layered over the global flags through go-options.
type FlagGate struct {
	system     map[string]any
	namespaces map[uuid.UUID]map[string]any
}

var (
	_ featuregate.FeatureGate = (*FlagGate)(nil)
	_ types.NamespaceGate     = (*FlagGate)(nil)
)

// NewFlagGate builds a gate from the features section. Namespace keys must be
// UUIDs.
func NewFlagGate(cfg FeaturesConfig) (*FlagGate, error) {
	system := make(map[string]any)
	for key, value := range DefaultFlags() {
		system[key] = value
	}
	for key, value := range cfg.Flags {
		system[key] = value
	}
	namespaces := make(map[uuid.UUID]map[string]any, len(cfg.Namespaces))
	for raw, flags := range cfg.Namespaces {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("config: feature override namespace %q: %w", raw, err)
		}
		layer := make(map[string]any, len(flags))
		for key, value := range flags {
			layer[key] = value
		}
		namespaces[id] = layer
	}
	return &FlagGate{system: system, namespaces: namespaces}, nil
}

// Enabled implements featuregate.FeatureGate using the global flags.
func (g *FlagGate) Enabled(ctx context.Context, key string, _ ...featuregate.ResolveOption) (bool, error) {
	return g.EnabledForNamespace(ctx, key, uuid.Nil)
}

// EnabledForNamespace resolves key with the namespace override applied.
// Unknown keys are disabled.
func (g *FlagGate) EnabledForNamespace(_ context.Context, key string, namespaceID uuid.UUID) (bool, error) {
	if g == nil {
		return true, nil
	}
	layers := []opts.Layer[map[string]any]{
		opts.NewLayer(
			opts.NewScope("system", opts.ScopePrioritySystem, opts.WithScopeLabel("Configuration")),
			cloneFlags(g.system),
			opts.WithSnapshotID[map[string]any]("system"),
		),
	}
	if override, ok := g.namespaces[namespaceID]; ok && namespaceID != uuid.Nil {
		scope := opts.NewScope("namespace", opts.ScopePriorityTenant,
			opts.WithScopeLabel("Namespace"),
			opts.WithScopeMetadata(map[string]any{"namespace_id": namespaceID.String()}))
		layers = append(layers, opts.NewLayer(scope, cloneFlags(override), opts.WithSnapshotID[map[string]any](namespaceID.String())))
	}
	stack, err := opts.NewStack(layers...)
	if err != nil {
		return false, err
	}
	merged, err := stack.Merge()
	if err != nil {
		return false, err
	}
	enabled, _ := merged.Value[key].(bool)
	return enabled, nil
}

func cloneFlags(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
