package command

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

func requireFeature(ctx context.Context, gate featuregate.FeatureGate, key string, namespaceID uuid.UUID) error {
	enabled, err := types.FeatureEnabled(ctx, gate, key, namespaceID)
	if err != nil {
		return err
	}
	if !enabled {
		return types.NewFeatureDisabledError(key)
	}
	return nil
}
