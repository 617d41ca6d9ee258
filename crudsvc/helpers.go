package crudsvc

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-crud"
	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// NamespaceResolver turns a namespace public id or UUID into a namespace.
// *account.Repository satisfies it.
type NamespaceResolver interface {
	ResolveNamespace(ctx context.Context, raw string) (*account.Namespace, error)
}

// resolveNamespace reads the namespace from the route parameter and falls
// back to the query string so controllers can be mounted either way.
func resolveNamespace(ctx crud.Context, resolver NamespaceResolver) (uuid.UUID, error) {
	raw := strings.TrimSpace(ctx.Params("namespace_id"))
	if raw == "" {
		raw = strings.TrimSpace(ctx.Query("namespace_id"))
	}
	if raw == "" {
		return uuid.Nil, types.NewInputError(types.TextCodeInvalidPayload, "namespace_id required")
	}
	if resolver == nil {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, types.NewNotFoundError("namespace not found")
		}
		return id, nil
	}
	ns, err := resolver.ResolveNamespace(ctx.UserContext(), raw)
	if err != nil {
		return uuid.Nil, err
	}
	return ns.ID, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, types.NewNotFoundError("action not found")
	}
	return id, nil
}

func queryInt(ctx crud.Context, key string, def int) int {
	if value := ctx.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}

func parseActionStatus(ctx crud.Context, key string) types.ActionStatus {
	return types.ActionStatus(strings.ToLower(strings.TrimSpace(ctx.Query(key))))
}
