package docdb

import (
	"context"

	"github.com/unifiedui/multiagent-service/internal/pkg/retry"
)

// EnsureIndexes creates the client's indexes, retrying while the database is
// still coming up.
func EnsureIndexes(ctx context.Context, client Client, policy retry.Policy) error {
	return retry.NewExecutor(policy).Execute(ctx, func(ctx context.Context, _ int) error {
		return client.EnsureIndexes(ctx)
	})
}
