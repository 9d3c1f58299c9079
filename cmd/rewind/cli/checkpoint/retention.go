package checkpoint

import (
	"context"
	"log/slog"

	"github.com/rewindkit/cli/cmd/rewind/cli/logging"
)

// Pruner bounds the number of live checkpoint refs per repository.
//
// Pruning is best-effort and never on the critical path: failures are logged
// and swallowed, and one failed ref deletion does not block the others.
type Pruner struct {
	store Store
}

// NewPruner returns a Pruner deleting refs through the given store.
func NewPruner(store Store) *Pruner {
	return &Pruner{store: store}
}

// Prune deletes the oldest checkpoint refs beyond maxCount and returns how
// many were deleted. The underlying content objects remain until the store's
// own garbage collection reclaims them.
func (p *Pruner) Prune(ctx context.Context, maxCount int) int {
	if maxCount <= 0 {
		return 0
	}

	records, err := p.store.ListCheckpoints(ctx)
	if err != nil {
		logging.Warn(ctx, "checkpoint pruning skipped", slog.String("error", err.Error()))
		return 0
	}

	overflow := len(records) - maxCount
	if overflow <= 0 {
		return 0
	}

	deleted := 0
	for _, rec := range records[:overflow] {
		if err := p.store.DeleteRef(ctx, rec.ID); err != nil {
			logging.Warn(ctx, "failed to delete checkpoint ref",
				slog.String("checkpoint_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		logging.Debug(ctx, "pruned checkpoints",
			slog.Int("deleted", deleted),
			slog.Int("remaining", len(records)-deleted),
		)
	}

	return deleted
}
