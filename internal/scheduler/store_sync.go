package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

// FavoritesLoader hydrates favorites from the durable store.
type FavoritesLoader interface {
	Load(ctx context.Context) error
	Count() int
}

// StoreSyncer loads the durable snapshots into memory on startup
type StoreSyncer struct {
	favorites FavoritesLoader
	logger    logger.Logger
}

// NewStoreSyncer creates a new store syncer
func NewStoreSyncer(favorites FavoritesLoader, log logger.Logger) *StoreSyncer {
	return &StoreSyncer{
		favorites: favorites,
		logger:    log,
	}
}

// Sync loads favorites from the store
func (ss *StoreSyncer) Sync(ctx context.Context) error {
	ss.logger.Info("syncing favorites from store to memory")

	if err := ss.favorites.Load(ctx); err != nil {
		return fmt.Errorf("failed to sync favorites: %w", err)
	}

	if ss.favorites.Count() == 0 {
		ss.logger.Info("no favorites found in store")
	}
	return nil
}
