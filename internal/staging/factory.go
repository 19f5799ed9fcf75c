package staging

import (
	"github.com/aevon-lab/geosplit/internal/core/config"
)

// Factory creates the store of one run. Every run gets a fresh, private store.
type Factory func() (Store, error)

// NewFactory selects the staging backend from configuration.
func NewFactory(cfg config.StagingConfig) Factory {
	switch cfg.Type {
	case config.StagingMemory:
		limit := int64(cfg.MemoryLimitMB) << 20
		return func() (Store, error) {
			return NewMemoryStore(limit), nil
		}
	default:
		return func() (Store, error) {
			return NewFileSystemStore(cfg.Dir, cfg.MaxOpenFiles)
		}
	}
}
