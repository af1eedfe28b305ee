package session

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
)

// catalog caches recently loaded snapshots in front of the snapshot store.
// Concurrent loads of the same version share one read.
type catalog struct {
	store *snapshotdb.Store
	mu    sync.Mutex
	cache *lru.Cache
	group singleflight.Group
}

func newCatalog(store *snapshotdb.Store, size int) *catalog {
	return &catalog{store: store, cache: lru.New(size)}
}

func (c *catalog) get(versionID string) (*models.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(versionID)
	if !ok {
		return nil, false
	}
	return v.(*models.Snapshot), true
}

func (c *catalog) put(snap *models.Snapshot) {
	c.mu.Lock()
	c.cache.Add(snap.ID, snap)
	c.mu.Unlock()
}

func (c *catalog) drop(versionID string) {
	c.mu.Lock()
	c.cache.Remove(versionID)
	c.mu.Unlock()
}

// load returns a shared snapshot. Callers must not mutate it.
// The shared read is detached from the first caller's cancellation so
// one aborted request does not fail every caller waiting on the flight.
func (c *catalog) load(ctx context.Context, versionID string) (*models.Snapshot, error) {
	if snap, ok := c.get(versionID); ok {
		return snap, nil
	}
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(versionID, func() (any, error) {
		snap, err := c.store.Load(shared, versionID)
		if err != nil {
			return nil, err
		}
		c.put(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Snapshot), nil
}
