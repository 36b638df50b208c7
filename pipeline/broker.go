package pipeline

import (
	"sync"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// CacheBroker hands out pipeline cache tasks keyed by logical device and
// factory. The first factory to ask for a given key causes the cache task
// to be created and started; later requests share the running task. Every
// caller's callback fires once the native cache handle exists.
type CacheBroker struct {
	pool   *task.Pool
	dir    string
	broker *task.Broker

	mu     sync.Mutex
	caches map[string]*Cache
}

// NewCacheBroker creates a broker that runs cache tasks on pool and
// persists cache files under dir.
func NewCacheBroker(pool *task.Pool, dir string) *CacheBroker {
	return &CacheBroker{
		pool:   pool,
		dir:    dir,
		broker: task.NewBroker(),
		caches: make(map[string]*Cache),
	}
}

// Run returns the cache registered for dev and key, creating and starting
// it if this is the first request. cb fires (from an arbitrary goroutine)
// with success=false if the cache task failed before becoming usable.
func (b *CacheBroker) Run(dev Device, key string, cb func(success bool)) *Cache {
	brokerKey := dev.ID() + "/" + key
	b.mu.Lock()
	c, ok := b.caches[brokerKey]
	if !ok {
		c = NewCache(dev, key, b.dir)
		b.caches[brokerKey] = c
	}
	b.mu.Unlock()
	b.broker.Run(brokerKey, func() *task.Task {
		return c.Run(b.pool)
	}, cb)
	return c
}

// RunMerger returns the per-device aggregate cache that absorbs the
// per-factory caches on application shutdown, creating it on first use.
func (b *CacheBroker) RunMerger(dev Device, cb func(success bool)) *Cache {
	brokerKey := dev.ID() + "/merger"
	b.mu.Lock()
	c, ok := b.caches[brokerKey]
	if !ok {
		c = NewCache(dev, "merger", b.dir)
		c.SetIsMerger()
		b.caches[brokerKey] = c
	}
	b.mu.Unlock()
	b.broker.Run(brokerKey, func() *task.Task {
		return c.Run(b.pool)
	}, cb)
	return c
}

// FlushAll asks every known cache to persist itself. Useful before an
// orderly shutdown; caches that are not yet ready flush once they are.
func (b *CacheBroker) FlushAll() {
	b.mu.Lock()
	caches := make([]*Cache, 0, len(b.caches))
	for _, c := range b.caches {
		caches = append(caches, c)
	}
	b.mu.Unlock()
	for _, c := range caches {
		c.Flush()
	}
}
