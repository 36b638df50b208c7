package pipeline

import (
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// ErrCacheDetached is reported when the live cache handle is used after it
// was taken with Detach.
var ErrCacheDetached = errors.New("pipeline: pipeline cache handle was detached")

// Cache states.
const (
	cacheInitialize task.State = iota
	cacheLoadFromDisk
	cacheReady
	cacheFactoryFinished
	cacheFactoryMerge
	cacheSaveToDisk
	cacheDone
)

// Cache conditions.
const (
	// CondFlushToDisk asks a ready cache to persist itself.
	CondFlushToDisk task.Condition = 1 << iota
	// CondFactoryFinished tells the cache its owning factory is done:
	// absorb sibling caches, persist, and finish.
	CondFactoryFinished
)

// Cache wraps one native pipeline cache object as a task:
// initialize -> load_from_disk -> ready -> {factory_finished ->
// factory_merge, save_to_disk} -> done. Exactly one Cache owns the live
// handle at a time; sibling caches fold their contents into a merger cache
// and are left empty.
type Cache struct {
	dev Device
	key string
	dir string

	isMerger bool

	mu     sync.Mutex
	handle vk.PipelineCache
	taken  bool

	siblings []*Cache

	factoryFinished atomic.Bool

	ready chan struct{}

	t *task.Task
}

// NewCache creates a cache task implementation for the given device and
// owner key, persisting under dir.
func NewCache(dev Device, key, dir string) *Cache {
	return &Cache{
		dev:   dev,
		key:   key,
		dir:   dir,
		ready: make(chan struct{}),
	}
}

// SetIsMerger marks this cache as the per-device aggregate that absorbs
// the per-factory caches.
func (c *Cache) SetIsMerger() { c.isMerger = true }

// Run starts the cache task on the pool.
func (c *Cache) Run(pool *task.Pool) *task.Task {
	c.t = pool.Run("PipelineCache["+c.key+"]", c, task.PriorityLow)
	return c.t
}

// Task returns the running task, nil before Run.
func (c *Cache) Task() *task.Task { return c.t }

// Ready implements task.Notifier for the broker: closed once the native
// cache exists and pipelines can be created through it.
func (c *Cache) Ready() <-chan struct{} { return c.ready }

// VkPipelineCache returns the live cache handle. Using a cache whose
// handle was detached is an immediate error.
func (c *Cache) VkPipelineCache() vk.PipelineCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		panic(ErrCacheDetached)
	}
	return c.handle
}

// Detach rescues the live cache handle from a cache that is about to be
// destroyed. It is a single-consumer take: the second caller gets an error.
func (c *Cache) Detach() (vk.PipelineCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return vk.NullPipelineCache, ErrCacheDetached
	}
	c.taken = true
	handle := c.handle
	c.handle = vk.NullPipelineCache
	return handle, nil
}

// MergeWith queues another cache to be folded into this one when the
// owning factory finishes. Only meaningful on the merger cache.
func (c *Cache) MergeWith(other *Cache) {
	c.mu.Lock()
	c.siblings = append(c.siblings, other)
	c.mu.Unlock()
	c.t.Signal(CondFactoryFinished)
}

// FactoryFinished signals that the owning factory completed generation.
func (c *Cache) FactoryFinished() {
	c.factoryFinished.Store(true)
	c.t.Signal(CondFactoryFinished)
}

// Flush asks a ready cache to persist itself without finishing.
func (c *Cache) Flush() {
	c.t.Signal(CondFlushToDisk)
}

// Filename returns the deterministic path the cache persists to, derived
// from the device identity and the owner key so re-running the
// application warm-starts compilation.
func (c *Cache) Filename() string {
	h := fnv.New64a()
	h.Write([]byte(c.dev.ID()))
	h.Write([]byte{0})
	h.Write([]byte(c.key))
	return filepath.Join(c.dir, fmt.Sprintf("%016x.pipeline-cache", h.Sum64()))
}

// InitialState implements task.StateMachine.
func (c *Cache) InitialState() task.State { return cacheInitialize }

// Multiplex implements task.StateMachine.
func (c *Cache) Multiplex(t *task.Task, state task.State) {
	switch state {
	case cacheInitialize:
		t.SetState(cacheLoadFromDisk)

	case cacheLoadFromDisk:
		// A missing or corrupt file is never fatal; warm-starting is
		// best effort.
		data, err := ReadCacheFile(c.Filename(), c.dev.ID())
		if err != nil {
			log.WithError(err).WithField("file", c.Filename()).Warn("pipeline cache not loaded, starting empty")
			data = nil
		}
		handle, err := c.dev.CreatePipelineCache(data)
		if err != nil {
			panic(err)
		}
		c.mu.Lock()
		c.handle = handle
		c.mu.Unlock()
		close(c.ready)
		t.SetState(cacheReady)
		t.Wait(CondFlushToDisk | CondFactoryFinished)

	case cacheReady:
		if c.factoryFinished.Load() {
			t.SetState(cacheFactoryFinished)
			return
		}
		t.SetState(cacheSaveToDisk)

	case cacheFactoryFinished:
		t.SetState(cacheFactoryMerge)

	case cacheFactoryMerge:
		c.mu.Lock()
		siblings := c.siblings
		c.siblings = nil
		c.mu.Unlock()
		for _, sibling := range siblings {
			handle, err := sibling.Detach()
			if err != nil {
				log.WithError(err).Warn("sibling pipeline cache already detached")
				continue
			}
			if err := c.dev.MergePipelineCaches(c.VkPipelineCache(), handle); err != nil {
				log.WithError(err).Warn("pipeline cache merge failed")
			}
			c.dev.DestroyPipelineCache(handle)
		}
		t.SetState(cacheSaveToDisk)

	case cacheSaveToDisk:
		c.save()
		if c.factoryFinished.Load() {
			t.SetState(cacheDone)
			return
		}
		t.SetState(cacheReady)
		t.Wait(CondFlushToDisk | CondFactoryFinished)

	case cacheDone:
		t.Finish()
	}
}

func (c *Cache) save() {
	data, err := c.dev.PipelineCacheData(c.VkPipelineCache())
	if err != nil {
		log.WithError(err).Warn("pipeline cache data retrieval failed")
		return
	}
	if err := WriteCacheFile(c.Filename(), c.dev.ID(), data); err != nil {
		log.WithError(err).WithField("file", c.Filename()).Warn("pipeline cache not saved")
		return
	}
	log.WithFields(log.Fields{
		"file": c.Filename(),
		"size": len(data),
	}).Debug("pipeline cache saved")
}
