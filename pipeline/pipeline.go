// Package pipeline generates the full cross product of graphics pipeline
// permutations from orthogonal characteristic ranges, with an on-disk
// pipeline cache that is shared and merged between factories.
package pipeline

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// Index is a dense integer identifying one concrete combination of
// characteristic values within a factory.
type Index int

// FactoryIndex identifies a pipeline factory within its owning window.
type FactoryIndex int

// Handle identifies one generated pipeline: which factory produced it and
// which combination it is.
type Handle struct {
	FactoryIndex  FactoryIndex
	PipelineIndex Index
}

// Device is the slice of the logical device the pipeline machinery
// consumes.
type Device interface {
	// ID returns a stable identity string for the device, used to key
	// persisted pipeline-cache files.
	ID() string

	// CreateGraphicsPipeline creates one pipeline through the given cache.
	CreateGraphicsPipeline(cache vk.PipelineCache, info vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)

	// CreatePipelineCache creates a cache, optionally pre-populated with
	// previously retrieved data.
	CreatePipelineCache(initialData []byte) (vk.PipelineCache, error)

	// PipelineCacheData retrieves the cache's blob for persisting.
	PipelineCacheData(cache vk.PipelineCache) ([]byte, error)

	// MergePipelineCaches folds the source caches into dst.
	MergePipelineCaches(dst vk.PipelineCache, srcs ...vk.PipelineCache) error

	// DestroyPipelineCache destroys a cache handle.
	DestroyPipelineCache(cache vk.PipelineCache)
}

// Window is the owning window collaborator: it receives finished pipeline
// handles and hosts the synchronous execution context the factory watcher
// runs on.
type Window interface {
	Device() Device
	NewPipeline(h Handle)
	SyncQueue() *task.SyncQueue
}
