package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// ErrNoCharacteristics is reported when Generate is requested on a factory
// without any characteristic ranges.
var ErrNoCharacteristics = errors.New("pipeline: factory has no characteristic ranges")

// Factory states.
const (
	factoryStart task.State = iota
	factoryInitialize
	factoryInitialized
	factoryGenerate
	factoryDone
)

// Factory conditions.
const (
	condPipelineCacheSetUp task.Condition = 1 << iota
	condFullyInitialized
)

// Factory drives the combinatorial generation of all pipeline variants
// from its characteristic ranges. It runs as an asynchronous task:
// start -> initialize -> initialized -> generate -> done, yielding the
// worker after every completed pass of the innermost loop.
type Factory struct {
	window     Window
	layout     vk.PipelineLayout
	renderPass vk.RenderPass
	broker     *CacheBroker
	index      FactoryIndex

	characteristics []CharacteristicRange
	flat            *FlatCreateInfo
	loop            *MultiLoop
	pipelines       []vk.Pipeline

	cache    *Cache
	cacheErr error

	watcher *factoryWatcher

	t *task.Task
}

// NewFactory creates a factory producing pipelines for the given layout
// and render pass, fetching its pipeline cache through broker.
func NewFactory(window Window, broker *CacheBroker, index FactoryIndex, layout vk.PipelineLayout, renderPass vk.RenderPass) *Factory {
	return &Factory{
		window:     window,
		layout:     layout,
		renderPass: renderPass,
		broker:     broker,
		index:      index,
		flat:       NewFlatCreateInfo(),
	}
}

// Add registers a characteristic range. All ranges must be added before
// Generate is called.
func (f *Factory) Add(c CharacteristicRange) {
	f.characteristics = append(f.characteristics, c)
}

// Run starts the factory task on the pool.
func (f *Factory) Run(pool *task.Pool) *task.Task {
	f.t = pool.Run(fmt.Sprintf("PipelineFactory[%d]", f.index), f, task.PriorityMedium)
	return f.t
}

// Generate signals that all characteristic ranges have been added and
// generation may begin.
func (f *Factory) Generate() {
	f.t.Signal(condFullyInitialized)
}

// Pipelines returns the generated handles indexed by pipeline Index. Only
// complete after the factory task is done.
func (f *Factory) Pipelines() []vk.Pipeline { return f.pipelines }

// Cache returns the factory's pipeline cache task.
func (f *Factory) Cache() *Cache { return f.cache }

// InitialState implements task.StateMachine.
func (f *Factory) InitialState() task.State { return factoryStart }

// Multiplex implements task.StateMachine.
func (f *Factory) Multiplex(t *task.Task, state task.State) {
	switch state {
	case factoryStart:
		// Get or create the pipeline cache task keyed by the logical
		// device and this factory.
		f.cache = f.broker.Run(f.window.Device(), fmt.Sprintf("factory-%d", f.index), func(success bool) {
			if !success {
				f.cacheErr = errors.New("pipeline: cache task failed")
			}
			t.Signal(condPipelineCacheSetUp)
		})
		t.SetState(factoryInitialize)
		t.Wait(condPipelineCacheSetUp)

	case factoryInitialize:
		if f.cacheErr != nil {
			panic(f.cacheErr)
		}
		// Wait until the caller is done adding characteristic ranges
		// and called Generate.
		t.SetState(factoryInitialized)
		t.Wait(condFullyInitialized)

	case factoryInitialized:
		f.watcher = newFactoryWatcher(f.window)
		f.watcher.run()

		if len(f.characteristics) == 0 {
			panic(ErrNoCharacteristics)
		}

		// Leftmost characteristic is the outermost loop; its stride is
		// the product of the sizes of everything to its right.
		stride := 1
		for i := len(f.characteristics) - 1; i >= 0; i-- {
			c := f.characteristics[i]
			c.SetStride(stride)
			stride *= c.End() - c.Begin()
		}

		var maxIndex Index
		begins := make([]int, len(f.characteristics))
		ends := make([]int, len(f.characteristics))
		for i, c := range f.characteristics {
			if err := c.Initialize(f.flat, f.window.Device()); err != nil {
				panic(err)
			}
			c.Update(&maxIndex, c.End()-1)
			begins[i] = c.Begin()
			ends[i] = c.End()
		}
		f.pipelines = make([]vk.Pipeline, int(maxIndex)+1)
		f.loop = NewMultiLoop(begins, ends)

		t.SetState(factoryGenerate)

	case factoryGenerate:
		for !f.loop.Finished() {
			counters := f.loop.Current()

			var idx Index
			for i, c := range f.characteristics {
				if err := c.Fill(f.flat, counters[i]); err != nil {
					panic(err)
				}
				c.Update(&idx, counters[i])
			}

			info := f.flat.Assemble(f.layout, f.renderPass)
			pipeline, err := f.window.Device().CreateGraphicsPipeline(f.cache.VkPipelineCache(), info)
			if err != nil {
				panic(err)
			}
			f.pipelines[idx] = pipeline
			f.watcher.haveNewPipeline(Handle{FactoryIndex: f.index, PipelineIndex: idx})

			log.WithFields(log.Fields{
				"factory": f.index,
				"index":   idx,
			}).Debug("graphics pipeline created")

			if wrapped := f.loop.Advance(); wrapped && !f.loop.Finished() {
				// Don't monopolize the worker; resume at this exact
				// loop position on the next turn.
				t.Yield()
				return
			}
		}
		t.SetState(factoryDone)

	case factoryDone:
		f.watcher.terminate()
		f.cache.FactoryFinished()
		t.Finish()
	}
}

// Watcher states.
const (
	watcherStart task.State = iota
	watcherNeedAction
	watcherDone
)

const condNeedAction task.Condition = 1

// factoryWatcher is the synchronous task that receives finished pipeline
// handles from the factory (possibly from another worker thread) and
// forwards them to the owning window. It drains its queue before
// terminating so no late handle is dropped.
type factoryWatcher struct {
	window Window

	mu           sync.Mutex
	newPipelines []Handle

	parentFinished atomic.Bool

	t *task.Task
}

func newFactoryWatcher(window Window) *factoryWatcher {
	return &factoryWatcher{window: window}
}

func (w *factoryWatcher) run() {
	w.t = w.window.SyncQueue().Run("PipelineFactoryWatcher", w)
}

func (w *factoryWatcher) haveNewPipeline(h Handle) {
	w.mu.Lock()
	w.newPipelines = append(w.newPipelines, h)
	w.mu.Unlock()
	w.t.Signal(condNeedAction)
}

func (w *factoryWatcher) terminate() {
	w.parentFinished.Store(true)
	w.t.Signal(condNeedAction)
}

// InitialState implements task.StateMachine.
func (w *factoryWatcher) InitialState() task.State { return watcherStart }

// Multiplex implements task.StateMachine.
func (w *factoryWatcher) Multiplex(t *task.Task, state task.State) {
	switch state {
	case watcherStart:
		t.SetState(watcherNeedAction)
		t.Wait(condNeedAction)

	case watcherNeedAction:
		for {
			w.mu.Lock()
			if len(w.newPipelines) == 0 {
				w.mu.Unlock()
				break
			}
			h := w.newPipelines[0]
			w.newPipelines = w.newPipelines[1:]
			w.mu.Unlock()
			w.window.NewPipeline(h)
		}
		if !w.parentFinished.Load() {
			t.Wait(condNeedAction)
			return
		}
		t.SetState(watcherDone)

	case watcherDone:
		t.Finish()
	}
}
