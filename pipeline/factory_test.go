package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// fakeWindow implements Window with a real synchronous queue, so the
// watcher runs exactly like it would on a live window: only when the
// test pumps RunPending.
type fakeWindow struct {
	dev *fakeDevice
	sq  task.SyncQueue

	mu      sync.Mutex
	handles []Handle
}

func (w *fakeWindow) Device() Device             { return w.dev }
func (w *fakeWindow) SyncQueue() *task.SyncQueue { return &w.sq }

func (w *fakeWindow) NewPipeline(h Handle) {
	w.mu.Lock()
	w.handles = append(w.handles, h)
	w.mu.Unlock()
}

func (w *fakeWindow) handleCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.handles)
}

func testPermutations(n int) [][]vk.PipelineShaderStageCreateInfo {
	perms := make([][]vk.PipelineShaderStageCreateInfo, n)
	for i := range perms {
		perms[i] = []vk.PipelineShaderStageCreateInfo{{
			SType: vk.StructureTypePipelineShaderStageCreateInfo,
			Stage: vk.ShaderStageVertexBit,
		}}
	}
	return perms
}

func testBlendModes(n int) []vk.PipelineColorBlendAttachmentState {
	modes := make([]vk.PipelineColorBlendAttachmentState, n)
	for i := range modes {
		modes[i] = vk.PipelineColorBlendAttachmentState{ColorWriteMask: 0xF}
	}
	return modes
}

func testVertexInput() *VertexInputCharacteristic {
	return NewVertexInputCharacteristic(
		[]vk.VertexInputBindingDescription{{Binding: 0, Stride: 32}},
		[]vk.VertexInputAttributeDescription{{Location: 0, Format: vk.FormatR32g32b32Sfloat}},
	)
}

// pump drives the window's synchronous queue until ch closes.
func pump(t *testing.T, w *fakeWindow, ch <-chan struct{}, what string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-ch:
			return
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			w.sq.RunPending()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestFactoryGeneratesCrossProduct(t *testing.T) {
	pool := task.NewPool(2)
	defer pool.Shutdown()

	dev := &fakeDevice{id: "fake-device", blob: []byte("blob")}
	window := &fakeWindow{dev: dev}
	broker := NewCacheBroker(pool, t.TempDir())

	factory := NewFactory(window, broker, 0, vk.NullPipelineLayout, vk.NullRenderPass)
	factory.Add(testVertexInput())
	factory.Add(NewShaderStageCharacteristic(testPermutations(3)))
	factory.Add(NewBlendModeCharacteristic(testBlendModes(2)))

	ft := factory.Run(pool)
	factory.Generate()
	pump(t, window, ft.Done(), "factory task")
	if err := ft.Err(); err != nil {
		t.Fatalf("factory task failed: %v", err)
	}

	if got := len(factory.Pipelines()); got != 6 {
		t.Errorf("generated %d pipeline slots, want 6", got)
	}

	// The watcher may still hold handles the factory produced on its
	// final turn; keep pumping until they all arrived.
	deadline := time.Now().Add(5 * time.Second)
	for window.handleCount() < 6 {
		if time.Now().After(deadline) {
			t.Fatalf("window received %d pipeline handles, want 6", window.handleCount())
		}
		window.sq.RunPending()
		time.Sleep(time.Millisecond)
	}

	seen := make(map[Index]bool)
	window.mu.Lock()
	for _, h := range window.handles {
		if h.FactoryIndex != 0 {
			t.Errorf("handle carries factory index %d, want 0", h.FactoryIndex)
		}
		if seen[h.PipelineIndex] {
			t.Errorf("pipeline index %d delivered twice", h.PipelineIndex)
		}
		seen[h.PipelineIndex] = true
	}
	window.mu.Unlock()
	for i := Index(0); i < 6; i++ {
		if !seen[i] {
			t.Errorf("pipeline index %d never delivered", i)
		}
	}

	dev.mu.Lock()
	if len(dev.pipelineInfos) != 6 {
		t.Errorf("device created %d pipelines, want 6", len(dev.pipelineInfos))
	}
	for i, info := range dev.pipelineInfos {
		if info.StageCount != 1 {
			t.Errorf("pipeline %d assembled with %d stages, want 1", i, info.StageCount)
		}
		if info.PColorBlendState == nil || info.PColorBlendState.AttachmentCount != 1 {
			t.Errorf("pipeline %d missing its blend attachment", i)
		}
		if info.PDynamicState == nil || info.PDynamicState.DynamicStateCount != 2 {
			t.Errorf("pipeline %d missing viewport/scissor dynamic state", i)
		}
	}
	dev.mu.Unlock()

	// The factory's cache finishes and persists after generation.
	cache := factory.Cache()
	if cache == nil {
		t.Fatal("factory has no cache after generation")
	}
	select {
	case <-cache.Task().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cache task never finished after the factory was done")
	}
	if _, err := ReadCacheFile(cache.Filename(), dev.ID()); err != nil {
		t.Errorf("cache was not persisted: %v", err)
	}
}

func TestFactoryWithoutCharacteristicsFails(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	dev := &fakeDevice{id: "fake-device"}
	window := &fakeWindow{dev: dev}
	broker := NewCacheBroker(pool, t.TempDir())

	factory := NewFactory(window, broker, 0, vk.NullPipelineLayout, vk.NullRenderPass)
	ft := factory.Run(pool)
	factory.Generate()

	pump(t, window, ft.Done(), "factory task")
	if !errors.Is(ft.Err(), ErrNoCharacteristics) {
		t.Errorf("factory error = %v, want ErrNoCharacteristics", ft.Err())
	}
}

func TestFactoryIndexStrides(t *testing.T) {
	shader := NewShaderStageCharacteristic(testPermutations(2))
	blend := NewBlendModeCharacteristic(testBlendModes(3))

	// Rightmost characteristic varies fastest.
	blend.SetStride(1)
	shader.SetStride(3)

	var idx Index
	shader.Update(&idx, 1)
	blend.Update(&idx, 2)
	if idx != 5 {
		t.Errorf("index for combination (1,2) = %d, want 5", idx)
	}
}
