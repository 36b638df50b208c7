package descriptor

import (
	"errors"
	"sync"
	"testing"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

type samplerWrite struct {
	binding      uint32
	arrayElement uint32
	view         vk.ImageView
	sampler      vk.Sampler
}

type fakeDevice struct {
	mu     sync.Mutex
	writes []samplerWrite
}

func (d *fakeDevice) UpdateCombinedImageSampler(set vk.DescriptorSet, binding, arrayElement uint32, view vk.ImageView, sampler vk.Sampler) {
	d.mu.Lock()
	d.writes = append(d.writes, samplerWrite{binding: binding, arrayElement: arrayElement, view: view, sampler: sampler})
	d.mu.Unlock()
}

func (d *fakeDevice) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func waitWrites(t *testing.T, dev *fakeDevice, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for dev.writeCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("device received %d writes, want %d", dev.writeCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestUpdaterBindsPlaceholderWithoutTexture(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	dev := &fakeDevice{}
	placeholder := &Texture{Name: "loading"}
	u := NewUpdater(dev, placeholder)
	u.Run(pool)

	id := FactoryCharacteristicID{FactoryIndex: 0, CharacteristicIndex: 0}
	u.AddDescriptorUpdate(DescriptorUpdateInfo{
		ID:       id,
		Subrange: rng(0, 4),
		Location: BindingLocation{Binding: 1},
	})
	waitWrites(t, dev, 1)

	dev.mu.Lock()
	if dev.writes[0].binding != 1 {
		t.Errorf("placeholder written to binding %d, want 1", dev.writes[0].binding)
	}
	dev.mu.Unlock()

	u.Terminate()
	select {
	case <-u.t.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("updater did not terminate")
	}
	if err := u.t.Err(); err != nil {
		t.Errorf("updater failed: %v", err)
	}
}

func TestUpdaterTextureArrivalRefreshesBindings(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	dev := &fakeDevice{}
	u := NewUpdater(dev, &Texture{Name: "loading"})
	u.Run(pool)
	defer u.Terminate()

	id := FactoryCharacteristicID{}
	u.AddDescriptorUpdate(DescriptorUpdateInfo{
		ID:       id,
		Subrange: rng(0, 4),
		Location: BindingLocation{Binding: 0},
	})
	waitWrites(t, dev, 1) // placeholder

	tex := &Texture{Name: "brick"}
	u.AddTextureUpdate(TextureUpdateRequest{ID: id, Subrange: rng(0, 4), Texture: tex})
	waitWrites(t, dev, 2) // refreshed with the real texture

	if target, ok := u.Textures().Find(id, 2); !ok || target.(*Texture) != tex {
		t.Error("texture map does not hold the arrived texture")
	}

	// A later descriptor for an overlapping range skips the placeholder.
	u.AddDescriptorUpdate(DescriptorUpdateInfo{
		ID:       id,
		Subrange: rng(0, 4),
		Location: BindingLocation{Binding: 0},
	})
	waitWrites(t, dev, 3)

	// Replacement texture for part of the range refreshes the binding again.
	replacement := &Texture{Name: "brick-hd"}
	u.AddTextureUpdate(TextureUpdateRequest{ID: id, Subrange: rng(1, 3), Texture: replacement})
	waitWrites(t, dev, 4)

	if target, ok := u.Textures().Find(id, 2); !ok || target.(*Texture) != replacement {
		t.Error("replacement texture not stored for the overlapped part")
	}
	if target, ok := u.Textures().Find(id, 0); !ok || target.(*Texture) != tex {
		t.Error("old texture lost outside the replaced sub-range")
	}
}

func TestUpdaterConflictingBindingsFailTask(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	dev := &fakeDevice{}
	u := NewUpdater(dev, &Texture{Name: "loading"})
	tk := u.Run(pool)

	id := FactoryCharacteristicID{}
	u.AddDescriptorUpdate(DescriptorUpdateInfo{
		ID:       id,
		Subrange: rng(0, 4),
		Location: BindingLocation{Binding: 0},
	})
	u.AddDescriptorUpdate(DescriptorUpdateInfo{
		ID:       id,
		Subrange: rng(2, 6),
		Location: BindingLocation{Binding: 1},
	})

	select {
	case <-tk.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("updater did not fail on conflicting bindings")
	}
	if !errors.Is(tk.Err(), ErrRangeOverlap) {
		t.Errorf("updater error = %v, want ErrRangeOverlap", tk.Err())
	}
}
