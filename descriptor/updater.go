package descriptor

import (
	"sync"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/task"
)

// Device is the slice of the logical device the updater needs: pushing
// combined-image-sampler writes into a live descriptor set.
type Device interface {
	UpdateCombinedImageSampler(set vk.DescriptorSet, binding, arrayElement uint32, view vk.ImageView, sampler vk.Sampler)
}

// Texture is the image view and sampler bound for a key range. Textures
// are compared by pointer identity; a new Texture for an overlapping
// range replaces the old one.
type Texture struct {
	Name    string
	View    vk.ImageView
	Sampler vk.Sampler
}

// BindingLocation is where a key range's combined image sampler lives.
type BindingLocation struct {
	Set          vk.DescriptorSet
	Binding      uint32
	ArrayElement uint32
}

// DescriptorUpdateInfo tells the updater that a descriptor binding
// became associated with a key range.
type DescriptorUpdateInfo struct {
	ID       FactoryCharacteristicID
	Subrange ConsecutiveRange
	Location BindingLocation
}

// TextureUpdateRequest tells the updater that a texture became ready
// (or changed) for a key range.
type TextureUpdateRequest struct {
	ID       FactoryCharacteristicID
	Subrange ConsecutiveRange
	Texture  *Texture
}

// Updater states.
const (
	updaterStart task.State = iota
	updaterNeedAction
	updaterDone
)

const condUpdateAvailable task.Condition = 1

// Updater owns the two sorted range maps (key -> binding location, key
// -> texture) and keeps live descriptor sets in sync with them. It runs
// as a task consuming a mutex-guarded message queue, so the maps
// themselves never need a lock. A binding whose texture has not arrived
// yet is pointed at the placeholder texture.
type Updater struct {
	dev         Device
	placeholder *Texture

	mu    sync.Mutex
	queue []interface{}

	bindings *RangeMap
	textures *RangeMap

	terminated bool

	t *task.Task
}

// NewUpdater creates an updater pushing writes through dev, binding
// placeholder wherever no texture is available yet.
func NewUpdater(dev Device, placeholder *Texture) *Updater {
	return &Updater{
		dev:         dev,
		placeholder: placeholder,
		bindings:    NewRangeMap(),
		textures:    NewRangeMap(),
	}
}

// Run starts the updater task on the pool.
func (u *Updater) Run(pool *task.Pool) *task.Task {
	u.t = pool.Run("CombinedImageSamplerUpdater", u, task.PriorityHigh)
	return u.t
}

// AddDescriptorUpdate queues a descriptor association. Safe to call from
// any goroutine.
func (u *Updater) AddDescriptorUpdate(info DescriptorUpdateInfo) {
	u.enqueue(info)
}

// AddTextureUpdate queues a texture arrival or replacement. Safe to call
// from any goroutine.
func (u *Updater) AddTextureUpdate(req TextureUpdateRequest) {
	u.enqueue(req)
}

// Terminate stops the updater after the queue is drained.
func (u *Updater) Terminate() {
	u.mu.Lock()
	u.terminated = true
	u.mu.Unlock()
	u.t.Signal(condUpdateAvailable)
}

func (u *Updater) enqueue(msg interface{}) {
	u.mu.Lock()
	u.queue = append(u.queue, msg)
	u.mu.Unlock()
	u.t.Signal(condUpdateAvailable)
}

// InitialState implements task.StateMachine.
func (u *Updater) InitialState() task.State { return updaterStart }

// Multiplex implements task.StateMachine.
func (u *Updater) Multiplex(t *task.Task, state task.State) {
	switch state {
	case updaterStart:
		t.SetState(updaterNeedAction)
		t.Wait(condUpdateAvailable)

	case updaterNeedAction:
		for {
			u.mu.Lock()
			if len(u.queue) == 0 {
				u.mu.Unlock()
				break
			}
			msg := u.queue[0]
			u.queue = u.queue[1:]
			u.mu.Unlock()

			switch msg := msg.(type) {
			case DescriptorUpdateInfo:
				u.handleDescriptorUpdate(msg)
			case TextureUpdateRequest:
				u.handleTextureUpdate(msg)
			}
		}
		u.mu.Lock()
		terminated := u.terminated
		u.mu.Unlock()
		if !terminated {
			t.Wait(condUpdateAvailable)
			return
		}
		t.SetState(updaterDone)

	case updaterDone:
		t.Finish()
	}
}

// handleDescriptorUpdate records the binding for its key range and
// immediately points it at the texture stored for that range, or at the
// placeholder when none arrived yet.
func (u *Updater) handleDescriptorUpdate(info DescriptorUpdateInfo) {
	if err := u.bindings.Insert(info.ID, info.Subrange, info.Location); err != nil {
		// Overlapping bindings with different locations mean broken
		// factory wiring; the task fails rather than corrupting sets.
		panic(err)
	}

	covered := false
	u.textures.ForEachOverlapping(info.ID, info.Subrange, func(e Entry) {
		covered = true
		u.write(info.Location, e.Target.(*Texture))
	})
	if !covered {
		u.write(info.Location, u.placeholder)
	}
}

// handleTextureUpdate stores the texture for its key range, replacing
// any older texture it overlaps, and refreshes every binding the range
// touches.
func (u *Updater) handleTextureUpdate(req TextureUpdateRequest) {
	u.textures.InsertOrReplace(req.ID, req.Subrange, req.Texture)

	u.bindings.ForEachOverlapping(req.ID, req.Subrange, func(e Entry) {
		u.write(e.Target.(BindingLocation), req.Texture)
	})
}

func (u *Updater) write(loc BindingLocation, tex *Texture) {
	if tex == nil {
		log.WithFields(log.Fields{
			"binding": loc.Binding,
		}).Warn("no texture and no placeholder for descriptor binding")
		return
	}
	u.dev.UpdateCombinedImageSampler(loc.Set, loc.Binding, loc.ArrayElement, tex.View, tex.Sampler)
}

// Bindings exposes the binding map for inspection in tests.
func (u *Updater) Bindings() *RangeMap { return u.bindings }

// Textures exposes the texture map for inspection in tests.
func (u *Updater) Textures() *RangeMap { return u.textures }
