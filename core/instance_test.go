package core

import (
	"testing"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	vk "github.com/vulkan-go/vulkan"
)

type fakeInstance struct {
	devices []PhysicalDeviceInfo
}

func (f *fakeInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo { return f.devices }
func (f *fakeInstance) AvailableDevices() []vk.PhysicalDevice     { return nil }
func (f *fakeInstance) SetSurface(unsafe.Pointer)                 {}
func (f *fakeInstance) Surface() vk.Surface                       { return vk.NullSurface }
func (f *fakeInstance) Extensions() []string                      { return nil }
func (f *fakeInstance) Inner() interface{}                        { return nil }
func (f *fakeInstance) Destroy()                                  {}

func TestLogPhysicalDevices(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogPhysicalDevices(&fakeInstance{devices: []PhysicalDeviceInfo{
		{Name: "llvmpipe", VendorID: 0x10005, Memory: 1 << 30},
		{Name: "broken", Invalid: true},
	}})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want one per device", len(entries))
	}
	if entries[0].Level != log.InfoLevel || entries[0].Data["name"] != "llvmpipe" {
		t.Errorf("first entry = %v %v", entries[0].Level, entries[0].Data)
	}
	if entries[0].Data["index"] != 0 || entries[1].Data["index"] != 1 {
		t.Error("entries must carry the selectable device index")
	}
	if entries[1].Level != log.WarnLevel {
		t.Errorf("invalid device logged at %v, want warning", entries[1].Level)
	}
}
