package core

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/gobuffalo/envy"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Device   DeviceConfiguration
	Renderer RendererConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out.
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the interval between input event polls,
	// in milliseconds
	EventPollDelay int
}

// DeviceConfiguration is used to configure the logical device
type DeviceConfiguration struct {
	// DeviceIndex selects among the enumerated physical devices
	DeviceIndex int

	Extensions []string

	// SeparateDepthStencilLayouts enables the separate depth/stencil
	// image layouts of Vulkan 1.2 for render pass generation
	SeparateDepthStencilLayouts bool
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize uint32

	ScreenWidth  uint32
	ScreenHeight uint32

	ShaderDirectory string
}

// LoadConfiguration assembles a Configuration from the environment,
// falling back to workable defaults.
func LoadConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: envInt("LV_FPS", 60),
			EventPollDelay:  envInt("LV_EVENT_POLL_DELAY", 2),
		},
		Device: DeviceConfiguration{
			DeviceIndex:                 envInt("LV_DEVICE_INDEX", 0),
			SeparateDepthStencilLayouts: envInt("LV_SEPARATE_DEPTH_STENCIL", 0) != 0,
		},
		Renderer: RendererConfiguration{
			SwapchainSize:   uint32(envInt("LV_SWAPCHAIN_SIZE", 3)),
			ScreenWidth:     uint32(envInt("LV_SCREEN_WIDTH", 1280)),
			ScreenHeight:    uint32(envInt("LV_SCREEN_HEIGHT", 720)),
			ShaderDirectory: envy.Get("LV_SHADER_DIR", ""),
		},
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(envy.Get(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

// StateDir returns the directory persisted state (pipeline caches) lives
// in, creating it if needed. Honors XDG_STATE_HOME.
func StateDir() (string, error) {
	base := envy.Get("XDG_STATE_HOME", "")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "linuxviewer")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
