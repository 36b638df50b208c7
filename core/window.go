package core

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ShinkuKira21/linuxviewer/pipeline"
	"github.com/ShinkuKira21/linuxviewer/task"
)

// VulkanWindow owns the presentation side of one OS window: the surface,
// the swapchain with its image views and framebuffers, and the
// synchronous task queue that is driven once per frame. It is the Window
// collaborator of the pipeline factories.
type VulkanWindow struct {
	dev           *VulkanDevice
	surface       vk.Surface
	configuration RendererConfiguration

	syncQueue task.SyncQueue

	swapchain           vk.Swapchain
	swapchainImages     []vk.Image
	swapchainImageViews []vk.ImageView
	framebuffers        []vk.Framebuffer
	imageFormat         vk.Format
	imageColorspace     vk.ColorSpace

	currentSurfaceWidth  uint32
	currentSurfaceHeight uint32

	mu        sync.Mutex
	pipelines []pipeline.Handle
}

// NewVulkanWindow creates a window wrapper for an already created
// surface. Initialise must be called before the swapchain is usable.
func NewVulkanWindow(dev *VulkanDevice, surface vk.Surface, cfg RendererConfiguration) *VulkanWindow {
	return &VulkanWindow{
		dev:                  dev,
		surface:              surface,
		configuration:        cfg,
		currentSurfaceWidth:  cfg.ScreenWidth,
		currentSurfaceHeight: cfg.ScreenHeight,
	}
}

// Device implements pipeline.Window.
func (w *VulkanWindow) Device() pipeline.Device { return w.dev }

// SyncQueue implements pipeline.Window.
func (w *VulkanWindow) SyncQueue() *task.SyncQueue { return &w.syncQueue }

// NewPipeline implements pipeline.Window: a factory watcher delivers a
// finished pipeline handle.
func (w *VulkanWindow) NewPipeline(h pipeline.Handle) {
	w.mu.Lock()
	w.pipelines = append(w.pipelines, h)
	w.mu.Unlock()
	log.WithFields(log.Fields{
		"factory":  h.FactoryIndex,
		"pipeline": h.PipelineIndex,
	}).Debug("pipeline available")
}

// Pipelines returns the handles delivered so far.
func (w *VulkanWindow) Pipelines() []pipeline.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]pipeline.Handle, len(w.pipelines))
	copy(out, w.pipelines)
	return out
}

// Frame drives the window's synchronous tasks; call once per rendered
// frame.
func (w *VulkanWindow) Frame() {
	w.syncQueue.RunPending()
}

// ImageFormat returns the swapchain's image format. Only valid after
// Initialise.
func (w *VulkanWindow) ImageFormat() vk.Format { return w.imageFormat }

// Extent returns the current surface extent.
func (w *VulkanWindow) Extent() vk.Extent2D {
	return vk.Extent2D{Width: w.currentSurfaceWidth, Height: w.currentSurfaceHeight}
}

// Initialise picks the surface format and builds the swapchain and its
// image views.
func (w *VulkanWindow) Initialise() error {
	var (
		surfaceFormatCount uint32
		surfaceFormats     []vk.SurfaceFormat
	)

	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(w.dev.Physical(), w.surface, &surfaceFormatCount, nil)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	surfaceFormats = make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(w.dev.Physical(), w.surface, &surfaceFormatCount, surfaceFormats)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	surfaceFormats[0].Deref()
	w.imageFormat = surfaceFormats[0].Format
	w.imageColorspace = surfaceFormats[0].ColorSpace

	if err := w.createSwapchain(nil); err != nil {
		return err
	}
	return w.createImageViews()
}

func (w *VulkanWindow) createSwapchain(oldSwapchain vk.Swapchain) error {
	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(w.dev.Physical(), w.surface, &surfaceCapabilities)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}

	// In case swapchain is being recreated
	if oldSwapchain != nil {
		surfaceCapabilities.Deref()
		surfaceCapabilities.CurrentExtent.Deref()
		w.currentSurfaceHeight = surfaceCapabilities.CurrentExtent.Height
		w.currentSurfaceWidth = surfaceCapabilities.CurrentExtent.Width
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for i := 0; i < len(compositeAlphaFlags); i++ {
		alphaFlags := vk.CompositeAlphaFlags(compositeAlphaFlags[i])
		if surfaceCapabilities.SupportedCompositeAlpha&alphaFlags != 0 {
			compositeAlpha = compositeAlphaFlags[i]
			break
		}
	}

	var swapchain vk.Swapchain
	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         w.surface,
		MinImageCount:   w.configuration.SwapchainSize,
		ImageFormat:     w.imageFormat,
		ImageColorSpace: w.imageColorspace,
		ImageExtent: vk.Extent2D{
			Width:  w.currentSurfaceWidth,
			Height: w.currentSurfaceHeight,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	if err := vk.Error(vk.CreateSwapchain(w.dev.Handle(), &scci, nil, &swapchain)); err != nil {
		return errors.New("vk.CreateSwapchain(): " + err.Error())
	}
	w.swapchain = swapchain

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(w.dev.Handle(), w.swapchain, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	w.swapchainImages = make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(w.dev.Handle(), w.swapchain, &numImages, w.swapchainImages)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}
	return nil
}

func (w *VulkanWindow) createImageViews() error {
	for idx := 0; idx < len(w.swapchainImages); idx++ {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    w.swapchainImages[idx],
			ViewType: vk.ImageViewType2d,
			Format:   w.imageFormat,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}

		var imageView vk.ImageView
		if err := vk.Error(vk.CreateImageView(w.dev.Handle(), &ivci, nil, &imageView)); err != nil {
			return errors.New("vk.CreateImageView(): " + err.Error())
		}
		w.swapchainImageViews = append(w.swapchainImageViews, imageView)
	}
	return nil
}

// CreateFramebuffers builds one framebuffer per swapchain image for the
// given render pass. depthView may be nil when the pass has no depth
// attachment.
func (w *VulkanWindow) CreateFramebuffers(renderPass vk.RenderPass, depthView vk.ImageView) error {
	for _, imageView := range w.swapchainImageViews {
		attachments := []vk.ImageView{imageView}
		if depthView != vk.NullImageView {
			attachments = append(attachments, depthView)
		}
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           w.currentSurfaceWidth,
			Height:          w.currentSurfaceHeight,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(w.dev.Handle(), &fci, nil, &framebuffer)); err != nil {
			return errors.New("vk.CreateFramebuffer(): " + err.Error())
		}
		w.framebuffers = append(w.framebuffers, framebuffer)
	}
	return nil
}

// Destroy implements Destroyable.
func (w *VulkanWindow) Destroy() {
	for _, f := range w.framebuffers {
		vk.DestroyFramebuffer(w.dev.Handle(), f, nil)
	}
	for _, iv := range w.swapchainImageViews {
		vk.DestroyImageView(w.dev.Handle(), iv, nil)
	}
	vk.DestroySwapchain(w.dev.Handle(), w.swapchain, nil)
}
