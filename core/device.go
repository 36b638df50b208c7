package core

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// VulkanDevice wraps one logical device together with its graphics
// queue. It implements the device interfaces consumed by the render
// graph (render pass creation), the pipeline factory (pipelines and
// pipeline caches) and the descriptor updater (descriptor writes).
type VulkanDevice struct {
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue

	graphicsQueueIndex   uint32
	separateDepthStencil bool
	id                   string
}

// NewVulkanDevice creates a logical device with one graphics queue on a
// physical device of the instance, selected by cfg.DeviceIndex.
func NewVulkanDevice(instance Instance, cfg DeviceConfiguration) (*VulkanDevice, error) {
	devices := instance.AvailableDevices()
	if len(devices) == 0 {
		return nil, errors.New("core: no Vulkan capable devices found")
	}
	idx := cfg.DeviceIndex
	if idx < 0 || idx >= len(devices) {
		idx = 0
	}
	physical := devices[idx]

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &queueFamilyCount, queueFamilies)

	graphicsIndex := -1
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphicsIndex = int(i)
			break
		}
	}
	if graphicsIndex < 0 {
		return nil, errors.New("core: could not find a queue family with graphics support")
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(graphicsIndex),
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	extensions := safeStrings(cfg.Extensions)
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(physical, &dci, nil, &device)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, uint32(graphicsIndex), 0, &queue)

	return &VulkanDevice{
		physical:             physical,
		device:               device,
		queue:                queue,
		graphicsQueueIndex:   uint32(graphicsIndex),
		separateDepthStencil: cfg.SeparateDepthStencilLayouts,
		id: fmt.Sprintf("%04x:%04x %s", properties.VendorID, properties.DeviceID,
			vk.ToString(properties.DeviceName[:])),
	}, nil
}

// ID returns a stable identity string for the device, used to key
// persisted pipeline-cache files.
func (d *VulkanDevice) ID() string { return d.id }

// Handle returns the native logical device.
func (d *VulkanDevice) Handle() vk.Device { return d.device }

// Physical returns the underlying physical device.
func (d *VulkanDevice) Physical() vk.PhysicalDevice { return d.physical }

// Queue returns the graphics queue.
func (d *VulkanDevice) Queue() vk.Queue { return d.queue }

// GraphicsQueueIndex returns the family index the graphics queue was
// created on.
func (d *VulkanDevice) GraphicsQueueIndex() uint32 { return d.graphicsQueueIndex }

// SupportsSeparateDepthStencilLayouts reports whether depth and stencil
// aspects may use separate image layouts.
func (d *VulkanDevice) SupportsSeparateDepthStencilLayouts() bool {
	return d.separateDepthStencil
}

// CreateRenderPass creates a native render pass object.
func (d *VulkanDevice) CreateRenderPass(info vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.device, &info, nil, &renderPass)); err != nil {
		return vk.NullRenderPass, errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return renderPass, nil
}

// DestroyRenderPass destroys a render pass handle.
func (d *VulkanDevice) DestroyRenderPass(renderPass vk.RenderPass) {
	vk.DestroyRenderPass(d.device, renderPass, nil)
}

// CreateDescriptorSetLayout creates a descriptor set layout from the
// given bindings.
func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layout)); err != nil {
		return vk.NullDescriptorSetLayout, errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}
	return layout, nil
}

// CreatePipelineLayout creates a pipeline layout over the given set
// layouts.
func (d *VulkanDevice) CreatePipelineLayout(setLayouts []vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &plci, nil, &layout)); err != nil {
		return vk.NullPipelineLayout, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	return layout, nil
}

// CreatePipelineCache creates a pipeline cache, optionally pre-populated
// with previously retrieved data.
func (d *VulkanDevice) CreatePipelineCache(initialData []byte) (vk.PipelineCache, error) {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initialData) > 0 {
		pcci.InitialDataSize = uint(len(initialData))
		pcci.PInitialData = unsafe.Pointer(&initialData[0])
	}

	var cache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(d.device, &pcci, nil, &cache)); err != nil {
		return vk.NullPipelineCache, errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	return cache, nil
}

// PipelineCacheData retrieves the cache's blob for persisting.
func (d *VulkanDevice) PipelineCacheData(cache vk.PipelineCache) ([]byte, error) {
	var size uint
	if err := vk.Error(vk.GetPipelineCacheData(d.device, cache, &size, nil)); err != nil {
		return nil, errors.New("vk.GetPipelineCacheData(size): " + err.Error())
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := vk.Error(vk.GetPipelineCacheData(d.device, cache, &size, unsafe.Pointer(&data[0]))); err != nil {
		return nil, errors.New("vk.GetPipelineCacheData(data): " + err.Error())
	}
	return data[:size], nil
}

// MergePipelineCaches folds the source caches into dst.
func (d *VulkanDevice) MergePipelineCaches(dst vk.PipelineCache, srcs ...vk.PipelineCache) error {
	if len(srcs) == 0 {
		return nil
	}
	if err := vk.Error(vk.MergePipelineCaches(d.device, dst, uint32(len(srcs)), srcs)); err != nil {
		return errors.New("vk.MergePipelineCaches(): " + err.Error())
	}
	return nil
}

// DestroyPipelineCache destroys a cache handle.
func (d *VulkanDevice) DestroyPipelineCache(cache vk.PipelineCache) {
	vk.DestroyPipelineCache(d.device, cache, nil)
}

// CreateGraphicsPipeline creates one pipeline through the given cache.
func (d *VulkanDevice) CreateGraphicsPipeline(cache vk.PipelineCache, info vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	gpci := []vk.GraphicsPipelineCreateInfo{info}
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(d.device, cache, 1, gpci, nil, pipelines)); err != nil {
		return vk.NullPipeline, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	return pipelines[0], nil
}

// DestroyPipeline destroys a pipeline handle.
func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.device, pipeline, nil)
}

// UpdateCombinedImageSampler pushes one combined-image-sampler write into
// a live descriptor set.
func (d *VulkanDevice) UpdateCombinedImageSampler(set vk.DescriptorSet, binding, arrayElement uint32, view vk.ImageView, sampler vk.Sampler) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DstArrayElement: arrayElement,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// WaitIdle blocks until the device finished all submitted work.
func (d *VulkanDevice) WaitIdle() {
	vk.DeviceWaitIdle(d.device)
}

// Destroy implements Destroyable.
func (d *VulkanDevice) Destroy() {
	if d == nil {
		return
	}
	vk.DestroyDevice(d.device, nil)
}

func safeStrings(sgs []string) []string {
	safe := []string{}
	for _, s := range sgs {
		safe = append(safe, fmt.Sprintf("%s\x00", s))
	}
	return safe
}
