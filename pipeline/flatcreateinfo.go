package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// FlatCreateInfo accumulates the pieces of a graphics pipeline create info
// contributed by characteristic ranges. Each characteristic registers
// pointers to its own sub-slices once during Initialize and mutates them
// on every Fill; the factory merges everything into one flat create info
// per generated pipeline.
type FlatCreateInfo struct {
	shaderStageLists          []*[]vk.PipelineShaderStageCreateInfo
	vertexBindingLists        []*[]vk.VertexInputBindingDescription
	vertexAttributeLists      []*[]vk.VertexInputAttributeDescription
	colorBlendAttachmentLists []*[]vk.PipelineColorBlendAttachmentState
	dynamicStateLists         []*[]vk.DynamicState

	// Fixed function state with workable defaults; characteristics may
	// overwrite these during Initialize.
	InputAssemblyState vk.PipelineInputAssemblyStateCreateInfo
	ViewportState      vk.PipelineViewportStateCreateInfo
	RasterizationState vk.PipelineRasterizationStateCreateInfo
	MultisampleState   vk.PipelineMultisampleStateCreateInfo
	DepthStencilState  vk.PipelineDepthStencilStateCreateInfo
	ColorBlendState    vk.PipelineColorBlendStateCreateInfo
}

// NewFlatCreateInfo creates a FlatCreateInfo with the engine's default
// fixed-function state.
func NewFlatCreateInfo() *FlatCreateInfo {
	return &FlatCreateInfo{
		InputAssemblyState: vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		ViewportState: vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		RasterizationState: vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		MultisampleState: vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		DepthStencilState: vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: vk.True,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
		},
		ColorBlendState: vk.PipelineColorBlendStateCreateInfo{
			SType:   vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp: vk.LogicOpCopy,
		},
	}
}

// AddShaderStages registers a characteristic-owned slice of shader stages.
func (f *FlatCreateInfo) AddShaderStages(list *[]vk.PipelineShaderStageCreateInfo) int {
	f.shaderStageLists = append(f.shaderStageLists, list)
	return len(f.shaderStageLists) - 1
}

// AddVertexInputBindings registers a slice of vertex input bindings.
func (f *FlatCreateInfo) AddVertexInputBindings(list *[]vk.VertexInputBindingDescription) int {
	f.vertexBindingLists = append(f.vertexBindingLists, list)
	return len(f.vertexBindingLists) - 1
}

// AddVertexInputAttributes registers a slice of vertex input attributes.
func (f *FlatCreateInfo) AddVertexInputAttributes(list *[]vk.VertexInputAttributeDescription) int {
	f.vertexAttributeLists = append(f.vertexAttributeLists, list)
	return len(f.vertexAttributeLists) - 1
}

// AddColorBlendAttachments registers a slice of color blend attachment states.
func (f *FlatCreateInfo) AddColorBlendAttachments(list *[]vk.PipelineColorBlendAttachmentState) int {
	f.colorBlendAttachmentLists = append(f.colorBlendAttachmentLists, list)
	return len(f.colorBlendAttachmentLists) - 1
}

// AddDynamicStates registers a slice of dynamic states.
func (f *FlatCreateInfo) AddDynamicStates(list *[]vk.DynamicState) int {
	f.dynamicStateLists = append(f.dynamicStateLists, list)
	return len(f.dynamicStateLists) - 1
}

// A registered slice that is still empty at merge time means a
// characteristic registered it but never filled it, which is a usage
// error; it surfaces at the task boundary.
func checkFilled(kind string, size int) {
	if size == 0 {
		panic(fmt.Errorf("pipeline: a characteristic registered a %s list but never filled it", kind))
	}
}

func (f *FlatCreateInfo) mergeShaderStages() []vk.PipelineShaderStageCreateInfo {
	var out []vk.PipelineShaderStageCreateInfo
	for _, list := range f.shaderStageLists {
		checkFilled("shader stage", len(*list))
		out = append(out, *list...)
	}
	return out
}

func (f *FlatCreateInfo) mergeVertexBindings() []vk.VertexInputBindingDescription {
	var out []vk.VertexInputBindingDescription
	for _, list := range f.vertexBindingLists {
		checkFilled("vertex binding", len(*list))
		out = append(out, *list...)
	}
	return out
}

func (f *FlatCreateInfo) mergeVertexAttributes() []vk.VertexInputAttributeDescription {
	var out []vk.VertexInputAttributeDescription
	for _, list := range f.vertexAttributeLists {
		checkFilled("vertex attribute", len(*list))
		out = append(out, *list...)
	}
	return out
}

func (f *FlatCreateInfo) mergeColorBlendAttachments() []vk.PipelineColorBlendAttachmentState {
	var out []vk.PipelineColorBlendAttachmentState
	for _, list := range f.colorBlendAttachmentLists {
		checkFilled("color blend attachment", len(*list))
		out = append(out, *list...)
	}
	return out
}

func (f *FlatCreateInfo) mergeDynamicStates() []vk.DynamicState {
	var out []vk.DynamicState
	for _, list := range f.dynamicStateLists {
		checkFilled("dynamic state", len(*list))
		out = append(out, *list...)
	}
	return out
}

// Assemble merges every accumulated sub-slice and builds the flat
// vk.GraphicsPipelineCreateInfo for the current combination.
func (f *FlatCreateInfo) Assemble(layout vk.PipelineLayout, renderPass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	shaderStages := f.mergeShaderStages()
	vertexBindings := f.mergeVertexBindings()
	vertexAttributes := f.mergeVertexAttributes()
	blendAttachments := f.mergeColorBlendAttachments()
	dynamicStates := f.mergeDynamicStates()

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(vertexBindings)),
		PVertexBindingDescriptions:      vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(vertexAttributes)),
		PVertexAttributeDescriptions:    vertexAttributes,
	}

	colorBlendState := f.ColorBlendState
	colorBlendState.AttachmentCount = uint32(len(blendAttachments))
	colorBlendState.PAttachments = blendAttachments

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	inputAssembly := f.InputAssemblyState
	viewport := f.ViewportState
	rasterization := f.RasterizationState
	multisample := f.MultisampleState
	depthStencil := f.DepthStencilState

	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		BasePipelineIndex:   -1,
	}
}
