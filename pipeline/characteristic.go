package pipeline

import (
	vk "github.com/vulkan-go/vulkan"
)

// CharacteristicRange is one independent axis of pipeline variation, for
// example a shader permutation or a blend mode. A characteristic owns a
// consecutive [Begin, End) range of values and contributes a sub-range of
// create-info fields for the current value on every Fill.
type CharacteristicRange interface {
	// Initialize registers the characteristic's sub-slices on the flat
	// create info. Called once before generation starts.
	Initialize(flat *FlatCreateInfo, dev Device) error

	// Fill mutates the registered sub-slices for value index.
	Fill(flat *FlatCreateInfo, index int) error

	// Update folds this characteristic's contribution for value index
	// into the dense pipeline index.
	Update(idx *Index, index int)

	// Begin and End bound the value range, half open.
	Begin() int
	End() int

	// SetStride is called by the factory once all characteristics are
	// known; the stride scales this axis' values into the flattened
	// index space.
	SetStride(stride int)
}

// RangeBase provides the bookkeeping shared by all characteristic ranges;
// embed it and implement Initialize and Fill.
type RangeBase struct {
	begin  int
	end    int
	stride int
}

// NewRangeBase creates a base for the half-open value range [begin, end).
func NewRangeBase(begin, end int) RangeBase {
	return RangeBase{begin: begin, end: end, stride: 1}
}

// Begin returns the first value of the range.
func (r *RangeBase) Begin() int { return r.begin }

// End returns one past the last value of the range.
func (r *RangeBase) End() int { return r.end }

// SetStride implements CharacteristicRange.
func (r *RangeBase) SetStride(stride int) { r.stride = stride }

// Update implements CharacteristicRange: each value maps to a unique slot
// in the flattened index space.
func (r *RangeBase) Update(idx *Index, index int) {
	*idx += Index((index - r.begin) * r.stride)
}

// ShaderStageCharacteristic varies the pipeline over a set of shader stage
// permutations: one []vk.PipelineShaderStageCreateInfo per value.
type ShaderStageCharacteristic struct {
	RangeBase
	Permutations [][]vk.PipelineShaderStageCreateInfo

	stages []vk.PipelineShaderStageCreateInfo
}

// NewShaderStageCharacteristic creates a characteristic iterating over the
// given shader permutations.
func NewShaderStageCharacteristic(permutations [][]vk.PipelineShaderStageCreateInfo) *ShaderStageCharacteristic {
	return &ShaderStageCharacteristic{
		RangeBase:    NewRangeBase(0, len(permutations)),
		Permutations: permutations,
	}
}

// Initialize implements CharacteristicRange.
func (c *ShaderStageCharacteristic) Initialize(flat *FlatCreateInfo, dev Device) error {
	flat.AddShaderStages(&c.stages)
	return nil
}

// Fill implements CharacteristicRange.
func (c *ShaderStageCharacteristic) Fill(flat *FlatCreateInfo, index int) error {
	c.stages = append(c.stages[:0], c.Permutations[index]...)
	return nil
}

// BlendModeCharacteristic varies the pipeline over a set of color blend
// attachment states, one per value.
type BlendModeCharacteristic struct {
	RangeBase
	Modes []vk.PipelineColorBlendAttachmentState

	attachments []vk.PipelineColorBlendAttachmentState
}

// NewBlendModeCharacteristic creates a characteristic iterating over the
// given blend modes.
func NewBlendModeCharacteristic(modes []vk.PipelineColorBlendAttachmentState) *BlendModeCharacteristic {
	return &BlendModeCharacteristic{
		RangeBase: NewRangeBase(0, len(modes)),
		Modes:     modes,
	}
}

// Initialize implements CharacteristicRange.
func (c *BlendModeCharacteristic) Initialize(flat *FlatCreateInfo, dev Device) error {
	flat.AddColorBlendAttachments(&c.attachments)
	return nil
}

// Fill implements CharacteristicRange.
func (c *BlendModeCharacteristic) Fill(flat *FlatCreateInfo, index int) error {
	c.attachments = append(c.attachments[:0], c.Modes[index])
	return nil
}

// VertexInputCharacteristic contributes fixed vertex input bindings and
// attributes plus the viewport/scissor dynamic states. It has a single
// value and so does not multiply the number of generated pipelines.
type VertexInputCharacteristic struct {
	RangeBase
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription

	bindings      []vk.VertexInputBindingDescription
	attributes    []vk.VertexInputAttributeDescription
	dynamicStates []vk.DynamicState
}

// NewVertexInputCharacteristic creates the single-valued vertex input
// characteristic for the given descriptions.
func NewVertexInputCharacteristic(bindings []vk.VertexInputBindingDescription, attributes []vk.VertexInputAttributeDescription) *VertexInputCharacteristic {
	return &VertexInputCharacteristic{
		RangeBase:  NewRangeBase(0, 1),
		Bindings:   bindings,
		Attributes: attributes,
	}
}

// Initialize implements CharacteristicRange.
func (c *VertexInputCharacteristic) Initialize(flat *FlatCreateInfo, dev Device) error {
	flat.AddVertexInputBindings(&c.bindings)
	flat.AddVertexInputAttributes(&c.attributes)
	flat.AddDynamicStates(&c.dynamicStates)
	return nil
}

// Fill implements CharacteristicRange.
func (c *VertexInputCharacteristic) Fill(flat *FlatCreateInfo, index int) error {
	c.bindings = append(c.bindings[:0], c.Bindings...)
	c.attributes = append(c.attributes[:0], c.Attributes...)
	c.dynamicStates = append(c.dynamicStates[:0], vk.DynamicStateViewport, vk.DynamicStateScissor)
	return nil
}
