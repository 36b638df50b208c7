package rendergraph

import (
	vk "github.com/vulkan-go/vulkan"
)

// Image layouts introduced by VK_KHR_separate_depth_stencil_layouts. The
// binding predates Vulkan 1.2, so the values are spelled out here.
const (
	ImageLayoutDepthAttachmentOptimal   vk.ImageLayout = 1000241000
	ImageLayoutDepthReadOnlyOptimal     vk.ImageLayout = 1000241001
	ImageLayoutStencilAttachmentOptimal vk.ImageLayout = 1000241002
	ImageLayoutStencilReadOnlyOptimal   vk.ImageLayout = 1000241003
)

// ImageViewKind statically describes the image view behind an attachment:
// its format, which aspects it covers and the layouts declared for it.
type ImageViewKind struct {
	Format        vk.Format
	Aspect        vk.ImageAspectFlagBits
	InitialLayout vk.ImageLayout

	// FinalLayout may be declared for source attachments; Undefined
	// means "not declared".
	FinalLayout vk.ImageLayout
}

// IsColor reports whether the view covers the color aspect.
func (k ImageViewKind) IsColor() bool {
	return k.Aspect&vk.ImageAspectColorBit != 0
}

// IsDepth reports whether the view covers the depth aspect only.
func (k ImageViewKind) IsDepth() bool {
	return k.Aspect&vk.ImageAspectDepthBit != 0 && k.Aspect&vk.ImageAspectStencilBit == 0
}

// IsStencil reports whether the view covers the stencil aspect only.
func (k ImageViewKind) IsStencil() bool {
	return k.Aspect&vk.ImageAspectStencilBit != 0 && k.Aspect&vk.ImageAspectDepthBit == 0
}

// IsDepthStencil reports whether the view covers both depth and stencil.
func (k ImageViewKind) IsDepthStencil() bool {
	const both = vk.ImageAspectDepthBit | vk.ImageAspectStencilBit
	return k.Aspect&both == both
}

// IsDepthAndOrStencil reports whether the view covers depth, stencil or both.
func (k ImageViewKind) IsDepthAndOrStencil() bool {
	return k.Aspect&(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit) != 0
}

// idContext hands out attachment ids, one counter per graph (per window).
type idContext struct {
	next int
}

func (c *idContext) get() int {
	id := c.next
	c.next++
	return id
}

// Attachment is a named, typed image slot used as render pass input or
// output. It is an immutable value created once per graph; render passes
// reference it, never own it.
type Attachment struct {
	id   int
	kind ImageViewKind
	name string
}

// ID returns the attachment's unique id within its graph.
func (a *Attachment) ID() int { return a.id }

// Name returns the human readable name, e.g. "depth" or "output".
func (a *Attachment) Name() string { return a.name }

// Kind returns the static image view description.
func (a *Attachment) Kind() ImageViewKind { return a.kind }

func (a *Attachment) String() string { return a.name }

// ClearOp is the result of Attachment.Clear; the Go spelling of ~attachment.
// Loading and removing are declared on the pass itself (RenderPass.Load,
// RenderPass.Remove).
type ClearOp struct{ attachment *Attachment }

// Clear declares that the pass clears this attachment on entry.
func (a *Attachment) Clear() ClearOp { return ClearOp{a} }

// StoreArg is accepted by Stream.Stores: either a plain *Attachment or a
// ClearOp when the output must be cleared first.
type StoreArg interface {
	storeInto(rp *RenderPass)
}

func (a *Attachment) storeInto(rp *RenderPass) { rp.storeAttachment(a) }
func (op ClearOp) storeInto(rp *RenderPass)    { rp.storeClearAttachment(op.attachment) }
