package rendergraph

import (
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Device is the slice of the logical device the render graph consumes.
type Device interface {
	// SupportsSeparateDepthStencilLayouts reports whether depth and
	// stencil aspects may use separate image layouts.
	SupportsSeparateDepthStencilLayouts() bool

	// CreateRenderPass creates a native render pass object.
	CreateRenderPass(info vk.RenderPassCreateInfo) (vk.RenderPass, error)
}

// Graph is the DAG of render passes connected by attachment load/store
// dependencies. Attachments and passes are created through it so ids stay
// unique per graph (one graph per window).
type Graph struct {
	idctx     idContext
	passes    []*RenderPass
	chain     []*RenderPass
	presentID int
}

// New creates an empty render graph.
func New() *Graph {
	return &Graph{presentID: -1}
}

// NewAttachment creates an attachment with a graph-unique id.
func (g *Graph) NewAttachment(kind ImageViewKind, name string) *Attachment {
	return &Attachment{id: g.idctx.get(), kind: kind, name: name}
}

// NewRenderPass creates a pass owned by this graph.
func (g *Graph) NewRenderPass(name string) *RenderPass {
	rp := &RenderPass{graph: g, name: name}
	rp.stream.owner = rp
	g.passes = append(g.passes, rp)
	return rp
}

// SetPresentAttachment marks a as the swapchain attachment: the sink node
// holding it receives PresentSrc as final layout.
func (g *Graph) SetPresentAttachment(a *Attachment) {
	g.presentID = a.id
}

func (g *Graph) addPassToChain(rp *RenderPass) {
	g.chain = append(g.chain, rp)
}

// Passes returns every pass created on the graph, in creation order.
func (g *Graph) Passes() []*RenderPass { return g.passes }

// Generate finalizes the declared graph and creates one native render pass
// per node: leftover don't-cares are materialized, source/sink/preserve
// and present flags are derived, load/store ops and layouts inferred, and
// the resulting attachment descriptions handed to the device. Alerts
// raised during finalization are returned as errors.
func (g *Graph) Generate(dev Device) (err error) {
	defer recoverAlert(&err)

	for _, rp := range g.chain {
		rp.doLoadDontCares()
	}
	g.deriveFlags()

	separate := dev.SupportsSeparateDepthStencilLayouts()
	for _, rp := range g.chain {
		if err := g.generatePass(dev, rp, separate); err != nil {
			return err
		}
	}
	return nil
}

// deriveFlags computes source, sink, preserve and present per node. A node
// is a source when no incoming pass stores its attachment, a sink when no
// outgoing pass knows it.
func (g *Graph) deriveFlags() {
	for _, rp := range g.chain {
		for _, node := range rp.knownAttachments {
			node.source = true
			for _, from := range rp.incomingVertices {
				if from.IsStore(node.attachment) {
					node.source = false
					break
				}
			}
			node.sink = true
			for _, to := range rp.outgoingVertices {
				if to.IsKnown(node.attachment) {
					node.sink = false
					break
				}
			}
			node.preserve = node.load && !node.store && !node.sink
			if node.sink && node.attachment.id == g.presentID {
				node.present = true
			}
		}
	}
}

func (g *Graph) generatePass(dev Device, rp *RenderPass, separate bool) error {
	descriptions := make([]vk.AttachmentDescription, 0, len(rp.knownAttachments))
	colorRefs := make([]vk.AttachmentReference, 0, len(rp.knownAttachments))
	var depthRef *vk.AttachmentReference

	for _, node := range rp.knownAttachments {
		a := node.attachment
		loadOp, _ := rp.GetLoadOp(a)
		storeOp, _ := rp.GetStoreOp(a)
		description := vk.AttachmentDescription{
			Format:         a.kind.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        storeOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  rp.GetInitialLayout(a, separate),
			FinalLayout:    rp.GetFinalLayout(a, separate),
		}
		descriptions = append(descriptions, description)

		ref := vk.AttachmentReference{
			Attachment: uint32(node.index),
			Layout:     rp.getOptimalLayout(node, separate),
		}
		if a.kind.IsColor() {
			colorRefs = append(colorRefs, ref)
		} else {
			refCopy := ref
			depthRef = &refCopy
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		PAttachments:    descriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	handle, err := dev.CreateRenderPass(rpci)
	if err != nil {
		return err
	}
	rp.vkRenderPass = handle
	rp.descriptions = descriptions
	rp.renderPassCreated = true

	log.WithFields(log.Fields{
		"renderpass":  rp.name,
		"attachments": len(descriptions),
	}).Debug("render pass generated")
	return nil
}
