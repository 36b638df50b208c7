package rendergraph

import (
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// AttachmentNode is the per-(render pass, attachment) state accumulated
// while the graph is being declared and finalized.
type AttachmentNode struct {
	pass       *RenderPass
	attachment *Attachment
	index      int

	load     bool
	clear    bool
	store    bool
	preserve bool
	source   bool
	sink     bool
	present  bool
}

// Attachment returns the attachment this node refers to.
func (n *AttachmentNode) Attachment() *Attachment { return n.attachment }

// Index returns the index assigned to the attachment within its pass.
func (n *AttachmentNode) Index() int { return n.index }

// IsLoad reports whether the pass loads the attachment on entry.
func (n *AttachmentNode) IsLoad() bool { return n.load }

// IsClear reports whether the pass clears the attachment on entry.
func (n *AttachmentNode) IsClear() bool { return n.clear }

// IsStore reports whether the pass stores the attachment on exit.
func (n *AttachmentNode) IsStore() bool { return n.store }

// IsPreserve reports whether the attachment is kept read-only through the pass.
func (n *AttachmentNode) IsPreserve() bool { return n.preserve }

// IsSource reports whether no predecessor pass provides this attachment.
func (n *AttachmentNode) IsSource() bool { return n.source }

// IsSink reports whether no successor pass consumes this attachment.
func (n *AttachmentNode) IsSink() bool { return n.sink }

// IsPresent reports whether the sink attachment is presented to a swapchain.
func (n *AttachmentNode) IsPresent() bool { return n.present }

// SearchType selects how ForAllRenderPassesUntil walks the graph.
type SearchType int

const (
	// Subsequent follows only the linear stream (Feeds) pointer.
	Subsequent SearchType = iota
	// Outgoing follows all successor edges, depth first.
	Outgoing
	// Incoming follows all predecessor edges, depth first.
	Incoming
)

// RenderPass is a node in the render graph. It owns the ordered list of
// attachment nodes declared on it and the edges to other passes.
type RenderPass struct {
	graph *Graph
	name  string

	knownAttachments  []*AttachmentNode
	removeOrDontCare  []*Attachment
	nextIndex         int
	incomingVertices  []*RenderPass
	outgoingVertices  []*RenderPass
	stream            Stream
	storesCalled      bool
	vkRenderPass      vk.RenderPass
	descriptions      []vk.AttachmentDescription
	renderPassCreated bool
}

// Name returns the pass's name.
func (rp *RenderPass) Name() string { return rp.name }

func (rp *RenderPass) String() string { return rp.name }

// Stream returns the stream helper used for stores/feeds chaining.
func (rp *RenderPass) Stream() *Stream { return &rp.stream }

// Handle returns the created vk.RenderPass. Only valid after Generate.
func (rp *RenderPass) Handle() vk.RenderPass { return rp.vkRenderPass }

// AttachmentDescriptions returns the inferred descriptions, in index
// order. Only valid after Generate.
func (rp *RenderPass) AttachmentDescriptions() []vk.AttachmentDescription {
	return rp.descriptions
}

// Clear declares the attachment as a cleared input of the pass; rp.Clear(a)
// spells the original pass[~a].
func (rp *RenderPass) Clear(a *Attachment) *RenderPass {
	node := rp.getNode(a)
	if node.load {
		throwAlert("attachment %q is already loaded by render pass %q; clear and load are mutually exclusive", a, rp)
	}
	node.clear = true
	return rp
}

// Load declares the attachment as a loaded input of the pass; rp.Load(a)
// spells the original pass[+a].
func (rp *RenderPass) Load(a *Attachment) *RenderPass {
	node := rp.getNode(a)
	if node.clear {
		throwAlert("attachment %q is already cleared by render pass %q; clear and load are mutually exclusive", a, rp)
	}
	node.load = true
	return rp
}

// Remove declares the attachment as removed-or-don't-care; rp.Remove(a)
// spells the original pass[-a]. If a preceding pass stores the attachment
// the removal consumes it (the attachment drops out of the chain), anything
// left at finalize becomes a LOAD_OP_DONT_CARE attachment.
func (rp *RenderPass) Remove(a *Attachment) *RenderPass {
	if rp.findNode(a) != nil {
		throwAlert("trying to remove attachment %q after first adding it, in render pass %q", a, rp)
	}
	if rp.findRemoved(a) >= 0 {
		throwAlert("can't remove attachment %q twice in render pass %q", a, rp)
	}
	rp.removeOrDontCare = append(rp.removeOrDontCare, a)
	return rp
}

// Stores declares the pass's outputs and returns its stream for chaining
// with Feeds. Declaring the same pass in two chains is an error.
func (rp *RenderPass) Stores(args ...StoreArg) *Stream {
	if rp.storesCalled {
		throwAlert("render pass %q occurs more than once in the graph", rp)
	}
	rp.storesCalled = true
	for _, arg := range args {
		arg.storeInto(rp)
	}
	rp.graph.addPassToChain(rp)
	return &rp.stream
}

func (rp *RenderPass) storeAttachment(a *Attachment) {
	node := rp.getNode(a)
	if node.clear {
		throwAlert("attachment %q already specified as input; put the clear in the Stores() of render pass %q", a, rp)
	}
	node.store = true
}

func (rp *RenderPass) storeClearAttachment(a *Attachment) {
	node := rp.getNode(a)
	node.store = true
	node.clear = true
}

// preceding render pass stores a: consume a pending removal, or mark the
// attachment as loaded and record the graph edge.
func (rp *RenderPass) precedingRenderPassStores(from *RenderPass, a *Attachment) {
	if i := rp.findRemoved(a); i >= 0 {
		rp.removeOrDontCare = append(rp.removeOrDontCare[:i], rp.removeOrDontCare[i+1:]...)
		return
	}
	node := rp.getNode(a)
	node.load = true
	from.addOutgoing(rp)
	rp.addIncoming(from)
}

func (rp *RenderPass) addOutgoing(to *RenderPass) {
	for _, p := range rp.outgoingVertices {
		if p == to {
			return
		}
	}
	rp.outgoingVertices = append(rp.outgoingVertices, to)
}

func (rp *RenderPass) addIncoming(from *RenderPass) {
	for _, p := range rp.incomingVertices {
		if p == from {
			return
		}
	}
	rp.incomingVertices = append(rp.incomingVertices, from)
}

func (rp *RenderPass) findNode(a *Attachment) *AttachmentNode {
	for _, node := range rp.knownAttachments {
		if node.attachment.id == a.id {
			return node
		}
	}
	return nil
}

func (rp *RenderPass) findRemoved(a *Attachment) int {
	for i, removed := range rp.removeOrDontCare {
		if removed.id == a.id {
			return i
		}
	}
	return -1
}

func (rp *RenderPass) getNode(a *Attachment) *AttachmentNode {
	if node := rp.findNode(a); node != nil {
		return node
	}
	if rp.findRemoved(a) >= 0 {
		throwAlert("can't add (load, clear or store) attachment %q that is explicitly removed from render pass %q", a, rp)
	}
	log.WithFields(log.Fields{
		"renderpass": rp.name,
		"attachment": a.name,
		"index":      rp.nextIndex,
	}).Debug("assigning attachment index")
	node := &AttachmentNode{pass: rp, attachment: a, index: rp.nextIndex}
	rp.nextIndex++
	rp.knownAttachments = append(rp.knownAttachments, node)
	return node
}

// Leftover removals were never consumed by a preceding store; they become
// known don't-care attachments.
func (rp *RenderPass) doLoadDontCares() {
	dontCares := rp.removeOrDontCare
	rp.removeOrDontCare = nil
	for _, a := range dontCares {
		rp.getNode(a)
	}
}

// IsKnown reports whether the pass references the attachment at all.
func (rp *RenderPass) IsKnown(a *Attachment) bool { return rp.findNode(a) != nil }

// IsLoad reports whether the pass loads the attachment.
func (rp *RenderPass) IsLoad(a *Attachment) bool {
	if node := rp.findNode(a); node != nil {
		return node.load
	}
	return false
}

// IsClear reports whether the pass clears the attachment.
func (rp *RenderPass) IsClear(a *Attachment) bool {
	if node := rp.findNode(a); node != nil {
		return node.clear
	}
	return false
}

// IsStore reports whether the pass stores the attachment.
func (rp *RenderPass) IsStore(a *Attachment) bool {
	if node := rp.findNode(a); node != nil {
		return node.store
	}
	return false
}

// Node returns the attachment node for a, or nil when unknown.
func (rp *RenderPass) Node(a *Attachment) *AttachmentNode { return rp.findNode(a) }

// HasIncoming reports whether any pass feeds into this one.
func (rp *RenderPass) HasIncoming() bool { return len(rp.incomingVertices) > 0 }

// HasOutgoing reports whether this pass feeds into any other.
func (rp *RenderPass) HasOutgoing() bool { return len(rp.outgoingVertices) > 0 }

// GetLoadOp returns the inferred load op for the attachment; ok is false
// when the attachment is unknown to this pass.
func (rp *RenderPass) GetLoadOp(a *Attachment) (op vk.AttachmentLoadOp, ok bool) {
	node := rp.findNode(a)
	if node == nil {
		return 0, false
	}
	switch {
	case node.clear:
		return vk.AttachmentLoadOpClear, true
	case node.load:
		return vk.AttachmentLoadOpLoad, true
	default:
		return vk.AttachmentLoadOpDontCare, true
	}
}

// GetStoreOp returns the inferred store op for the attachment; ok is false
// when the attachment is unknown to this pass.
func (rp *RenderPass) GetStoreOp(a *Attachment) (op vk.AttachmentStoreOp, ok bool) {
	node := rp.findNode(a)
	if node == nil {
		return 0, false
	}
	if node.store || node.preserve {
		return vk.AttachmentStoreOpStore, true
	}
	return vk.AttachmentStoreOpDontCare, true
}

func (rp *RenderPass) getOptimalLayout(node *AttachmentNode, separateDepthStencil bool) vk.ImageLayout {
	kind := node.attachment.kind
	if kind.IsColor() {
		return vk.ImageLayoutColorAttachmentOptimal
	}
	if kind.IsDepthAndOrStencil() {
		switch {
		case kind.IsDepthStencil() || !separateDepthStencil:
			if node.preserve {
				return vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			return vk.ImageLayoutDepthStencilAttachmentOptimal
		case kind.IsDepth():
			if node.preserve {
				return ImageLayoutDepthReadOnlyOptimal
			}
			return ImageLayoutDepthAttachmentOptimal
		case kind.IsStencil():
			if node.preserve {
				return ImageLayoutStencilReadOnlyOptimal
			}
			return ImageLayoutStencilAttachmentOptimal
		}
	}
	throwAlert("couldn't figure out optimal layout for attachment %q in render pass %q", node.attachment, rp)
	return vk.ImageLayoutGeneral
}

// GetInitialLayout returns the inferred initial layout, Undefined for an
// unknown attachment. For a source node the declared initial layout of the
// attachment is used and must match any declared final layout.
func (rp *RenderPass) GetInitialLayout(a *Attachment, separateDepthStencil bool) vk.ImageLayout {
	node := rp.findNode(a)
	if node == nil {
		return vk.ImageLayoutUndefined
	}
	if !node.source {
		return rp.getOptimalLayout(node, separateDepthStencil)
	}
	initial := a.kind.InitialLayout
	final := a.kind.FinalLayout
	if final != vk.ImageLayoutUndefined && initial != final {
		throwAlert("the initial layout of attachment %q should be %d, but it is %d", a, final, initial)
	}
	return initial
}

// GetFinalLayout returns the inferred final layout, Undefined for an
// unknown attachment. A storing sink must be a present attachment or the
// layout cannot be resolved.
func (rp *RenderPass) GetFinalLayout(a *Attachment, separateDepthStencil bool) vk.ImageLayout {
	node := rp.findNode(a)
	if node == nil {
		return vk.ImageLayoutUndefined
	}
	if !node.sink || !node.store {
		return rp.getOptimalLayout(node, separateDepthStencil)
	}
	if node.present {
		return vk.ImageLayoutPresentSrc
	}
	throwAlert("couldn't figure out the final layout of attachment %q in render pass %q: sink stores but is not presented", a, rp)
	return vk.ImageLayoutGeneral
}

// ForAllRenderPassesUntil walks the graph from this pass, depth first,
// calling visit for every pass reached. Returning true from visit stops
// the descent below that pass. The path of passes leading to the current
// one is passed along for reporting.
func (rp *RenderPass) ForAllRenderPassesUntil(mode SearchType, visit func(rp *RenderPass, path []*RenderPass) bool) {
	visited := make(map[*RenderPass]bool)
	var path []*RenderPass
	rp.walk(mode, visit, visited, &path)
}

func (rp *RenderPass) walk(mode SearchType, visit func(*RenderPass, []*RenderPass) bool, visited map[*RenderPass]bool, path *[]*RenderPass) {
	if visited[rp] {
		return
	}
	visited[rp] = true

	if visit(rp, *path) {
		return
	}
	*path = append(*path, rp)

	switch mode {
	case Subsequent:
		if next := rp.stream.next; next != nil {
			next.owner.walk(mode, visit, visited, path)
		}
	case Outgoing:
		for _, node := range rp.outgoingVertices {
			node.walk(mode, visit, visited, path)
		}
	case Incoming:
		for _, node := range rp.incomingVertices {
			node.walk(mode, visit, visited, path)
		}
	}

	*path = (*path)[:len(*path)-1]
}
