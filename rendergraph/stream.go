package rendergraph

// Stream is the helper through which passes are chained together. It
// exists so graph wiring reads as
//
//	pass1.Stores(a1).Feeds(pass2).Stores(a2)
//
// which is the Go spelling of the original
//
//	pass1->stores(a1) >> pass2->stores(a2)
//
// Stores must have been called on a pass before it can feed another.
type Stream struct {
	owner *RenderPass
	prev  *Stream
	next  *Stream
}

// Owner returns the render pass this stream belongs to.
func (s *Stream) Owner() *RenderPass { return s.owner }

// Feeds propagates everything the owner stores into next: removed
// attachments are consumed, all others become loaded inputs of next with a
// graph edge owner->next. It returns next's pass so the chain can continue
// with Stores.
func (s *Stream) Feeds(next *RenderPass) *RenderPass {
	if !s.owner.storesCalled {
		throwAlert("render pass %q must call Stores before feeding %q", s.owner, next)
	}
	for _, node := range s.owner.knownAttachments {
		if node.store {
			next.precedingRenderPassStores(s.owner, node.attachment)
		}
	}
	s.next = &next.stream
	next.stream.prev = s
	return next
}

// Source walks back to the first stream of the chain.
func (s *Stream) Source() *Stream {
	source := s
	for source.prev != nil {
		source = source.prev
	}
	return source
}
