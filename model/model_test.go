package model

import (
	"testing"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
)

func TestVertexDescriptionsMatchLayout(t *testing.T) {
	bindings := VertexBindingDescriptions()
	if len(bindings) != 1 {
		t.Fatalf("got %d bindings, want 1", len(bindings))
	}
	if bindings[0].Stride != uint32(unsafe.Sizeof(Vertex{})) {
		t.Errorf("stride = %d, want sizeof(Vertex) = %d",
			bindings[0].Stride, unsafe.Sizeof(Vertex{}))
	}

	attributes := VertexAttributeDescriptions()
	if len(attributes) != 3 {
		t.Fatalf("got %d attributes, want pos, color and uv", len(attributes))
	}
	for i, attr := range attributes {
		if attr.Binding != bindings[0].Binding {
			t.Errorf("attribute %d bound to %d, want %d", i, attr.Binding, bindings[0].Binding)
		}
		if attr.Location != uint32(i) {
			t.Errorf("attribute %d at location %d", i, attr.Location)
		}
		if attr.Offset >= bindings[0].Stride {
			t.Errorf("attribute %d offset %d outside the vertex", i, attr.Offset)
		}
	}
	if attributes[0].Offset >= attributes[1].Offset || attributes[1].Offset >= attributes[2].Offset {
		t.Error("attribute offsets must follow field order")
	}
}

func TestMesh(t *testing.T) {
	mesh := Triangle()
	if len(mesh.Vertices()) != 3 {
		t.Fatalf("triangle has %d vertices", len(mesh.Vertices()))
	}
	if mesh.Position() != glm.Ident4() {
		t.Error("new mesh should sit at the origin")
	}

	p := glm.Translate3D(1, 2, 3)
	mesh.SetPosition(p)
	if mesh.Position() != p {
		t.Error("SetPosition not reflected by Position")
	}

	r := glm.HomogRotate3DY(0.5)
	mesh.SetRotation(r)
	if mesh.Rotation() != r {
		t.Error("SetRotation not reflected by Rotation")
	}
}
