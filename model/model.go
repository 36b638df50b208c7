// Package model holds the vertex level data types shared between the
// pipeline factory's vertex input characteristic and the viewer.
package model

import (
	"sync"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Object represents the engine supported model
type Object interface {

	// SetPosition sets the object's current position in space.
	// Has to be thread-safe
	SetPosition(glm.Mat4)

	// Position gets the object's current position in space.
	// Has to be thread-safe
	Position() glm.Mat4

	// SetRotation sets the object's rotation matrix.
	// Has to be thread-safe
	SetRotation(glm.Mat4)

	// Rotation gets the object's rotation matrix.
	// Has to be thread-safe
	Rotation() glm.Mat4

	// Vertices returns the vertices for Renderer use,
	// so it has to match the descriptors exactly
	Vertices() []Vertex
}

// Vertex is a model vertex
type Vertex struct {
	Pos   glm.Vec3
	Color glm.Vec4
	UV    glm.Vec2
}

// Uniform defines a model-view-projection object
type Uniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.UV)),
		},
	}
}

// Mesh is a basic in-memory Object.
type Mesh struct {
	mu       sync.RWMutex
	position glm.Mat4
	rotation glm.Mat4
	vertices []Vertex
}

// NewMesh creates a mesh at the origin from the given vertices.
func NewMesh(vertices []Vertex) *Mesh {
	return &Mesh{
		position: glm.Ident4(),
		rotation: glm.Ident4(),
		vertices: vertices,
	}
}

// SetPosition implements Object.
func (m *Mesh) SetPosition(p glm.Mat4) {
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()
}

// Position implements Object.
func (m *Mesh) Position() glm.Mat4 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// SetRotation implements Object.
func (m *Mesh) SetRotation(r glm.Mat4) {
	m.mu.Lock()
	m.rotation = r
	m.mu.Unlock()
}

// Rotation implements Object.
func (m *Mesh) Rotation() glm.Mat4 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rotation
}

// Vertices implements Object.
func (m *Mesh) Vertices() []Vertex {
	return m.vertices
}

// Triangle returns a unit triangle, the viewer's fallback mesh.
func Triangle() *Mesh {
	return NewMesh([]Vertex{
		{Pos: glm.Vec3{0, -0.5, 0}, Color: glm.Vec4{1, 0, 0, 1}, UV: glm.Vec2{0.5, 0}},
		{Pos: glm.Vec3{0.5, 0.5, 0}, Color: glm.Vec4{0, 1, 0, 1}, UV: glm.Vec2{1, 1}},
		{Pos: glm.Vec3{-0.5, 0.5, 0}, Color: glm.Vec4{0, 0, 1, 1}, UV: glm.Vec2{0, 1}},
	})
}
