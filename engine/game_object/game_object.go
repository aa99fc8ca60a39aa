// Package game_object holds the renderable entities a scene draws: a geometry, the
// material that shades it, and a transform.
package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/renderer/material"
)

// Kind selects how an object's geometry is drawn.
type Kind int

const (
	// KindMesh draws the geometry as triangles.
	KindMesh Kind = iota
	// KindPoints draws one sprite per vertex.
	KindPoints
)

var objectCount atomic.Uint64

type gameObject struct {
	mu *sync.Mutex

	id            uint64
	label         string
	kind          Kind
	enabled       atomic.Bool
	frustumCulled bool
	renderOrder   int

	geo geometry.Geometry
	mat material.Material

	position [3]float32
	rotation [3]float32
	scale    [3]float32
}

// GameObject defines the interface for a renderable scene entity.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Label returns the debug label.
	Label() string

	// Kind returns whether the object is drawn as a mesh or as points.
	Kind() Kind

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled shows or hides the object.
	SetEnabled(enabled bool)

	// FrustumCulled reports whether the renderer may skip the object when it is outside the view.
	FrustumCulled() bool

	// RenderOrder returns the sort key used within the opaque and transparent draw lists.
	RenderOrder() int

	// Geometry returns the object's geometry.
	Geometry() geometry.Geometry

	// Material returns the object's material.
	Material() material.Material

	// SetMaterial replaces the object's material.
	//
	// Parameters:
	//   - m: the new material
	SetMaterial(m material.Material)

	// Position returns the object's position.
	Position() (x, y, z float32)

	// Rotation returns the object's Euler rotation in radians, applied in X, Y, Z order.
	Rotation() (rx, ry, rz float32)

	// Scale returns the object's scale.
	Scale() (sx, sy, sz float32)

	// SetPosition sets the object's position.
	SetPosition(x, y, z float32)

	// SetRotation sets the object's Euler rotation in radians.
	SetRotation(rx, ry, rz float32)

	// SetScale sets the object's scale.
	SetScale(sx, sy, sz float32)

	// ModelMatrix returns the column-major model matrix composed from scale, rotation and position.
	//
	// Returns:
	//   - [16]float32: the model matrix
	ModelMatrix() [16]float32
}

var _ GameObject = &gameObject{}

// NewGameObject creates a renderable object. Objects are enabled, frustum culled and
// unscaled unless options say otherwise.
//
// Parameters:
//   - geo: the geometry to draw
//   - mat: the material that shades it
//   - options: functional options applied in order
//
// Returns:
//   - GameObject: the new object
func NewGameObject(geo geometry.Geometry, mat material.Material, options ...GameObjectBuilderOption) GameObject {
	g := &gameObject{
		mu:            &sync.Mutex{},
		id:            objectCount.Add(1),
		frustumCulled: true,
		geo:           geo,
		mat:           mat,
		scale:         [3]float32{1, 1, 1},
	}
	g.enabled.Store(true)
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Label() string {
	return g.label
}

func (g *gameObject) Kind() Kind {
	return g.kind
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) FrustumCulled() bool {
	return g.frustumCulled
}

func (g *gameObject) RenderOrder() int {
	return g.renderOrder
}

func (g *gameObject) Geometry() geometry.Geometry {
	return g.geo
}

func (g *gameObject) Material() material.Material {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mat
}

func (g *gameObject) SetMaterial(m material.Material) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mat = m
}

func (g *gameObject) Position() (x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = [3]float32{x, y, z}
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = [3]float32{sx, sy, sz}
}

func (g *gameObject) ModelMatrix() [16]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out [16]float32
	common.BuildModelMatrix(out[:], vec3(g.position), vec3(g.rotation), vec3(g.scale))
	return out
}

func vec3(v [3]float32) common.Vec3 {
	return common.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
