// Package geometry holds CPU-side buffer geometry: named float attributes, an optional
// index, and the draw range submitted to the GPU.
package geometry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Well-known attribute names.
const (
	AttributePosition = "position"
	AttributeNormal   = "normal"
	AttributeUV       = "uv"
)

// Attribute is a tightly packed float attribute with ItemSize components per vertex.
type Attribute struct {
	Data     []float32
	ItemSize int
}

// Count returns the number of vertices the attribute describes.
func (a Attribute) Count() int {
	if a.ItemSize <= 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// DrawRange limits drawing to Count vertices (or indices) starting at Start.
// A negative Count draws everything after Start.
type DrawRange struct {
	Start int
	Count int
}

var geometryCount atomic.Uint64

// geometry is the implementation of the Geometry interface.
type geometry struct {
	mu *sync.Mutex

	id    uint64
	label string

	names      []string
	attributes map[string]Attribute
	index      []uint32

	drawRange DrawRange
	version   uint64
}

// Geometry is a set of vertex attributes with an optional index.
type Geometry interface {
	// ID returns the process-unique geometry id.
	ID() uint64

	// Label returns the debug label.
	Label() string

	// SetAttribute adds or replaces a named attribute.
	//
	// Parameters:
	//   - name: the attribute name, e.g. AttributePosition
	//   - attr: the attribute data
	//
	// Returns:
	//   - error: an error if the data length is not a multiple of the item size
	SetAttribute(name string, attr Attribute) error

	// Attribute returns a named attribute.
	//
	// Parameters:
	//   - name: the attribute name
	//
	// Returns:
	//   - Attribute: the attribute
	//   - bool: false if the geometry has no such attribute
	Attribute(name string) (Attribute, bool)

	// AttributeNames returns attribute names in insertion order.
	AttributeNames() []string

	// SetIndex sets the triangle index, nil removes it.
	SetIndex(index []uint32)

	// Index returns the triangle index, or nil for non-indexed geometry.
	Index() []uint32

	// VertexCount returns the number of vertices in the position attribute.
	VertexCount() int

	// SetDrawRange limits which vertices (or indices) are drawn.
	//
	// Parameters:
	//   - start: the first vertex or index drawn
	//   - count: the number drawn, negative for all remaining
	SetDrawRange(start, count int)

	// DrawRange returns the configured draw range.
	DrawRange() DrawRange

	// DrawCount resolves the draw range against the geometry's element count.
	//
	// Returns:
	//   - int: the first element drawn
	//   - int: the number of elements drawn
	DrawCount() (int, int)

	// Version returns a counter that changes whenever attributes or the index change.
	Version() uint64
}

var _ Geometry = &geometry{}

// NewGeometry creates an empty geometry drawing all of its elements.
//
// Parameters:
//   - label: debug label, a generated one is used when empty
//
// Returns:
//   - Geometry: the new geometry
func NewGeometry(label string) Geometry {
	g := &geometry{
		mu:         &sync.Mutex{},
		id:         geometryCount.Add(1),
		label:      label,
		attributes: make(map[string]Attribute),
		drawRange:  DrawRange{Start: 0, Count: -1},
	}
	if g.label == "" {
		g.label = fmt.Sprintf("Geometry %d", g.id)
	}
	return g
}

func (g *geometry) ID() uint64 {
	return g.id
}

func (g *geometry) Label() string {
	return g.label
}

func (g *geometry) SetAttribute(name string, attr Attribute) error {
	if name == "" {
		return fmt.Errorf("geometry %q: attribute name is empty", g.label)
	}
	if attr.ItemSize < 1 || attr.ItemSize > 4 {
		return fmt.Errorf("geometry %q: attribute %q has invalid item size %d", g.label, name, attr.ItemSize)
	}
	if len(attr.Data)%attr.ItemSize != 0 {
		return fmt.Errorf("geometry %q: attribute %q length %d is not a multiple of %d", g.label, name, len(attr.Data), attr.ItemSize)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.attributes[name]; !ok {
		g.names = append(g.names, name)
	}
	g.attributes[name] = attr
	g.version++
	return nil
}

func (g *geometry) Attribute(name string) (Attribute, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.attributes[name]
	return a, ok
}

func (g *geometry) AttributeNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, len(g.names))
	copy(names, g.names)
	return names
}

func (g *geometry) SetIndex(index []uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index = index
	g.version++
}

func (g *geometry) Index() []uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}

func (g *geometry) VertexCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attributes[AttributePosition].Count()
}

func (g *geometry) SetDrawRange(start, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if start < 0 {
		start = 0
	}
	g.drawRange = DrawRange{Start: start, Count: count}
}

func (g *geometry) DrawRange() DrawRange {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drawRange
}

func (g *geometry) DrawCount() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := len(g.index)
	if g.index == nil {
		total = g.elementCountLocked()
	}
	start := min(g.drawRange.Start, total)
	count := total - start
	if g.drawRange.Count >= 0 {
		count = min(count, g.drawRange.Count)
	}
	return start, count
}

// elementCountLocked returns the vertex count of a non-indexed geometry: the position
// count when present, otherwise the smallest attribute count.
func (g *geometry) elementCountLocked() int {
	if pos, ok := g.attributes[AttributePosition]; ok {
		return pos.Count()
	}
	count := -1
	for _, a := range g.attributes {
		if count < 0 || a.Count() < count {
			count = a.Count()
		}
	}
	return max(count, 0)
}

func (g *geometry) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}
