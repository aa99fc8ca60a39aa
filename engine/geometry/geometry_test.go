package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAttributeValidates(t *testing.T) {
	g := NewGeometry("")
	assert.NotEmpty(t, g.Label())
	assert.Error(t, g.SetAttribute("", Attribute{Data: []float32{1}, ItemSize: 1}))
	assert.Error(t, g.SetAttribute("position", Attribute{Data: []float32{1, 2}, ItemSize: 3}))
	assert.Error(t, g.SetAttribute("position", Attribute{Data: []float32{1}, ItemSize: 0}))
	assert.Zero(t, g.Version())

	require.NoError(t, g.SetAttribute(AttributePosition, Attribute{Data: make([]float32, 12), ItemSize: 3}))
	require.NoError(t, g.SetAttribute("aSize", Attribute{Data: make([]float32, 4), ItemSize: 1}))
	require.NoError(t, g.SetAttribute(AttributePosition, Attribute{Data: make([]float32, 12), ItemSize: 3}))
	assert.Equal(t, []string{AttributePosition, "aSize"}, g.AttributeNames())
	assert.Equal(t, 4, g.VertexCount())
	assert.Equal(t, uint64(3), g.Version())

	_, ok := g.Attribute("missing")
	assert.False(t, ok)
}

func TestDrawCount(t *testing.T) {
	g := NewGeometry("points")
	require.NoError(t, g.SetAttribute("aParticlesUv", Attribute{Data: make([]float32, 2*9), ItemSize: 2}))

	start, count := g.DrawCount()
	assert.Equal(t, 0, start)
	assert.Equal(t, 9, count)

	g.SetDrawRange(0, 7)
	_, count = g.DrawCount()
	assert.Equal(t, 7, count)

	g.SetDrawRange(5, 100)
	start, count = g.DrawCount()
	assert.Equal(t, 5, start)
	assert.Equal(t, 4, count)

	g.SetDrawRange(-3, -1)
	assert.Equal(t, DrawRange{Start: 0, Count: -1}, g.DrawRange())
}

func TestDrawCountIndexed(t *testing.T) {
	g := NewPlane(1, 1, 2, 2)
	_, count := g.DrawCount()
	assert.Equal(t, 2*2*6, count)
}

func TestPlane(t *testing.T) {
	g := NewPlane(2, 4, 1, 1)
	assert.Equal(t, 4, g.VertexCount())

	pos, ok := g.Attribute(AttributePosition)
	require.True(t, ok)
	assert.Equal(t, []float32{-1, 2, 0, 1, 2, 0, -1, -2, 0, 1, -2, 0}, pos.Data)

	uv, ok := g.Attribute(AttributeUV)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 1, 1, 0, 0, 1, 0}, uv.Data)

	assert.Equal(t, []uint32{0, 2, 1, 2, 3, 1}, g.Index())
}
