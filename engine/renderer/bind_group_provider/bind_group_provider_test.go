package bind_group_provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyProvider(t *testing.T) {
	p := NewBindGroupProvider("material 1")
	assert.Equal(t, "material 1", p.Label())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.Sampler(2))
	assert.Nil(t, p.VertexBuffer(0))
	assert.Nil(t, p.IndexBuffer())
	assert.Empty(t, p.Signature())
}

func TestSignatureAndVersion(t *testing.T) {
	p := NewBindGroupProvider("geometry")
	p.SetBindGroup(nil, "1:3|2:1")
	p.SetVersion(4)
	p.SetIndexCount(6)
	assert.Equal(t, "1:3|2:1", p.Signature())
	assert.Equal(t, uint64(4), p.Version())
	assert.Equal(t, 6, p.IndexCount())

	p.Release()
	assert.Empty(t, p.Signature())
	assert.Zero(t, p.Version())
	assert.Zero(t, p.IndexCount())
	p.Release()
}
