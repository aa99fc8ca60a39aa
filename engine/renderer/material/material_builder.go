package material

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithUniform declares a value uniform. The kind is inferred from the value, which must
// be a float32, [2]float32, [3]float32, [4]float32 or [16]float32.
//
// Parameters:
//   - name: the uniform name, matching the WGSL struct member
//   - value: the initial value
//
// Returns:
//   - MaterialBuilderOption: a function that declares the uniform on a material
func WithUniform(name string, value any) MaterialBuilderOption {
	return func(m *material) {
		kind, err := kindOf(value)
		if err == nil && kind.IsTexture() {
			err = fmt.Errorf("uniform %q: use WithTexture for textures", name)
		}
		if err != nil {
			if m.err == nil {
				m.err = fmt.Errorf("uniform %q: %w", name, err)
			}
			return
		}
		m.declare(name, kind, value)
	}
}

// WithTexture declares a filterable texture uniform sampled through the material's sampler.
//
// Parameters:
//   - name: the uniform name
//   - tex: the initial texture, may be nil
//
// Returns:
//   - MaterialBuilderOption: a function that declares the texture on a material
func WithTexture(name string, tex texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.declare(name, UniformTexture, textureValue(tex))
	}
}

// WithFloatTexture declares an unfilterable float texture uniform read with textureLoad.
//
// Parameters:
//   - name: the uniform name
//   - tex: the initial texture, may be nil
//
// Returns:
//   - MaterialBuilderOption: a function that declares the texture on a material
func WithFloatTexture(name string, tex texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.declare(name, UniformFloatTexture, textureValue(tex))
	}
}

// textureValue keeps a nil texture as an untyped nil so Uniform comparisons stay simple.
func textureValue(tex texture.Texture) any {
	if tex == nil {
		return nil
	}
	return tex
}

// WithAttributes sets the vertex attributes consumed by the vertex stage, in location order.
//
// Parameters:
//   - attributes: the attributes
//
// Returns:
//   - MaterialBuilderOption: a function that sets the attributes on a material
func WithAttributes(attributes ...VertexAttribute) MaterialBuilderOption {
	return func(m *material) {
		m.attributes = append(m.attributes, attributes...)
	}
}

// WithTopology sets the primitive assembly mode.
func WithTopology(topology Topology) MaterialBuilderOption {
	return func(m *material) {
		m.topology = topology
	}
}

// WithBlending sets the blend equation.
func WithBlending(blending Blending) MaterialBuilderOption {
	return func(m *material) {
		m.blending = blending
	}
}

// WithTransparent marks the material as transparent: it blends normally unless another
// blend equation is set, and it does not write depth.
//
// Parameters:
//   - transparent: true for a transparent material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the transparency option to a material
func WithTransparent(transparent bool) MaterialBuilderOption {
	return func(m *material) {
		m.transparent = transparent
		if transparent {
			if m.blending == BlendingNone {
				m.blending = BlendingNormal
			}
			m.depthWrite = false
		}
	}
}

// WithDoubleSided disables back-face culling.
func WithDoubleSided(doubleSided bool) MaterialBuilderOption {
	return func(m *material) {
		m.doubleSided = doubleSided
	}
}

// WithDepth sets depth testing and depth writing.
func WithDepth(test, write bool) MaterialBuilderOption {
	return func(m *material) {
		m.depthTest = test
		m.depthWrite = write
	}
}
