package material

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-valley/engine/texture"
)

// UniformKind is the WGSL type of a uniform.
type UniformKind int

const (
	UniformFloat UniformKind = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
	// UniformTexture is a filterable texture sampled through the material's sampler.
	UniformTexture
	// UniformFloatTexture is an unfilterable float texture read with textureLoad.
	UniformFloatTexture
)

// IsTexture reports whether the kind is bound as a texture instead of packed into the uniform block.
func (k UniformKind) IsTexture() bool {
	return k == UniformTexture || k == UniformFloatTexture
}

// String returns the WGSL spelling of the kind.
func (k UniformKind) String() string {
	switch k {
	case UniformFloat:
		return "f32"
	case UniformVec2:
		return "vec2<f32>"
	case UniformVec3:
		return "vec3<f32>"
	case UniformVec4:
		return "vec4<f32>"
	case UniformMat4:
		return "mat4x4<f32>"
	case UniformTexture:
		return "texture_2d<f32>"
	case UniformFloatTexture:
		return "texture_2d<f32> (unfilterable)"
	default:
		return "unknown"
	}
}

// alignSize returns the WGSL uniform address space alignment and size of a block member.
func (k UniformKind) alignSize() (int, int) {
	switch k {
	case UniformFloat:
		return 4, 4
	case UniformVec2:
		return 8, 8
	case UniformVec3:
		return 16, 12
	case UniformVec4:
		return 16, 16
	case UniformMat4:
		return 16, 64
	default:
		return 0, 0
	}
}

// kindOf infers the uniform kind of a Go value.
func kindOf(value any) (UniformKind, error) {
	switch value.(type) {
	case float32:
		return UniformFloat, nil
	case [2]float32:
		return UniformVec2, nil
	case [3]float32:
		return UniformVec3, nil
	case [4]float32:
		return UniformVec4, nil
	case [16]float32:
		return UniformMat4, nil
	case texture.Texture:
		return UniformTexture, nil
	default:
		return 0, fmt.Errorf("unsupported uniform value type %T", value)
	}
}

// Uniform is one declared uniform and its current value.
type Uniform struct {
	Name  string
	Kind  UniformKind
	Value any
}

// Texture returns the uniform's texture, or nil for value uniforms and unset textures.
func (u Uniform) Texture() texture.Texture {
	t, _ := u.Value.(texture.Texture)
	return t
}

// BlockMember is the placement of a value uniform inside the packed uniform block.
type BlockMember struct {
	Name   string
	Kind   UniformKind
	Offset int
	Size   int
}

// BlockLayout computes WGSL uniform block placement for the value uniforms, in
// declaration order. The block size is rounded up to 16 bytes and is never smaller than 16.
//
// Parameters:
//   - uniforms: the declared uniforms, textures are skipped
//
// Returns:
//   - []BlockMember: the placement of each value uniform
//   - int: the total block size in bytes
func BlockLayout(uniforms []Uniform) ([]BlockMember, int) {
	members := make([]BlockMember, 0, len(uniforms))
	offset := 0
	for _, u := range uniforms {
		if u.Kind.IsTexture() {
			continue
		}
		align, size := u.Kind.alignSize()
		offset = roundUp(offset, align)
		members = append(members, BlockMember{Name: u.Name, Kind: u.Kind, Offset: offset, Size: size})
		offset += size
	}
	return members, max(roundUp(offset, 16), 16)
}

// PackBlock writes the value uniforms into a little-endian byte block following BlockLayout.
//
// Parameters:
//   - uniforms: the declared uniforms, textures are skipped
//
// Returns:
//   - []byte: the packed block
func PackBlock(uniforms []Uniform) []byte {
	members, size := BlockLayout(uniforms)
	out := make([]byte, size)
	byName := make(map[string]any, len(uniforms))
	for _, u := range uniforms {
		byName[u.Name] = u.Value
	}
	for _, m := range members {
		var floats []float32
		switch v := byName[m.Name].(type) {
		case float32:
			floats = []float32{v}
		case [2]float32:
			floats = v[:]
		case [3]float32:
			floats = v[:]
		case [4]float32:
			floats = v[:]
		case [16]float32:
			floats = v[:]
		}
		for i, f := range floats {
			binary.LittleEndian.PutUint32(out[m.Offset+i*4:], math.Float32bits(f))
		}
	}
	return out
}

func roundUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
