// Package texture describes GPU textures independently of the backend that allocates
// them. Backends attach their own resources to a Texture and watch its version to
// know when the allocation or the pixel data must be refreshed.
package texture

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Format is the texel format of a texture.
type Format int

const (
	// FormatRGBA8Unorm is 8-bit RGBA in linear space.
	FormatRGBA8Unorm Format = iota
	// FormatRGBA8UnormSrgb is 8-bit RGBA decoded from sRGB on sampling.
	FormatRGBA8UnormSrgb
	// FormatRGBA32Float is 32-bit float RGBA, used for simulation state.
	FormatRGBA32Float
	// FormatBGRA8Unorm is 8-bit BGRA, a common swapchain format.
	FormatBGRA8Unorm
	// FormatBGRA8UnormSrgb is 8-bit BGRA encoded to sRGB on write, a common swapchain format.
	FormatBGRA8UnormSrgb
)

// BytesPerTexel returns the size of one texel.
func (f Format) BytesPerTexel() int {
	if f == FormatRGBA32Float {
		return 16
	}
	return 4
}

// IsSrgb reports whether the format encodes sRGB.
func (f Format) IsSrgb() bool {
	return f == FormatRGBA8UnormSrgb || f == FormatBGRA8UnormSrgb
}

// Filterable reports whether the format can be sampled with a linear filter.
func (f Format) Filterable() bool {
	return f != FormatRGBA32Float
}

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Filter is a sampling filter.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Wrap is a sampling address mode.
type Wrap int

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// Usage is a bitmask of the ways a texture is used.
type Usage uint32

const (
	// UsageSampled allows binding the texture for sampling in shaders.
	UsageSampled Usage = 1 << iota
	// UsageRenderTarget allows rendering into the texture.
	UsageRenderTarget
	// UsageStorage allows compute shaders to write the texture.
	UsageStorage
	// UsageUpload allows writing pixel data from the CPU.
	UsageUpload
)

// Descriptor describes a texture allocation.
type Descriptor struct {
	Label  string
	Width  int
	Height int
	Format Format

	MinFilter Filter
	MagFilter Filter
	WrapS     Wrap
	WrapT     Wrap

	// GenerateMipmaps requests a full mip chain. Render targets sampled at native
	// resolution leave it off.
	GenerateMipmaps bool

	Usage Usage
}

// Validate checks the descriptor for a usable size.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("texture %q has invalid size %dx%d", d.Label, d.Width, d.Height)
	}
	return nil
}

// ByteSize returns the size in bytes of the level 0 image.
func (d Descriptor) ByteSize() int {
	return d.Width * d.Height * d.Format.BytesPerTexel()
}

var textureCount atomic.Uint64

// texture is the implementation of the Texture interface.
type texture struct {
	mu *sync.Mutex

	id   uint64
	desc Descriptor

	data     []byte
	version  uint64
	released bool

	handle    any
	onRelease func()
}

// Texture is a backend-agnostic texture. Its identity is stable for its lifetime even
// when its size or contents change; Version increments on every such change.
type Texture interface {
	// ID returns the process-unique texture id.
	ID() uint64

	// Label returns the debug label.
	Label() string

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Descriptor returns a copy of the current descriptor.
	//
	// Returns:
	//   - Descriptor: the texture's descriptor
	Descriptor() Descriptor

	// Data returns the CPU-side pixel data pending upload, or nil.
	//
	// Returns:
	//   - []byte: tightly packed texel data of Descriptor().ByteSize() bytes, or nil
	Data() []byte

	// SetData replaces the CPU-side pixel data and bumps the version.
	//
	// Parameters:
	//   - data: tightly packed texel data
	//
	// Returns:
	//   - error: an error if the data size does not match the descriptor
	SetData(data []byte) error

	// Resize changes the texture's size, dropping any CPU-side data, and bumps the version.
	//
	// Parameters:
	//   - width: the new width in texels
	//   - height: the new height in texels
	Resize(width, height int)

	// Version returns a counter that changes whenever size or data change.
	Version() uint64

	// Handle returns the backend resource attached to this texture, or nil.
	Handle() any

	// SetHandle attaches a backend resource and the function that frees it.
	//
	// Parameters:
	//   - handle: the backend resource
	//   - release: called once when the texture is released, may be nil
	SetHandle(handle any, release func())

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the backend resource. Further calls are no-ops.
	Release()
}

var _ Texture = &texture{}

// NewTexture creates a texture from a descriptor.
//
// Parameters:
//   - desc: the texture descriptor
//   - data: optional initial texel data, may be nil
//
// Returns:
//   - Texture: the new texture
//   - error: an error if the descriptor or data is invalid
func NewTexture(desc Descriptor, data []byte) (Texture, error) {
	return newTexture(desc, data)
}

func newTexture(desc Descriptor, data []byte) (*texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	t := &texture{
		mu:   &sync.Mutex{},
		id:   textureCount.Add(1),
		desc: desc,
	}
	if t.desc.Label == "" {
		t.desc.Label = fmt.Sprintf("Texture %d", t.id)
	}
	if data != nil {
		if err := t.SetData(data); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *texture) ID() uint64 {
	return t.id
}

func (t *texture) Label() string {
	return t.desc.Label
}

func (t *texture) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc.Width
}

func (t *texture) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc.Height
}

func (t *texture) Descriptor() Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.desc
}

func (t *texture) Data() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

func (t *texture) SetData(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(data) != t.desc.ByteSize() {
		return fmt.Errorf("texture %q expects %d bytes of data, got %d", t.desc.Label, t.desc.ByteSize(), len(data))
	}
	t.data = data
	t.version++
	return nil
}

func (t *texture) Resize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == t.desc.Width && height == t.desc.Height {
		return
	}
	t.desc.Width = width
	t.desc.Height = height
	t.data = nil
	t.version++
}

func (t *texture) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

func (t *texture) Handle() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

func (t *texture) SetHandle(handle any, release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handle = handle
	t.onRelease = release
}

func (t *texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *texture) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	release := t.onRelease
	t.handle = nil
	t.onRelease = nil
	t.mu.Unlock()

	if release != nil {
		release()
	}
}
