package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextureValidates(t *testing.T) {
	_, err := NewTexture(Descriptor{Width: 0, Height: 4}, nil)
	assert.Error(t, err)

	_, err = NewTexture(Descriptor{Width: 2, Height: 2}, make([]byte, 3))
	assert.ErrorContains(t, err, "expects 16 bytes")

	tex, err := NewTexture(Descriptor{Width: 2, Height: 2, Format: FormatRGBA32Float}, make([]byte, 64))
	require.NoError(t, err)
	assert.NotEmpty(t, tex.Label())
	assert.Len(t, tex.Data(), 64)
	assert.Equal(t, uint64(1), tex.Version())
}

func TestTextureIDsAreUnique(t *testing.T) {
	a, err := NewTexture(Descriptor{Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	b, err := NewTexture(Descriptor{Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestResizeBumpsVersion(t *testing.T) {
	tex, err := NewTexture(Descriptor{Width: 2, Height: 2}, make([]byte, 16))
	require.NoError(t, err)
	v := tex.Version()

	tex.Resize(2, 2)
	assert.Equal(t, v, tex.Version())

	tex.Resize(4, 0)
	assert.Equal(t, 4, tex.Width())
	assert.Equal(t, 1, tex.Height())
	assert.Nil(t, tex.Data())
	assert.Greater(t, tex.Version(), v)
}

func TestReleaseRunsOnce(t *testing.T) {
	tex, err := NewTexture(Descriptor{Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	calls := 0
	tex.SetHandle("gpu", func() { calls++ })
	assert.Equal(t, "gpu", tex.Handle())

	tex.Release()
	tex.Release()
	assert.Equal(t, 1, calls)
	assert.True(t, tex.Released())
	assert.Nil(t, tex.Handle())
}

func TestRenderTargetDefaults(t *testing.T) {
	rt, err := NewRenderTarget("particles", 1600, 1200)
	require.NoError(t, err)

	desc := rt.Descriptor()
	assert.False(t, desc.GenerateMipmaps)
	assert.Equal(t, FormatRGBA8Unorm, desc.Format)
	assert.NotZero(t, desc.Usage&UsageRenderTarget)
	assert.NotZero(t, desc.Usage&UsageSampled)
	assert.Equal(t, rt.ID(), rt.Texture().ID())

	id := rt.ID()
	rt.SetSize(800, 600)
	assert.Equal(t, id, rt.ID())
	assert.Equal(t, 800, rt.Width())
	assert.Equal(t, 600, rt.Texture().Height())
}

func TestRenderTargetOptions(t *testing.T) {
	rt, err := NewRenderTarget("state", 8, 8,
		WithFormat(FormatRGBA32Float),
		WithFilter(FilterNearest, FilterNearest),
		WithWrap(WrapRepeat, WrapRepeat),
		WithMipmaps(false),
		WithUsage(UsageStorage),
	)
	require.NoError(t, err)
	desc := rt.Descriptor()
	assert.Equal(t, FormatRGBA32Float, desc.Format)
	assert.False(t, desc.Format.Filterable())
	assert.Equal(t, 16, desc.Format.BytesPerTexel())
	assert.Equal(t, FilterNearest, desc.MinFilter)
	assert.Equal(t, WrapRepeat, desc.WrapT)
	assert.NotZero(t, desc.Usage&UsageStorage)

	_, err = NewRenderTarget("bad", 0, 8)
	assert.Error(t, err)
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "rgba32float", FormatRGBA32Float.String())
	assert.Equal(t, "format(9)", Format(9).String())
}
