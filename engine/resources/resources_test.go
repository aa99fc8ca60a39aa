package resources

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-valley/engine/events"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	ready    int
	failed   int
	failures []LoadError
}

func observe(bus events.EventBus) *outcome {
	o := &outcome{}
	bus.On(string(TopicReady), func(...any) any {
		o.ready++
		return nil
	})
	bus.On(string(TopicLoadFailed), func(args ...any) any {
		o.failed++
		if len(args) > 0 {
			o.failures, _ = args[0].([]LoadError)
		}
		return nil
	})
	return o
}

func planeDecoder() Decoder {
	return DecoderFunc(func(ctx context.Context, src Source) (any, error) {
		return &ModelAsset{Geometry: geometry.NewPlane(1, 1, 1, 1)}, nil
	})
}

func TestNoSourcesIsReadyAtOnce(t *testing.T) {
	bus := events.NewEventBus()
	o := observe(bus)
	p := NewResourceProvider(bus, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 1, o.ready)
	assert.Equal(t, StateReady, p.State())

	bus.TriggerAll("tick")
	assert.Equal(t, 1, o.ready)
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)
}

func TestReadyPublishedFromTick(t *testing.T) {
	bus := events.NewEventBus()
	o := observe(bus)
	release := make(chan struct{})
	blocking := DecoderFunc(func(ctx context.Context, src Source) (any, error) {
		<-release
		return &ModelAsset{Geometry: geometry.NewPlane(1, 1, 1, 1)}, nil
	})
	p := NewResourceProvider(bus, []Source{
		{Name: "valley", Type: SourceGLTFModel, Path: "valley.glb"},
		{Name: "wind", Type: SourceGLTFModel, Path: "wind.glb"},
	}, WithDecoder(SourceGLTFModel, blocking), WithWorkers(2), WithIdleTimeout(50*time.Millisecond))

	require.NoError(t, p.Start(context.Background()))
	bus.TriggerAll("tick")
	assert.Equal(t, 0, o.ready)
	assert.Equal(t, StateLoading, p.State())
	assert.Empty(t, p.Items())

	close(release)
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loads did not finish")
	}

	bus.TriggerAll("tick")
	bus.TriggerAll("tick")
	assert.Equal(t, 1, o.ready)
	assert.Equal(t, 0, o.failed)
	assert.Equal(t, StateReady, p.State())
	assert.Len(t, p.Items(), 2)

	geo, err := p.Geometry("valley")
	require.NoError(t, err)
	assert.Equal(t, 4, geo.VertexCount())
}

func TestOneFailureReportsLoadFailed(t *testing.T) {
	bus := events.NewEventBus()
	o := observe(bus)
	boom := errors.New("decode failed")
	p := NewResourceProvider(bus, []Source{
		{Name: "valley", Type: SourceGLTFModel, Path: "valley.glb"},
		{Name: "broken", Type: SourceTexture, Path: "broken.png"},
	},
		WithDecoder(SourceGLTFModel, planeDecoder()),
		WithDecoder(SourceTexture, DecoderFunc(func(ctx context.Context, src Source) (any, error) {
			return nil, boom
		})),
	)

	err := p.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	bus.TriggerAll("tick")
	assert.Equal(t, 0, o.ready)
	assert.Equal(t, 1, o.failed)
	require.Len(t, o.failures, 1)
	assert.Equal(t, "broken", o.failures[0].Source.Name)
	assert.ErrorIs(t, o.failures[0], boom)
	assert.Equal(t, StateFailed, p.State())

	_, err = p.Geometry("valley")
	assert.ErrorIs(t, err, ErrMissingAsset)
}

func TestUnknownSourceTypeAndPanics(t *testing.T) {
	bus := events.NewEventBus()
	o := observe(bus)
	p := NewResourceProvider(bus, []Source{
		{Name: "sound", Type: "audio", Path: "wind.ogg"},
		{Name: "model", Type: SourceGLTFModel, Path: "model.glb"},
	}, WithDecoder(SourceGLTFModel, DecoderFunc(func(ctx context.Context, src Source) (any, error) {
		panic("corrupt")
	})))

	err := p.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSourceType)
	assert.ErrorContains(t, err, "decoder panicked")

	failures := p.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "sound", failures[0].Source.Name)
	assert.Equal(t, "model", failures[1].Source.Name)
	assert.Equal(t, 1, o.failed)
}

func TestDefaultDecoders(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{B: 255, A: 255})
	file, err := os.Create(filepath.Join(dir, "lines.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())

	model := &loader.Model{Name: "preset", Meshes: []loader.Mesh{{Name: "m", Geometry: geometry.NewPlane(1, 1, 2, 2)}}}
	bus := events.NewEventBus()
	p := NewResourceProvider(bus, []Source{
		{Name: "lines", Type: SourceTexture, Path: filepath.Join(dir, "lines.png")},
		{Name: "model", Type: SourceGLTFModel, Path: "preset.glb"},
	}, WithLoader(loader.NewLoader(loader.BackendTypeGLTF, loader.WithModel("preset.glb", model))))

	require.NoError(t, p.Load(context.Background()))

	tex, err := p.Texture("lines")
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Width)
	assert.Equal(t, 1, tex.Height)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, tex.Pixels)

	geo, err := p.Geometry("model")
	require.NoError(t, err)
	assert.Equal(t, 9, geo.VertexCount())

	_, err = p.Texture("model")
	assert.ErrorIs(t, err, ErrMissingAsset)
}

func TestLoadErrorFormatting(t *testing.T) {
	err := LoadError{Source: Source{Name: "valley", Type: SourceGLTFModel, Path: "a.glb"}, Err: os.ErrNotExist}
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), `gltfModel "valley"`)
}
