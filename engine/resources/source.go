package resources

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-valley/common"
	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/loader"
)

// SourceType selects the decoder of a source.
type SourceType string

const (
	// SourceGLTFModel is a glTF or GLB model decoded into a ModelAsset.
	SourceGLTFModel SourceType = "gltfModel"
	// SourceTexture is an image decoded into a TextureAsset.
	SourceTexture SourceType = "texture"
)

// Source declares one asset to load.
type Source struct {
	Name string     `yaml:"name"`
	Type SourceType `yaml:"type"`
	Path string     `yaml:"path"`
}

// ModelAsset is a decoded model and the geometry of its first mesh.
type ModelAsset struct {
	Model    *loader.Model
	Geometry geometry.Geometry
}

// TextureAsset is a decoded RGBA image.
type TextureAsset struct {
	Image *common.Image
}

// LoadError is the failure of a single source.
type LoadError struct {
	Source Source
	Err    error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("loading %s %q from %s: %v", e.Source.Type, e.Source.Name, e.Source.Path, e.Err)
}

func (e LoadError) Unwrap() error {
	return e.Err
}

// Decoder turns a source into a decoded asset.
type Decoder interface {
	// Decode loads and decodes src. It runs on a worker goroutine.
	//
	// Parameters:
	//   - ctx: cancelled when the provider's load context is done
	//   - src: the source to decode
	//
	// Returns:
	//   - any: the decoded asset
	//   - error: error if the source could not be loaded
	Decode(ctx context.Context, src Source) (any, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, src Source) (any, error)

// Decode calls f(ctx, src).
func (f DecoderFunc) Decode(ctx context.Context, src Source) (any, error) {
	return f(ctx, src)
}

// modelDecoder decodes glTF sources through a shared loader, so repeated paths import once.
func modelDecoder(l loader.Loader) Decoder {
	return DecoderFunc(func(ctx context.Context, src Source) (any, error) {
		m, err := l.Load(ctx, src.Path)
		if err != nil {
			return nil, err
		}
		asset := &ModelAsset{Model: m}
		if geo, err := m.FirstGeometry(); err == nil {
			asset.Geometry = geo
		}
		return asset, nil
	})
}

func textureDecoder() Decoder {
	return DecoderFunc(func(ctx context.Context, src Source) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := common.DecodeImageFile(src.Path)
		if err != nil {
			return nil, err
		}
		return &TextureAsset{Image: img}, nil
	})
}
