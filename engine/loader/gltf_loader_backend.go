package loader

import (
	"io"
	"path/filepath"
	"strings"
)

// gltfLoaderBackend is the loaderBackend for glTF and GLB files.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend() *gltfLoaderBackend {
	return &gltfLoaderBackend{}
}

func (b *gltfLoaderBackend) Load(path string) (*Model, error) {
	p := newGLTFParser(filepath.Dir(path))
	if err := p.parseFile(path); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return b.extract(p, name)
}

func (b *gltfLoaderBackend) LoadReader(name string, r io.Reader, isGLB bool) (*Model, error) {
	p := newGLTFParser("")
	if err := p.parseReader(r, isGLB); err != nil {
		return nil, err
	}
	return b.extract(p, name)
}

func (b *gltfLoaderBackend) extract(p *gltfParser, name string) (*Model, error) {
	meshes, err := newGLTFMeshExtractor(p).extractAll(name)
	if err != nil {
		return nil, err
	}
	return &Model{Name: name, Meshes: meshes}, nil
}
