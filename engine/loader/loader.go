package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
	"golang.org/x/sync/singleflight"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// ErrNoMesh is returned by Model.FirstGeometry for models without mesh primitives.
var ErrNoMesh = errors.New("model has no mesh geometry")

// Mesh is one imported primitive.
type Mesh struct {
	Name     string
	Geometry geometry.Geometry
}

// Model is an imported model: its mesh primitives in scene traversal order.
type Model struct {
	Name   string
	Meshes []Mesh
}

// FirstGeometry returns the geometry of the first mesh in scene order.
func (m *Model) FirstGeometry() (geometry.Geometry, error) {
	if m == nil || len(m.Meshes) == 0 {
		return nil, ErrNoMesh
	}
	return m.Meshes[0].Geometry, nil
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.RWMutex

	modelCache map[string]*Model
	inflight   singleflight.Group

	backend loaderBackend
}

// Loader loads and caches models. Concurrent loads of the same path share one import.
type Loader interface {
	// Load imports a model file and caches the result under its path. A cached model is
	// returned without touching the file; concurrent calls for an uncached path wait on
	// the same import.
	//
	// Parameters:
	//   - ctx: cancels the wait, not the shared import
	//   - path: the file path of a .gltf or .glb file
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if loading fails or ctx is done first
	Load(ctx context.Context, path string) (*Model, error)

	// LoadReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (*Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *Model: the cached model or nil
	Get(name string) *Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]*Model: all cached models keyed by name
	Models() map[string]*Model
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         &sync.RWMutex{},
		modelCache: make(map[string]*Model),
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(ctx context.Context, path string) (*Model, error) {
	if m := l.Get(path); m != nil {
		return m, nil
	}
	if err := l.checkExtension(path); err != nil {
		return nil, err
	}

	ch := l.inflight.DoChan(path, func() (any, error) {
		if m := l.Get(path); m != nil {
			return m, nil
		}
		m, err := l.backend.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		m.Name = path
		l.store(path, m)
		logger.Logger().Debug("model loaded", "path", path, "meshes", len(m.Meshes))
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (*Model, error) {
	m, err := l.backend.LoadReader(name, r, isGLB)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	m.Name = name
	l.store(name, m)
	return m, nil
}

func (l *loader) Get(name string) *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]*Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*Model, len(l.modelCache))
	for k, v := range l.modelCache {
		out[k] = v
	}
	return out
}

func (l *loader) store(name string, m *Model) {
	l.mu.Lock()
	l.modelCache[name] = m
	l.mu.Unlock()
}

func (l *loader) checkExtension(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return nil
	default:
		return fmt.Errorf("unsupported model file extension: %q", filepath.Ext(path))
	}
}
