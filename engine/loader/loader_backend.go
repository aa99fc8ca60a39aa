package loader

import "io"

// loaderBackend defines the generic interface for loading models from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports every mesh primitive of the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if loading fails
	Load(path string) (*Model, error)

	// LoadReader imports a model from a reader stream. External buffers cannot be resolved.
	//
	// Parameters:
	//   - name: a label for the imported meshes
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data, false for glTF JSON
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (*Model, error)
}
