package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
)

// gltfAttributeNames maps glTF attribute semantics to geometry attribute names, in import order.
var gltfAttributeNames = []struct{ semantic, name string }{
	{"POSITION", geometry.AttributePosition},
	{"NORMAL", geometry.AttributeNormal},
	{"TEXCOORD_0", geometry.AttributeUV},
	{"COLOR_0", "color"},
}

// gltfMeshExtractor converts the meshes of a parsed document into geometries.
type gltfMeshExtractor struct {
	parser *gltfParser
}

func newGLTFMeshExtractor(parser *gltfParser) *gltfMeshExtractor {
	return &gltfMeshExtractor{parser: parser}
}

// extractAll returns one Mesh per primitive in scene traversal order.
func (e *gltfMeshExtractor) extractAll(modelName string) ([]Mesh, error) {
	doc := e.parser.document
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var meshes []Mesh
	for _, meshIndex := range e.parser.meshOrder() {
		mesh := &doc.Meshes[meshIndex]
		name := mesh.Name
		if name == "" {
			name = fmt.Sprintf("%s/mesh%d", modelName, meshIndex)
		}
		for primIndex := range mesh.Primitives {
			label := name
			if len(mesh.Primitives) > 1 {
				label = fmt.Sprintf("%s/%d", name, primIndex)
			}
			geo, err := e.extractPrimitive(&mesh.Primitives[primIndex], label)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIndex, err)
			}
			meshes = append(meshes, Mesh{Name: label, Geometry: geo})
		}
	}
	return meshes, nil
}

func (e *gltfMeshExtractor) extractPrimitive(prim *gltfPrimitive, label string) (geometry.Geometry, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles && *prim.Mode != gltfPrimitiveModePoints {
		return nil, fmt.Errorf("unsupported primitive mode: %d", *prim.Mode)
	}
	if _, ok := prim.Attributes["POSITION"]; !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}

	geo := geometry.NewGeometry(label)
	for _, attr := range gltfAttributeNames {
		semantic, name := attr.semantic, attr.name
		accessor, ok := prim.Attributes[semantic]
		if !ok {
			continue
		}
		data, components, err := e.parser.readFloats(accessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", semantic, err)
		}
		if err := geo.SetAttribute(name, geometry.Attribute{Data: data, ItemSize: components}); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", semantic, err)
		}
	}

	if prim.Indices != nil {
		index, err := e.parser.readIndices(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
		vertexCount := uint32(geo.VertexCount())
		for _, i := range index {
			if i >= vertexCount {
				return nil, fmt.Errorf("index %d out of range for %d vertices", i, vertexCount)
			}
		}
		geo.SetIndex(index)
	}
	return geo, nil
}
