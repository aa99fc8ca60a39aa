package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-valley/engine/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quadPositions = []float32{
	-1, -1, 0,
	1, -1, 0,
	1, 1, 0,
	-1, 1, 0,
}

var quadIndices = []uint16{0, 1, 2, 0, 2, 3}

// quadBuffer returns the positions followed by the uint16 indices, padded to 4 bytes.
func quadBuffer() []byte {
	buf := &bytes.Buffer{}
	for _, f := range quadPositions {
		_ = binary.Write(buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range quadIndices {
		_ = binary.Write(buf, binary.LittleEndian, i)
	}
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func quadDocument(uri string, byteLength int, required ...string) map[string]any {
	doc := map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"nodes": []int{0}}},
		"nodes":  []any{map[string]any{"name": "root", "mesh": 0}},
		"meshes": []any{map[string]any{
			"name": "quad",
			"primitives": []any{map[string]any{
				"attributes": map[string]int{"POSITION": 0},
				"indices":    1,
			}},
		}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 4, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 6, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 48},
			map[string]any{"buffer": 0, "byteOffset": 48, "byteLength": 12},
		},
	}
	buffer := map[string]any{"byteLength": byteLength}
	if uri != "" {
		buffer["uri"] = uri
	}
	doc["buffers"] = []any{buffer}
	if len(required) > 0 {
		doc["extensionsRequired"] = required
	}
	return doc
}

func quadGLTF(t *testing.T, required ...string) []byte {
	t.Helper()
	data := quadBuffer()
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)
	out, err := json.Marshal(quadDocument(uri, len(data), required...))
	require.NoError(t, err)
	return out
}

func quadGLB(t *testing.T) []byte {
	t.Helper()
	bin := quadBuffer()
	js, err := json.Marshal(quadDocument("", len(bin)))
	require.NoError(t, err)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}

	out := &bytes.Buffer{}
	total := 12 + 8 + len(js) + 8 + len(bin)
	require.NoError(t, binary.Write(out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)}))
	require.NoError(t, binary.Write(out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON}))
	out.Write(js)
	require.NoError(t, binary.Write(out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN}))
	out.Write(bin)
	return out.Bytes()
}

func assertQuad(t *testing.T, m *Model) {
	t.Helper()
	geo, err := m.FirstGeometry()
	require.NoError(t, err)
	pos, ok := geo.Attribute(geometry.AttributePosition)
	require.True(t, ok)
	assert.Equal(t, 3, pos.ItemSize)
	assert.Equal(t, quadPositions, pos.Data)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, geo.Index())
	assert.Equal(t, 4, geo.VertexCount())
}

func TestLoadReaderGLTF(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	m, err := l.LoadReader("quad", bytes.NewReader(quadGLTF(t)), false)
	require.NoError(t, err)

	assert.Equal(t, "quad", m.Name)
	require.Len(t, m.Meshes, 1)
	assert.Equal(t, "quad", m.Meshes[0].Name)
	assertQuad(t, m)
	assert.Same(t, m, l.Get("quad"))
}

func TestLoadReaderGLB(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	m, err := l.LoadReader("quad", bytes.NewReader(quadGLB(t)), true)
	require.NoError(t, err)
	assertQuad(t, m)
}

func TestLoadRejectsRequiredExtensions(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	_, err := l.LoadReader("draco", bytes.NewReader(quadGLTF(t, "KHR_draco_mesh_compression")), false)
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
	assert.Nil(t, l.Get("draco"))
}

func TestLoadReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		isGLB bool
	}{
		{name: "bad json", data: []byte("{"), isGLB: false},
		{name: "wrong version", data: []byte(`{"asset":{"version":"1.0"}}`), isGLB: false},
		{name: "short glb", data: []byte("glTF"), isGLB: true},
		{name: "bad magic", data: make([]byte, 20), isGLB: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(BackendTypeGLTF).LoadReader(tt.name, bytes.NewReader(tt.data), tt.isGLB)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileIsSharedAndCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.glb")
	require.NoError(t, os.WriteFile(path, quadGLB(t), 0o644))

	l := NewLoader(BackendTypeGLTF)
	const n = 8
	models := make([]*Model, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := l.Load(context.Background(), path)
			assert.NoError(t, err)
			models[i] = m
		}()
	}
	wg.Wait()

	require.NotNil(t, models[0])
	for _, m := range models[1:] {
		assert.Same(t, models[0], m)
	}
	assertQuad(t, models[0])
	assert.Len(t, l.Models(), 1)
}

func TestLoadFileErrors(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	_, err := l.Load(context.Background(), "model.obj")
	assert.ErrorContains(t, err, "unsupported model file extension")

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.glb"))
	assert.Error(t, err)
}

func TestFirstGeometryWithoutMeshes(t *testing.T) {
	_, err := (&Model{Name: "empty"}).FirstGeometry()
	assert.ErrorIs(t, err, ErrNoMesh)

	var m *Model
	_, err = m.FirstGeometry()
	assert.ErrorIs(t, err, ErrNoMesh)
}

func TestWithModel(t *testing.T) {
	m := &Model{Name: "preset"}
	l := NewLoader(BackendTypeGLTF, WithModel("preset.glb", m))
	got, err := l.Load(context.Background(), "preset.glb")
	require.NoError(t, err)
	assert.Same(t, m, got)
}
