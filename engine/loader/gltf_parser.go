package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var gltfJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
)

// ErrUnsupportedExtension is returned for documents that require an extension the
// loader cannot decode, such as Draco mesh compression.
var ErrUnsupportedExtension = errors.New("unsupported glTF extension")

// gltfParser decodes a glTF or GLB document and reads typed accessor data from it.
type gltfParser struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

func newGLTFParser(baseDir string) *gltfParser {
	return &gltfParser{baseDir: baseDir}
}

// parseFile reads path and parses it, detecting GLB by extension or magic number.
func (p *gltfParser) parseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") ||
		(len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic)
	return p.parse(data, isGLB)
}

func (p *gltfParser) parseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	return p.parse(data, isGLB)
}

func (p *gltfParser) parse(data []byte, isGLB bool) error {
	jsonData := data
	if isGLB {
		var err error
		if jsonData, p.glbBinaryChunk, err = splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := gltfJSON.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedExtension, strings.Join(doc.ExtensionsRequired, ", "))
	}
	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}
	p.document = &doc
	return nil
}

// splitGLB returns the JSON and BIN chunks of a GLB container.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func splitGLB(data []byte) ([]byte, []byte, error) {
	if len(data) < 12 {
		return nil, nil, errors.New("GLB file too small")
	}
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, nil, errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return nil, nil, errInvalidGLBVersion
	}

	var jsonData, binData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunk.ChunkLength) > int64(r.Len()) {
			return nil, nil, fmt.Errorf("chunk length %d exceeds file size", chunk.ChunkLength)
		}
		chunkData := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, nil, fmt.Errorf("failed to read chunk data: %w", err)
		}
		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = chunkData
		case gltfGLBChunkBIN:
			binData = chunkData
		}
	}
	if jsonData == nil {
		return nil, nil, errMissingJSONChunk
	}
	return jsonData, binData, nil
}

func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
			buf.Data = p.glbBinaryChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, err := p.loadBufferURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

func (p *gltfParser) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		comma := strings.Index(uri, ",")
		if comma < 0 {
			return nil, errInvalidBufferURI
		}
		if header := uri[5:comma]; !strings.Contains(header, "base64") {
			return nil, fmt.Errorf("unsupported data URI encoding: %s", header)
		}
		data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return data, nil
	}
	if p.baseDir == "" {
		return nil, fmt.Errorf("external buffer %q cannot be resolved without a base directory", uri)
	}
	data, err := os.ReadFile(filepath.Join(p.baseDir, uri))
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}
	return data, nil
}

// accessorBytes returns the tightly packed elements of an accessor, resolving byte strides.
func (p *gltfParser) accessorBytes(index int) (*gltfAccessor, []byte, error) {
	if p.document == nil {
		return nil, nil, errors.New("no document loaded")
	}
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &p.document.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, errors.New("sparse accessors are not supported")
	}
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, nil, fmt.Errorf("accessor %d has no valid bufferView", index)
	}
	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, fmt.Errorf("bufferView of accessor %d references missing buffer %d", index, bv.Buffer)
	}
	buf := p.document.Buffers[bv.Buffer].Data

	elementSize := componentTypeSize(acc.ComponentType) * accessorComponentCount(acc.Type)
	if elementSize == 0 {
		return nil, nil, fmt.Errorf("accessor %d has unsupported layout %s/%d", index, acc.Type, acc.ComponentType)
	}
	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	offset := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && offset+(acc.Count-1)*stride+elementSize > len(buf) {
		return nil, nil, fmt.Errorf("accessor %d: %w", index, errBufferSizeMismatch)
	}

	out := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		src := offset + i*stride
		copy(out[i*elementSize:(i+1)*elementSize], buf[src:src+elementSize])
	}
	return acc, out, nil
}

// readFloats reads an accessor as float32 components, converting normalized integers.
// It returns the data and the number of components per element.
func (p *gltfParser) readFloats(index int) ([]float32, int, error) {
	acc, data, err := p.accessorBytes(index)
	if err != nil {
		return nil, 0, err
	}
	components := accessorComponentCount(acc.Type)
	out := make([]float32, acc.Count*components)

	switch {
	case acc.ComponentType == gltfComponentTypeFloat:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case acc.Normalized && acc.ComponentType == gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = float32(data[i]) / 255
		}
	case acc.Normalized && acc.ComponentType == gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = float32(binary.LittleEndian.Uint16(data[i*2:])) / 65535
		}
	case acc.Normalized && acc.ComponentType == gltfComponentTypeByte:
		for i := range out {
			out[i] = max(float32(int8(data[i]))/127, -1)
		}
	case acc.Normalized && acc.ComponentType == gltfComponentTypeShort:
		for i := range out {
			out[i] = max(float32(int16(binary.LittleEndian.Uint16(data[i*2:])))/32767, -1)
		}
	default:
		return nil, 0, fmt.Errorf("accessor %d is not float or normalized integer data: %s/%d", index, acc.Type, acc.ComponentType)
	}
	return out, components, nil
}

// readIndices reads a SCALAR unsigned accessor as uint32 indices.
func (p *gltfParser) readIndices(index int) ([]uint32, error) {
	acc, data, err := p.accessorBytes(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	out := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}
	return out, nil
}

// meshOrder returns mesh indices in scene traversal order (default scene, depth first),
// followed by meshes not referenced by any node.
func (p *gltfParser) meshOrder() []int {
	doc := p.document
	var order []int
	visited := make(map[int]bool)

	var walk func(node int, depth int)
	walk = func(node int, depth int) {
		if node < 0 || node >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return
		}
		n := doc.Nodes[node]
		if n.Mesh != nil && *n.Mesh >= 0 && *n.Mesh < len(doc.Meshes) && !visited[*n.Mesh] {
			visited[*n.Mesh] = true
			order = append(order, *n.Mesh)
		}
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}

	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		for _, root := range doc.Scenes[scene].Nodes {
			walk(root, 0)
		}
	}
	for i := range doc.Meshes {
		if !slices.Contains(order, i) {
			order = append(order, i)
		}
	}
	return order
}

func componentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func accessorComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	default:
		return 0
	}
}
