package fileloader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

// LoadGltf 读取 glTF/GLB，每个三角图元转换为一个网格
func LoadGltf(path string) ([]*TriMesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	meshes, err := GltfToMeshes(doc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return meshes, nil
}

func GltfToMeshes(doc *gltf.Document) ([]*TriMesh, error) {
	var out []*TriMesh
	for mi, mh := range doc.Meshes {
		for pi, ps := range mh.Primitives {
			if ps.Mode != gltf.PrimitiveTriangles {
				logger.Printf("gltf mesh %d primitive %d: skipping mode %d", mi, pi, ps.Mode)
				continue
			}
			m, err := transPrimitive(doc, ps)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func transPrimitive(doc *gltf.Document, ps *gltf.Primitive) (*TriMesh, error) {
	idx, ok := ps.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("%w: primitive without POSITION", ErrMalformed)
	}
	pos, err := readFloats(doc, idx, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	m := &TriMesh{Vertices: make([]vec3.T, len(pos)/3)}
	for i := range m.Vertices {
		m.Vertices[i] = vec3.T{pos[i*3], pos[i*3+1], pos[i*3+2]}
	}

	if idx, ok := ps.Attributes["NORMAL"]; ok {
		vs, err := readFloats(doc, idx, gltf.AccessorVec3)
		if err != nil {
			return nil, err
		}
		m.Normals = make([]vec3.T, len(vs)/3)
		for i := range m.Normals {
			m.Normals[i] = vec3.T{vs[i*3], vs[i*3+1], vs[i*3+2]}
		}
	}
	if idx, ok := ps.Attributes["TEXCOORD_0"]; ok {
		vs, err := readFloats(doc, idx, gltf.AccessorVec2)
		if err != nil {
			return nil, err
		}
		m.TexCoords = make([]vec2.T, len(vs)/2)
		for i := range m.TexCoords {
			m.TexCoords[i] = vec2.T{vs[i*2], vs[i*2+1]}
		}
	}
	if idx, ok := ps.Attributes["COLOR_0"]; ok && int(idx) < len(doc.Accessors) && doc.Accessors[idx].Type == gltf.AccessorVec3 {
		vs, err := readFloats(doc, idx, gltf.AccessorVec3)
		if err != nil {
			return nil, err
		}
		m.Colors = make([][3]byte, len(vs)/3)
		for i := range m.Colors {
			for c := 0; c < 3; c++ {
				m.Colors[i][c] = byte(math.Round(float64(vs[i*3+c]) * 255))
			}
		}
	}

	if ps.Indices != nil {
		if m.Indices, err = readIndices(doc, *ps.Indices); err != nil {
			return nil, err
		}
	} else {
		m.Indices = make([]uint32, len(m.Vertices))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	if ps.Material != nil && int(*ps.Material) < len(doc.Materials) {
		tex, err := transTexture(doc, doc.Materials[*ps.Material])
		if err != nil {
			return nil, err
		}
		m.Texture = tex
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// accessorData 返回访问器首元素起的数据与元素跨度
func accessorData(doc *gltf.Document, idx uint32, elemSize int) ([]byte, int, *gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, 0, nil, fmt.Errorf("%w: accessor %d out of range", ErrMalformed, idx)
	}
	acc := doc.Accessors[idx]
	if acc.BufferView == nil || int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, 0, nil, fmt.Errorf("%w: accessor %d has no buffer view", ErrMalformed, idx)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, 0, nil, fmt.Errorf("%w: buffer %d out of range", ErrMalformed, view.Buffer)
	}
	buffer := doc.Buffers[view.Buffer]
	stride := elemSize
	if view.ByteStride != 0 {
		stride = int(view.ByteStride)
	}
	start := int(view.ByteOffset) + int(acc.ByteOffset)
	end := int(view.ByteOffset) + int(view.ByteLength)
	if start > end || end > len(buffer.Data) {
		return nil, 0, nil, fmt.Errorf("%w: accessor %d exceeds its buffer", ErrMalformed, idx)
	}
	if acc.Count > 0 && start+(int(acc.Count)-1)*stride+elemSize > end {
		return nil, 0, nil, fmt.Errorf("%w: accessor %d exceeds its view", ErrMalformed, idx)
	}
	return buffer.Data[start:end], stride, acc, nil
}

func readFloats(doc *gltf.Document, idx uint32, typ gltf.AccessorType) ([]float32, error) {
	n := 3
	if typ == gltf.AccessorVec2 {
		n = 2
	}
	data, stride, acc, err := accessorData(doc, idx, n*4)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != gltf.ComponentFloat || acc.Type != typ {
		return nil, fmt.Errorf("%w: accessor %d is not a float vector", ErrUnsupported, idx)
	}
	out := make([]float32, int(acc.Count)*n)
	for i := 0; i < int(acc.Count); i++ {
		for c := 0; c < n; c++ {
			out[i*n+c] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*stride+c*4:]))
		}
	}
	return out, nil
}

func readIndices(doc *gltf.Document, idx uint32) ([]uint32, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrMalformed, idx)
	}
	var width int
	switch doc.Accessors[idx].ComponentType {
	case gltf.ComponentUbyte:
		width = 1
	case gltf.ComponentUshort:
		width = 2
	case gltf.ComponentUint:
		width = 4
	default:
		return nil, fmt.Errorf("%w: index component type %d", ErrUnsupported, doc.Accessors[idx].ComponentType)
	}
	data, stride, acc, err := accessorData(doc, idx, width)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, acc.Count)
	for i := range out {
		b := data[i*stride:]
		switch width {
		case 1:
			out[i] = uint32(b[0])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(b))
		case 4:
			out[i] = binary.LittleEndian.Uint32(b)
		}
	}
	return out, nil
}

// transTexture 解码嵌入的基础色贴图，行序还原为纹理坐标约定
func transTexture(doc *gltf.Document, mt *gltf.Material) (image.Image, error) {
	if mt.PBRMetallicRoughness == nil || mt.PBRMetallicRoughness.BaseColorTexture == nil {
		return nil, nil
	}
	texIdx := mt.PBRMetallicRoughness.BaseColorTexture.Index
	if int(texIdx) >= len(doc.Textures) || doc.Textures[texIdx].Source == nil || int(*doc.Textures[texIdx].Source) >= len(doc.Images) {
		return nil, fmt.Errorf("%w: texture %d has no source", ErrMalformed, texIdx)
	}
	img := doc.Images[*doc.Textures[texIdx].Source]
	if img.BufferView == nil {
		logger.Printf("gltf texture %d: external image %q not loaded", texIdx, img.URI)
		return nil, nil
	}
	if int(*img.BufferView) >= len(doc.BufferViews) || int(doc.BufferViews[*img.BufferView].Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("%w: image view %d out of range", ErrMalformed, *img.BufferView)
	}
	view := doc.BufferViews[*img.BufferView]
	data := doc.Buffers[view.Buffer].Data
	start, end := int(view.ByteOffset), int(view.ByteOffset)+int(view.ByteLength)
	if end > len(data) {
		return nil, fmt.Errorf("%w: image view exceeds its buffer", ErrMalformed)
	}
	decoded, _, err := image.Decode(bytes.NewReader(data[start:end]))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s texture: %v", ErrMalformed, img.MimeType, err)
	}
	return FlipY(decoded), nil
}
