package fileloader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
)

const GLTFVersion = "2.0"

// MeshToGltf 将多个三角网格转换为单缓冲区的 GLTF 文档，每个网格一个节点
func MeshToGltf(meshes ...*TriMesh) (*gltf.Document, error) {
	doc := CreateDoc()
	for _, m := range meshes {
		if err := BuildGltf(doc, m); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// CreateDoc 创建只含一个场景和一个缓冲区的空文档
func CreateDoc() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTFVersion
	srcIndex := uint32(0)
	doc.Scene = &srcIndex
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

// calcPadding 计算需要的填充字节数
func calcPadding(offset, unit int) int {
	padding := offset % unit
	if padding != 0 {
		padding = unit - padding
	}
	return padding
}

// GetGltfBinary 编码为 GLB，并以空格填充到 paddingUnit 的整数倍
func GetGltfBinary(doc *gltf.Document, paddingUnit int) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := &countingWriter{w: buf}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if paddingUnit <= 0 {
		return buf.Bytes(), nil
	}
	padding := calcPadding(int(w.n), paddingUnit)
	if padding == 0 {
		return buf.Bytes(), nil
	}
	buf.Write(bytes.Repeat([]byte{0x20}, padding))
	return buf.Bytes(), nil
}

// SaveGlb 导出网格为 GLB 文件
func SaveGlb(path string, meshes ...*TriMesh) error {
	doc, err := MeshToGltf(meshes...)
	if err != nil {
		return err
	}
	bt, err := GetGltfBinary(doc, 4)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, bt, 0o644)
}

// appendView 将数据写入缓冲区并新增 BufferView，返回其索引
func appendView(doc *gltf.Document, data interface{}) (uint32, error) {
	buffer := doc.Buffers[0]
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return 0, err
	}
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: buffer.ByteLength,
		ByteLength: uint32(buf.Len()),
	}
	buffer.ByteLength += uint32(buf.Len())
	buffer.Data = append(buffer.Data, buf.Bytes()...)
	doc.BufferViews = append(doc.BufferViews, view)
	return uint32(len(doc.BufferViews) - 1), nil
}

func appendAccessor(doc *gltf.Document, acc *gltf.Accessor) uint32 {
	doc.Accessors = append(doc.Accessors, acc)
	return uint32(len(doc.Accessors) - 1)
}

// BuildGltf 构建GLTF文档
func BuildGltf(doc *gltf.Document, m *TriMesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if len(m.Vertices) == 0 {
		return fmt.Errorf("%w: mesh has no vertices", ErrMalformed)
	}

	ps := &gltf.Primitive{Attributes: make(gltf.Attribute), Mode: gltf.PrimitiveTriangles}

	if len(m.Indices) > 0 {
		bv, err := appendView(doc, m.Indices)
		if err != nil {
			return err
		}
		idx := appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bv,
			ComponentType: gltf.ComponentUint,
			Type:          gltf.AccessorScalar,
			Count:         uint32(len(m.Indices)),
		})
		ps.Indices = &idx
	}

	bv, err := appendView(doc, m.Vertices)
	if err != nil {
		return err
	}
	box := m.GetBoundbox()
	ps.Attributes["POSITION"] = appendAccessor(doc, &gltf.Accessor{
		BufferView:    &bv,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(m.Vertices)),
		Min:           []float32{float32(box[0]), float32(box[1]), float32(box[2])},
		Max:           []float32{float32(box[3]), float32(box[4]), float32(box[5])},
	})

	if len(m.Normals) > 0 {
		bv, err := appendView(doc, m.Normals)
		if err != nil {
			return err
		}
		ps.Attributes["NORMAL"] = appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bv,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(m.Normals)),
		})
	}

	if len(m.TexCoords) > 0 {
		bv, err := appendView(doc, m.TexCoords)
		if err != nil {
			return err
		}
		ps.Attributes["TEXCOORD_0"] = appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bv,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec2,
			Count:         uint32(len(m.TexCoords)),
		})
	}

	if len(m.Colors) > 0 {
		colors := make([][3]float32, len(m.Colors))
		for i, c := range m.Colors {
			colors[i] = [3]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255}
		}
		bv, err := appendView(doc, colors)
		if err != nil {
			return err
		}
		ps.Attributes["COLOR_0"] = appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bv,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(colors)),
		})
	}

	mtl, err := buildMaterial(doc, m.Texture, len(m.TexCoords) > 0)
	if err != nil {
		return err
	}
	ps.Material = &mtl

	meshIndex := uint32(len(doc.Meshes))
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Primitives: []*gltf.Primitive{ps}})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: &meshIndex})
	return nil
}

// buildMaterial 有纹理且有纹理坐标时嵌入 PNG 作为基础色贴图
func buildMaterial(doc *gltf.Document, tex image.Image, hasTexCoords bool) (uint32, error) {
	gm := &gltf.Material{DoubleSided: true}
	gm.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}}

	if tex != nil && hasTexCoords {
		buffer := doc.Buffers[0]
		buf := &bytes.Buffer{}
		if err := png.Encode(buf, FlipY(tex)); err != nil {
			return 0, fmt.Errorf("encode texture failed: %w", err)
		}
		imgIndex := uint32(len(doc.BufferViews))
		doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
			Buffer:     0,
			ByteOffset: buffer.ByteLength,
			ByteLength: uint32(buf.Len()),
		})
		// 后续视图保持4字节对齐
		buf.Write(make([]byte, calcPadding(buf.Len(), 4)))
		buffer.ByteLength += uint32(buf.Len())
		buffer.Data = append(buffer.Data, buf.Bytes()...)

		spCount := uint32(len(doc.Samplers))
		imCount := uint32(len(doc.Images))
		doc.Images = append(doc.Images, &gltf.Image{MimeType: "image/png", BufferView: &imgIndex})
		doc.Samplers = append(doc.Samplers, &gltf.Sampler{WrapS: gltf.WrapRepeat, WrapT: gltf.WrapRepeat})

		texIndex := uint32(len(doc.Textures))
		doc.Textures = append(doc.Textures, &gltf.Texture{Sampler: &spCount, Source: &imCount})
		gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: texIndex}
	}

	doc.Materials = append(doc.Materials, gm)
	return uint32(len(doc.Materials) - 1), nil
}
