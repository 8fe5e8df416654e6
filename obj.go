package fileloader

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// ObjModel 去重后的 OBJ 网格
type ObjModel struct {
	VertexBuffer []VertexData
	IndexBuffer  []uint32
	Texture      image.Image

	sphere sphereCache
}

// LoadObj 读取三角化的 OBJ，texturePath 非空时同时加载纹理
func LoadObj(geometryPath, texturePath string) (*ObjModel, error) {
	f, err := os.Open(geometryPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeObj(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", geometryPath, err)
	}
	if texturePath != "" {
		tex, err := LoadImage(texturePath)
		if err != nil {
			return nil, fmt.Errorf("load texture %s: %w", texturePath, err)
		}
		m.Texture = tex
	}
	return m, nil
}

// DecodeObj 解析 v/vt/vn/f 记录，每个面角必须同时给出三种索引
func DecodeObj(r io.Reader) (*ObjModel, error) {
	var (
		positions []vec3.T
		normals   []vec3.T
		texCoords []vec2.T
		triples   []IndexTriple
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			positions = append(positions, vec3.T{v[0], v[1], v[2]})
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			normals = append(normals, vec3.T{v[0], v[1], v[2]})
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			texCoords = append(texCoords, vec2.T{v[0], v[1]})
		case "f":
			for _, corner := range fields[1:] {
				t, err := parseCorner(corner)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
				}
				triples = append(triples, t)
			}
			if len(triples)%3 != 0 {
				return nil, fmt.Errorf("%w: line %d: face is not a triangle", ErrMalformed, lineNo)
			}
		case "o", "g", "s", "mtllib", "usemtl", "l", "p":
		default:
			logger.Printf("obj line %d: ignoring %q record", lineNo, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	vertices, indices, err := BuildIndexedVertices(positions, normals, texCoords, triples)
	if err != nil {
		return nil, err
	}
	return &ObjModel{VertexBuffer: vertices, IndexBuffer: indices}, nil
}

// parseFloats 解析至少 min 个浮点数，多余分量忽略
func parseFloats(tokens []string, min int) ([]float32, error) {
	if len(tokens) < min {
		return nil, fmt.Errorf("want %d values, got %d", min, len(tokens))
	}
	out := make([]float32, min)
	for i := 0; i < min; i++ {
		v, err := strconv.ParseFloat(tokens[i], 32)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", tokens[i])
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseCorner 解析 v/vt/vn，1 起始索引转为 0 起始
func parseCorner(tok string) (IndexTriple, error) {
	parts := strings.Split(tok, "/")
	if len(parts) != 3 {
		return IndexTriple{}, fmt.Errorf("corner %q needs v/vt/vn", tok)
	}
	var t IndexTriple
	for i, s := range parts {
		if s == "" {
			return IndexTriple{}, fmt.Errorf("corner %q needs v/vt/vn", tok)
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 || v > 1<<32 {
			return IndexTriple{}, fmt.Errorf("bad index %q in corner %q", s, tok)
		}
		t[i] = uint32(v - 1)
	}
	return t, nil
}

// BoundingSphere 包围盒中心包围球，结果缓存
func (m *ObjModel) BoundingSphere() BoundingSphere {
	s, _ := m.sphere.get(func() (BoundingSphere, error) {
		return computeBoundingSphere(len(m.VertexBuffer), func(i int) vec3.T { return m.VertexBuffer[i].Position }), nil
	})
	return s
}

func (m *ObjModel) ResetBoundingSphere() {
	m.sphere.reset()
}

// ToTriMesh 转换为公共三角网格
func (m *ObjModel) ToTriMesh() *TriMesh {
	mesh := &TriMesh{
		Vertices:  make([]vec3.T, len(m.VertexBuffer)),
		Normals:   make([]vec3.T, len(m.VertexBuffer)),
		TexCoords: make([]vec2.T, len(m.VertexBuffer)),
		Indices:   append([]uint32(nil), m.IndexBuffer...),
		Texture:   m.Texture,
	}
	for i, v := range m.VertexBuffer {
		mesh.Vertices[i] = v.Position
		mesh.Normals[i] = v.Normal
		mesh.TexCoords[i] = v.TexCoord
	}
	return mesh
}
