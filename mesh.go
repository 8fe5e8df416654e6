package fileloader

import (
	"fmt"
	"image"
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// TriMesh 索引三角网格，各加载器的公共输出
type TriMesh struct {
	Vertices  []vec3.T    `json:"vertices"`
	Normals   []vec3.T    `json:"normals,omitempty"`
	Colors    [][3]byte   `json:"colors,omitempty"`
	TexCoords []vec2.T    `json:"texCoords,omitempty"`
	Indices   []uint32    `json:"indices"`
	Texture   image.Image `json:"-"`

	sphere sphereCache
}

func (m *TriMesh) VertexCount() int {
	return len(m.Vertices)
}

func (m *TriMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Validate 检查索引为三的倍数且不越界，属性数组与顶点数一致
func (m *TriMesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrMalformed, len(m.Indices))
	}
	n := uint32(len(m.Vertices))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d out of range [0,%d)", ErrMalformed, idx, i, n)
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrMalformed, len(m.Normals), n)
	}
	if len(m.Colors) != 0 && len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("%w: %d colors for %d vertices", ErrMalformed, len(m.Colors), n)
	}
	if len(m.TexCoords) != 0 && len(m.TexCoords) != len(m.Vertices) {
		return fmt.Errorf("%w: %d texcoords for %d vertices", ErrMalformed, len(m.TexCoords), n)
	}
	return nil
}

func (m *TriMesh) triangle(i int) (vec3.T, vec3.T, vec3.T) {
	return m.Vertices[m.Indices[i*3]], m.Vertices[m.Indices[i*3+1]], m.Vertices[m.Indices[i*3+2]]
}

// ReComputeNormal 按面法线累加并归一化生成顶点法线
func (m *TriMesh) ReComputeNormal() {
	normals := make([]vec3.T, len(m.Vertices))
	for t := 0; t < m.TriangleCount(); t++ {
		pt1, pt2, pt3 := m.triangle(t)

		sub1 := vec3.Sub(&pt3, &pt2)
		sub2 := vec3.Sub(&pt1, &pt2)

		cro := vec3.Cross(&sub1, &sub2)
		l := cro.Length()
		if l == 0 {
			continue
		}
		weightedNormal := cro.Scale(1 / l)

		normals[m.Indices[t*3]].Add(weightedNormal)
		normals[m.Indices[t*3+1]].Add(weightedNormal)
		normals[m.Indices[t*3+2]].Add(weightedNormal)
	}

	for i := range normals {
		if !normals[i].IsZero() {
			normals[i].Normalize()
		}
	}

	m.Normals = normals
}

// Area 三角形面积之和
func (m *TriMesh) Area() float64 {
	var area float64
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.triangle(t)
		ab := vec3.Sub(&b, &a)
		ac := vec3.Sub(&c, &a)
		cro := vec3.Cross(&ab, &ac)
		area += 0.5 * float64(cro.Length())
	}
	return area
}

func (m *TriMesh) GetBoundbox() *[6]float64 {
	minX := math.MaxFloat64
	minY := math.MaxFloat64
	minZ := math.MaxFloat64
	maxX := -math.MaxFloat64
	maxY := -math.MaxFloat64
	maxZ := -math.MaxFloat64
	for i := range m.Vertices {
		minX = math.Min(minX, float64(m.Vertices[i][0]))
		minY = math.Min(minY, float64(m.Vertices[i][1]))
		minZ = math.Min(minZ, float64(m.Vertices[i][2]))

		maxX = math.Max(maxX, float64(m.Vertices[i][0]))
		maxY = math.Max(maxY, float64(m.Vertices[i][1]))
		maxZ = math.Max(maxZ, float64(m.Vertices[i][2]))
	}
	return &[6]float64{minX, minY, minZ, maxX, maxY, maxZ}
}

// ComputeBBox 多个网格的联合包围盒
func ComputeBBox(meshes ...*TriMesh) dvec3.Box {
	if len(meshes) == 0 {
		return dvec3.Box{}
	}

	bbox := dvec3.MinBox
	for _, m := range meshes {
		if len(m.Vertices) == 0 {
			continue
		}
		bx := m.GetBoundbox()
		min := dvec3.T{bx[0], bx[1], bx[2]}
		max := dvec3.T{bx[3], bx[4], bx[5]}
		bbx := dvec3.Box{Min: min, Max: max}
		bbox.Join(&bbx)
	}
	return bbox
}

// BoundingSphere 包围盒中心包围球，结果缓存
func (m *TriMesh) BoundingSphere() BoundingSphere {
	s, _ := m.sphere.get(func() (BoundingSphere, error) {
		return computeBoundingSphere(len(m.Vertices), func(i int) vec3.T { return m.Vertices[i] }), nil
	})
	return s
}

func (m *TriMesh) ResetBoundingSphere() {
	m.sphere.reset()
}
