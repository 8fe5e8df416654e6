package fileloader

import (
	"fmt"
	"io"
	"os"

	"github.com/flywave/go3d/vec3"
	"github.com/hschendel/stl"
)

// StlModel 由三角形汤去重得到的索引网格
type StlModel struct {
	TriMesh
	Name string
}

func LoadStl(path string) (*StlModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeStl(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// DecodeStl 读取 ASCII 或二进制 STL，合并重复坐标并生成顶点法线
func DecodeStl(r io.ReadSeeker) (*StlModel, error) {
	solid, err := stl.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return stlFromSolid(solid), nil
}

func stlFromSolid(solid *stl.Solid) *StlModel {
	m := &StlModel{Name: solid.Name}
	slots := newSlotMap[stl.Vec3](len(solid.Triangles) * 3)
	m.Indices = make([]uint32, 0, len(solid.Triangles)*3)
	for _, t := range solid.Triangles {
		for _, v := range t.Vertices {
			slot, fresh := slots.slot(v)
			if fresh {
				m.Vertices = append(m.Vertices, vec3.T(v))
			}
			m.Indices = append(m.Indices, slot)
		}
	}

	// 顶点法线取相邻面法线的滑动平均
	m.Normals = make([]vec3.T, len(m.Vertices))
	for i, t := range solid.Triangles {
		n := vec3.T(t.Normal)
		if n.IsZero() {
			n = faceNormal(m.triangle(i))
		}
		for c := 0; c < 3; c++ {
			vn := &m.Normals[m.Indices[i*3+c]]
			vn.Add(&n)
			vn.Scale(0.5)
		}
	}
	for i := range m.Normals {
		if !m.Normals[i].IsZero() {
			m.Normals[i].Normalize()
		}
	}
	logger.Printf("stl %q: %d triangles, %d unique vertices", solid.Name, len(solid.Triangles), len(m.Vertices))
	return m
}

func faceNormal(a, b, c vec3.T) vec3.T {
	ab := vec3.Sub(&b, &a)
	ac := vec3.Sub(&c, &a)
	n := vec3.Cross(&ab, &ac)
	if !n.IsZero() {
		n.Normalize()
	}
	return n
}

// Save 写出二进制 STL，面法线由顶点重新计算
func (m *StlModel) Save(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	fw, err := createFile(path)
	if err != nil {
		return err
	}
	err = m.Encode(fw)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *StlModel) Encode(w io.Writer) error {
	solid := &stl.Solid{Name: m.Name, Triangles: make([]stl.Triangle, m.TriangleCount())}
	for i := range solid.Triangles {
		a, b, c := m.triangle(i)
		solid.Triangles[i] = stl.Triangle{
			Normal:   stl.Vec3(faceNormal(a, b, c)),
			Vertices: [3]stl.Vec3{stl.Vec3(a), stl.Vec3(b), stl.Vec3(c)},
		}
	}
	if err := solid.WriteAll(w); err != nil {
		return fmt.Errorf("write stl failed: %w", err)
	}
	return nil
}
