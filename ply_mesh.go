package fileloader

import (
	"fmt"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

var (
	plyIndexNames    = []string{"vertex_indices", "vertex_index"}
	plyTexCoordNames = [][2]string{{"s", "t"}, {"u", "v"}, {"texture_u", "texture_v"}}
)

// ToTriMesh 将 vertex/face 元素转换为三角网格
func (m *PlyModel) ToTriMesh() (*TriMesh, error) {
	pos, err := m.positions()
	if err != nil {
		return nil, err
	}
	mesh := &TriMesh{Vertices: pos}
	n := len(pos)

	if axes, ok := m.vertexChannels(n, "nx", "ny", "nz"); ok {
		mesh.Normals = make([]vec3.T, n)
		for i := range mesh.Normals {
			mesh.Normals[i] = vec3.T{float32(axes[0][i]), float32(axes[1][i]), float32(axes[2][i])}
		}
	}
	if axes, ok := m.vertexChannels(n, "red", "green", "blue"); ok {
		mesh.Colors = make([][3]byte, n)
		for i := range mesh.Colors {
			mesh.Colors[i] = [3]byte{byte(axes[0][i]), byte(axes[1][i]), byte(axes[2][i])}
		}
	}
	for _, names := range plyTexCoordNames {
		if axes, ok := m.vertexChannels(n, names[0], names[1]); ok {
			mesh.TexCoords = make([]vec2.T, n)
			for i := range mesh.TexCoords {
				mesh.TexCoords[i] = vec2.T{float32(axes[0][i]), float32(axes[1][i])}
			}
			break
		}
	}

	for _, name := range plyIndexNames {
		p, _ := m.GetPropertyIn("face", name)
		if p == nil {
			continue
		}
		if !p.IsList {
			return nil, fmt.Errorf("%w: face property %q is not a list", ErrMalformed, name)
		}
		idx, err := p.AsUint32s()
		if err != nil {
			return nil, err
		}
		mesh.Indices = idx
		break
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// vertexChannels 读取 vertex 块中一组标量属性，任一缺失返回 false
func (m *PlyModel) vertexChannels(n int, names ...string) ([][]float64, bool) {
	out := make([][]float64, len(names))
	for i, name := range names {
		p, count := m.GetPropertyIn("vertex", name)
		if p == nil || p.IsList || count != n {
			return nil, false
		}
		out[i] = p.AsFloat64s()
	}
	return out, true
}
