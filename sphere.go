package fileloader

import (
	"fmt"
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

// BoundingSphere 包围球，前三个分量为球心，第四个为半径
type BoundingSphere [4]float32

func (s BoundingSphere) Center() vec3.T {
	return vec3.T{s[0], s[1], s[2]}
}

func (s BoundingSphere) Radius() float32 {
	return s[3]
}

// sphereCache 首次访问时计算，显式 reset 后失效
type sphereCache struct {
	valid bool
	value BoundingSphere
}

func (c *sphereCache) get(compute func() (BoundingSphere, error)) (BoundingSphere, error) {
	if c.valid {
		return c.value, nil
	}
	s, err := compute()
	if err != nil {
		return BoundingSphere{}, err
	}
	c.value, c.valid = s, true
	return s, nil
}

func (c *sphereCache) reset() {
	c.valid = false
}

// computeBoundingSphere 球心取包围盒中点，半径为到最远顶点的距离
func computeBoundingSphere(n int, at func(i int) vec3.T) BoundingSphere {
	if n == 0 {
		return BoundingSphere{}
	}
	box := dvec3.MinBox
	for i := 0; i < n; i++ {
		p := at(i)
		q := dvec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
		box.Join(&dvec3.Box{Min: q, Max: q})
	}
	center := dvec3.T{
		(box.Min[0] + box.Max[0]) * 0.5,
		(box.Min[1] + box.Max[1]) * 0.5,
		(box.Min[2] + box.Max[2]) * 0.5,
	}
	var maxSqr float64
	for i := 0; i < n; i++ {
		p := at(i)
		q := dvec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
		d := dvec3.Sub(&q, &center)
		if l := d.LengthSqr(); l > maxSqr {
			maxSqr = l
		}
	}
	return BoundingSphere{float32(center[0]), float32(center[1]), float32(center[2]), float32(math.Sqrt(maxSqr))}
}

// BoundingSphere 由 float 类型的 x/y/z 属性计算包围球，结果缓存
func (m *PlyModel) BoundingSphere() (BoundingSphere, error) {
	return m.sphere.get(func() (BoundingSphere, error) {
		pos, err := m.positions()
		if err != nil {
			return BoundingSphere{}, err
		}
		return computeBoundingSphere(len(pos), func(i int) vec3.T { return pos[i] }), nil
	})
}

// ResetBoundingSphere 位置数据修改后调用以重新计算包围球
func (m *PlyModel) ResetBoundingSphere() {
	m.sphere.reset()
}

func (m *PlyModel) positions() ([]vec3.T, error) {
	var axes [3][]float32
	count := -1
	for i, name := range [3]string{"x", "y", "z"} {
		p, n := m.GetProperty(name)
		if p == nil {
			return nil, fmt.Errorf("%w: missing vertex property %q", ErrMalformed, name)
		}
		vs, err := p.Float32s()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if count >= 0 && n != count {
			return nil, fmt.Errorf("%w: position properties have different counts", ErrMalformed)
		}
		count = n
		axes[i] = vs
	}
	pos := make([]vec3.T, count)
	for i := range pos {
		pos[i] = vec3.T{axes[0][i], axes[1][i], axes[2][i]}
	}
	return pos, nil
}
