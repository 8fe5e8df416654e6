package fileloader

import (
	"github.com/flywave/go3d/vec3"
)

// grid 体素寻址，越界坐标夹取到边缘
type grid struct {
	w, h, d   int
	densities []uint16
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func (g *grid) addr(x, y, z int) int {
	return (z*g.h+y)*g.w + x
}

func (g *grid) at(x, y, z int) float32 {
	x = clampIndex(x, g.w)
	y = clampIndex(y, g.h)
	z = clampIndex(z, g.d)
	return float32(g.densities[g.addr(x, y, z)])
}

func (g *grid) centralDifference(x, y, z int) vec3.T {
	return vec3.T{
		0.5 * (g.at(x+1, y, z) - g.at(x-1, y, z)),
		0.5 * (g.at(x, y+1, z) - g.at(x, y-1, z)),
		0.5 * (g.at(x, y, z+1) - g.at(x, y, z-1)),
	}
}

var (
	sobelSmooth = [3]float32{1, 2, 1}
	sobelDiff   = [3]float32{-1, 0, 1}
)

// sobel 3x3x3 加权差分，按所用权重绝对值之和归一化。
// 梯度轴上用 {-1,0,1} 的中心差分核，另两轴用 {1,2,1} 平滑。
func (g *grid) sobel(x, y, z int) vec3.T {
	var grad, norm vec3.T
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				v := g.at(x+dx, y+dy, z+dz)
				wx := sobelDiff[dx+1] * sobelSmooth[dy+1] * sobelSmooth[dz+1]
				wy := sobelSmooth[dx+1] * sobelDiff[dy+1] * sobelSmooth[dz+1]
				wz := sobelSmooth[dx+1] * sobelSmooth[dy+1] * sobelDiff[dz+1]
				grad[0] += wx * v
				grad[1] += wy * v
				grad[2] += wz * v
				norm[0] += abs32(wx)
				norm[1] += abs32(wy)
				norm[2] += abs32(wz)
			}
		}
	}
	for i := range grad {
		grad[i] /= norm[i]
	}
	return grad
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
