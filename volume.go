package fileloader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/flywave/go3d/vec3"
)

// Volume 16位密度体数据，x 变化最快，其次 y，最后 z
type Volume struct {
	Dim       [3]uint16
	Densities []uint16
	// MinMaxDensity 最小值忽略0
	MinMaxDensity [2]uint16
	Gradients     []vec3.T
	Histogram     *Histogram
}

func LoadVolume(path string, opts VolumeOptions) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	v, err := DecodeVolume(bufio.NewReader(f), opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return v, nil
}

// DecodeVolume 读取维度与密度，并按选项计算梯度和直方图
func DecodeVolume(r io.Reader, opts VolumeOptions) (*Volume, error) {
	v := &Volume{}
	if err := readLittleByte(r, v.Dim[:]); err != nil {
		return nil, volumeReadError("dimensions", err)
	}
	n := v.NumVoxels()
	logger.Printf("volume dimensions: %d x %d x %d, %d workers", v.Dim[0], v.Dim[1], v.Dim[2], opts.workers())
	densities, err := readDensities(r, n)
	if err != nil {
		return nil, volumeReadError("densities", err)
	}
	v.Densities = densities
	v.MinMaxDensity = densityRange(v.Densities)
	if !opts.SkipGradients {
		v.Gradients = v.ComputeGradients(opts.Gradient, opts.workers())
	}
	if !opts.SkipHistogram {
		v.Histogram = computeHistogram(v.Densities, opts.workers())
	}
	return v, nil
}

// densityChunk 每次读取的样本数，缓冲随实际读到的数据增长
const densityChunk = 1 << 16

func readDensities(r io.Reader, n int) ([]uint16, error) {
	out := make([]uint16, 0, min(n, densityChunk))
	chunk := make([]uint16, min(n, densityChunk))
	for len(out) < n {
		c := chunk[:min(n-len(out), densityChunk)]
		if err := readLittleByte(r, c); err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}

func volumeReadError(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: volume %s truncated", ErrMalformed, what)
	}
	return fmt.Errorf("read volume %s failed: %w", what, err)
}

func (v *Volume) NumVoxels() int {
	return int(v.Dim[0]) * int(v.Dim[1]) * int(v.Dim[2])
}

// Addr 体素线性地址
func (v *Volume) Addr(x, y, z int) int {
	return (z*int(v.Dim[1])+y)*int(v.Dim[0]) + x
}

func (v *Volume) grid() *grid {
	return &grid{w: int(v.Dim[0]), h: int(v.Dim[1]), d: int(v.Dim[2]), densities: v.Densities}
}

// densityRange 最小值忽略0；相等时最小值置0，最小值不小于最大值时最大值加1
func densityRange(densities []uint16) [2]uint16 {
	lo, hi := uint16(math.MaxUint16), uint16(0)
	found := false
	for _, d := range densities {
		if d > 0 && d < lo {
			lo = d
			found = true
		}
		if d > hi {
			hi = d
		}
	}
	if !found {
		lo = 0
	}
	if lo == hi {
		lo = 0
	}
	if lo >= hi {
		hi++
	}
	return [2]uint16{lo, hi}
}

// ComputeGradients 按 z 切片并行计算每个体素的梯度
func (v *Volume) ComputeGradients(mode GradientMode, workers int) []vec3.T {
	g := v.grid()
	out := make([]vec3.T, v.NumVoxels())
	estimate := g.centralDifference
	if mode == Sobel {
		estimate = g.sobel
	}
	parallelFor(g.d, workers, func(lo, hi int) {
		for z := lo; z < hi; z++ {
			for y := 0; y < g.h; y++ {
				for x := 0; x < g.w; x++ {
					out[g.addr(x, y, z)] = estimate(x, y, z)
				}
			}
		}
	})
	return out
}

// ComputeHistogram 重新统计直方图
func (v *Volume) ComputeHistogram(workers int) *Histogram {
	v.Histogram = computeHistogram(v.Densities, workers)
	return v.Histogram
}

// BoundingSphere 以网格尺寸的一半为球心和半径
func (v *Volume) BoundingSphere() BoundingSphere {
	hx := float32(v.Dim[0]) * 0.5
	hy := float32(v.Dim[1]) * 0.5
	hz := float32(v.Dim[2]) * 0.5
	half := vec3.T{hx, hy, hz}
	return BoundingSphere{hx, hy, hz, half.Length()}
}

func (v *Volume) Save(path string) error {
	if len(v.Densities) != v.NumVoxels() {
		return fmt.Errorf("%w: %d densities for %d voxels", ErrMalformed, len(v.Densities), v.NumVoxels())
	}
	fw, err := createFile(path)
	if err != nil {
		return err
	}
	err = v.Encode(fw)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

func (v *Volume) Encode(w io.Writer) error {
	if err := writeLittleByte(w, v.Dim[:]); err != nil {
		return fmt.Errorf("write volume dimensions failed: %w", err)
	}
	if err := writeLittleByte(w, v.Densities); err != nil {
		return fmt.Errorf("write volume densities failed: %w", err)
	}
	return nil
}
