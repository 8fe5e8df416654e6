package fileloader

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Histogram 密度直方图，桶宽为 DensitiesPerBucket
type Histogram struct {
	Buckets [NumHistogramBuckets]uint32
}

// BucketIndex 密度所在桶，超出范围的密度归入最后一个桶
func BucketIndex(density uint16) int {
	return min(int(density)/DensitiesPerBucket, NumHistogramBuckets-1)
}

// Total 所有桶计数之和
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.Buckets {
		n += uint64(c)
	}
	return n
}

// computeHistogram 并发原子累加后拷贝到结果数组
func computeHistogram(densities []uint16, workers int) *Histogram {
	var counters [NumHistogramBuckets]atomic.Uint32
	parallelFor(len(densities), workers, func(lo, hi int) {
		for _, d := range densities[lo:hi] {
			counters[BucketIndex(d)].Add(1)
		}
	})
	h := &Histogram{}
	for i := range counters {
		h.Buckets[i] = counters[i].Load()
	}
	return h
}

// Plot 以柱状图保存为图片，格式由扩展名决定
func (h *Histogram) Plot(path string) error {
	p := plot.New()
	p.Title.Text = "Density histogram"
	p.X.Label.Text = "bucket"
	p.Y.Label.Text = "voxels"

	values := make(plotter.Values, NumHistogramBuckets)
	for i, c := range h.Buckets {
		values[i] = float64(c)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(0.5))
	if err != nil {
		return fmt.Errorf("build histogram chart failed: %w", err)
	}
	bars.LineStyle.Width = 0
	p.Add(bars)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram plot failed: %w", err)
	}
	return nil
}
