package fileloader

import "runtime"

// VolumeOptions 体数据加载选项
type VolumeOptions struct {
	// Workers 并行任务上限，<=0 使用 GOMAXPROCS
	Workers       int
	Gradient      GradientMode
	SkipGradients bool
	SkipHistogram bool
}

func DefaultVolumeOptions() VolumeOptions {
	return VolumeOptions{
		Workers:  runtime.GOMAXPROCS(0),
		Gradient: CentralDifference,
	}
}

func (o VolumeOptions) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}
