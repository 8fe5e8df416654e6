package fileloader

import (
	"golang.org/x/sync/errgroup"
)

// parallelFor 将 [0,n) 划分为不超过 workers*4 个区间并发执行，阻塞至全部完成
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	chunks := min(n, workers*4)
	step := (n + chunks - 1) / chunks

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += step {
		lo, hi := lo, min(lo+step, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	g.Wait()
}
