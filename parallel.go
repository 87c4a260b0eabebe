package jpegr

import (
	"runtime"
	"sync"
)

// parallelFor splits [0,total) into contiguous ranges processed concurrently.
// Workers <= 0 means GOMAXPROCS. Every index is visited exactly once, so
// callers writing disjoint rows get identical output for any worker count.
func parallelFor(total, workers int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		fn(0, total)
		return
	}
	step := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * step
		end := start + step
		if end > total {
			end = total
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
