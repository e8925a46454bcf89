package exr

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ParallelConfig controls how chunk work is spread across goroutines.
type ParallelConfig struct {
	// NumWorkers is the goroutine count for parallel loops.
	// Zero means runtime.NumCPU().
	NumWorkers int

	// GrainSize is the minimum number of items per worker. Loops with
	// fewer than GrainSize items run inline on the calling goroutine.
	GrainSize int
}

var parallelConfig atomic.Pointer[ParallelConfig]

func init() {
	parallelConfig.Store(&ParallelConfig{GrainSize: 2})
}

// SetParallelConfig replaces the package-wide parallel settings.
func SetParallelConfig(cfg ParallelConfig) {
	if cfg.GrainSize < 1 {
		cfg.GrainSize = 1
	}
	parallelConfig.Store(&cfg)
}

// GetParallelConfig returns the current parallel settings.
func GetParallelConfig() ParallelConfig {
	return *parallelConfig.Load()
}

func effectiveWorkers(n int) int {
	cfg := parallelConfig.Load()
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n < cfg.GrainSize*2 {
		return 1
	}
	if max := (n + cfg.GrainSize - 1) / cfg.GrainSize; workers > max {
		workers = max
	}
	if workers > n {
		workers = n
	}
	return workers
}

// ParallelFor runs fn(i) for i in [0, n) across the configured worker
// count. Items are handed out through a shared counter so uneven work
// still balances.
func ParallelFor(n int, fn func(i int)) {
	workers := effectiveWorkers(n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= n {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// ParallelForWithError runs fn(i) for i in [0, n) across the configured
// worker count. The first error stops the dispensing of further items
// and is returned; items already claimed still finish.
func ParallelForWithError(n int, fn func(i int) error) error {
	workers := effectiveWorkers(n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		next     atomic.Int64
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		failed   atomic.Bool
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for !failed.Load() {
				i := int(next.Add(1)) - 1
				if i >= n {
					return
				}
				if err := fn(i); err != nil {
					errOnce.Do(func() { firstErr = err })
					failed.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
