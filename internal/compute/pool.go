package compute

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs independent chunk tasks over a fixed number of goroutines.
// Worker p handles tasks p, p+workers, p+2*workers, ...
type Pool struct {
	workers int
}

// NewPool returns a pool with the given number of workers; values below 1
// mean GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run calls task for every index in [0, n) and waits for all of them. When
// several tasks fail, the error of the lowest index is returned.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	nprocs := p.workers
	if nprocs > n {
		nprocs = n
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for ii := pp; ii < n; ii += nprocs {
				if err := ctx.Err(); err != nil {
					errs[ii] = err
					continue
				}
				errs[ii] = task(ctx, ii)
			}
		}(pp)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
