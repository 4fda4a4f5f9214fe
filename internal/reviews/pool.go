package reviews

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// pool runs review jobs on a fixed number of goroutines fed by a bounded
// queue. Jobs still queued at shutdown stay pending until the reaper fails them.
type pool struct {
	jobs    chan uuid.UUID
	workers int
}

func newPool(workers, size int) *pool {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = workers
	}
	return &pool{jobs: make(chan uuid.UUID, size), workers: workers}
}

// submit never blocks; false means the queue is full.
func (p *pool) submit(id uuid.UUID) bool {
	select {
	case p.jobs <- id:
		return true
	default:
		return false
	}
}

func (p *pool) run(ctx context.Context, handle func(context.Context, uuid.UUID)) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-p.jobs:
					handle(ctx, id)
				}
			}
		}()
	}
	wg.Wait()
}
