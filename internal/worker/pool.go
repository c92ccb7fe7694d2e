package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/repodoc/docgen_server/internal/pkg/queue"
)

// Pool runs a fixed number of workers draining the job queue.
type Pool struct {
	queue     *queue.Queue
	processor *Processor
	workers   int
}

func NewPool(q *queue.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:     q,
		processor: processor,
		workers:   workers,
	}
}

// Run blocks until ctx is cancelled and every worker has drained its
// current job.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	log.Printf("worker pool started with %d workers", p.workers)
	wg.Wait()
	log.Println("worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := p.queue.Pop(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker %d: pop failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		log.Printf("worker %d: processing job %s", id, msg.JobID)
		if err := p.processor.Process(ctx, msg); err != nil {
			log.Printf("worker %d: job %s: %v", id, msg.JobID, err)
		}
	}
}
