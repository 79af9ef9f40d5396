package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

type Pool struct {
	processor *Processor
	workers   int
	jobCh     chan Job
	log       logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(processor *Processor, workers, queueSize int, log logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		processor: processor,
		workers:   workers,
		jobCh:     make(chan Job, queueSize),
		log:       log,
	}
}

// Submit queues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobCh <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports how many jobs wait for a worker.
func (p *Pool) Pending() int { return len(p.jobCh) }

// Run starts the workers and blocks until ctx is done. Jobs still queued at
// that point are handed to the processor with the cancelled context, so each
// of them is recorded as an error instead of staying pending.
func (p *Pool) Run(ctx context.Context) {
	p.log.WithField("workers", p.workers).Info("worker pool started")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(n int) {
			defer p.wg.Done()
			for job := range p.jobCh {
				if err := p.processor.Process(ctx, job); err != nil {
					p.log.WithFields(logrus.Fields{"worker": n, "task_id": job.TaskID}).
						WithError(err).Debug("job ended with error")
				}
			}
		}(i + 1)
	}

	<-ctx.Done()

	p.mu.Lock()
	p.closed = true
	close(p.jobCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("worker pool stopped")
}
