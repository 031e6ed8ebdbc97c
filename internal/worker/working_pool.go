package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Job is one unit of work executed by the pool.
type Job func(ctx context.Context) error

var ErrPoolStopped = errors.New("working pool stopped")

type WorkingPool struct {
	NumWorkers int
	jobChan    chan Job
	done       chan struct{}
}

func NewWorkingPool(numWorkers int, queueSize int) *WorkingPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkingPool{
		NumWorkers: numWorkers,
		jobChan:    make(chan Job, queueSize),
		done:       make(chan struct{}),
	}
}

// SubmitJob blocks until a worker slot frees up, ctx ends or the pool stops.
func (p *WorkingPool) SubmitJob(ctx context.Context, job Job) error {
	select {
	case <-p.done:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobChan <- job:
		return nil
	case <-p.done:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the workers until ctx is cancelled. Jobs still buffered at that
// point are dropped.
func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()
	slog.Info("Working pool shutdown signaled", "workers", p.NumWorkers, "dropped_jobs", len(p.jobChan))
	close(p.done)

	workerWg.Wait()
	slog.Info("Working pool stopped")
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	log := slog.With("worker_id", id)
	log.Debug("Worker started")

	for {
		select {
		case job := <-p.jobChan:
			p.safeExecution(ctx, job, log)
		case <-ctx.Done():
			log.Debug("Worker exiting", "reason", ctx.Err())
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job Job, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic recovered in job", "panic", r)
			err = errors.New("job panicked")
		}
	}()

	if err = job(ctx); err != nil {
		log.Warn("Job finished with error", "error", err)
	}
	return err
}
