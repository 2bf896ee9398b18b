package async

import (
	"sync"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/logging"
)

// Scheduler runs tasks on goroutines other than the caller's. Schedule must
// not block on the task.
type Scheduler interface {
	Schedule(task func()) error
}

// GoScheduler starts one goroutine per task.
type GoScheduler struct{}

func (GoScheduler) Schedule(task func()) error {
	go task()
	return nil
}

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	Workers int
}

// WorkerPool runs tasks on a fixed set of worker goroutines fed from an
// unbounded FIFO queue, so Schedule never blocks.
type WorkerPool struct {
	cfg PoolConfig

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	started  bool
	stopping bool
	wg       sync.WaitGroup
}

// NewWorkerPool creates a pool. Tasks scheduled before Start are queued.
func NewWorkerPool(cfg PoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	p := &WorkerPool{cfg: cfg}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches worker goroutines.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopping {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logging.Op().Info("invoker workers started", "workers", p.cfg.Workers)
}

// Stop runs every queued task, then shuts the workers down. Schedule calls
// after Stop fail with domain.ErrInvokerClosed.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	if !p.started {
		// Nobody will drain the queue; run what is left on fresh goroutines.
		for _, task := range p.queue {
			p.wg.Add(1)
			go func(task func()) {
				defer p.wg.Done()
				task()
			}(task)
		}
		p.queue = nil
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	logging.Op().Info("invoker workers stopped")
}

// Schedule enqueues task.
func (p *WorkerPool) Schedule(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return domain.ErrInvokerClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Queued returns the number of tasks waiting for a worker.
func (p *WorkerPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task()
	}
}
