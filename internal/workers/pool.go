package workers

import (
	"errors"
	"fmt"
	"sync"

	"ms-payments/internal/logger"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("worker pool queue is full")
)

// Pool runs immediate background work on a fixed number of goroutines.
type Pool struct {
	name    string
	size    int
	tasks   chan func()
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewPool(name string, size, queueSize int, log *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		name:   name,
		size:   size,
		tasks:  make(chan func(), queueSize),
		logger: log,
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.LogProcess(p.name, fmt.Sprintf("started %d workers", p.size))
}

// Submit queues task without blocking. It fails when the queue is full or the pool is stopped.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new work, drains the queue and waits for running tasks.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.LogProcess(p.name, "stopped")
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		runSafely(p.logger, fmt.Sprintf("%s-%d", p.name, id), task)
	}
}

func runSafely(log *logger.Logger, worker string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("WORKER", fmt.Sprintf("%s recovered from panic: %v", worker, r))
		}
	}()
	task()
}
