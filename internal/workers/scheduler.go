package workers

import (
	"fmt"
	"sync"
	"time"

	"ms-payments/internal/logger"
)

// Scheduler runs delayed work on a small dedicated set of workers. Delays are timers,
// workers only pick up tasks that are already due. Due tasks queue without bound so a
// task may call Schedule again from inside a worker.
type Scheduler struct {
	size    int
	logger  *logger.Logger
	mu      sync.Mutex
	ready   *sync.Cond
	due     []func()
	closed  bool
	started bool
	nextID  uint64
	timers  map[uint64]*time.Timer
	wg      sync.WaitGroup
}

func NewScheduler(size int, log *logger.Logger) *Scheduler {
	if size < 1 {
		size = 1
	}
	s := &Scheduler{
		size:   size,
		logger: log,
		timers: make(map[uint64]*time.Timer),
	}
	s.ready = sync.NewCond(&s.mu)
	return s
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	for i := 0; i < s.size; i++ {
		s.wg.Add(1)
		go s.work(i)
	}
	s.logger.LogProcess("scheduler", fmt.Sprintf("started %d workers", s.size))
}

// Schedule runs task once after delay.
func (s *Scheduler) Schedule(delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrPoolClosed
	}
	if delay < 0 {
		delay = 0
	}
	id := s.nextID
	s.nextID++
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id, task) })
	return nil
}

// Pending reports how many delayed tasks have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(id uint64, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; !ok || s.closed {
		return
	}
	delete(s.timers, id)
	s.due = append(s.due, task)
	s.ready.Signal()
}

// Stop cancels tasks that are not due yet, runs the ones already due and waits for the workers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancelled := 0
	for id, timer := range s.timers {
		if timer.Stop() {
			cancelled++
		}
		delete(s.timers, id)
	}
	started := s.started
	s.ready.Broadcast()
	s.mu.Unlock()

	if started {
		s.wg.Wait()
	}
	s.logger.LogProcess("scheduler", fmt.Sprintf("stopped, %d delayed tasks cancelled", cancelled))
}

func (s *Scheduler) next() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.due) == 0 && !s.closed {
		s.ready.Wait()
	}
	if len(s.due) == 0 {
		return nil, false
	}
	task := s.due[0]
	s.due[0] = nil
	s.due = s.due[1:]
	return task, true
}

func (s *Scheduler) work(id int) {
	defer s.wg.Done()
	for {
		task, ok := s.next()
		if !ok {
			return
		}
		runSafely(s.logger, fmt.Sprintf("scheduler-%d", id), task)
	}
}
