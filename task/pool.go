package task

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Priority selects which of the pool's queues a task runs on.
type Priority int

// Available task priorities.
const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// Pool runs tasks on a fixed set of worker goroutines. Each worker prefers
// the high priority queue, then medium, then low.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues [3][]*Task
	prio   map[*Task]Priority
	closed bool

	wg sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{prio: make(map[*Task]Priority)}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Run starts impl as a task on the pool with the given priority.
func (p *Pool) Run(name string, impl StateMachine, prio Priority) *Task {
	t := newTask(name, impl, p)
	p.mu.Lock()
	p.prio[t] = prio
	p.mu.Unlock()
	log.WithField("task", name).Debug("task started")
	p.enqueue(t)
	return t
}

// Shutdown stops the workers after the queues drain of runnable tasks.
// Parked tasks are not waited for.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) enqueue(t *Task) {
	p.mu.Lock()
	if t.queued || p.closed {
		p.mu.Unlock()
		return
	}
	t.queued = true
	prio := p.prio[t]
	p.queues[prio] = append(p.queues[prio], t)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *Pool) dequeue() *Task {
	for i := range p.queues {
		if len(p.queues[i]) > 0 {
			t := p.queues[i][0]
			p.queues[i] = p.queues[i][1:]
			t.queued = false
			return t
		}
	}
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		var t *Task
		for {
			if t = p.dequeue(); t != nil || p.closed {
				break
			}
			p.cond.Wait()
		}
		p.mu.Unlock()
		if t == nil {
			return
		}
		if t.step() {
			// Task yielded, give others a turn.
			p.enqueue(t)
		}
	}
}

// SyncQueue collects runnable tasks for an owner that drives them itself,
// for example once per rendered frame. It satisfies the same contract as
// the pool but never runs anything until RunPending is called.
type SyncQueue struct {
	mu      sync.Mutex
	pending []*Task
}

// Run starts impl as a task on the synchronous queue.
func (q *SyncQueue) Run(name string, impl StateMachine) *Task {
	t := newTask(name, impl, q)
	q.enqueue(t)
	return t
}

func (q *SyncQueue) enqueue(t *Task) {
	q.mu.Lock()
	if !t.queued {
		t.queued = true
		q.pending = append(q.pending, t)
	}
	q.mu.Unlock()
}

// RunPending steps every task that is currently runnable. Tasks that yield
// are run again on the next call.
func (q *SyncQueue) RunPending() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	for _, t := range batch {
		t.queued = false
	}
	q.mu.Unlock()
	for _, t := range batch {
		if t.step() {
			q.enqueue(t)
		}
	}
}
