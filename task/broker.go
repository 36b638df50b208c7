package task

import "sync"

// Broker deduplicates long-lived task instances by key. The first Run for
// a key creates the task, later Runs share it. Every caller's callback is
// invoked once the task signals readiness or finishes, with success=false
// if the task failed, so callers never mistake a broken shared task for a
// healthy one.
type Broker struct {
	mu      sync.Mutex
	entries map[string]*brokerEntry
}

type brokerEntry struct {
	task      *Task
	mu        sync.Mutex
	ready     bool
	succeeded bool
	callbacks []func(success bool)
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{entries: make(map[string]*brokerEntry)}
}

// Run returns the task registered under key, creating it with create if
// this is the first request. cb fires (from an arbitrary goroutine) when
// the task reports readiness or terminates.
func (b *Broker) Run(key string, create func() *Task, cb func(success bool)) *Task {
	b.mu.Lock()
	entry, ok := b.entries[key]
	if !ok {
		entry = &brokerEntry{task: create()}
		b.entries[key] = entry
		go entry.watch()
	}
	b.mu.Unlock()

	entry.mu.Lock()
	if entry.ready {
		success := entry.succeeded
		entry.mu.Unlock()
		cb(success)
		return entry.task
	}
	entry.callbacks = append(entry.callbacks, cb)
	entry.mu.Unlock()
	return entry.task
}

// Notifier is implemented by tasks that become usable before they finish
// (the pipeline cache is ready long before its task completes).
type Notifier interface {
	Ready() <-chan struct{}
}

func (e *brokerEntry) watch() {
	var ready <-chan struct{}
	if n, ok := e.task.impl.(Notifier); ok {
		ready = n.Ready()
	}
	success := false
	if ready != nil {
		select {
		case <-ready:
			success = true
		case <-e.task.Done():
			success = e.task.Err() == nil
		}
	} else {
		<-e.task.Done()
		success = e.task.Err() == nil
	}
	e.mu.Lock()
	e.ready = true
	e.succeeded = success
	callbacks := e.callbacks
	e.callbacks = nil
	e.mu.Unlock()
	for _, cb := range callbacks {
		cb(success)
	}
}

// Forget removes the entry for key so a subsequent Run creates a fresh
// task. The existing task is not stopped.
func (b *Broker) Forget(key string) {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
}
