// Package task implements the cooperative state-machine tasks that the
// pipeline factory and its helpers run on. A task occupies a worker only
// while its Multiplex function executes one state transition; it gives the
// worker back by waiting on a condition, yielding, or finishing. Conditions
// can be signalled from any goroutine, which makes a parked task runnable
// again.
package task

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// State identifies one state of a task's state machine.
type State int

// Condition is a bitmask of wakeup conditions a task can wait on.
type Condition uint32

// StateMachine is implemented by anything that wants to run as a task.
type StateMachine interface {
	// InitialState returns the state the task starts in.
	InitialState() State

	// Multiplex performs the work of a single state. It must end the
	// transition by calling one of SetState, Wait, Yield, Finish or
	// Abort on the task before returning.
	Multiplex(t *Task, state State)
}

// ErrAborted is reported by Err after a call to Abort.
var ErrAborted = errors.New("task: aborted")

type directive int

const (
	dirNone directive = iota
	dirWait
	dirYield
	dirFinish
)

// scheduler is where a runnable task gets queued. Implemented by Pool
// (asynchronous workers) and SyncQueue (owner-driven execution).
type scheduler interface {
	enqueue(t *Task)
}

// Task wraps a StateMachine with the bookkeeping needed to suspend and
// resume it. All exported methods are safe for concurrent use.
type Task struct {
	name  string
	sched scheduler
	impl  StateMachine

	mu        sync.Mutex
	state     State
	waitMask  Condition
	pending   Condition
	directive directive
	queued    bool
	parked    bool
	finished  bool
	err       error

	done chan struct{}
}

func newTask(name string, impl StateMachine, sched scheduler) *Task {
	return &Task{
		name:  name,
		sched: sched,
		impl:  impl,
		state: impl.InitialState(),
		done:  make(chan struct{}),
	}
}

// Name returns the name the task was started with.
func (t *Task) Name() string { return t.name }

// Done is closed once the task finished or aborted.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the error the task finished with, if any. Only valid after
// Done is closed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// SetState sets the state the next Multiplex call runs in.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Wait suspends the task until one of the conditions in mask is signalled.
// If a matching signal is already pending the task resumes immediately on
// the next scheduling turn.
func (t *Task) Wait(mask Condition) {
	t.mu.Lock()
	t.waitMask = mask
	t.directive = dirWait
	t.mu.Unlock()
}

// Yield gives up the worker and re-queues the task at the back of its
// queue, resuming in the current state.
func (t *Task) Yield() {
	t.mu.Lock()
	t.directive = dirYield
	t.mu.Unlock()
}

// Finish ends the task successfully.
func (t *Task) Finish() {
	t.mu.Lock()
	t.directive = dirFinish
	t.mu.Unlock()
}

// Abort ends the task with ErrAborted.
func (t *Task) Abort() {
	t.fail(ErrAborted)
}

// Signal marks the conditions in mask as having occurred and wakes the
// task if it is waiting on any of them. May be called from any goroutine.
func (t *Task) Signal(mask Condition) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.pending |= mask
	wake := t.parked && t.waitMask&t.pending != 0
	if wake {
		t.pending &^= t.waitMask
		t.waitMask = 0
		t.parked = false
	}
	t.mu.Unlock()
	if wake {
		t.sched.enqueue(t)
	}
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.directive = dirFinish
	t.err = err
	t.mu.Unlock()
	log.WithField("task", t.name).WithError(err).Error("task failed")
	close(t.done)
}

// step runs Multiplex calls until the task parks, yields or finishes.
// It returns true if the task should be re-queued (yield).
func (t *Task) step() bool {
	for {
		t.mu.Lock()
		if t.finished {
			t.mu.Unlock()
			return false
		}
		state := t.state
		t.directive = dirNone
		t.mu.Unlock()

		if err := t.multiplex(state); err != nil {
			t.fail(err)
			return false
		}

		t.mu.Lock()
		if t.finished {
			// Abort (or another fail) already terminated the task while
			// Multiplex was still running; done is closed, never park or
			// re-queue.
			t.mu.Unlock()
			return false
		}
		switch t.directive {
		case dirFinish:
			t.finished = true
			t.mu.Unlock()
			close(t.done)
			return false
		case dirYield:
			t.mu.Unlock()
			return true
		case dirWait:
			if t.pending&t.waitMask != 0 {
				// Signal raced ahead of the wait; consume it and
				// keep running.
				t.pending &^= t.waitMask
				t.waitMask = 0
				t.mu.Unlock()
				continue
			}
			t.parked = true
			t.mu.Unlock()
			return false
		default:
			// Plain SetState; run the next state right away.
			t.mu.Unlock()
		}
	}
}

// multiplex calls the state machine, converting panics that carry an error
// (alerts raised by the render graph or pipeline builders) into a task
// failure. Any other panic is a genuine bug and propagates.
func (t *Task) multiplex(state State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	t.impl.Multiplex(t, state)
	return nil
}
