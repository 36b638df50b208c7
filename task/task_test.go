package task_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShinkuKira21/linuxviewer/task"
)

const (
	stateStart task.State = iota
	stateWaiting
	stateWorking
	stateDone
)

const condGo task.Condition = 1

type waiter struct {
	runs int32
}

func (w *waiter) InitialState() task.State { return stateStart }

func (w *waiter) Multiplex(t *task.Task, state task.State) {
	switch state {
	case stateStart:
		t.SetState(stateWaiting)
		t.Wait(condGo)
	case stateWaiting:
		atomic.AddInt32(&w.runs, 1)
		t.SetState(stateDone)
	case stateDone:
		t.Finish()
	}
}

func TestWaitSignal(t *testing.T) {
	pool := task.NewPool(2)
	defer pool.Shutdown()

	w := &waiter{}
	tk := pool.Run("waiter", w, task.PriorityMedium)

	select {
	case <-tk.Done():
		t.Fatal("task finished before being signalled")
	case <-time.After(50 * time.Millisecond):
	}

	tk.Signal(condGo)
	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish after signal")
	}
	if err := tk.Err(); err != nil {
		t.Errorf("unexpected task error: %v", err)
	}
	if got := atomic.LoadInt32(&w.runs); got != 1 {
		t.Errorf("waiting state ran %d times, want 1", got)
	}
}

func TestSignalBeforeWait(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	w := &waiter{}
	tk := pool.Run("early", w, task.PriorityMedium)
	// The signal may land before the task even starts; it must still
	// be consumed by the wait.
	tk.Signal(condGo)

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("pending signal was not consumed by a later wait")
	}
}

type yielder struct {
	target int
	count  int32
}

func (y *yielder) InitialState() task.State { return stateWorking }

func (y *yielder) Multiplex(t *task.Task, state task.State) {
	if int(atomic.AddInt32(&y.count, 1)) < y.target {
		t.Yield()
		return
	}
	t.Finish()
}

func TestYieldResumes(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	y := &yielder{target: 10}
	tk := pool.Run("yielder", y, task.PriorityLow)

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("yielding task never finished")
	}
	if got := atomic.LoadInt32(&y.count); got != 10 {
		t.Errorf("task ran %d turns, want 10", got)
	}
}

var errBroken = errors.New("broken state machine")

type failer struct{}

func (f *failer) InitialState() task.State { return stateStart }

func (f *failer) Multiplex(t *task.Task, state task.State) {
	panic(errBroken)
}

func TestPanicWithErrorFailsTask(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	tk := pool.Run("failer", &failer{}, task.PriorityMedium)
	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("failing task never terminated")
	}
	if !errors.Is(tk.Err(), errBroken) {
		t.Errorf("task error = %v, want %v", tk.Err(), errBroken)
	}
}

// aborter aborts itself while Multiplex is still running and then issues
// one more directive, which must not terminate the task a second time.
type aborter struct {
	runs  int32
	after func(t *task.Task)
}

func (a *aborter) InitialState() task.State { return stateStart }

func (a *aborter) Multiplex(t *task.Task, state task.State) {
	atomic.AddInt32(&a.runs, 1)
	t.Abort()
	a.after(t)
}

func TestAbortDuringMultiplexThenFinish(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	a := &aborter{after: func(tk *task.Task) { tk.Finish() }}
	tk := pool.Run("aborter", a, task.PriorityMedium)

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("aborted task never reported done")
	}
	if !errors.Is(tk.Err(), task.ErrAborted) {
		t.Errorf("task error = %v, want ErrAborted", tk.Err())
	}

	// A second task proves the worker survived the first one's abort.
	probe := pool.Run("after-abort", &yielder{target: 1}, task.PriorityMedium)
	select {
	case <-probe.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not run tasks after an abort")
	}
}

func TestAbortDuringMultiplexThenWait(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	a := &aborter{after: func(tk *task.Task) { tk.Wait(condGo) }}
	tk := pool.Run("aborter", a, task.PriorityMedium)

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("aborted task never reported done")
	}
	if !errors.Is(tk.Err(), task.ErrAborted) {
		t.Errorf("task error = %v, want ErrAborted", tk.Err())
	}

	// The wait must not have parked the dead task; a signal cannot
	// resurrect it.
	tk.Signal(condGo)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&a.runs); got != 1 {
		t.Errorf("aborted task ran %d turns, want 1", got)
	}
}

func TestSyncQueueRunsOnlyWhenDriven(t *testing.T) {
	var q task.SyncQueue

	y := &yielder{target: 3}
	tk := q.Run("sync", y)

	if got := atomic.LoadInt32(&y.count); got != 0 {
		t.Fatalf("task ran before RunPending, count = %d", got)
	}

	for i := 0; i < 3; i++ {
		q.RunPending()
	}

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("synchronous task did not finish after three turns")
	}
	if got := atomic.LoadInt32(&y.count); got != 3 {
		t.Errorf("task ran %d turns, want 3", got)
	}
}

type notifying struct {
	ready chan struct{}
}

func newNotifying() *notifying { return &notifying{ready: make(chan struct{})} }

func (n *notifying) Ready() <-chan struct{}     { return n.ready }
func (n *notifying) InitialState() task.State   { return stateStart }
func (n *notifying) Multiplex(t *task.Task, state task.State) {
	switch state {
	case stateStart:
		close(n.ready)
		t.SetState(stateWaiting)
		t.Wait(condGo)
	case stateWaiting:
		t.SetState(stateDone)
	case stateDone:
		t.Finish()
	}
}

func TestBrokerSharesTasksByKey(t *testing.T) {
	pool := task.NewPool(2)
	defer pool.Shutdown()

	broker := task.NewBroker()

	created := 0
	create := func() *task.Task {
		created++
		return pool.Run("shared", newNotifying(), task.PriorityMedium)
	}

	results := make(chan bool, 2)
	cb := func(success bool) { results <- success }

	first := broker.Run("key", create, cb)
	second := broker.Run("key", create, cb)

	if first != second {
		t.Error("broker created two tasks for the same key")
	}
	if created != 1 {
		t.Errorf("create ran %d times, want 1", created)
	}

	for i := 0; i < 2; i++ {
		select {
		case success := <-results:
			if !success {
				t.Error("callback reported failure for a ready task")
			}
		case <-time.After(time.Second):
			t.Fatal("callback never fired")
		}
	}

	first.Signal(condGo)
	<-first.Done()
}

func TestBrokerReportsFailedTask(t *testing.T) {
	pool := task.NewPool(1)
	defer pool.Shutdown()

	broker := task.NewBroker()
	results := make(chan bool, 1)
	broker.Run("broken", func() *task.Task {
		return pool.Run("broken", &failer{}, task.PriorityMedium)
	}, func(success bool) { results <- success })

	select {
	case success := <-results:
		if success {
			t.Error("callback reported success for a failed task")
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
