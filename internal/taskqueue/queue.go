package taskqueue

import (
	"errors"
	"runtime/debug"
	"sync"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

// Task is an asynchronous unit of work, typically a persistence write.
type Task func() error

var ErrClosed = errors.New("taskqueue: closed")

// Queue executes tasks strictly in submission order, one at a time.
//
// It exists to give the durable file a single logical writer: every snapshot
// write is funneled through one consumer goroutine, so writes can never
// interleave even though callers submit them concurrently. A failing task is
// logged and the queue moves on; one bad write must never halt future writes.
//
// Enqueue is re-entrant: a task may enqueue follow-up work, which runs after
// the current task completes.
type Queue struct {
	log logx.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []Task
	busy   bool
	closed bool

	done chan struct{}
}

func New(log logx.Logger) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	q := &Queue{
		log:  log,
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue appends a task and returns immediately.
// After Close it returns ErrClosed and the task is not run.
func (q *Queue) Enqueue(t Task) error {
	if t == nil {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, t)
	q.cond.Broadcast()
	q.mu.Unlock()
	return nil
}

// Len reports the number of tasks waiting to run (not counting a running one).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain blocks until all submitted tasks have finished.
func (q *Queue) Drain() {
	q.mu.Lock()
	for len(q.tasks) > 0 || q.busy {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Close stops accepting new tasks, lets already-queued tasks drain,
// and waits for the consumer to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			// closed and drained
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.busy = true
		q.mu.Unlock()

		q.exec(t)

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("task panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	if err := t(); err != nil {
		q.log.Warn("task failed", logx.Err(err))
	}
}
