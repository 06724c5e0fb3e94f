// Package scheduler provides a thread-safe, time-ordered deferred-task
// queue used by the driver to run retries and maintenance callbacks
// without blocking callers.
//
// Tasks are ordered by (due time, submission sequence). The sequence
// number is assigned at schedule time and breaks ties between tasks due
// at the same instant, so two tasks scheduled for the same moment are
// dispatched in FIFO submission order and callbacks are never compared
// with each other.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"

	"github.com/arloliu/lattice/internal/logging"
	"github.com/arloliu/lattice/internal/metrics"
	"github.com/arloliu/lattice/types"
)

// task is one queued callback. The ordering key is (due, seq) only; fn is
// opaque payload and never participates in comparisons.
type task struct {
	due time.Time
	seq uint64
	fn  func()
}

// taskQueue implements heap.Interface over pending tasks.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if !q[i].due.Equal(q[j].due) {
		return q[i].due.Before(q[j].due)
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*task)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Scheduler is a time-ordered deferred-task queue with a background
// dispatch loop.
//
// Schedule may be called from any goroutine, including before Start; tasks
// queued before Start are dispatched once the loop runs. Callbacks are
// invoked one at a time by the dispatch goroutine, in due-time order with
// FIFO tie-break, and must not block for long: long-running work should
// spawn its own goroutine.
//
// After Stop, pending tasks are discarded without being invoked and
// Schedule returns types.ErrSchedulerStopped. Stop must not be called from
// inside a callback.
type Scheduler struct {
	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	running bool
	stopped bool

	wake    chan struct{}
	stop    chan struct{}
	tasks   *taskgroup.Group
	logger  types.Logger
	metrics types.MetricsCollector
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger for scheduler lifecycle events.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector for queue-depth and task counters.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(s *Scheduler) {
		s.metrics = collector
	}
}

// New creates a new Scheduler. The dispatch loop does not run until Start
// is called.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Scheduler: A new scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNopMetrics()
	}

	return s
}

// Start begins the background dispatch loop.
//
// Returns:
//   - error: types.ErrSchedulerRunning if already started,
//     types.ErrSchedulerStopped if the scheduler was stopped
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return types.ErrSchedulerStopped
	}
	if s.running {
		return types.ErrSchedulerRunning
	}

	s.running = true
	s.stop = make(chan struct{})
	s.tasks = taskgroup.New(nil)
	s.tasks.Go(func() error {
		s.run()
		return nil
	})
	s.logger.Debug("scheduler started")

	return nil
}

// Stop terminates the dispatch loop and discards all pending tasks without
// invoking them. Once stopped, the scheduler cannot be restarted and
// Schedule returns types.ErrSchedulerStopped.
//
// Stop waits for the dispatch goroutine to exit. A callback currently
// executing is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false

	dropped := len(s.queue)
	s.queue = nil
	s.metrics.SetSchedulerQueueDepth(0)

	if wasRunning {
		close(s.stop)
	}
	s.mu.Unlock()

	if wasRunning {
		s.tasks.Wait()
	}
	if dropped > 0 {
		s.logger.Debug("scheduler stopped", "dropped_tasks", dropped)
	}
}

// IsRunning returns whether the dispatch loop is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Schedule enqueues fn to run after delay. It never blocks and never
// invokes fn inline; dispatch happens on the background loop at or after
// now+delay. A non-positive delay schedules fn for immediate dispatch.
//
// Parameters:
//   - delay: How long to wait before dispatch
//   - fn: The callback to invoke
//
// Returns:
//   - error: types.ErrSchedulerStopped if Stop was called, nil otherwise
func (s *Scheduler) Schedule(delay time.Duration, fn func()) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return types.ErrSchedulerStopped
	}

	t := &task{
		due: time.Now().Add(delay),
		seq: s.seq,
		fn:  fn,
	}
	s.seq++
	heap.Push(&s.queue, t)
	s.metrics.IncScheduledTask()
	s.metrics.SetSchedulerQueueDepth(len(s.queue))
	s.mu.Unlock()

	// Nudge the dispatch loop; a pending nudge is enough.
	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// Pending returns the number of tasks waiting for dispatch.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// run is the dispatch loop. It pops due tasks in (due, seq) order and
// invokes them inline, then sleeps until the next task is due or a new
// task arrives.
func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		wait, ok := s.dispatchDue()
		if !ok {
			// Queue is empty; wait for a new task or shutdown.
			select {
			case <-s.stop:
				return
			case <-s.wake:
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-s.stop:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-s.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

// dispatchDue invokes every task that is due and returns the wait until
// the next pending task. ok is false when the queue is empty.
func (s *Scheduler) dispatchDue() (wait time.Duration, ok bool) {
	for {
		s.mu.Lock()
		if s.stopped || len(s.queue) == 0 {
			s.mu.Unlock()
			return 0, false
		}

		now := time.Now()
		if s.queue[0].due.After(now) {
			wait = s.queue[0].due.Sub(now)
			s.mu.Unlock()
			return wait, true
		}

		t := heap.Pop(&s.queue).(*task)
		s.metrics.SetSchedulerQueueDepth(len(s.queue))
		s.mu.Unlock()

		// Invoke outside the lock so callbacks may call Schedule.
		t.fn()
	}
}
