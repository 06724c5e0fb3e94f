package lattice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/scheduler"
	"github.com/arloliu/lattice/types"
)

// ResponseFuture is the handle for one in-flight request. It walks the
// query plan produced by the load balancing policy, consults the retry
// policy on coordinator-reported failures, and settles into exactly one
// terminal state: rows, a terminal error, or a deadline expiry.
//
// All methods are safe for concurrent use. The future completes at most
// once; responses arriving after completion or after the request moved on
// to another attempt are discarded.
type ResponseFuture struct {
	cluster *Cluster
	sender  Sender
	sched   *scheduler.Scheduler
	logger  types.Logger
	metrics types.MetricsCollector

	retryPolicy policy.RetryPolicy
	rowFactory  RowFactory
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration

	mu        sync.Mutex
	msg       *Message
	plan      policy.QueryPlan
	host      types.Host
	hostValid bool
	// attempt numbers every transmission; a callback whose attempt
	// number no longer matches is stale and must be discarded.
	attempt   uint64
	retryNum  int
	attempted map[string]error
	completed bool
	rows      []any
	err       error
	done      chan struct{}
	started   time.Time
}

func newResponseFuture(c *Cluster, stmt *Statement, ec *execContext) *ResponseFuture {
	msg := &Message{
		Query:       stmt.Query,
		Values:      stmt.Values,
		Keyspace:    stmt.Keyspace,
		Consistency: ec.consistency,
	}
	if ec.serial != nil {
		sc := *ec.serial
		msg.SerialConsistency = &sc
	}

	return &ResponseFuture{
		cluster:     c,
		sender:      c.sender,
		sched:       c.sched,
		logger:      c.config.Logger,
		metrics:     c.config.Metrics,
		retryPolicy: ec.retryPolicy,
		rowFactory:  ec.rowFactory,
		timeout:     ec.timeout,
		maxRetries:  c.config.MaxRetries,
		backoff:     c.config.RetryBackoff,
		msg:         msg,
		plan:        ec.lbp.NewQueryPlan(stmt.Keyspace),
		attempted:   make(map[string]error),
		done:        make(chan struct{}),
	}
}

// start arms the deadline and sends the first attempt. It fails only when
// the cluster scheduler is no longer accepting work.
func (f *ResponseFuture) start() error {
	f.started = time.Now()
	f.metrics.IncRequestTotal()

	if f.timeout > 0 {
		if err := f.sched.Schedule(f.timeout, f.onDeadline); err != nil {
			if errors.Is(err, types.ErrSchedulerStopped) {
				return types.ErrClusterClosed
			}

			return err
		}
	}

	f.sendNext()

	return nil
}

// sendNext advances the query plan and transmits to the next candidate
// host. Hosts whose send fails before transmission are recorded and
// skipped without consulting the retry policy; an exhausted plan
// completes the future with the per-host error aggregate.
func (f *ResponseFuture) sendNext() {
	for {
		f.mu.Lock()
		if f.completed {
			f.mu.Unlock()

			return
		}

		host, ok := f.plan()
		if !ok {
			errs := make(map[string]error, len(f.attempted))
			for h, err := range f.attempted {
				errs[h] = err
			}
			f.mu.Unlock()

			f.metrics.IncHostExhausted()
			f.complete(nil, &types.NoHostAvailable{Errors: errs})

			return
		}

		f.host = host
		f.hostValid = true
		f.attempt++
		attempt := f.attempt
		msg := f.msg.clone()
		f.mu.Unlock()

		err := f.sender.Send(host, msg, func(result *Result, err error) {
			f.onResponse(attempt, host, result, err)
		})
		if err == nil {
			return
		}

		f.logger.Debug("send failed, trying next host", "host", host.String(), "error", err)
		f.mu.Lock()
		f.attempted[host.String()] = err
		f.mu.Unlock()
	}
}

// resend retransmits to the host of the current attempt. Used for
// retry-same verdicts; a send failure falls through to the next host.
func (f *ResponseFuture) resend() {
	f.mu.Lock()
	if f.completed || !f.hostValid {
		f.mu.Unlock()

		return
	}

	host := f.host
	f.attempt++
	attempt := f.attempt
	msg := f.msg.clone()
	f.mu.Unlock()

	err := f.sender.Send(host, msg, func(result *Result, err error) {
		f.onResponse(attempt, host, result, err)
	})
	if err != nil {
		f.logger.Debug("resend failed, trying next host", "host", host.String(), "error", err)
		f.mu.Lock()
		f.attempted[host.String()] = err
		f.mu.Unlock()

		f.sendNext()
	}
}

// onResponse handles one connection-layer callback. Stale callbacks, from
// attempts the future already abandoned, are dropped.
func (f *ResponseFuture) onResponse(attempt uint64, host types.Host, result *Result, err error) {
	f.mu.Lock()
	if f.completed || attempt != f.attempt {
		f.mu.Unlock()
		f.logger.Debug("discarding stale response", "host", host.String(), "attempt", attempt)

		return
	}

	if err == nil {
		factory := f.rowFactory
		f.mu.Unlock()

		var columns []string
		var raw [][]any
		if result != nil {
			columns = result.Columns
			raw = result.Rows
		}
		f.complete(factory(columns, raw), nil)

		return
	}

	var de *types.Error
	if !errors.As(err, &de) {
		// Connection-level failure: the coordinator never reported, so
		// the retry policy is not consulted and no retry is consumed.
		f.attempted[host.String()] = err
		f.mu.Unlock()

		f.logger.Debug("connection error, trying next host", "host", host.String(), "error", err)
		f.sendNext()

		return
	}

	verdict := f.consultPolicy(de)
	f.metrics.IncRetryDecision(verdict.Decision.String())

	switch verdict.Decision {
	case policy.RetrySame, policy.RetryNext:
		if f.maxRetries > 0 && f.retryNum >= f.maxRetries {
			f.mu.Unlock()

			f.logger.Warn("retry budget exhausted", "host", host.String(), "retries", f.retryNum)
			f.complete(nil, err)

			return
		}

		f.retryNum++
		f.msg.Consistency = verdict.Consistency
		if verdict.Decision == policy.RetryNext {
			f.attempted[host.String()] = err
		}
		same := verdict.Decision == policy.RetrySame
		f.mu.Unlock()

		schedErr := f.sched.Schedule(f.backoff, func() {
			if same {
				f.resend()
			} else {
				f.sendNext()
			}
		})
		if schedErr != nil {
			f.complete(nil, err)
		}

	case policy.Ignore:
		factory := f.rowFactory
		f.mu.Unlock()

		f.complete(factory(nil, nil), nil)

	default: // policy.Rethrow
		f.mu.Unlock()

		f.complete(nil, err)
	}
}

// consultPolicy maps a coordinator-reported failure onto the retry
// policy surface. Kinds the policy has no say over, such as invalid
// request or function failure, rethrow unconditionally.
//
// Called with f.mu held.
func (f *ResponseFuture) consultPolicy(de *types.Error) policy.Verdict {
	cl := f.msg.Consistency

	switch {
	case de.Kind == types.KindReadTimeout:
		return f.retryPolicy.OnReadTimeout(cl, de.Required, de.Received, de.DataRetrieved, f.retryNum)
	case de.Kind == types.KindWriteTimeout:
		return f.retryPolicy.OnWriteTimeout(cl, de.WriteType, de.Required, de.Received, f.retryNum)
	case de.Kind == types.KindUnavailable:
		return f.retryPolicy.OnUnavailable(cl, de.Required, de.Alive, f.retryNum)
	case de.IsKind(types.KindCoordinationFailure):
		isWrite := de.Kind == types.KindWriteFailure

		return f.retryPolicy.OnCoordinationFailure(cl, isWrite, de.Failures, f.retryNum)
	default:
		return policy.Verdict{Decision: policy.Rethrow, Consistency: cl}
	}
}

// onDeadline fires when the request timeout elapses before a terminal
// response arrived.
func (f *ResponseFuture) onDeadline() {
	f.complete(nil, &types.Error{
		Kind:    types.KindOperationTimedOut,
		Message: fmt.Sprintf("request did not complete within %s", f.timeout),
	})
}

// complete settles the future exactly once. Later invocations are no-ops.
func (f *ResponseFuture) complete(rows []any, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()

		return
	}

	f.completed = true
	f.rows = rows
	f.err = err
	close(f.done)
	f.mu.Unlock()

	f.metrics.ObserveRequestDuration(time.Since(f.started).Seconds())
	var de *types.Error
	if errors.As(err, &de) {
		f.metrics.IncRequestError(de.Kind)
	}
}

// Result blocks until the future settles or the context expires.
//
// Parameters:
//   - ctx: Context bounding the wait
//
// Returns:
//   - []any: Factory-transformed rows on success
//   - error: The terminal failure, or ctx.Err() when the wait was cut short
func (f *ResponseFuture) Result(ctx context.Context) ([]any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rows, f.err
}

// Done returns a channel closed when the future settles.
func (f *ResponseFuture) Done() <-chan struct{} {
	return f.done
}

// Attempts returns the number of policy-directed retries consumed so far.
func (f *ResponseFuture) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.retryNum
}

// Message returns a snapshot of the request message, reflecting any
// consistency downgrades applied by the retry policy.
func (f *ResponseFuture) Message() *Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.msg.clone()
}

// AttemptedHosts returns the hosts tried so far mapped to the error each
// produced.
func (f *ResponseFuture) AttemptedHosts() map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]error, len(f.attempted))
	for h, err := range f.attempted {
		out[h] = err
	}

	return out
}
