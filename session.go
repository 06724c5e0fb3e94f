package lattice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

// Session is the per-application entry point for executing requests.
//
// In legacy mode a session carries mutable default settings (timeout,
// consistency, serial consistency, row factory) that shape every request
// without an explicit profile; the first use of any of these setters
// commits the cluster to legacy mode. In profiles mode the setters fail,
// because profiles are immutable once committed, and behavior is selected
// per call via WithProfile / WithProfileValue.
//
// Session is safe for concurrent use from multiple goroutines.
type Session struct {
	cluster *Cluster

	mu             sync.RWMutex
	defaultTimeout time.Duration
	defaultConsist types.Consistency
	defaultSerial  *types.Consistency
	rowFactory     RowFactory

	closed atomic.Bool
}

func newSession(c *Cluster) *Session {
	return &Session{
		cluster:        c,
		defaultTimeout: DefaultRequestTimeout,
		defaultConsist: DefaultConsistency,
		rowFactory:     TupleRowFactory,
	}
}

// SetDefaultTimeout sets the session's default request timeout. This is a
// legacy-mode API.
//
// Parameters:
//   - d: The default request timeout
//
// Returns:
//   - error: A configuration error if the cluster is in profiles mode
func (s *Session) SetDefaultTimeout(d time.Duration) error {
	if err := s.cluster.commitMode(ConfigModeLegacy, "SetDefaultTimeout"); err != nil {
		return err
	}

	s.mu.Lock()
	s.defaultTimeout = d
	s.mu.Unlock()

	return nil
}

// DefaultTimeout returns the session's default request timeout.
func (s *Session) DefaultTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.defaultTimeout
}

// SetDefaultConsistency sets the session's default consistency level.
// This is a legacy-mode API.
//
// Parameters:
//   - c: The default consistency level
//
// Returns:
//   - error: A configuration error if the cluster is in profiles mode
func (s *Session) SetDefaultConsistency(c types.Consistency) error {
	if err := s.cluster.commitMode(ConfigModeLegacy, "SetDefaultConsistency"); err != nil {
		return err
	}

	s.mu.Lock()
	s.defaultConsist = c
	s.mu.Unlock()

	return nil
}

// DefaultConsistency returns the session's default consistency level.
func (s *Session) DefaultConsistency() types.Consistency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.defaultConsist
}

// SetDefaultSerialConsistency sets the session's default serial
// consistency level; nil means no serial phase default. This is a
// legacy-mode API.
//
// A nil default is a legitimate value distinct from "not overridden":
// requests whose statements set no serial consistency inherit whatever is
// configured here, including nil.
//
// Parameters:
//   - c: The default serial consistency level, or nil to clear it
//
// Returns:
//   - error: A configuration error if the cluster is in profiles mode
func (s *Session) SetDefaultSerialConsistency(c *types.Consistency) error {
	if err := s.cluster.commitMode(ConfigModeLegacy, "SetDefaultSerialConsistency"); err != nil {
		return err
	}

	s.mu.Lock()
	if c == nil {
		s.defaultSerial = nil
	} else {
		sc := *c
		s.defaultSerial = &sc
	}
	s.mu.Unlock()

	return nil
}

// DefaultSerialConsistency returns the session's default serial
// consistency level, or nil when none is configured.
func (s *Session) DefaultSerialConsistency() *types.Consistency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.defaultSerial == nil {
		return nil
	}
	sc := *s.defaultSerial

	return &sc
}

// SetRowFactory sets the session's row factory. This is a legacy-mode API.
//
// Parameters:
//   - f: The row factory
//
// Returns:
//   - error: A configuration error if the cluster is in profiles mode
func (s *Session) SetRowFactory(f RowFactory) error {
	if err := s.cluster.commitMode(ConfigModeLegacy, "SetRowFactory"); err != nil {
		return err
	}

	s.mu.Lock()
	s.rowFactory = f
	s.mu.Unlock()

	return nil
}

// ExecuteOption configures one Execute/ExecuteAsync call.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	timeout      *time.Duration
	profileName  string
	profileNamed bool
	profileValue *ExecutionProfile
}

// WithTimeout overrides the request timeout for this call only. It takes
// precedence over the profile's timeout but not over a statement-level
// timeout override.
//
// Parameters:
//   - d: The request timeout for this call
//
// Returns:
//   - ExecuteOption: Call option
func WithTimeout(d time.Duration) ExecuteOption {
	return func(o *executeOptions) {
		o.timeout = &d
	}
}

// WithProfile selects the named execution profile for this call. The
// name must be registered on the cluster; this is a profiles-mode API.
//
// Parameters:
//   - name: The registered profile name
//
// Returns:
//   - ExecuteOption: Call option
func WithProfile(name string) ExecuteOption {
	return func(o *executeOptions) {
		o.profileName = name
		o.profileNamed = true
	}
}

// WithProfileValue uses the given profile for this call without
// registering it: the profile is used once and discarded. This is a
// profiles-mode API.
//
// Parameters:
//   - profile: The ad hoc profile value
//
// Returns:
//   - ExecuteOption: Call option
func WithProfileValue(profile ExecutionProfile) ExecuteOption {
	return func(o *executeOptions) {
		p := profile
		o.profileValue = &p
	}
}

// execContext is the fully resolved parametrization of one request after
// profile, session, call, and statement precedence has been applied.
type execContext struct {
	lbp         policy.LoadBalancingPolicy
	retryPolicy policy.RetryPolicy
	consistency types.Consistency
	serial      *types.Consistency
	timeout     time.Duration
	rowFactory  RowFactory
}

// resolveExecution computes the effective execution parameters for one
// request. Precedence, lowest first: the active mode's default profile,
// session-level legacy defaults, named/ad hoc profile selection, then
// field-by-field statement and call overrides.
func (s *Session) resolveExecution(stmt *Statement, opts *executeOptions) (*execContext, error) {
	mode := s.cluster.Mode()

	var prof ExecutionProfile
	switch {
	case opts.profileValue != nil:
		if mode == ConfigModeLegacy {
			return nil, &types.Error{
				Kind:    types.KindConfiguration,
				Message: "execution profiles cannot be used with legacy settings",
			}
		}
		prof = opts.profileValue.normalized()

	case opts.profileNamed && opts.profileName != DefaultProfileName:
		if mode == ConfigModeLegacy {
			return nil, &types.Error{
				Kind:    types.KindConfiguration,
				Message: "execution profiles cannot be used with legacy settings",
			}
		}
		p, ok := s.cluster.Profile(opts.profileName)
		if !ok {
			return nil, &types.Error{
				Kind:    types.KindConfiguration,
				Message: fmt.Sprintf("execution profile %q does not exist", opts.profileName),
			}
		}
		prof = p

	default:
		p, _ := s.cluster.Profile(DefaultProfileName)
		prof = p
		if mode != ConfigModeProfiles {
			// Legacy and uncommitted modes: session defaults shape the
			// effective profile.
			s.mu.RLock()
			prof.Consistency = s.defaultConsist
			prof.SerialConsistency = s.defaultSerial
			prof.RequestTimeout = s.defaultTimeout
			prof.RowFactory = s.rowFactory
			s.mu.RUnlock()
		}
	}

	ec := &execContext{
		lbp:         prof.LoadBalancingPolicy,
		retryPolicy: prof.RetryPolicy,
		consistency: prof.Consistency,
		serial:      prof.SerialConsistency,
		timeout:     prof.RequestTimeout,
		rowFactory:  prof.RowFactory,
	}

	// Call-level override, then statement-level: unset fields never
	// override, set fields always win.
	if opts.timeout != nil {
		ec.timeout = *opts.timeout
	}
	if stmt.RetryPolicy != nil {
		ec.retryPolicy = stmt.RetryPolicy
	}
	if stmt.Consistency != nil {
		ec.consistency = *stmt.Consistency
	}
	if stmt.SerialConsistency != nil {
		sc := *stmt.SerialConsistency
		ec.serial = &sc
	}
	if stmt.Timeout != nil {
		ec.timeout = *stmt.Timeout
	}

	return ec, nil
}

// ExecuteAsync submits a statement for execution and returns its response
// future immediately.
//
// Configuration problems (unknown profile name, mode conflicts) and
// local defects (nil or empty statement) fail synchronously; execution
// failures are always delivered through the future's terminal state.
//
// Parameters:
//   - stmt: The statement to execute
//   - opts: Optional per-call options
//
// Returns:
//   - *ResponseFuture: The in-flight request handle
//   - error: Synchronous configuration or validation error
func (s *Session) ExecuteAsync(stmt *Statement, opts ...ExecuteOption) (*ResponseFuture, error) {
	if s.closed.Load() {
		return nil, types.ErrSessionClosed
	}
	if s.cluster.closed.Load() {
		return nil, types.ErrClusterClosed
	}
	if stmt == nil || stmt.Query == "" {
		return nil, &types.Error{
			Kind:    types.KindInvalidRequest,
			Message: "statement query cannot be empty",
		}
	}

	var options executeOptions
	for _, opt := range opts {
		opt(&options)
	}

	ec, err := s.resolveExecution(stmt, &options)
	if err != nil {
		return nil, err
	}

	f := newResponseFuture(s.cluster, stmt, ec)
	if err := f.start(); err != nil {
		return nil, err
	}

	return f, nil
}

// Execute submits a statement and blocks until its terminal result.
//
// Parameters:
//   - ctx: Context bounding the wait (the request keeps its own deadline)
//   - stmt: The statement to execute
//   - opts: Optional per-call options
//
// Returns:
//   - []any: Factory-transformed rows on success
//   - error: Synchronous error, terminal failure, or ctx.Err()
func (s *Session) Execute(ctx context.Context, stmt *Statement, opts ...ExecuteOption) ([]any, error) {
	f, err := s.ExecuteAsync(stmt, opts...)
	if err != nil {
		return nil, err
	}

	return f.Result(ctx)
}

// Close marks the session closed. Subsequent executions fail with
// types.ErrSessionClosed; in-flight futures are unaffected.
func (s *Session) Close() {
	s.closed.Store(true)
}
