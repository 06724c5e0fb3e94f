package lattice

import (
	"time"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

// DefaultProfileName is the reserved name under which the default
// execution profile is registered when a cluster commits to profiles
// mode. Executing without naming a profile uses this one.
const DefaultProfileName = "default"

// Default execution parameters, applied wherever a profile or legacy
// session leaves a field unset.
const (
	// DefaultRequestTimeout is the client-side deadline for one request.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultConsistency is the consistency level used when none is
	// configured.
	DefaultConsistency = types.LocalOne
)

// ExecutionProfile is an immutable bundle of per-request policy settings:
// load-balancing policy, retry policy, consistency level, serial
// consistency level, request timeout, and row factory. One profile fully
// parametrizes one request's behavior.
//
// Profiles are registered on a Cluster by name and are frozen once the
// cluster has committed to profiles mode; the registry stores value
// copies, so mutating a profile after registration has no effect on
// execution.
type ExecutionProfile struct {
	// LoadBalancingPolicy orders candidate coordinators for each request.
	LoadBalancingPolicy policy.LoadBalancingPolicy

	// RetryPolicy decides how failures are retried.
	RetryPolicy policy.RetryPolicy

	// Consistency is the regular consistency level.
	Consistency types.Consistency

	// SerialConsistency is the level for the linearizable phase of
	// conditional operations; nil means no serial phase default.
	SerialConsistency *types.Consistency

	// RequestTimeout is the client-side deadline for one request,
	// including all retries.
	RequestTimeout time.Duration

	// RowFactory transforms decoded rows into the caller-visible
	// representation.
	RowFactory RowFactory
}

// ProfileOption configures an ExecutionProfile under construction.
type ProfileOption func(*ExecutionProfile)

// WithProfileLoadBalancing sets the profile's load-balancing policy.
//
// Parameters:
//   - lbp: The load-balancing policy
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileLoadBalancing(lbp policy.LoadBalancingPolicy) ProfileOption {
	return func(p *ExecutionProfile) {
		p.LoadBalancingPolicy = lbp
	}
}

// WithProfileRetryPolicy sets the profile's retry policy.
//
// Parameters:
//   - rp: The retry policy
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileRetryPolicy(rp policy.RetryPolicy) ProfileOption {
	return func(p *ExecutionProfile) {
		p.RetryPolicy = rp
	}
}

// WithProfileConsistency sets the profile's consistency level.
//
// Parameters:
//   - c: The consistency level
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileConsistency(c types.Consistency) ProfileOption {
	return func(p *ExecutionProfile) {
		p.Consistency = c
	}
}

// WithProfileSerialConsistency sets the profile's serial consistency
// level for conditional operations.
//
// Parameters:
//   - c: The serial consistency level (Serial or LocalSerial)
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileSerialConsistency(c types.Consistency) ProfileOption {
	return func(p *ExecutionProfile) {
		p.SerialConsistency = &c
	}
}

// WithProfileRequestTimeout sets the profile's request timeout.
//
// Parameters:
//   - d: The client-side deadline for one request
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileRequestTimeout(d time.Duration) ProfileOption {
	return func(p *ExecutionProfile) {
		p.RequestTimeout = d
	}
}

// WithProfileRowFactory sets the profile's row factory.
//
// Parameters:
//   - f: The row factory
//
// Returns:
//   - ProfileOption: Configuration option
func WithProfileRowFactory(f RowFactory) ProfileOption {
	return func(p *ExecutionProfile) {
		p.RowFactory = f
	}
}

// NewExecutionProfile creates an ExecutionProfile with the driver
// defaults, overridden by the given options.
//
// Defaults: round-robin load balancing, the Default retry policy,
// LOCAL_ONE consistency, no serial consistency, 10s request timeout,
// TupleRowFactory.
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - ExecutionProfile: A fully populated profile value
func NewExecutionProfile(opts ...ProfileOption) ExecutionProfile {
	p := ExecutionProfile{
		LoadBalancingPolicy: policy.NewRoundRobin(),
		RetryPolicy:         policy.NewDefault(),
		Consistency:         DefaultConsistency,
		RequestTimeout:      DefaultRequestTimeout,
		RowFactory:          TupleRowFactory,
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// normalized fills any nil policy fields with driver defaults and detaches
// the serial consistency pointer, so the stored value is self-contained.
func (p ExecutionProfile) normalized() ExecutionProfile {
	if p.LoadBalancingPolicy == nil {
		p.LoadBalancingPolicy = policy.NewRoundRobin()
	}
	if p.RetryPolicy == nil {
		p.RetryPolicy = policy.NewDefault()
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}
	if p.RowFactory == nil {
		p.RowFactory = TupleRowFactory
	}
	if p.SerialConsistency != nil {
		sc := *p.SerialConsistency
		p.SerialConsistency = &sc
	}

	return p
}
