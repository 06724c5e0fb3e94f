package policy

import "github.com/arloliu/lattice/types"

// Decision names the action a retry policy chose for a failed request.
type Decision int

const (
	// Rethrow surfaces the failure to the caller unchanged.
	Rethrow Decision = iota
	// RetrySame resends the request to the same coordinator.
	RetrySame
	// RetryNext resends the request to the next coordinator in the query plan.
	RetryNext
	// Ignore resolves the request successfully with an empty result.
	Ignore
)

// String returns the metrics label for the decision.
func (d Decision) String() string {
	switch d {
	case Rethrow:
		return "rethrow"
	case RetrySame:
		return "retry_same"
	case RetryNext:
		return "retry_next"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of one retry-policy decision.
type Verdict struct {
	// Decision is the chosen action.
	Decision Decision

	// Consistency is the level to use for the retry. It is meaningful only
	// when Decision is RetrySame or RetryNext; downgrading policies use it
	// to lower the level below the original request's.
	Consistency types.Consistency
}

// rethrow is the zero Verdict.
var rethrow = Verdict{Decision: Rethrow}

// RetryPolicy decides whether and how a failed request is retried.
//
// Implementations must be pure decision functions: stateless, safe for
// concurrent use, and free of side effects. retryNum is the number of
// retries already performed for the request (0 on the first failure).
type RetryPolicy interface {
	// OnReadTimeout handles a coordinator-reported read timeout.
	//
	// Parameters:
	//   - consistency: The level the read ran at
	//   - required: Replica responses required by that level
	//   - received: Replica responses received before the timeout
	//   - dataRetrieved: Whether the replica designated to return data responded
	//   - retryNum: Retries already performed
	//
	// Returns:
	//   - Verdict: The chosen action and retry consistency
	OnReadTimeout(consistency types.Consistency, required, received int, dataRetrieved bool, retryNum int) Verdict

	// OnWriteTimeout handles a coordinator-reported write timeout.
	//
	// Parameters:
	//   - consistency: The level the write ran at
	//   - writeType: The protocol write type that timed out
	//   - required: Replica acknowledgments required by that level
	//   - received: Replica acknowledgments received before the timeout
	//   - retryNum: Retries already performed
	//
	// Returns:
	//   - Verdict: The chosen action and retry consistency
	OnWriteTimeout(consistency types.Consistency, writeType types.WriteType, required, received int, retryNum int) Verdict

	// OnUnavailable handles a coordinator report that too few replicas were
	// alive to attempt the request.
	//
	// Parameters:
	//   - consistency: The level the request asked for
	//   - required: Live replicas required by that level
	//   - alive: Live replicas known to the coordinator
	//   - retryNum: Retries already performed
	//
	// Returns:
	//   - Verdict: The chosen action and retry consistency
	OnUnavailable(consistency types.Consistency, required, alive int, retryNum int) Verdict

	// OnCoordinationFailure handles a non-timeout read or write failure
	// reported by the coordinator (a replica replied with an error).
	//
	// Parameters:
	//   - consistency: The level the request ran at
	//   - isWrite: Whether the failed request was a write
	//   - failures: Replicas that replied with an error
	//   - retryNum: Retries already performed
	//
	// Returns:
	//   - Verdict: The chosen action and retry consistency
	OnCoordinationFailure(consistency types.Consistency, isWrite bool, failures, retryNum int) Verdict
}

// Default is the conservative retry policy used when no other policy is
// configured. It retries in exactly the cases where a retry has a chance
// of succeeding and cannot duplicate a non-idempotent write.
type Default struct{}

// Compile-time assertion that Default implements RetryPolicy.
var _ RetryPolicy = (*Default)(nil)

// NewDefault creates a new Default retry policy.
//
// Returns:
//   - *Default: A new default retry policy
func NewDefault() *Default {
	return &Default{}
}

// OnReadTimeout retries on the same host, at the same consistency level,
// when enough replicas responded but the data replica did not; the retry
// is then a matter of re-requesting the data. Any other read timeout, and
// any second timeout, is rethrown.
func (p *Default) OnReadTimeout(consistency types.Consistency, required, received int, dataRetrieved bool, retryNum int) Verdict {
	if retryNum == 0 && received >= required && !dataRetrieved {
		return Verdict{Decision: RetrySame, Consistency: consistency}
	}
	return rethrow
}

// OnWriteTimeout retries only batch-log writes, which the coordinator is
// known not to have applied yet, so resending cannot duplicate data. All
// other write types are rethrown: the write may have been applied.
func (p *Default) OnWriteTimeout(consistency types.Consistency, writeType types.WriteType, _, _ int, retryNum int) Verdict {
	if retryNum == 0 && writeType == types.WriteBatchLog {
		return Verdict{Decision: RetrySame, Consistency: consistency}
	}
	return rethrow
}

// OnUnavailable tries the next host in the query plan once: the failure
// may be local to the coordinator's view of the cluster.
func (p *Default) OnUnavailable(consistency types.Consistency, _, _ int, retryNum int) Verdict {
	if retryNum == 0 {
		return Verdict{Decision: RetryNext, Consistency: consistency}
	}
	return rethrow
}

// OnCoordinationFailure rethrows: a replica actively failed, and retrying
// against the same data is unlikely to fare better.
func (p *Default) OnCoordinationFailure(_ types.Consistency, _ bool, _, _ int) Verdict {
	return rethrow
}

// Fallthrough never retries; every failure is surfaced to the caller.
// Use it when the application does its own retry handling.
type Fallthrough struct{}

// Compile-time assertion that Fallthrough implements RetryPolicy.
var _ RetryPolicy = (*Fallthrough)(nil)

// NewFallthrough creates a new Fallthrough retry policy.
//
// Returns:
//   - *Fallthrough: A new fallthrough retry policy
func NewFallthrough() *Fallthrough {
	return &Fallthrough{}
}

// OnReadTimeout rethrows.
func (p *Fallthrough) OnReadTimeout(_ types.Consistency, _, _ int, _ bool, _ int) Verdict {
	return rethrow
}

// OnWriteTimeout rethrows.
func (p *Fallthrough) OnWriteTimeout(_ types.Consistency, _ types.WriteType, _, _ int, _ int) Verdict {
	return rethrow
}

// OnUnavailable rethrows.
func (p *Fallthrough) OnUnavailable(_ types.Consistency, _, _ int, _ int) Verdict {
	return rethrow
}

// OnCoordinationFailure rethrows.
func (p *Fallthrough) OnCoordinationFailure(_ types.Consistency, _ bool, _, _ int) Verdict {
	return rethrow
}

// DowngradingConsistency retries failed requests at the highest
// consistency level the responding replica count can still satisfy.
//
// WARNING: a retry issued by this policy may succeed at a weaker level
// than the application requested, breaking the consistency contract of
// the original request. Only use it when availability is worth more than
// the requested guarantee. The response future reports the final level
// through its message, so callers can observe the downgrade.
type DowngradingConsistency struct{}

// Compile-time assertion that DowngradingConsistency implements RetryPolicy.
var _ RetryPolicy = (*DowngradingConsistency)(nil)

// NewDowngradingConsistency creates a new DowngradingConsistency retry policy.
//
// Returns:
//   - *DowngradingConsistency: A new downgrading retry policy
func NewDowngradingConsistency() *DowngradingConsistency {
	return &DowngradingConsistency{}
}

// pickConsistency returns a retry at the strongest level numResponses
// replicas can satisfy, or rethrows when no level fits.
func pickConsistency(numResponses int) Verdict {
	switch {
	case numResponses >= 3:
		return Verdict{Decision: RetrySame, Consistency: types.Three}
	case numResponses == 2:
		return Verdict{Decision: RetrySame, Consistency: types.Two}
	case numResponses == 1:
		return Verdict{Decision: RetrySame, Consistency: types.One}
	default:
		return rethrow
	}
}

// OnReadTimeout downgrades to a level the responding replicas can satisfy
// when too few responded, or retries at the same level when only the data
// response is missing.
func (p *DowngradingConsistency) OnReadTimeout(consistency types.Consistency, required, received int, dataRetrieved bool, retryNum int) Verdict {
	if retryNum != 0 {
		return rethrow
	}
	if received < required {
		return pickConsistency(received)
	}
	if !dataRetrieved {
		return Verdict{Decision: RetrySame, Consistency: consistency}
	}
	return rethrow
}

// OnWriteTimeout ignores timeouts for simple and logged-batch writes
// (the write reached at least one replica and will be handed off),
// downgrades unlogged batches, and retries batch-log writes unchanged.
func (p *DowngradingConsistency) OnWriteTimeout(consistency types.Consistency, writeType types.WriteType, _, received int, retryNum int) Verdict {
	if retryNum != 0 {
		return rethrow
	}
	switch writeType {
	case types.WriteSimple, types.WriteBatch:
		return Verdict{Decision: Ignore}
	case types.WriteUnloggedBatch:
		return pickConsistency(received)
	case types.WriteBatchLog:
		return Verdict{Decision: RetrySame, Consistency: consistency}
	default:
		return rethrow
	}
}

// OnUnavailable downgrades to a level the live replicas can satisfy.
func (p *DowngradingConsistency) OnUnavailable(_ types.Consistency, _, alive int, retryNum int) Verdict {
	if retryNum != 0 {
		return rethrow
	}
	return pickConsistency(alive)
}

// OnCoordinationFailure rethrows.
func (p *DowngradingConsistency) OnCoordinationFailure(_ types.Consistency, _ bool, _, _ int) Verdict {
	return rethrow
}
