package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies one node in the driver's closed failure hierarchy.
//
// The hierarchy mirrors nominal exception subtyping with an explicit
// parent table: every Kind except KindDriver has exactly one parent, and
// IsKind walks that table instead of relying on Go type embedding. Retry
// policies and user code dispatch on kinds, so the ancestor relationships
// below are part of the public contract and must not change.
type Kind uint8

const (
	// KindDriver is the root of the hierarchy. No raised error carries this
	// kind directly; it exists so that IsKind(err, KindDriver) matches every
	// driver failure.
	KindDriver Kind = iota

	// KindRequestExecution groups failures of a well-formed request during
	// execution by the cluster.
	KindRequestExecution
	// KindTimeout groups coordinator-reported replica timeouts.
	KindTimeout
	// KindReadTimeout is a replica timeout during a read request.
	KindReadTimeout
	// KindWriteTimeout is a replica timeout during a write request.
	KindWriteTimeout
	// KindCoordinationFailure groups non-timeout replica failures reported
	// by the coordinator.
	KindCoordinationFailure
	// KindReadFailure is a replica failure during a read request.
	KindReadFailure
	// KindWriteFailure is a replica failure during a write request.
	KindWriteFailure
	// KindFunctionFailure is a user-defined function failure during execution.
	KindFunctionFailure
	// KindUnavailable means too few live replicas existed to satisfy the
	// requested consistency level; the request was not attempted.
	KindUnavailable

	// KindRequestValidation groups requests rejected by the coordinator
	// before execution.
	KindRequestValidation
	// KindConfiguration is a query attempting an invalid schema change.
	KindConfiguration
	// KindAlreadyExists reports a keyspace or table that already exists.
	KindAlreadyExists
	// KindInvalidRequest is a syntactically correct but invalid query.
	KindInvalidRequest
	// KindUnauthorized means the user lacks permission for the request.
	KindUnauthorized

	// KindAuthenticationFailed is a failure to authenticate with a node.
	KindAuthenticationFailed
	// KindOperationTimedOut is a client-side timeout: no response within the
	// request deadline. Distinct from KindTimeout, which is reported by the
	// coordinator.
	KindOperationTimedOut
	// KindUnsupportedOperation is an attempt to use a feature unsupported by
	// the negotiated protocol version.
	KindUnsupportedOperation
)

// parentKind maps every kind to its parent in the hierarchy.
// KindDriver is absent: it is the root.
var parentKind = map[Kind]Kind{
	KindRequestExecution:    KindDriver,
	KindTimeout:             KindRequestExecution,
	KindReadTimeout:         KindTimeout,
	KindWriteTimeout:        KindTimeout,
	KindCoordinationFailure: KindRequestExecution,
	KindReadFailure:         KindCoordinationFailure,
	KindWriteFailure:        KindCoordinationFailure,
	KindFunctionFailure:     KindRequestExecution,
	KindUnavailable:         KindRequestExecution,

	KindRequestValidation: KindDriver,
	KindConfiguration:     KindRequestValidation,
	KindAlreadyExists:     KindConfiguration,
	KindInvalidRequest:    KindRequestValidation,
	KindUnauthorized:      KindRequestValidation,

	KindAuthenticationFailed: KindDriver,
	KindOperationTimedOut:    KindDriver,
	KindUnsupportedOperation: KindDriver,
}

// kindNames holds display names for log messages and Error strings.
var kindNames = map[Kind]string{
	KindDriver:               "DriverError",
	KindRequestExecution:     "RequestExecutionError",
	KindTimeout:              "Timeout",
	KindReadTimeout:          "ReadTimeout",
	KindWriteTimeout:         "WriteTimeout",
	KindCoordinationFailure:  "CoordinationFailure",
	KindReadFailure:          "ReadFailure",
	KindWriteFailure:         "WriteFailure",
	KindFunctionFailure:      "FunctionFailure",
	KindUnavailable:          "Unavailable",
	KindRequestValidation:    "RequestValidationError",
	KindConfiguration:        "ConfigurationError",
	KindAlreadyExists:        "AlreadyExists",
	KindInvalidRequest:       "InvalidRequest",
	KindUnauthorized:         "Unauthorized",
	KindAuthenticationFailed: "AuthenticationFailed",
	KindOperationTimedOut:    "OperationTimedOut",
	KindUnsupportedOperation: "UnsupportedOperation",
}

// String returns the display name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Is reports whether the kind equals other or descends from it.
func (k Kind) Is(other Kind) bool {
	for {
		if k == other {
			return true
		}
		parent, ok := parentKind[k]
		if !ok {
			return false
		}
		k = parent
	}
}

// Error is the failure type raised by the request-orchestration engine.
//
// Every failure carries exactly one leaf Kind; ancestor kinds are reachable
// through IsKind, never through separate error values. The detail fields
// are populated per kind:
//
//   - ReadTimeout: Consistency, Required, Received, DataRetrieved
//   - WriteTimeout: Consistency, Required, Received, WriteType
//   - ReadFailure/WriteFailure: Consistency, Required, Received, Failures
//   - Unavailable: Consistency, Required, Alive
//
// Fields not listed for a kind are zero and carry no meaning.
type Error struct {
	// Kind is the leaf failure kind.
	Kind Kind

	// Message is the server- or driver-supplied description.
	Message string

	// Consistency is the consistency level the failed operation ran at.
	Consistency Consistency

	// Required is the number of replica acknowledgments/responses required.
	Required int

	// Received is the number of replica acknowledgments/responses received
	// before the failure.
	Received int

	// Alive is the number of replicas known alive (Unavailable only).
	Alive int

	// Failures is the number of replicas that replied with an error
	// (ReadFailure/WriteFailure only).
	Failures int

	// DataRetrieved reports whether the replica designated to return data
	// responded (ReadTimeout only).
	DataRetrieved bool

	// WriteType is the kind of write that timed out or failed.
	WriteType WriteType

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("lattice: ")
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether the error's kind equals k or descends from it.
func (e *Error) IsKind(k Kind) bool {
	return e.Kind.Is(k)
}

// IsKind reports whether err is a driver Error whose kind equals k or
// descends from it. It unwraps err first, so wrapped driver errors match.
func IsKind(err error, k Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.IsKind(k)
	}
	return false
}

// NoHostAvailable is the terminal failure raised when every candidate
// coordinator in the query plan has been tried without success, or the
// plan was empty. It aggregates the individual failure per attempted
// host rather than surfacing any single host's error.
type NoHostAvailable struct {
	// Errors maps each attempted host (by address) to the failure observed
	// on it. Empty when the load-balancing policy produced no candidates.
	Errors map[string]error
}

// Error implements the error interface.
func (e *NoHostAvailable) Error() string {
	if len(e.Errors) == 0 {
		return "lattice: no host available: query plan was empty"
	}
	hosts := make([]string, 0, len(e.Errors))
	for h := range e.Errors {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	var b strings.Builder
	b.WriteString("lattice: no host available, tried ")
	for i, h := range hosts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%v)", h, e.Errors[h])
	}
	return b.String()
}
