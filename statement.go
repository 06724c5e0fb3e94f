package lattice

import (
	"time"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

// Statement is one query submitted for execution, together with optional
// per-statement overrides.
//
// Override fields are explicit optionals: a nil field means "not
// overridden" and the value from the resolved execution profile applies;
// a set field always wins over the profile's corresponding field,
// field by field. For SerialConsistency in particular, a profile or
// session default of nil is itself a legitimate value ("no serial phase")
// distinct from a statement that does not override it.
type Statement struct {
	// Query is the statement text with ? placeholders.
	Query string

	// Values are the bound values for the placeholders.
	Values []any

	// Keyspace is the keyspace the statement targets; used for query-plan
	// routing. May be empty.
	Keyspace string

	// Consistency overrides the profile's consistency level when non-nil.
	Consistency *types.Consistency

	// SerialConsistency overrides the profile's serial consistency level
	// when non-nil. Only meaningful for conditional (lightweight
	// transaction) statements.
	SerialConsistency *types.Consistency

	// RetryPolicy overrides the profile's retry policy when non-nil.
	RetryPolicy policy.RetryPolicy

	// Timeout overrides the profile's request timeout when non-nil.
	Timeout *time.Duration
}

// NewStatement creates a Statement for the given query and bound values.
//
// Parameters:
//   - query: Statement text with ? placeholders
//   - values: Values to bind to placeholders
//
// Returns:
//   - *Statement: A new statement with no overrides set
func NewStatement(query string, values ...any) *Statement {
	return &Statement{Query: query, Values: values}
}

// WithConsistency sets the statement-level consistency override.
//
// Returns:
//   - *Statement: The same statement for chaining
func (s *Statement) WithConsistency(c types.Consistency) *Statement {
	s.Consistency = &c
	return s
}

// WithSerialConsistency sets the statement-level serial consistency
// override.
//
// Returns:
//   - *Statement: The same statement for chaining
func (s *Statement) WithSerialConsistency(c types.Consistency) *Statement {
	s.SerialConsistency = &c
	return s
}

// WithRetryPolicy sets the statement-level retry policy override.
//
// Returns:
//   - *Statement: The same statement for chaining
func (s *Statement) WithRetryPolicy(p policy.RetryPolicy) *Statement {
	s.RetryPolicy = p
	return s
}

// WithTimeout sets the statement-level request timeout override.
//
// Returns:
//   - *Statement: The same statement for chaining
func (s *Statement) WithTimeout(d time.Duration) *Statement {
	s.Timeout = &d
	return s
}

// Message is the request as sent to a coordinator: the statement plus the
// effective consistency parameters resolved from profile, session, and
// statement overrides. Retries may lower Consistency when a downgrading
// retry policy is in effect, so the message observed after completion
// reflects the final attempt.
type Message struct {
	// Query is the statement text.
	Query string

	// Values are the bound values.
	Values []any

	// Keyspace is the target keyspace, if known.
	Keyspace string

	// Consistency is the effective consistency level for the attempt.
	Consistency types.Consistency

	// SerialConsistency is the effective serial consistency level, or nil
	// when the operation has no serial phase.
	SerialConsistency *types.Consistency
}

// clone returns a deep-enough copy for handing to the connection layer:
// the values slice is shared (bound values are not mutated), the serial
// consistency pointer is copied by value.
func (m *Message) clone() *Message {
	out := *m
	if m.SerialConsistency != nil {
		sc := *m.SerialConsistency
		out.SerialConsistency = &sc
	}
	return &out
}

// Result is one decoded, successful response from a coordinator, before
// row-factory application.
type Result struct {
	// Columns are the result column names, in select order.
	Columns []string

	// Rows are the decoded row values, one inner slice per row.
	Rows [][]any
}

// ResponseCallback delivers the outcome of one send attempt. Exactly one
// of result and err is non-nil. The connection layer must invoke it
// exactly once per Send, from any goroutine.
type ResponseCallback func(result *Result, err error)

// Sender is the narrow contract the orchestration engine consumes from
// the connection/codec layer. Implementations frame and write the request
// to the given host and deliver exactly one framed response or a
// connection-level error through done.
//
// Failure responses from the coordinator are delivered as *types.Error
// values carrying the appropriate leaf kind and detail fields; any other
// error is treated as a connection-level failure and the engine moves on
// to the next host without consulting the retry policy.
type Sender interface {
	// Send transmits msg to host and arranges for done to be called with
	// the outcome. It returns an error only for failures detected before
	// transmission (e.g. no connection to the host); in that case done is
	// not called.
	Send(host types.Host, msg *Message, done ResponseCallback) error
}
