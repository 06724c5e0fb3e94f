// Package policy provides retry and load-balancing policies for the
// Lattice request-orchestration engine.
//
// # Retry policies
//
// A RetryPolicy is a pure decision function: given a failure observation
// it returns a Verdict naming one of four decisions (Rethrow, RetrySame,
// RetryNext, Ignore) plus the consistency level to use if the request is
// retried. Policies never count attempts themselves; the response future
// passes the current retry number in and enforces any cap.
//
// Three implementations are provided:
//
//   - Default: conservative. Retries a read timeout once when enough
//     replicas responded but the data replica did not, retries a write
//     timeout once only for batch-log writes, and moves to the next host
//     once on unavailable. Everything else is rethrown.
//   - Fallthrough: never retries; every failure is rethrown to the caller.
//   - DowngradingConsistency: lowers the consistency level to whatever the
//     responding replica count can satisfy and retries. Trades consistency
//     for availability; use only when that trade is acceptable.
//
// # Load-balancing policies
//
// A LoadBalancingPolicy orders candidate coordinator hosts for each
// request as a lazy QueryPlan. The topology layer feeds live hosts to the
// policy via SetHosts; the driver core only consumes plans. RoundRobin is
// provided as the default implementation.
package policy
