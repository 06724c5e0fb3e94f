// Package lattice provides the request-orchestration core of a client
// driver for a distributed, replicated, partitioned database.
//
// Lattice sits above the connection layer: given a Sender that can put a
// message on the wire to a single host, it decides which hosts to try,
// in what order, how to react to coordinator-reported failures, and when
// to give up.
//
// # Key Features
//
//   - Response Futures: Asynchronous per-request state machines that walk
//     a query plan and settle exactly once
//   - Retry Policies: Pluggable verdicts for read/write timeouts,
//     unavailability, and coordination failures, including
//     consistency-downgrading retries
//   - Execution Profiles: Named, immutable bundles of load balancing,
//     retry, consistency, and timeout settings, selectable per request
//   - Legacy Settings: A mutable session/cluster default surface that is
//     mutually exclusive with profiles, enforced at first use
//   - Delayed Scheduler: A monotonic min-heap timer used for retry
//     backoff and request deadlines
//
// # Basic Usage
//
//	cluster, err := lattice.NewCluster(sender,
//	    lattice.WithHosts(hosts),
//	    lattice.WithExecutionProfiles(map[string]lattice.ExecutionProfile{
//	        "analytics": lattice.NewExecutionProfile(
//	            lattice.WithProfileConsistency(lattice.LocalQuorum),
//	            lattice.WithProfileRequestTimeout(30*time.Second),
//	        ),
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cluster.Close()
//
//	session, err := cluster.Connect()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := session.Execute(ctx,
//	    lattice.NewStatement("SELECT * FROM users WHERE id = ?", id),
//	    lattice.WithProfile("analytics"),
//	)
//
// # Error Handling
//
// Coordinator failures are reported as *types.Error values carrying a
// hierarchical Kind; use types.IsKind to match a whole subtree, e.g.
// types.KindTimeout matches both read and write timeouts. Exhausting the
// query plan yields *types.NoHostAvailable with the per-host errors.
//
// Configuration mistakes (mixing legacy settings with profiles, unknown
// profile names, out-of-range connection bounds) fail synchronously with
// KindConfiguration errors; execution failures only ever surface through
// the response future.
package lattice
