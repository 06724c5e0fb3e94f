// Package types provides shared types and errors for the Lattice driver.
//
// This is a "leaf" package with no imports from other lattice packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Consistency represents the replica-acknowledgment level required for a
// request to be considered successful.
type Consistency uint16

// Consistency levels, matching the native protocol wire values.
const (
	Any         Consistency = 0x00
	One         Consistency = 0x01
	Two         Consistency = 0x02
	Three       Consistency = 0x03
	Quorum      Consistency = 0x04
	All         Consistency = 0x05
	LocalQuorum Consistency = 0x06
	EachQuorum  Consistency = 0x07
	Serial      Consistency = 0x08
	LocalSerial Consistency = 0x09
	LocalOne    Consistency = 0x0A
)

// String returns the protocol name of the consistency level.
func (c Consistency) String() string {
	switch c {
	case Any:
		return "ANY"
	case One:
		return "ONE"
	case Two:
		return "TWO"
	case Three:
		return "THREE"
	case Quorum:
		return "QUORUM"
	case All:
		return "ALL"
	case LocalQuorum:
		return "LOCAL_QUORUM"
	case EachQuorum:
		return "EACH_QUORUM"
	case Serial:
		return "SERIAL"
	case LocalSerial:
		return "LOCAL_SERIAL"
	case LocalOne:
		return "LOCAL_ONE"
	default:
		return "UNKNOWN"
	}
}

// ParseConsistency converts a protocol name, as produced by String, back
// to a consistency level. The comparison is case-insensitive.
//
// Parameters:
//   - name: The protocol name, e.g. "LOCAL_QUORUM"
//
// Returns:
//   - Consistency: The parsed level
//   - error: An error when the name is not a known level
func ParseConsistency(name string) (Consistency, error) {
	switch strings.ToUpper(name) {
	case "ANY":
		return Any, nil
	case "ONE":
		return One, nil
	case "TWO":
		return Two, nil
	case "THREE":
		return Three, nil
	case "QUORUM":
		return Quorum, nil
	case "ALL":
		return All, nil
	case "LOCAL_QUORUM":
		return LocalQuorum, nil
	case "EACH_QUORUM":
		return EachQuorum, nil
	case "SERIAL":
		return Serial, nil
	case "LOCAL_SERIAL":
		return LocalSerial, nil
	case "LOCAL_ONE":
		return LocalOne, nil
	default:
		return Any, fmt.Errorf("unknown consistency level: %q", name)
	}
}

// IsSerial reports whether the level is valid for the serial (linearizable)
// phase of a conditional operation.
func (c Consistency) IsSerial() bool {
	return c == Serial || c == LocalSerial
}

// WriteType classifies the kind of write reported in a write-timeout or
// write-failure response from the coordinator.
type WriteType byte

// Write types matching the native protocol.
//
// BatchLog writes record a logged batch in the coordinator's batch log
// before the batch itself is applied. A timeout on a BatchLog write means
// the batch was never applied, so retrying it cannot duplicate data; this
// is the one write type the default retry policy considers safe to retry.
const (
	WriteSimple WriteType = iota
	WriteBatch
	WriteUnloggedBatch
	WriteCounter
	WriteBatchLog
	WriteCAS
)

// String returns the protocol name of the write type.
func (w WriteType) String() string {
	switch w {
	case WriteSimple:
		return "SIMPLE"
	case WriteBatch:
		return "BATCH"
	case WriteUnloggedBatch:
		return "UNLOGGED_BATCH"
	case WriteCounter:
		return "COUNTER"
	case WriteBatchLog:
		return "BATCH_LOG"
	case WriteCAS:
		return "CAS"
	default:
		return "UNKNOWN"
	}
}

// HostDistance classifies a node's proximity to the client. It is used by
// load-balancing policies to order query plans and by the connection pool
// collaborator to size per-host pools.
type HostDistance int

const (
	// DistanceLocal marks hosts in the client's local datacenter.
	DistanceLocal HostDistance = iota
	// DistanceRemote marks reachable hosts outside the local datacenter.
	DistanceRemote
	// DistanceIgnored marks hosts that must never be contacted.
	DistanceIgnored
)

// String returns a label for the distance, suitable for metrics and logs.
func (d HostDistance) String() string {
	switch d {
	case DistanceLocal:
		return "local"
	case DistanceRemote:
		return "remote"
	case DistanceIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Host identifies a cluster node that can coordinate requests.
//
// Hosts are supplied to load-balancing policies by the topology layer and
// compared by HostID, never by address: a node keeps its HostID across
// address changes.
type Host struct {
	// HostID is the node's unique identifier as reported by the cluster.
	HostID uuid.UUID

	// Address is the node's RPC address in host:port form.
	Address string

	// Datacenter is the datacenter name the node belongs to.
	Datacenter string

	// Rack is the rack name within the datacenter.
	Rack string
}

// String returns the host address, falling back to the host ID when the
// address is unknown.
func (h Host) String() string {
	if h.Address != "" {
		return h.Address
	}
	return h.HostID.String()
}

// Sentinel errors for common failure scenarios.
var (
	// ErrSessionClosed indicates an operation was attempted on a closed session.
	ErrSessionClosed = errors.New("lattice: session is closed")

	// ErrClusterClosed indicates an operation was attempted on a closed cluster.
	ErrClusterClosed = errors.New("lattice: cluster is closed")

	// ErrSchedulerStopped indicates a task was scheduled after the scheduler
	// was stopped. Schedule never silently drops work; callers that race
	// shutdown must handle this error.
	ErrSchedulerStopped = errors.New("lattice: scheduler is stopped")

	// ErrSchedulerRunning indicates Start was called on a running scheduler.
	ErrSchedulerRunning = errors.New("lattice: scheduler is already running")

	// ErrNilSender indicates that no request sender was configured.
	ErrNilSender = errors.New("lattice: sender cannot be nil")

	// ErrFutureIncomplete indicates the future's result was read before the
	// request reached a terminal state.
	ErrFutureIncomplete = errors.New("lattice: response future is not complete")
)
