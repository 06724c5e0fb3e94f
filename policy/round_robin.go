package policy

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/lattice/types"
)

// QueryPlan is a lazy sequence of candidate coordinator hosts for one
// request. Each call returns the next host; ok is false when the plan is
// exhausted. A plan is consumed by a single response future and is not
// safe for concurrent use; obtain a fresh plan per request.
type QueryPlan func() (host types.Host, ok bool)

// LoadBalancingPolicy orders candidate coordinator hosts for requests.
//
// NewQueryPlan and Distance must be safe for concurrent use from multiple
// goroutines; SetHosts may be called concurrently with them by the
// topology layer.
type LoadBalancingPolicy interface {
	// NewQueryPlan returns a fresh, lazy host sequence for one request.
	//
	// Parameters:
	//   - keyspace: The keyspace the request targets (may be empty)
	//
	// Returns:
	//   - QueryPlan: Iterator over candidate coordinators, best first
	NewQueryPlan(keyspace string) QueryPlan

	// Distance classifies a host's proximity for pool sizing and plan
	// ordering.
	//
	// Parameters:
	//   - host: The host to classify
	//
	// Returns:
	//   - types.HostDistance: The host's distance class
	Distance(host types.Host) types.HostDistance

	// SetHosts replaces the policy's view of live hosts. Called by the
	// topology layer on control events; plans created before the call keep
	// iterating their own snapshot.
	//
	// Parameters:
	//   - hosts: The current set of live hosts
	SetHosts(hosts []types.Host)
}

// RoundRobin distributes requests evenly across all live hosts.
//
// Each query plan starts one position after the previous plan's start, so
// consecutive requests spread over the cluster while each individual plan
// still visits every host exactly once.
type RoundRobin struct {
	mu    sync.RWMutex
	hosts []types.Host
	next  atomic.Uint64
}

// Compile-time assertion that RoundRobin implements LoadBalancingPolicy.
var _ LoadBalancingPolicy = (*RoundRobin)(nil)

// NewRoundRobin creates a new RoundRobin policy over the given hosts.
//
// Parameters:
//   - hosts: Initial live hosts (may be empty; SetHosts can populate later)
//
// Returns:
//   - *RoundRobin: A new round-robin policy
func NewRoundRobin(hosts ...types.Host) *RoundRobin {
	p := &RoundRobin{}
	p.SetHosts(hosts)

	return p
}

// NewQueryPlan returns a plan visiting every live host once, starting at
// a rotating offset.
func (p *RoundRobin) NewQueryPlan(_ string) QueryPlan {
	p.mu.RLock()
	snapshot := p.hosts
	p.mu.RUnlock()

	start := int(p.next.Add(1) - 1)
	pos := 0

	return func() (types.Host, bool) {
		if pos >= len(snapshot) {
			return types.Host{}, false
		}
		h := snapshot[(start+pos)%len(snapshot)]
		pos++

		return h, true
	}
}

// Distance treats every known host as local.
func (p *RoundRobin) Distance(_ types.Host) types.HostDistance {
	return types.DistanceLocal
}

// SetHosts replaces the policy's host set.
func (p *RoundRobin) SetHosts(hosts []types.Host) {
	snapshot := make([]types.Host, len(hosts))
	copy(snapshot, hosts)

	p.mu.Lock()
	p.hosts = snapshot
	p.mu.Unlock()
}

// Hosts returns a copy of the policy's current host set.
func (p *RoundRobin) Hosts() []types.Host {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.Host, len(p.hosts))
	copy(out, p.hosts)

	return out
}
