package lattice

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

// sendCall records one transmission observed by a fake sender.
type sendCall struct {
	host types.Host
	msg  *Message
	done ResponseCallback
}

// fakeSender drives futures from tests. The handler decides the outcome
// of each send; a nil handler records the call and leaves the response to
// the test.
type fakeSender struct {
	mu      sync.Mutex
	calls   []sendCall
	handler func(call int, host types.Host, msg *Message, done ResponseCallback) error
}

func (f *fakeSender) Send(host types.Host, msg *Message, done ResponseCallback) error {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, sendCall{host: host, msg: msg, done: done})
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return nil
	}

	return handler(n, host, msg, done)
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func (f *fakeSender) call(i int) sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[i]
}

// okSender answers every send with the given rows.
func okSender(rows [][]any) *fakeSender {
	return &fakeSender{
		handler: func(_ int, _ types.Host, _ *Message, done ResponseCallback) error {
			done(&Result{Columns: []string{"v"}, Rows: rows}, nil)
			return nil
		},
	}
}

func testHosts(n int) []types.Host {
	hosts := make([]types.Host, n)
	for i := range hosts {
		hosts[i] = types.Host{Address: string(rune('a'+i)) + ".node.test:9042"}
	}

	return hosts
}

func TestNewClusterNilSender(t *testing.T) {
	_, err := NewCluster(nil)
	require.ErrorIs(t, err, types.ErrNilSender)
}

func TestNewClusterModeCommitment(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		mode ConfigMode
	}{
		{
			name: "no options stays uncommitted",
			mode: ConfigModeUncommitted,
		},
		{
			name: "legacy load balancing commits legacy",
			opts: []Option{WithLoadBalancingPolicy(policy.NewRoundRobin())},
			mode: ConfigModeLegacy,
		},
		{
			name: "legacy retry policy commits legacy",
			opts: []Option{WithDefaultRetryPolicy(policy.NewFallthrough())},
			mode: ConfigModeLegacy,
		},
		{
			name: "profiles commit profiles",
			opts: []Option{WithExecutionProfiles(map[string]ExecutionProfile{
				"analytics": NewExecutionProfile(),
			})},
			mode: ConfigModeProfiles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster, err := NewCluster(&fakeSender{}, tt.opts...)
			require.NoError(t, err)
			defer cluster.Close()

			assert.Equal(t, tt.mode, cluster.Mode())
		})
	}
}

func TestNewClusterLegacyAndProfilesConflict(t *testing.T) {
	legacyOpts := []Option{
		WithLoadBalancingPolicy(policy.NewRoundRobin()),
		WithDefaultRetryPolicy(policy.NewDefault()),
	}
	for _, legacy := range legacyOpts {
		_, err := NewCluster(&fakeSender{},
			legacy,
			WithExecutionProfiles(map[string]ExecutionProfile{"p": NewExecutionProfile()}),
		)
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindConfiguration))
	}
}

func TestAddExecutionProfile(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{})
	require.NoError(t, err)
	defer cluster.Close()

	require.NoError(t, cluster.AddExecutionProfile("analytics", NewExecutionProfile(
		WithProfileConsistency(types.LocalQuorum),
	)))
	assert.Equal(t, ConfigModeProfiles, cluster.Mode())

	p, ok := cluster.Profile("analytics")
	require.True(t, ok)
	assert.Equal(t, types.LocalQuorum, p.Consistency)

	// Duplicate names are rejected.
	err = cluster.AddExecutionProfile("analytics", NewExecutionProfile())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
}

func TestAddExecutionProfileAfterLegacy(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{},
		WithDefaultRetryPolicy(policy.NewDefault()),
	)
	require.NoError(t, err)
	defer cluster.Close()

	err = cluster.AddExecutionProfile("analytics", NewExecutionProfile())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
	assert.Contains(t, err.Error(), "legacy")
}

func TestLegacySetterAfterProfiles(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{},
		WithExecutionProfiles(map[string]ExecutionProfile{"p": NewExecutionProfile()}),
	)
	require.NoError(t, err)
	defer cluster.Close()

	session, err := cluster.Connect()
	require.NoError(t, err)

	err = session.SetDefaultConsistency(types.Quorum)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
	assert.Contains(t, err.Error(), "profiles")
}

func TestRequestsPerConnectionDefaults(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{})
	require.NoError(t, err)
	defer cluster.Close()

	for _, d := range []types.HostDistance{types.DistanceLocal, types.DistanceRemote} {
		assert.Equal(t, 5, cluster.MinRequestsPerConnection(d))
		assert.Equal(t, 100, cluster.MaxRequestsPerConnection(d))
	}
}

func TestRequestsPerConnectionBounds(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{})
	require.NoError(t, err)
	defer cluster.Close()

	d := types.DistanceLocal
	require.NoError(t, cluster.SetMinRequestsPerConnection(d, 3))
	require.NoError(t, cluster.SetMaxRequestsPerConnection(d, 5))

	minFailures := []int{-1, 5, 127}
	for _, n := range minFailures {
		err := cluster.SetMinRequestsPerConnection(d, n)
		require.Error(t, err, "min %d should be rejected", n)
		assert.True(t, types.IsKind(err, types.KindConfiguration))
	}

	maxFailures := []int{0, 3, 128}
	for _, n := range maxFailures {
		err := cluster.SetMaxRequestsPerConnection(d, n)
		require.Error(t, err, "max %d should be rejected", n)
		assert.True(t, types.IsKind(err, types.KindConfiguration))
	}

	// Failed updates leave the bounds untouched.
	assert.Equal(t, 3, cluster.MinRequestsPerConnection(d))
	assert.Equal(t, 5, cluster.MaxRequestsPerConnection(d))
}

func TestRequestsPerConnectionIgnoredDistance(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{})
	require.NoError(t, err)
	defer cluster.Close()

	err = cluster.SetMinRequestsPerConnection(types.DistanceIgnored, 3)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))

	err = cluster.SetMaxRequestsPerConnection(types.DistanceIgnored, 50)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
}

func TestConnectAfterClose(t *testing.T) {
	cluster, err := NewCluster(&fakeSender{})
	require.NoError(t, err)

	cluster.Close()
	cluster.Close() // idempotent

	_, err = cluster.Connect()
	require.ErrorIs(t, err, types.ErrClusterClosed)
}

func TestClusterHostsFeedProfiles(t *testing.T) {
	hosts := testHosts(3)
	lbp := policy.NewRoundRobin()
	cluster, err := NewCluster(&fakeSender{},
		WithHosts(hosts...),
		WithExecutionProfiles(map[string]ExecutionProfile{
			"p": NewExecutionProfile(WithProfileLoadBalancing(lbp)),
		}),
	)
	require.NoError(t, err)
	defer cluster.Close()

	assert.Len(t, lbp.Hosts(), 3)
}
