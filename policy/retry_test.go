package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/lattice/types"
)

func TestDefaultReadTimeout(t *testing.T) {
	p := NewDefault()

	// Enough replicas responded but data was not returned: retry same host.
	v := p.OnReadTimeout(types.Quorum, 2, 2, false, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.Quorum, v.Consistency)

	// Data was retrieved: a retry cannot help.
	v = p.OnReadTimeout(types.Quorum, 2, 2, true, 0)
	assert.Equal(t, Rethrow, v.Decision)

	// Too few replicas responded.
	v = p.OnReadTimeout(types.Quorum, 2, 1, false, 0)
	assert.Equal(t, Rethrow, v.Decision)

	// Never retry twice.
	v = p.OnReadTimeout(types.Quorum, 2, 2, false, 1)
	assert.Equal(t, Rethrow, v.Decision)
}

func TestDefaultWriteTimeout(t *testing.T) {
	p := NewDefault()

	// Batch-log writes were never applied; retrying is safe.
	v := p.OnWriteTimeout(types.One, types.WriteBatchLog, 1, 0, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.One, v.Consistency)

	// Any other write type may already be applied: rethrow.
	for _, wt := range []types.WriteType{
		types.WriteSimple, types.WriteBatch, types.WriteUnloggedBatch,
		types.WriteCounter, types.WriteCAS,
	} {
		v = p.OnWriteTimeout(types.One, wt, 1, 0, 0)
		assert.Equal(t, Rethrow, v.Decision, "write type %v", wt)
	}

	// Even batch-log writes are retried only once.
	v = p.OnWriteTimeout(types.One, types.WriteBatchLog, 1, 0, 1)
	assert.Equal(t, Rethrow, v.Decision)
}

func TestDefaultUnavailable(t *testing.T) {
	p := NewDefault()

	v := p.OnUnavailable(types.Quorum, 2, 1, 0)
	require.Equal(t, RetryNext, v.Decision)
	require.Equal(t, types.Quorum, v.Consistency)

	v = p.OnUnavailable(types.Quorum, 2, 1, 1)
	assert.Equal(t, Rethrow, v.Decision)
}

func TestDefaultCoordinationFailure(t *testing.T) {
	p := NewDefault()

	assert.Equal(t, Rethrow, p.OnCoordinationFailure(types.Quorum, false, 1, 0).Decision)
	assert.Equal(t, Rethrow, p.OnCoordinationFailure(types.Quorum, true, 1, 0).Decision)
}

func TestFallthroughNeverRetries(t *testing.T) {
	p := NewFallthrough()

	assert.Equal(t, Rethrow, p.OnReadTimeout(types.Quorum, 2, 2, false, 0).Decision)
	assert.Equal(t, Rethrow, p.OnWriteTimeout(types.One, types.WriteBatchLog, 1, 0, 0).Decision)
	assert.Equal(t, Rethrow, p.OnUnavailable(types.Quorum, 2, 1, 0).Decision)
	assert.Equal(t, Rethrow, p.OnCoordinationFailure(types.Quorum, true, 1, 0).Decision)
}

func TestDowngradingUnavailable(t *testing.T) {
	p := NewDowngradingConsistency()

	tests := []struct {
		alive    int
		decision Decision
		level    types.Consistency
	}{
		{5, RetrySame, types.Three},
		{3, RetrySame, types.Three},
		{2, RetrySame, types.Two},
		{1, RetrySame, types.One},
		{0, Rethrow, 0},
	}

	for _, tt := range tests {
		v := p.OnUnavailable(types.Quorum, 3, tt.alive, 0)
		require.Equal(t, tt.decision, v.Decision, "alive=%d", tt.alive)
		if tt.decision == RetrySame {
			require.Equal(t, tt.level, v.Consistency, "alive=%d", tt.alive)
		}
	}

	assert.Equal(t, Rethrow, p.OnUnavailable(types.Quorum, 3, 2, 1).Decision)
}

func TestDowngradingReadTimeout(t *testing.T) {
	p := NewDowngradingConsistency()

	// Too few responses: downgrade to what responded.
	v := p.OnReadTimeout(types.Quorum, 3, 2, false, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.Two, v.Consistency)

	// Enough responses, data missing: plain retry at the original level.
	v = p.OnReadTimeout(types.Quorum, 2, 2, false, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.Quorum, v.Consistency)

	// Data retrieved: nothing to retry for.
	assert.Equal(t, Rethrow, p.OnReadTimeout(types.Quorum, 2, 2, true, 0).Decision)

	// No responses at all.
	assert.Equal(t, Rethrow, p.OnReadTimeout(types.Quorum, 2, 0, false, 0).Decision)

	// Only the first failure is handled.
	assert.Equal(t, Rethrow, p.OnReadTimeout(types.Quorum, 3, 2, false, 1).Decision)
}

func TestDowngradingWriteTimeout(t *testing.T) {
	p := NewDowngradingConsistency()

	// Simple and logged-batch writes reached at least one replica; hinted
	// handoff completes them eventually.
	assert.Equal(t, Ignore, p.OnWriteTimeout(types.Quorum, types.WriteSimple, 2, 1, 0).Decision)
	assert.Equal(t, Ignore, p.OnWriteTimeout(types.Quorum, types.WriteBatch, 2, 1, 0).Decision)

	// Unlogged batches are downgraded.
	v := p.OnWriteTimeout(types.Quorum, types.WriteUnloggedBatch, 3, 2, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.Two, v.Consistency)

	// Batch-log writes are retried unchanged.
	v = p.OnWriteTimeout(types.Quorum, types.WriteBatchLog, 2, 1, 0)
	require.Equal(t, RetrySame, v.Decision)
	require.Equal(t, types.Quorum, v.Consistency)

	// Counter writes are never safe.
	assert.Equal(t, Rethrow, p.OnWriteTimeout(types.Quorum, types.WriteCounter, 2, 1, 0).Decision)

	assert.Equal(t, Rethrow, p.OnWriteTimeout(types.Quorum, types.WriteBatchLog, 2, 1, 1).Decision)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "rethrow", Rethrow.String())
	assert.Equal(t, "retry_same", RetrySame.String())
	assert.Equal(t, "retry_next", RetryNext.String())
	assert.Equal(t, "ignore", Ignore.String())
}
