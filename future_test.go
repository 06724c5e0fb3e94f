package lattice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/lattice/policy"
	"github.com/arloliu/lattice/types"
)

func TestWriteTimeoutBatchLogRetriesSameHost(t *testing.T) {
	sender := &fakeSender{
		handler: func(call int, _ types.Host, _ *Message, done ResponseCallback) error {
			if call == 0 {
				done(nil, &types.Error{
					Kind:        types.KindWriteTimeout,
					Consistency: types.LocalOne,
					WriteType:   types.WriteBatchLog,
					Required:    2,
					Received:    1,
				})
			} else {
				done(&Result{Rows: [][]any{{"ok"}}}, nil)
			}
			return nil
		},
	}
	_, session := newTestSession(t, sender)

	f, err := session.ExecuteAsync(NewStatement("INSERT INTO t (v) VALUES (1)"))
	require.NoError(t, err)

	rows, err := f.Result(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, f.Attempts())
	require.Equal(t, 2, sender.callCount())
	assert.Equal(t, sender.call(0).host, sender.call(1).host)
}

func TestWriteTimeoutNonBatchLogRethrows(t *testing.T) {
	sender := &fakeSender{
		handler: func(_ int, _ types.Host, _ *Message, done ResponseCallback) error {
			done(nil, &types.Error{
				Kind:        types.KindWriteTimeout,
				Consistency: types.LocalOne,
				WriteType:   types.WriteSimple,
				Required:    2,
				Received:    1,
			})
			return nil
		},
	}
	_, session := newTestSession(t, sender)

	_, err := session.Execute(context.Background(), NewStatement("INSERT INTO t (v) VALUES (1)"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindWriteTimeout))
	assert.Equal(t, 1, sender.callCount())
}

func TestUnavailableTriesNextHost(t *testing.T) {
	sender := &fakeSender{
		handler: func(call int, _ types.Host, _ *Message, done ResponseCallback) error {
			if call == 0 {
				done(nil, &types.Error{
					Kind:        types.KindUnavailable,
					Consistency: types.LocalOne,
					Required:    2,
					Alive:       1,
				})
			} else {
				done(&Result{}, nil)
			}
			return nil
		},
	}
	cluster, err := NewCluster(sender, WithHosts(testHosts(2)...))
	require.NoError(t, err)
	defer cluster.Close()
	session, err := cluster.Connect()
	require.NoError(t, err)

	f, err := session.ExecuteAsync(NewStatement("SELECT 1"))
	require.NoError(t, err)

	_, err = f.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sender.callCount())
	assert.NotEqual(t, sender.call(0).host, sender.call(1).host)
	assert.Contains(t, f.AttemptedHosts(), sender.call(0).host.String())
}

func TestDowngradingConsistencyOnUnavailable(t *testing.T) {
	sender := &fakeSender{
		handler: func(call int, _ types.Host, _ *Message, done ResponseCallback) error {
			if call == 0 {
				done(nil, &types.Error{
					Kind:        types.KindUnavailable,
					Consistency: types.Quorum,
					Required:    3,
					Alive:       2,
				})
			} else {
				done(&Result{}, nil)
			}
			return nil
		},
	}
	cluster, err := NewCluster(sender, WithHosts(testHosts(2)...))
	require.NoError(t, err)
	defer cluster.Close()
	session, err := cluster.Connect()
	require.NoError(t, err)

	stmt := NewStatement("SELECT 1").
		WithConsistency(types.Quorum).
		WithRetryPolicy(policy.NewDowngradingConsistency())

	f, err := session.ExecuteAsync(stmt)
	require.NoError(t, err)

	_, err = f.Result(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, sender.callCount())
	assert.Equal(t, types.Quorum, sender.call(0).msg.Consistency)
	assert.Equal(t, types.Two, sender.call(1).msg.Consistency)
	assert.Equal(t, types.Two, f.Message().Consistency)
}

func TestDowngradingIgnoresSimpleWriteTimeout(t *testing.T) {
	sender := &fakeSender{
		handler: func(_ int, _ types.Host, _ *Message, done ResponseCallback) error {
			done(nil, &types.Error{
				Kind:        types.KindWriteTimeout,
				Consistency: types.Quorum,
				WriteType:   types.WriteSimple,
				Required:    2,
				Received:    1,
			})
			return nil
		},
	}
	_, session := newTestSession(t, sender)

	stmt := NewStatement("INSERT INTO t (v) VALUES (1)").
		WithRetryPolicy(policy.NewDowngradingConsistency())

	rows, err := session.Execute(context.Background(), stmt)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNoHostAvailableAggregatesErrors(t *testing.T) {
	connRefused := errors.New("connection refused")
	sender := &fakeSender{
		handler: func(call int, _ types.Host, _ *Message, done ResponseCallback) error {
			if call == 0 {
				return connRefused // fails before transmission
			}
			done(nil, errors.New("broken pipe"))
			return nil
		},
	}
	cluster, err := NewCluster(sender, WithHosts(testHosts(2)...))
	require.NoError(t, err)
	defer cluster.Close()
	session, err := cluster.Connect()
	require.NoError(t, err)

	f, err := session.ExecuteAsync(NewStatement("SELECT 1"))
	require.NoError(t, err)

	_, err = f.Result(context.Background())
	require.Error(t, err)

	var nha *types.NoHostAvailable
	require.ErrorAs(t, err, &nha)
	assert.Len(t, nha.Errors, 2)

	// Connection-level failures never consume policy retries.
	assert.Equal(t, 0, f.Attempts())
}

func TestLateResponseDiscarded(t *testing.T) {
	sender := &fakeSender{} // nil handler: the test drives callbacks
	cluster, err := NewCluster(sender, WithHosts(testHosts(2)...))
	require.NoError(t, err)
	defer cluster.Close()
	session, err := cluster.Connect()
	require.NoError(t, err)

	f, err := session.ExecuteAsync(NewStatement("SELECT 1"))
	require.NoError(t, err)

	first := sender.call(0)
	first.done(nil, errors.New("read: connection reset"))
	require.Equal(t, 2, sender.callCount())

	// The abandoned attempt answering late must not settle the future.
	first.done(&Result{Rows: [][]any{{"stale"}}}, nil)
	select {
	case <-f.Done():
		t.Fatal("future settled on a stale response")
	default:
	}

	second := sender.call(1)
	second.done(&Result{Rows: [][]any{{"fresh"}}}, nil)

	rows, err := f.Result(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"fresh"}, rows[0])
}

func TestRequestDeadline(t *testing.T) {
	sender := &fakeSender{} // never answers
	_, session := newTestSession(t, sender)

	start := time.Now()
	_, err := session.Execute(context.Background(), NewStatement("SELECT 1"),
		WithTimeout(30*time.Millisecond))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindOperationTimedOut))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStatementTimeoutOverridesCallOption(t *testing.T) {
	sender := &fakeSender{} // never answers
	_, session := newTestSession(t, sender)

	stmt := NewStatement("SELECT 1").WithTimeout(30 * time.Millisecond)

	start := time.Now()
	_, err := session.Execute(context.Background(), stmt,
		WithTimeout(time.Hour))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindOperationTimedOut))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResultHonorsContext(t *testing.T) {
	sender := &fakeSender{} // never answers
	_, session := newTestSession(t, sender)

	f, err := session.ExecuteAsync(NewStatement("SELECT 1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = f.Result(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// alwaysRetrySame keeps retrying the same host regardless of history.
type alwaysRetrySame struct{}

func (alwaysRetrySame) OnReadTimeout(cl types.Consistency, _, _ int, _ bool, _ int) policy.Verdict {
	return policy.Verdict{Decision: policy.RetrySame, Consistency: cl}
}

func (alwaysRetrySame) OnWriteTimeout(cl types.Consistency, _ types.WriteType, _, _ int, _ int) policy.Verdict {
	return policy.Verdict{Decision: policy.RetrySame, Consistency: cl}
}

func (alwaysRetrySame) OnUnavailable(cl types.Consistency, _, _ int, _ int) policy.Verdict {
	return policy.Verdict{Decision: policy.RetrySame, Consistency: cl}
}

func (alwaysRetrySame) OnCoordinationFailure(cl types.Consistency, _ bool, _ int, _ int) policy.Verdict {
	return policy.Verdict{Decision: policy.RetrySame, Consistency: cl}
}

func TestMaxRetriesCapsPolicy(t *testing.T) {
	readTimeout := &types.Error{
		Kind:        types.KindReadTimeout,
		Consistency: types.LocalOne,
		Required:    1,
	}
	sender := &fakeSender{
		handler: func(_ int, _ types.Host, _ *Message, done ResponseCallback) error {
			done(nil, readTimeout)
			return nil
		},
	}
	_, session := newTestSession(t, sender, WithMaxRetries(2))

	stmt := NewStatement("SELECT 1").WithRetryPolicy(alwaysRetrySame{})
	f, err := session.ExecuteAsync(stmt)
	require.NoError(t, err)

	_, err = f.Result(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindReadTimeout))
	assert.Equal(t, 2, f.Attempts())
	assert.Equal(t, 3, sender.callCount())
}

func TestCoordinationFailureRethrows(t *testing.T) {
	sender := &fakeSender{
		handler: func(_ int, _ types.Host, _ *Message, done ResponseCallback) error {
			done(nil, &types.Error{
				Kind:        types.KindReadFailure,
				Consistency: types.LocalOne,
				Required:    2,
				Received:    1,
				Failures:    1,
			})
			return nil
		},
	}
	_, session := newTestSession(t, sender)

	_, err := session.Execute(context.Background(), NewStatement("SELECT 1"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindCoordinationFailure))
	assert.Equal(t, 1, sender.callCount())
}

func TestExecuteAfterClusterClose(t *testing.T) {
	cluster, err := NewCluster(okSender(nil), WithHosts(testHosts(1)...))
	require.NoError(t, err)
	session, err := cluster.Connect()
	require.NoError(t, err)

	cluster.Close()

	_, err = session.Execute(context.Background(), NewStatement("SELECT 1"))
	require.ErrorIs(t, err, types.ErrClusterClosed)
}
