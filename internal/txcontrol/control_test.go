package txcontrol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txctl/internal/scope"
)

func newControl(opts ...Option) *Control {
	return New(scope.NewCoordinator(), opts...)
}

func TestRequiredCreatesAndCommits(t *testing.T) {
	control := newControl()
	ctx := context.Background()
	rec := &statusRecorder{}

	err := control.Required(ctx, func(ctx context.Context) error {
		require.True(t, control.ActiveTransaction(ctx))
		require.True(t, control.ActiveScope(ctx))

		tc := control.CurrentContext(ctx)
		require.NotNil(t, tc)
		assert.Equal(t, Active, tc.Status())
		assert.NotNil(t, tc.TransactionKey())
		assert.False(t, tc.ReadOnly())
		assert.True(t, tc.SupportsLocal())
		assert.False(t, tc.SupportsXA())
		return tc.PostCompletion(rec.record)
	})

	require.NoError(t, err)
	assert.Equal(t, []Status{Committed}, rec.all())
	assert.Nil(t, control.CurrentContext(ctx))
}

func TestNestedRequiredSharesOneTransaction(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}

	var outer, inner TransactionContext
	err := control.Required(context.Background(), func(ctx context.Context) error {
		outer = control.CurrentContext(ctx)
		require.NoError(t, outer.PostCompletion(rec.record))

		err := control.Required(ctx, func(ctx context.Context) error {
			inner = control.CurrentContext(ctx)
			return inner.RegisterLocalResource(newFakeResource("db", j))
		})
		require.NoError(t, err)

		assert.Empty(t, j.list(), "nested call must not complete the transaction")
		assert.Equal(t, Active, outer.Status())
		return nil
	})

	require.NoError(t, err)
	assert.Same(t, outer, inner)
	assert.Equal(t, []string{"commit db"}, j.list())
	assert.Equal(t, []Status{Committed}, rec.all())
}

func TestRequiresNewIsIndependent(t *testing.T) {
	control := newControl()
	outerRec := &statusRecorder{}
	innerRec := &statusRecorder{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		outer := control.CurrentContext(ctx)
		require.NoError(t, outer.PostCompletion(outerRec.record))

		err := control.RequiresNew(ctx, func(ctx context.Context) error {
			inner := control.CurrentContext(ctx)
			assert.NotEqual(t, outer.TransactionKey(), inner.TransactionKey())
			require.NoError(t, inner.PostCompletion(innerRec.record))
			return control.SetRollbackOnly(ctx)
		})
		require.NoError(t, err)

		assert.Equal(t, []Status{RolledBack}, innerRec.all())
		assert.Equal(t, Active, outer.Status())
		assert.Same(t, outer, control.CurrentContext(ctx))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []Status{Committed}, outerRec.all())
}

func TestRequiresNewCommitsWhenOuterRollsBack(t *testing.T) {
	control := newControl()
	outerRec := &statusRecorder{}
	innerRec := &statusRecorder{}
	userErr := errors.New("bang")

	err := control.Required(context.Background(), func(ctx context.Context) error {
		require.NoError(t, control.CurrentContext(ctx).PostCompletion(outerRec.record))
		require.NoError(t, control.SetRollbackOnly(ctx))

		require.NoError(t, control.RequiresNew(ctx, func(ctx context.Context) error {
			return control.CurrentContext(ctx).PostCompletion(innerRec.record)
		}))
		return userErr
	})

	require.ErrorIs(t, err, userErr)
	assert.Equal(t, []Status{RolledBack}, outerRec.all())
	assert.Equal(t, []Status{Committed}, innerRec.all())
}

func TestRequiredWorkErrorRollsBack(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}
	userErr := errors.New("bang")

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.PostCompletion(rec.record))
		require.NoError(t, tc.RegisterLocalResource(newFakeResource("db", j)))
		return userErr
	})

	require.Error(t, err)
	var rb *RolledBackError
	require.ErrorAs(t, err, &rb)
	assert.Same(t, userErr, rb.Cause)
	assert.ErrorIs(t, err, userErr)
	assert.ErrorIs(t, err, ErrRolledBack)
	assert.Equal(t, []string{"rollback db"}, j.list())
	assert.Equal(t, []Status{RolledBack}, rec.all())
}

func TestNestedWorkErrorIsReturnedUnchanged(t *testing.T) {
	control := newControl()
	rec := &statusRecorder{}
	innerErr := errors.New("inner failed")

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.PostCompletion(rec.record))

		err := control.Required(ctx, func(context.Context) error {
			return innerErr
		})
		assert.Same(t, innerErr, err)

		rollbackOnly, rerr := tc.RollbackOnly()
		require.NoError(t, rerr)
		assert.True(t, rollbackOnly)

		// Swallowing the error does not save the transaction.
		return nil
	})

	var rb *RolledBackError
	require.ErrorAs(t, err, &rb)
	assert.Same(t, innerErr, rb.Cause)
	assert.Equal(t, []Status{RolledBack}, rec.all())
}

func TestMarkedRollbackWithoutErrorReturnsNil(t *testing.T) {
	control := newControl()
	rec := &statusRecorder{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		require.NoError(t, control.CurrentContext(ctx).PostCompletion(rec.record))
		return control.SetRollbackOnly(ctx)
	})

	require.NoError(t, err)
	assert.Equal(t, []Status{RolledBack}, rec.all())
}

func TestSetRollbackOnlyIsIdempotent(t *testing.T) {
	control := newControl()

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.SetRollbackOnly())
		require.NoError(t, tc.SetRollbackOnly())
		assert.Equal(t, MarkedRollback, tc.Status())

		rollbackOnly, err := control.RollbackOnly(ctx)
		require.NoError(t, err)
		assert.True(t, rollbackOnly)
		return nil
	})
	require.NoError(t, err)
}

func TestSetRollbackOnlyDuringCommitFails(t *testing.T) {
	control := newControl()
	j := &journal{}
	var setErr error
	var observed Status

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		res := newFakeResource("db", j)
		res.onCommit = func() {
			observed = tc.Status()
			setErr = tc.SetRollbackOnly()
		}
		return tc.RegisterLocalResource(res)
	})

	require.NoError(t, err)
	assert.Equal(t, Committing, observed)
	require.Error(t, setErr)
	assert.ErrorIs(t, setErr, ErrIllegalState)
	var se *StateError
	require.ErrorAs(t, setErr, &se)
	assert.Equal(t, Committing, se.Status)
}

func TestCommitFailureRollsBackRemainingResources(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}
	commitErr := errors.New("second commit failed")

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.PostCompletion(rec.record))

		second := newFakeResource("2", j)
		second.commitErr = commitErr
		for _, r := range []LocalResource{newFakeResource("1", j), second, newFakeResource("3", j)} {
			require.NoError(t, tc.RegisterLocalResource(r))
		}
		return nil
	})

	assert.Equal(t, []string{"commit 1", "commit 2", "rollback 3"}, j.list())
	assert.Equal(t, []Status{RolledBack}, rec.all())

	var rb *RolledBackError
	require.ErrorAs(t, err, &rb)
	assert.Same(t, commitErr, rb.Cause)
}

func TestRollbackContinuesPastResourceFailures(t *testing.T) {
	control := newControl()
	j := &journal{}
	firstErr := errors.New("rollback 1 failed")

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		first := newFakeResource("1", j)
		first.rollbackErr = firstErr
		second := newFakeResource("2", j)
		second.rollbackErr = errors.New("rollback 2 failed")
		require.NoError(t, tc.RegisterLocalResource(first))
		require.NoError(t, tc.RegisterLocalResource(second))
		require.NoError(t, tc.RegisterLocalResource(newFakeResource("3", j)))
		return tc.SetRollbackOnly()
	})

	assert.Equal(t, []string{"rollback 1", "rollback 2", "rollback 3"}, j.list())
	var rb *RolledBackError
	require.ErrorAs(t, err, &rb)
	assert.Same(t, firstErr, rb.Cause)
}

func TestPreCompletionFailureForcesRollback(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}
	preErr := errors.New("validation failed")
	var order []string

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.RegisterLocalResource(newFakeResource("db", j)))
		require.NoError(t, tc.PreCompletion(func() error {
			order = append(order, "pre-1")
			return preErr
		}))
		require.NoError(t, tc.PreCompletion(func() error {
			order = append(order, "pre-2")
			return nil
		}))
		return tc.PostCompletion(rec.record)
	})

	assert.Equal(t, []string{"pre-1", "pre-2"}, order)
	assert.Equal(t, []string{"rollback db"}, j.list())
	assert.Equal(t, []Status{RolledBack}, rec.all())
	require.ErrorIs(t, err, ErrRolledBack)
	assert.ErrorIs(t, err, preErr)
}

func TestPostCompletionFailureAfterCommit(t *testing.T) {
	control := newControl()
	postErr := errors.New("observer failed")
	rec := &statusRecorder{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.PostCompletion(func(Status) error { return postErr }))
		return tc.PostCompletion(rec.record)
	})

	assert.Equal(t, []Status{Committed}, rec.all(), "later callbacks still run")
	require.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, err, postErr)
	assert.NotErrorIs(t, err, ErrRolledBack)
}

func TestPostCompletionObservesFinalStatusOnly(t *testing.T) {
	control := newControl()
	j := &journal{}
	var seen []Status

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.RegisterLocalResource(newFakeResource("db", j)))
		require.NoError(t, tc.PreCompletion(func() error {
			seen = append(seen, tc.Status())
			return nil
		}))
		return tc.PostCompletion(func(status Status) error {
			seen = append(seen, status, tc.Status())
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []Status{Active, Committed, Committed}, seen)
}

func TestRegistrationRejectedAfterCompletion(t *testing.T) {
	control := newControl()
	j := &journal{}

	var tc TransactionContext
	require.NoError(t, control.Required(context.Background(), func(ctx context.Context) error {
		tc = control.CurrentContext(ctx)
		return nil
	}))

	assert.Equal(t, Committed, tc.Status())
	assert.ErrorIs(t, tc.RegisterLocalResource(newFakeResource("late", j)), ErrIllegalState)
	assert.ErrorIs(t, tc.PreCompletion(func() error { return nil }), ErrIllegalState)
	assert.ErrorIs(t, tc.PostCompletion(func(Status) error { return nil }), ErrIllegalState)
	assert.ErrorIs(t, tc.SetRollbackOnly(), ErrIllegalState)
	assert.Empty(t, j.list())
}

func TestNotSupportedInstallsNoTransactionContext(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}
	var order []string

	err := control.NotSupported(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NotNil(t, tc)
		assert.Equal(t, NoTransaction, tc.Status())
		assert.Nil(t, tc.TransactionKey())
		assert.False(t, control.ActiveTransaction(ctx))
		assert.True(t, control.ActiveScope(ctx))

		_, err := tc.RollbackOnly()
		assert.ErrorIs(t, err, ErrNoTransaction)
		assert.ErrorIs(t, tc.SetRollbackOnly(), ErrNoTransaction)
		assert.ErrorIs(t, tc.RegisterLocalResource(newFakeResource("db", j)), ErrIllegalState)
		assert.ErrorIs(t, tc.RegisterXAResource(struct{}{}, "xa"), ErrNoTransaction)

		require.NoError(t, tc.PreCompletion(func() error {
			order = append(order, "pre")
			return nil
		}))
		return tc.PostCompletion(func(s Status) error {
			order = append(order, "post")
			return rec.record(s)
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "post"}, order)
	assert.Equal(t, []Status{NoTransaction}, rec.all())
	assert.Empty(t, j.list())
}

func TestNoTransactionScopeRunsCallbacksOnFailure(t *testing.T) {
	control := newControl()
	rec := &statusRecorder{}
	userErr := errors.New("bang")

	err := control.NotSupported(context.Background(), func(ctx context.Context) error {
		require.NoError(t, control.CurrentContext(ctx).PostCompletion(rec.record))
		return userErr
	})

	assert.Same(t, userErr, err, "nothing was rolled back, so the error is not wrapped")
	assert.Equal(t, []Status{NoTransaction}, rec.all())
}

func TestNoTransactionScopeIgnoresFailureFromJoinedCall(t *testing.T) {
	control := newControl()
	rec := &statusRecorder{}
	inner := errors.New("inner")

	var joinedErr error
	err := control.NotSupported(context.Background(), func(ctx context.Context) error {
		require.NoError(t, control.CurrentContext(ctx).PostCompletion(rec.record))
		joinedErr = control.Supports(ctx, func(context.Context) error {
			return inner
		})
		return nil
	})

	require.NoError(t, err)
	assert.Same(t, inner, joinedErr)
	assert.Equal(t, []Status{NoTransaction}, rec.all())
}

func TestNoTransactionScopeReportsCallbackFailure(t *testing.T) {
	control := newControl()
	boom := errors.New("callback failed")

	err := control.NotSupported(context.Background(), func(ctx context.Context) error {
		_ = control.Supports(ctx, func(context.Context) error {
			return errors.New("inner")
		})
		return control.CurrentContext(ctx).PostCompletion(func(Status) error { return boom })
	})

	var txErr *Error
	require.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, boom)
}

func TestPreCompletionJobJoinsFinishingTransaction(t *testing.T) {
	control := newControl()
	j := &journal{}

	var joined TransactionContext
	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		return tc.PreCompletion(func() error {
			return control.Required(ctx, func(ctx context.Context) error {
				joined = control.CurrentContext(ctx)
				return joined.RegisterLocalResource(newFakeResource("flush", j))
			})
		})
	})

	require.NoError(t, err)
	require.NotNil(t, joined)
	assert.Equal(t, Committed, joined.Status())
	assert.Equal(t, []string{"commit flush"}, j.list())
}

func TestPostCompletionJobDoesNotJoinFinishedTransaction(t *testing.T) {
	control := newControl()

	var outer, seen TransactionContext
	err := control.Required(context.Background(), func(ctx context.Context) error {
		outer = control.CurrentContext(ctx)
		return outer.PostCompletion(func(Status) error {
			seen = control.CurrentContext(ctx)
			return nil
		})
	})

	require.NoError(t, err)
	require.NotNil(t, outer)
	assert.Nil(t, seen)
}

func TestPropagationReuseRules(t *testing.T) {
	control := newControl()
	ctx := context.Background()

	t.Run("supports joins an active transaction", func(t *testing.T) {
		require.NoError(t, control.Required(ctx, func(ctx context.Context) error {
			outer := control.CurrentContext(ctx)
			return control.Supports(ctx, func(ctx context.Context) error {
				assert.Same(t, outer, control.CurrentContext(ctx))
				return nil
			})
		}))
	})

	t.Run("supports joins a no-transaction scope", func(t *testing.T) {
		require.NoError(t, control.NotSupported(ctx, func(ctx context.Context) error {
			outer := control.CurrentContext(ctx)
			return control.Supports(ctx, func(ctx context.Context) error {
				assert.Same(t, outer, control.CurrentContext(ctx))
				return nil
			})
		}))
	})

	t.Run("supports without scope runs without transaction", func(t *testing.T) {
		require.NoError(t, control.Supports(ctx, func(ctx context.Context) error {
			assert.True(t, control.ActiveScope(ctx))
			assert.False(t, control.ActiveTransaction(ctx))
			return nil
		}))
	})

	t.Run("not supported suspends an active transaction", func(t *testing.T) {
		require.NoError(t, control.Required(ctx, func(ctx context.Context) error {
			outer := control.CurrentContext(ctx)
			err := control.NotSupported(ctx, func(ctx context.Context) error {
				inner := control.CurrentContext(ctx)
				assert.NotSame(t, outer, inner)
				assert.Equal(t, NoTransaction, inner.Status())
				return nil
			})
			assert.Same(t, outer, control.CurrentContext(ctx))
			assert.Equal(t, Active, outer.Status())
			return err
		}))
	})

	t.Run("not supported joins a no-transaction scope", func(t *testing.T) {
		require.NoError(t, control.Supports(ctx, func(ctx context.Context) error {
			outer := control.CurrentContext(ctx)
			return control.NotSupported(ctx, func(ctx context.Context) error {
				assert.Same(t, outer, control.CurrentContext(ctx))
				return nil
			})
		}))
	})

	t.Run("required inside not supported starts a transaction", func(t *testing.T) {
		rec := &statusRecorder{}
		require.NoError(t, control.NotSupported(ctx, func(ctx context.Context) error {
			return control.Required(ctx, func(ctx context.Context) error {
				assert.True(t, control.ActiveTransaction(ctx))
				return control.CurrentContext(ctx).PostCompletion(rec.record)
			})
		}))
		assert.Equal(t, []Status{Committed}, rec.all())
	})
}

func TestFacadeWithoutScope(t *testing.T) {
	control := newControl()
	ctx := context.Background()

	assert.Nil(t, control.CurrentContext(ctx))
	assert.False(t, control.ActiveScope(ctx))
	assert.False(t, control.ActiveTransaction(ctx))

	_, err := control.RollbackOnly(ctx)
	assert.ErrorIs(t, err, ErrNoScope)
	assert.ErrorIs(t, control.SetRollbackOnly(ctx), ErrIllegalState)
}

func TestRollbackRules(t *testing.T) {
	control := newControl()
	errBind := errors.New("bind failed")

	t.Run("no rollback for commits", func(t *testing.T) {
		j := &journal{}
		err := control.Build().NoRollbackFor(errBind).Required(context.Background(), func(ctx context.Context) error {
			require.NoError(t, control.CurrentContext(ctx).RegisterLocalResource(newFakeResource("db", j)))
			return errBind
		})
		assert.Same(t, errBind, err)
		assert.Equal(t, []string{"commit db"}, j.list())
	})

	t.Run("no rollback for matches wrapped errors", func(t *testing.T) {
		j := &journal{}
		wrapped := errors.Join(errors.New("context"), errBind)
		err := control.Build().NoRollbackFor(errBind).Required(context.Background(), func(ctx context.Context) error {
			require.NoError(t, control.CurrentContext(ctx).RegisterLocalResource(newFakeResource("db", j)))
			return wrapped
		})
		assert.Same(t, wrapped, err)
		assert.Equal(t, []string{"commit db"}, j.list())
	})

	t.Run("rollback for overrides", func(t *testing.T) {
		j := &journal{}
		errSpecific := errors.Join(errBind, errors.New("specific"))
		errSpecificMarker := errors.New("marker")
		err := control.Build().
			NoRollbackFor(errBind).
			RollbackFor(errSpecificMarker).
			Required(context.Background(), func(ctx context.Context) error {
				require.NoError(t, control.CurrentContext(ctx).RegisterLocalResource(newFakeResource("db", j)))
				return errors.Join(errSpecific, errSpecificMarker)
			})
		assert.ErrorIs(t, err, ErrRolledBack)
		assert.Equal(t, []string{"rollback db"}, j.list())
	})

	t.Run("conflicting rules fail before work", func(t *testing.T) {
		called := false
		err := control.Build().NoRollbackFor(errBind).RollbackFor(errBind).Required(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrRollbackRules)
		assert.False(t, called)
	})
}

func TestWorkPanicRollsBackAndRepanics(t *testing.T) {
	control := newControl()
	j := &journal{}
	rec := &statusRecorder{}
	ctx := context.Background()

	assert.PanicsWithValue(t, "boom", func() {
		_ = control.Required(ctx, func(ctx context.Context) error {
			tc := control.CurrentContext(ctx)
			require.NoError(t, tc.RegisterLocalResource(newFakeResource("db", j)))
			require.NoError(t, tc.PostCompletion(rec.record))
			panic("boom")
		})
	})

	assert.Equal(t, []string{"rollback db"}, j.list())
	assert.Equal(t, []Status{RolledBack}, rec.all())
	assert.Nil(t, control.CurrentContext(ctx))
}

func TestConcurrentSetRollbackOnly(t *testing.T) {
	control := newControl()
	rec := &statusRecorder{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		tc := control.CurrentContext(ctx)
		require.NoError(t, tc.PostCompletion(rec.record))

		var wg sync.WaitGroup
		errCh := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errCh <- tc.SetRollbackOnly()
			}()
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			assert.NoError(t, err)
		}
		assert.Equal(t, MarkedRollback, tc.Status())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []Status{RolledBack}, rec.all())
}

func TestLocalResourceSupportModes(t *testing.T) {
	j := &journal{}

	single := newControl(WithLocalResourceSupport(LocalResourcesEnforceSingle))
	require.NoError(t, single.Required(context.Background(), func(ctx context.Context) error {
		tc := single.CurrentContext(ctx)
		require.NoError(t, tc.RegisterLocalResource(newFakeResource("1", j)))
		assert.ErrorIs(t, tc.RegisterLocalResource(newFakeResource("2", j)), ErrSingleLocal)
		assert.ErrorIs(t, tc.RegisterXAResource(struct{}{}, "xa"), ErrXAUnsupported)
		return nil
	}))
	assert.Equal(t, []string{"commit 1"}, j.list())

	disabled := newControl(WithLocalResourceSupport(LocalResourcesDisabled))
	require.NoError(t, disabled.Required(context.Background(), func(ctx context.Context) error {
		tc := disabled.CurrentContext(ctx)
		assert.False(t, tc.SupportsLocal())
		assert.ErrorIs(t, tc.RegisterLocalResource(newFakeResource("3", j)), ErrLocalUnsupported)
		return nil
	}))
}

func TestScopeTimeoutRollsBack(t *testing.T) {
	control := newControl(WithScopeTimeout(10 * time.Millisecond))
	rec := &statusRecorder{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		require.NoError(t, control.CurrentContext(ctx).PostCompletion(rec.record))
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	require.ErrorIs(t, err, ErrRolledBack)
	assert.ErrorIs(t, err, scope.ErrTimeout)
	assert.Equal(t, []Status{RolledBack}, rec.all())
}

func TestBeginFailureSkipsWork(t *testing.T) {
	control := newControl()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := control.Required(ctx, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransaction)
	assert.False(t, called)
}

func TestScopedValuesSurviveNestedCalls(t *testing.T) {
	control := newControl()
	type connKey struct{}

	err := control.Required(context.Background(), func(ctx context.Context) error {
		control.CurrentContext(ctx).PutScopedValue(connKey{}, "conn-1")
		return control.Required(ctx, func(ctx context.Context) error {
			assert.Equal(t, "conn-1", control.CurrentContext(ctx).ScopedValue(connKey{}))
			return control.RequiresNew(ctx, func(ctx context.Context) error {
				assert.Nil(t, control.CurrentContext(ctx).ScopedValue(connKey{}))
				return nil
			})
		})
	})
	require.NoError(t, err)
}

func TestReadOnlyBuilder(t *testing.T) {
	control := newControl()

	err := control.Build().ReadOnly().Required(context.Background(), func(ctx context.Context) error {
		assert.True(t, control.CurrentContext(ctx).ReadOnly())
		return nil
	})
	require.NoError(t, err)
}

func TestContextListenerSeesEveryNewContext(t *testing.T) {
	var seen []Propagation
	control := newControl(WithContextListener(func(_ context.Context, p Propagation, tc TransactionContext) {
		seen = append(seen, p)
		require.NotNil(t, tc)
	}))

	err := control.Required(context.Background(), func(ctx context.Context) error {
		if err := control.Required(ctx, func(context.Context) error { return nil }); err != nil {
			return err
		}
		return control.NotSupported(ctx, func(context.Context) error { return nil })
	})

	require.NoError(t, err)
	assert.Equal(t, []Propagation{Required, NotSupported}, seen)
}

func TestDoReturnsValue(t *testing.T) {
	control := newControl()

	v, err := Do(context.Background(), control, Required, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	userErr := errors.New("bang")
	v, err = Do(context.Background(), control.Build().ReadOnly(), Supports, func(ctx context.Context) (int, error) {
		return 7, userErr
	})
	assert.Same(t, userErr, err)
	assert.Zero(t, v)
}

func TestRunRejectsBadInput(t *testing.T) {
	control := newControl()

	//nolint:staticcheck // a nil context is exactly what is being tested
	assert.Error(t, control.Required(nil, func(context.Context) error { return nil }))
	assert.Error(t, control.Required(context.Background(), nil))
	assert.Error(t, control.Run(context.Background(), Propagation(99), func(context.Context) error { return nil }))
}
