package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/state"
	"mintgate/internal/state/memory"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/testutil"
)

func TestRunInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	boom := errors.New("boom")

	err := st.RunInTx(ctx, func(tx state.Tx) error {
		require.NoError(t, tx.SetBalance(ctx, testutil.Alice, domain.NewAmount(5)))
		require.NoError(t, tx.SetTotalSupply(ctx, domain.NewAmount(5)))
		require.NoError(t, tx.AddRoleMember(ctx, domain.MinterRole, testutil.Minter))
		require.NoError(t, tx.SetBanned(ctx, testutil.Bob, true))
		require.NoError(t, tx.SetPeer(ctx, 30102, testutil.Carol))
		require.NoError(t, tx.MarkReceived(ctx, uuid.New(), 30102))
		require.NoError(t, tx.EnqueueOutbound(ctx, state.OutboxEntry{ID: uuid.New(), Dst: 30102}))
		tx.Emit(ctx, audit.Event{Name: audit.EventTransfer})
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		bal, _ := tx.Balance(ctx, testutil.Alice)
		assert.True(t, bal.IsZero())
		supply, _ := tx.TotalSupply(ctx)
		assert.True(t, supply.IsZero())
		held, _ := tx.HasRole(ctx, domain.MinterRole, testutil.Minter)
		assert.False(t, held)
		banned, _ := tx.IsBanned(ctx, testutil.Bob)
		assert.False(t, banned)
		_, ok, _ := tx.Peer(ctx, 30102)
		assert.False(t, ok)
		return nil
	}))
	assert.Empty(t, st.CommittedEvents())
	pending, err := st.PendingOutbound(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunInTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	assert.Panics(t, func() {
		_ = st.RunInTx(ctx, func(tx state.Tx) error {
			_ = tx.SetPaused(ctx, true)
			panic("corrupt")
		})
	})
	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		paused, _ := tx.Paused(ctx)
		assert.False(t, paused)
		return nil
	}))
}

func TestRunInTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := memory.New().RunInTx(ctx, func(state.Tx) error { return nil })
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestRunInTx_DeadlineExceededDuringFn(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.WithTimeout(10 * time.Millisecond))

	err := st.RunInTx(ctx, func(tx state.Tx) error {
		_ = tx.SetPaused(ctx, true)
		time.Sleep(30 * time.Millisecond)
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		paused, _ := tx.Paused(ctx)
		assert.False(t, paused, "late commit rolled back")
		return nil
	}))
}

func TestView_DiscardsWrites(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		tx.Emit(ctx, audit.Event{Name: audit.EventPaused})
		return tx.SetPaused(ctx, true)
	}))
	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		paused, _ := tx.Paused(ctx)
		assert.False(t, paused)
		return nil
	}))
	assert.Empty(t, st.CommittedEvents())
}

func TestMarkReceived_Dedupes(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	guid := uuid.New()

	require.NoError(t, st.RunInTx(ctx, func(tx state.Tx) error { return tx.MarkReceived(ctx, guid, 30102) }))
	err := st.RunInTx(ctx, func(tx state.Tx) error { return tx.MarkReceived(ctx, guid, 30102) })
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, st.RunInTx(ctx, func(tx state.Tx) error {
		if err := tx.EnqueueOutbound(ctx, state.OutboxEntry{ID: first, Dst: 30102}); err != nil {
			return err
		}
		return tx.EnqueueOutbound(ctx, state.OutboxEntry{ID: second, Dst: 30103})
	}))

	pending, err := st.PendingOutbound(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first, pending[0].ID)

	require.NoError(t, st.MarkAttempted(ctx, first))
	require.NoError(t, st.MarkDelivered(ctx, first, time.Now()))
	pending, err = st.PendingOutbound(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	assert.ErrorIs(t, st.MarkDelivered(ctx, uuid.New(), time.Now()), sentinel.ErrNotFound)
	assert.ErrorIs(t, st.MarkAttempted(ctx, uuid.New()), sentinel.ErrNotFound)
}

func TestOutbox_SkipAndNext(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, st.RunInTx(ctx, func(tx state.Tx) error {
		for _, e := range []state.OutboxEntry{
			{ID: first, Dst: 30102},
			{ID: second, Dst: 30103},
			{ID: third, Dst: 30102},
		} {
			if err := tx.EnqueueOutbound(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	pending, err := st.PendingOutbound(ctx, 0, 30102)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	next, err := st.NextOutbound(ctx, 30102)
	require.NoError(t, err)
	assert.Equal(t, first, next.ID)

	require.NoError(t, st.MarkDelivered(ctx, first, time.Now()))
	next, err = st.NextOutbound(ctx, 30102)
	require.NoError(t, err)
	assert.Equal(t, third, next.ID)

	_, err = st.NextOutbound(ctx, 40000)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestEventLog_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	emit := func(st *memory.Store, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, st.RunInTx(ctx, func(tx state.Tx) error {
				tx.Emit(ctx, audit.Event{Name: audit.EventPaused, Detail: fmt.Sprint(i)})
				return nil
			}))
		}
	}

	t.Run("capped", func(t *testing.T) {
		st := memory.New(memory.WithEventLog(3))
		emit(st, 5)
		events := st.CommittedEvents()
		require.Len(t, events, 3)
		assert.Equal(t, "2", events[0].Detail)
		assert.Equal(t, "4", events[2].Detail)
	})

	t.Run("disabled", func(t *testing.T) {
		st := memory.New(memory.WithEventLog(0))
		emit(st, 2)
		assert.Empty(t, st.CommittedEvents())
	})
}

func TestRoleMembers_Sorted(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.RunInTx(ctx, func(tx state.Tx) error {
		for _, a := range []domain.Account{testutil.Carol, testutil.Alice, testutil.Bob} {
			if err := tx.AddRoleMember(ctx, domain.MinterRole, a); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, st.View(ctx, func(tx state.Tx) error {
		members, err := tx.RoleMembers(ctx, domain.MinterRole)
		require.NoError(t, err)
		assert.Equal(t, []domain.Account{testutil.Alice, testutil.Bob, testutil.Carol}, members)
		return nil
	}))
}
