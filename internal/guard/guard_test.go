package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

type fakeState struct {
	paused  bool
	banned  map[domain.Account]bool
	roles   map[domain.Role]map[domain.Account]bool
	readErr error
	reads   int
}

func (f *fakeState) HasRole(_ context.Context, role domain.Role, account domain.Account) (bool, error) {
	f.reads++
	return f.roles[role][account], f.readErr
}

func (f *fakeState) Paused(context.Context) (bool, error) {
	f.reads++
	return f.paused, f.readErr
}

func (f *fakeState) IsBanned(_ context.Context, account domain.Account) (bool, error) {
	f.reads++
	return f.banned[account], f.readErr
}

var (
	minter = domain.MustParseAccount("0x1000000000000000000000000000000000000001")
	user   = domain.MustParseAccount("0x2000000000000000000000000000000000000002")
)

// TestChain_FirstFailureWins validates the ordered short-circuit: a later
// check never runs once an earlier one fails.
//
// Justification: guard order decides which error a caller sees when several
// preconditions fail at once.
func TestChain_FirstFailureWins(t *testing.T) {
	st := &fakeState{paused: true, banned: map[domain.Account]bool{user: true}}

	err := All(context.Background(),
		HasRole(st, domain.MinterRole, minter),
		WhenNotPaused(st),
		NotBanned(st, user),
	)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, 1, st.reads, "pause and ban checks must not run")
}

func TestChain_OrderAfterRole(t *testing.T) {
	st := &fakeState{
		paused: true,
		banned: map[domain.Account]bool{user: true},
		roles:  map[domain.Role]map[domain.Account]bool{domain.MinterRole: {minter: true}},
	}

	chain := Chain{HasRole(st, domain.MinterRole, minter)}.Then(
		WhenNotPaused(st),
		NonZero(domain.ZeroAmount()),
		NotBanned(st, user),
	)

	err := chain.Evaluate(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnforcedPause))

	st.paused = false
	err = chain.Evaluate(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeZeroValue))
}

func TestChecks(t *testing.T) {
	ctx := context.Background()
	st := &fakeState{banned: map[domain.Account]bool{user: true}}

	t.Run("not null rejects the null account", func(t *testing.T) {
		err := NotNull(domain.NullAccount, "recipient")(ctx)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeZeroAddress))
		assert.NoError(t, NotNull(user, "recipient")(ctx))
	})

	t.Run("non zero rejects zero and nil", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(NonZero(nil)(ctx), dErrors.CodeZeroValue))
		assert.True(t, dErrors.HasCode(NonZero(domain.ZeroAmount())(ctx), dErrors.CodeZeroValue))
		assert.NoError(t, NonZero(domain.NewAmount(1))(ctx))
	})

	t.Run("not banned checks every account and skips null", func(t *testing.T) {
		assert.NoError(t, NotBanned(st, domain.NullAccount, minter)(ctx))
		assert.True(t, dErrors.HasCode(NotBanned(st, minter, user)(ctx), dErrors.CodeAlreadyBanned))
	})

	t.Run("when paused requires the paused state", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(WhenPaused(st)(ctx), dErrors.CodeExpectedPause))
	})

	t.Run("read errors become internal errors", func(t *testing.T) {
		failing := &fakeState{readErr: errors.New("connection reset")}
		assert.True(t, dErrors.HasCode(WhenNotPaused(failing)(ctx), dErrors.CodeInternal))
		assert.True(t, dErrors.HasCode(HasRole(failing, domain.PauserRole, user)(ctx), dErrors.CodeInternal))
	})
}
