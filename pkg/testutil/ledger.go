package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mintgate/internal/state"
	"mintgate/internal/state/memory"
	"mintgate/pkg/domain"
)

// Well-known accounts shared by component tests.
var (
	Supervisor  = domain.MustParseAccount("0x5000000000000000000000000000000000000005")
	LedgerSelf  = domain.MustParseAccount("0x7e57000000000000000000000000000000007e57")
	Minter      = domain.MustParseAccount("0x1000000000000000000000000000000000000001")
	Burner      = domain.MustParseAccount("0x1100000000000000000000000000000000000011")
	Pauser      = domain.MustParseAccount("0x1200000000000000000000000000000000000012")
	Blacklister = domain.MustParseAccount("0x1300000000000000000000000000000000000013")
	Upgrader    = domain.MustParseAccount("0x1400000000000000000000000000000000000014")
	Alice       = domain.MustParseAccount("0xa000000000000000000000000000000000000a11")
	Bob         = domain.MustParseAccount("0xb000000000000000000000000000000000000b0b")
	Carol       = domain.MustParseAccount("0xc000000000000000000000000000000000000ca1")
)

// LedgerState is a memory store seeded with metadata and a supervisor but
// none of the component logic, so component tests control exactly what is
// set up.
type LedgerState struct {
	*memory.Store
}

// NewLedgerState returns a store with Supervisor installed and the given
// local decimals.
func NewLedgerState(t *testing.T, decimals uint8) *LedgerState {
	t.Helper()
	ls := &LedgerState{Store: memory.New()}
	ls.Seed(t, func(ctx context.Context, tx state.Tx) error {
		if err := tx.SetMetadata(ctx, state.Metadata{
			Initialized: true,
			Self:        LedgerSelf,
			Name:        "Mint Gate USD",
			Symbol:      "MGUSD",
			Decimals:    decimals,
		}); err != nil {
			return err
		}
		if err := tx.AddRoleMember(ctx, domain.SupervisorRole, Supervisor); err != nil {
			return err
		}
		return tx.SetSupervisor(ctx, Supervisor)
	})
	return ls
}

// Seed commits fn directly against the state.
func (ls *LedgerState) Seed(t *testing.T, fn func(ctx context.Context, tx state.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ls.RunInTx(ctx, func(tx state.Tx) error { return fn(ctx, tx) }))
}

func (ls *LedgerState) Grant(t *testing.T, role domain.Role, accounts ...domain.Account) {
	t.Helper()
	ls.Seed(t, func(ctx context.Context, tx state.Tx) error {
		for _, a := range accounts {
			if err := tx.AddRoleMember(ctx, role, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (ls *LedgerState) Ban(t *testing.T, accounts ...domain.Account) {
	t.Helper()
	ls.Seed(t, func(ctx context.Context, tx state.Tx) error {
		for _, a := range accounts {
			if err := tx.SetBanned(ctx, a, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func (ls *LedgerState) Pause(t *testing.T) {
	t.Helper()
	ls.Seed(t, func(ctx context.Context, tx state.Tx) error { return tx.SetPaused(ctx, true) })
}

// Fund credits amount to account and raises the total supply to match.
func (ls *LedgerState) Fund(t *testing.T, account domain.Account, amount uint64) {
	t.Helper()
	ls.Seed(t, func(ctx context.Context, tx state.Tx) error {
		bal, err := tx.Balance(ctx, account)
		if err != nil {
			return err
		}
		supply, err := tx.TotalSupply(ctx)
		if err != nil {
			return err
		}
		add := domain.NewAmount(amount)
		if err := tx.SetBalance(ctx, account, new(domain.Amount).Add(bal, add)); err != nil {
			return err
		}
		return tx.SetTotalSupply(ctx, new(domain.Amount).Add(supply, add))
	})
}

// Run executes fn in a transaction and returns its error; the transaction
// rolls back on failure like any public operation.
func (ls *LedgerState) Run(fn func(ctx context.Context, tx state.Tx) error) error {
	ctx := context.Background()
	return ls.RunInTx(ctx, func(tx state.Tx) error { return fn(ctx, tx) })
}

// Read runs fn against a read-only view.
func (ls *LedgerState) Read(t *testing.T, fn func(ctx context.Context, tx state.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ls.View(ctx, func(tx state.Tx) error { return fn(ctx, tx) }))
}

func (ls *LedgerState) BalanceOf(t *testing.T, account domain.Account) *domain.Amount {
	t.Helper()
	var out *domain.Amount
	ls.Read(t, func(ctx context.Context, tx state.Tx) error {
		b, err := tx.Balance(ctx, account)
		out = b
		return err
	})
	return out
}

func (ls *LedgerState) TotalSupply(t *testing.T) *domain.Amount {
	t.Helper()
	var out *domain.Amount
	ls.Read(t, func(ctx context.Context, tx state.Tx) error {
		s, err := tx.TotalSupply(ctx)
		out = s
		return err
	})
	return out
}

// EventCount returns how many events have been committed so far.
func (ls *LedgerState) EventCount() int {
	return len(ls.CommittedEvents())
}
