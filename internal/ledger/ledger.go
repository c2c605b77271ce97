// Package ledger holds balances, allowances and total supply, and composes the
// role, pause and blacklist guards around every value movement.
//
// Invariant: the sum of all balances equals the total supply after every
// committed operation. Every mutation below changes a balance and the supply
// (or two balances) by the same amount inside one transaction.
//
// Guard order for value-moving operations is role, pause, zero value, ban,
// null account, then balance or allowance; the first failure wins.
package ledger

import (
	"context"

	"mintgate/internal/guard"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
)

// Store is the slice of ledger state this package reads and writes.
type Store interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	Paused(ctx context.Context) (bool, error)
	IsBanned(ctx context.Context, account domain.Account) (bool, error)
	Balance(ctx context.Context, account domain.Account) (*domain.Amount, error)
	SetBalance(ctx context.Context, account domain.Account, amount *domain.Amount) error
	Balances(ctx context.Context) (map[domain.Account]*domain.Amount, error)
	Allowance(ctx context.Context, owner, spender domain.Account) (*domain.Amount, error)
	SetAllowance(ctx context.Context, owner, spender domain.Account, amount *domain.Amount) error
	TotalSupply(ctx context.Context) (*domain.Amount, error)
	SetTotalSupply(ctx context.Context, amount *domain.Amount) error
	Emit(ctx context.Context, event audit.Event)
}

type Ledger struct{}

func New() *Ledger {
	return &Ledger{}
}

func internal(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (l *Ledger) BalanceOf(ctx context.Context, st Store, account domain.Account) (*domain.Amount, error) {
	b, err := st.Balance(ctx, account)
	if err != nil {
		return nil, internal(err, "failed to read balance")
	}
	return b, nil
}

func (l *Ledger) Allowance(ctx context.Context, st Store, owner, spender domain.Account) (*domain.Amount, error) {
	a, err := st.Allowance(ctx, owner, spender)
	if err != nil {
		return nil, internal(err, "failed to read allowance")
	}
	return a, nil
}

func (l *Ledger) TotalSupply(ctx context.Context, st Store) (*domain.Amount, error) {
	s, err := st.TotalSupply(ctx)
	if err != nil {
		return nil, internal(err, "failed to read total supply")
	}
	return s, nil
}

// Mint creates amount for to.
//
// The recipient ban check reports AlreadyBanned, the same code the blacklist
// uses for a duplicate ban.
func (l *Ledger) Mint(ctx context.Context, st Store, caller, to domain.Account, amount *domain.Amount) error {
	if err := guard.All(ctx,
		guard.HasRole(st, domain.MinterRole, caller),
		guard.WhenNotPaused(st),
		guard.NonZero(amount),
		guard.NotBanned(st, to),
		guard.NotNull(to, "recipient"),
	); err != nil {
		return err
	}
	return l.Credit(ctx, st, caller, to, amount)
}

// Credit mints without role, pause or ban checks. Callers run their own
// guard chain first.
func (l *Ledger) Credit(ctx context.Context, st Store, caller, to domain.Account, amount *domain.Amount) error {
	supply, err := l.TotalSupply(ctx, st)
	if err != nil {
		return err
	}
	newSupply, overflow := new(domain.Amount).AddOverflow(supply, amount)
	if overflow {
		return dErrors.New(dErrors.CodeInvalidInput, "mint would overflow total supply")
	}
	balance, err := l.BalanceOf(ctx, st, to)
	if err != nil {
		return err
	}
	// balance <= supply, so this cannot overflow once the supply did not.
	newBalance := new(domain.Amount).Add(balance, amount)

	if err := st.SetBalance(ctx, to, newBalance); err != nil {
		return internal(err, "failed to update balance")
	}
	if err := st.SetTotalSupply(ctx, newSupply); err != nil {
		return internal(err, "failed to update total supply")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventTransfer,
		Account:      domain.NullAccount,
		Counterparty: to,
		Amount:       new(domain.Amount).Set(amount),
		Caller:       caller,
	})
	return nil
}

// Burn destroys amount from the caller's own balance.
func (l *Ledger) Burn(ctx context.Context, st Store, caller domain.Account, amount *domain.Amount) error {
	if err := guard.All(ctx,
		guard.HasRole(st, domain.BurnerRole, caller),
		guard.WhenNotPaused(st),
		guard.NonZero(amount),
	); err != nil {
		return err
	}
	return l.Debit(ctx, st, caller, caller, amount)
}

// Debit burns from subject without role, pause or ban checks. Fails
// InsufficientBalance when subject holds less than amount.
func (l *Ledger) Debit(ctx context.Context, st Store, caller, subject domain.Account, amount *domain.Amount) error {
	balance, err := l.BalanceOf(ctx, st, subject)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return dErrors.New(dErrors.CodeInsufficientBalance, "burn amount exceeds balance")
	}
	supply, err := l.TotalSupply(ctx, st)
	if err != nil {
		return err
	}
	if supply.Lt(amount) {
		return dErrors.New(dErrors.CodeInvariantViolation, "total supply is below a single balance")
	}
	if err := st.SetBalance(ctx, subject, new(domain.Amount).Sub(balance, amount)); err != nil {
		return internal(err, "failed to update balance")
	}
	if err := st.SetTotalSupply(ctx, new(domain.Amount).Sub(supply, amount)); err != nil {
		return internal(err, "failed to update total supply")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventTransfer,
		Account:      subject,
		Counterparty: domain.NullAccount,
		Amount:       new(domain.Amount).Set(amount),
		Caller:       caller,
	})
	return nil
}

// BurnBlackFunds zeroes a banned account's balance. It is not gated by the
// pause switch.
func (l *Ledger) BurnBlackFunds(ctx context.Context, st Store, caller, account domain.Account) error {
	if err := guard.HasRole(st, domain.BlacklisterRole, caller)(ctx); err != nil {
		return err
	}
	banned, err := st.IsBanned(ctx, account)
	if err != nil {
		return internal(err, "failed to read blacklist")
	}
	if !banned {
		return dErrors.New(dErrors.CodeNotBanned, "account is not banned")
	}
	balance, err := l.BalanceOf(ctx, st, account)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		if err := l.Debit(ctx, st, caller, account, balance); err != nil {
			return err
		}
	}
	st.Emit(ctx, audit.Event{
		Name:    audit.EventBlackFundsBurned,
		Account: account,
		Amount:  balance,
		Caller:  caller,
	})
	return nil
}

// Transfer moves amount from the caller to to. Zero transfers are allowed.
func (l *Ledger) Transfer(ctx context.Context, st Store, caller, to domain.Account, amount *domain.Amount) error {
	if err := guard.All(ctx,
		guard.WhenNotPaused(st),
		guard.NotBanned(st, caller, to),
		guard.NotNull(caller, "sender"),
		guard.NotNull(to, "recipient"),
	); err != nil {
		return err
	}
	return l.move(ctx, st, caller, caller, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// allowance unless it is the unlimited sentinel.
func (l *Ledger) TransferFrom(ctx context.Context, st Store, spender, from, to domain.Account, amount *domain.Amount) error {
	if err := guard.All(ctx,
		guard.WhenNotPaused(st),
		guard.NotBanned(st, from, to),
		guard.NotNull(from, "sender"),
		guard.NotNull(to, "recipient"),
	); err != nil {
		return err
	}

	allowance, err := l.Allowance(ctx, st, from, spender)
	if err != nil {
		return err
	}
	if !domain.IsUnlimited(allowance) {
		if allowance.Lt(amount) {
			return dErrors.New(dErrors.CodeInsufficientAllowance, "transfer amount exceeds allowance")
		}
		if err := st.SetAllowance(ctx, from, spender, new(domain.Amount).Sub(allowance, amount)); err != nil {
			return internal(err, "failed to update allowance")
		}
	}
	return l.move(ctx, st, spender, from, to, amount)
}

func (l *Ledger) move(ctx context.Context, st Store, caller, from, to domain.Account, amount *domain.Amount) error {
	fromBalance, err := l.BalanceOf(ctx, st, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return dErrors.New(dErrors.CodeInsufficientBalance, "transfer amount exceeds balance")
	}
	if from != to {
		toBalance, err := l.BalanceOf(ctx, st, to)
		if err != nil {
			return err
		}
		if err := st.SetBalance(ctx, from, new(domain.Amount).Sub(fromBalance, amount)); err != nil {
			return internal(err, "failed to update balance")
		}
		if err := st.SetBalance(ctx, to, new(domain.Amount).Add(toBalance, amount)); err != nil {
			return internal(err, "failed to update balance")
		}
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventTransfer,
		Account:      from,
		Counterparty: to,
		Amount:       new(domain.Amount).Set(amount),
		Caller:       caller,
	})
	return nil
}

// Approve sets the spender's allowance over owner's balance. It is not gated
// by the pause switch and always emits, even when the value is unchanged.
func (l *Ledger) Approve(ctx context.Context, st Store, owner, spender domain.Account, amount *domain.Amount) error {
	if err := guard.All(ctx,
		guard.NotNull(owner, "owner"),
		guard.NotNull(spender, "spender"),
	); err != nil {
		return err
	}
	if amount == nil {
		amount = domain.ZeroAmount()
	}
	if err := st.SetAllowance(ctx, owner, spender, amount); err != nil {
		return internal(err, "failed to update allowance")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventApproval,
		Account:      owner,
		Counterparty: spender,
		Amount:       new(domain.Amount).Set(amount),
		Caller:       owner,
	})
	return nil
}

// CheckConservation verifies that balances sum to the total supply.
func (l *Ledger) CheckConservation(ctx context.Context, st Store) error {
	balances, err := st.Balances(ctx)
	if err != nil {
		return internal(err, "failed to list balances")
	}
	sum := domain.ZeroAmount()
	for _, b := range balances {
		var overflow bool
		sum, overflow = new(domain.Amount).AddOverflow(sum, b)
		if overflow {
			return dErrors.New(dErrors.CodeInvariantViolation, "balances overflow")
		}
	}
	supply, err := l.TotalSupply(ctx, st)
	if err != nil {
		return err
	}
	if !sum.Eq(supply) {
		return dErrors.New(dErrors.CodeInvariantViolation, "balances sum "+sum.Dec()+" != total supply "+supply.Dec())
	}
	return nil
}
