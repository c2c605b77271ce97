// Package guard composes the independent predicate checks evaluated before
// any ledger mutation.
//
// A chain is evaluated in order and stops at the first failing check; later
// checks never run, so their reads cannot fail the call with a different
// error. Checks read state only.
package guard

import (
	"context"

	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Check returns nil when the call may proceed.
type Check func(ctx context.Context) error

// Chain is an ordered list of checks.
type Chain []Check

// Then returns a new chain with checks appended.
func (c Chain) Then(checks ...Check) Chain {
	out := make(Chain, 0, len(c)+len(checks))
	out = append(out, c...)
	return append(out, checks...)
}

// Evaluate runs the chain and returns the first failure.
func (c Chain) Evaluate(ctx context.Context) error {
	for _, check := range c {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// All evaluates checks in order.
func All(ctx context.Context, checks ...Check) error {
	return Chain(checks).Evaluate(ctx)
}

type RoleReader interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
}

type PauseReader interface {
	Paused(ctx context.Context) (bool, error)
}

type BanReader interface {
	IsBanned(ctx context.Context, account domain.Account) (bool, error)
}

// HasRole fails Unauthorized unless account holds role.
func HasRole(r RoleReader, role domain.Role, account domain.Account) Check {
	return func(ctx context.Context) error {
		ok, err := r.HasRole(ctx, role, account)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role membership")
		}
		if !ok {
			return dErrors.New(dErrors.CodeUnauthorized, "account "+account.Hex()+" is missing role "+role.String())
		}
		return nil
	}
}

// WhenNotPaused fails EnforcedPause while the ledger is paused.
func WhenNotPaused(p PauseReader) Check {
	return func(ctx context.Context) error {
		paused, err := p.Paused(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause state")
		}
		if paused {
			return dErrors.New(dErrors.CodeEnforcedPause, "ledger is paused")
		}
		return nil
	}
}

// WhenPaused fails ExpectedPause while the ledger is running.
func WhenPaused(p PauseReader) Check {
	return func(ctx context.Context) error {
		paused, err := p.Paused(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause state")
		}
		if !paused {
			return dErrors.New(dErrors.CodeExpectedPause, "ledger is not paused")
		}
		return nil
	}
}

// NonZero fails ZeroValue for a nil or zero amount.
func NonZero(amount *domain.Amount) Check {
	return func(context.Context) error {
		if amount == nil || amount.IsZero() {
			return dErrors.New(dErrors.CodeZeroValue, "amount must be greater than zero")
		}
		return nil
	}
}

// NotNull fails ZeroAddress when account is the null identity.
func NotNull(account domain.Account, field string) Check {
	return func(context.Context) error {
		if domain.IsNull(account) {
			return dErrors.New(dErrors.CodeZeroAddress, field+" cannot be the null account")
		}
		return nil
	}
}

// NotBanned fails AlreadyBanned when any of accounts is banned. The null
// account is never banned and is skipped.
func NotBanned(b BanReader, accounts ...domain.Account) Check {
	return func(ctx context.Context) error {
		for _, account := range accounts {
			if domain.IsNull(account) {
				continue
			}
			banned, err := b.IsBanned(ctx, account)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
			}
			if banned {
				return dErrors.New(dErrors.CodeAlreadyBanned, "account "+account.Hex()+" is banned")
			}
		}
		return nil
	}
}
