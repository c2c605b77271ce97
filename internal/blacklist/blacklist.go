// Package blacklist maintains the set of banned accounts.
//
// Privileged accounts cannot be banned: the ledger's own account, the current
// supervisor, and holders of the blacklist role. The exemption is a fixed
// rule so that a compromised blacklist role cannot disable governance or its
// fellow blacklisters.
package blacklist

import (
	"context"
	"log/slog"

	"mintgate/internal/guard"
	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
)

// Store is the slice of ledger state the guard needs.
type Store interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	Supervisor(ctx context.Context) (domain.Account, error)
	Metadata(ctx context.Context) (state.Metadata, error)
	IsBanned(ctx context.Context, account domain.Account) (bool, error)
	SetBanned(ctx context.Context, account domain.Account, banned bool) error
	Emit(ctx context.Context, event audit.Event)
}

type Guard struct {
	logger *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(opts ...Option) *Guard {
	g := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) IsBanned(ctx context.Context, st Store, account domain.Account) (bool, error) {
	banned, err := st.IsBanned(ctx, account)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read blacklist")
	}
	return banned, nil
}

// Add bans account. Guard order: role, null account, privileged exemption,
// duplicate ban.
func (g *Guard) Add(ctx context.Context, st Store, caller, account domain.Account) error {
	if err := guard.All(ctx,
		guard.HasRole(st, domain.BlacklisterRole, caller),
		guard.NotNull(account, "account"),
	); err != nil {
		return err
	}
	if err := g.rejectPrivileged(ctx, st, account); err != nil {
		return err
	}
	banned, err := g.IsBanned(ctx, st, account)
	if err != nil {
		return err
	}
	if banned {
		return dErrors.New(dErrors.CodeAlreadyBanned, "account is already banned")
	}
	if err := st.SetBanned(ctx, account, true); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to ban account")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventBlacklisted, Account: account, Caller: caller})
	return nil
}

// Remove lifts a ban.
func (g *Guard) Remove(ctx context.Context, st Store, caller, account domain.Account) error {
	if err := guard.All(ctx,
		guard.HasRole(st, domain.BlacklisterRole, caller),
		guard.NotNull(account, "account"),
	); err != nil {
		return err
	}
	banned, err := g.IsBanned(ctx, st, account)
	if err != nil {
		return err
	}
	if !banned {
		return dErrors.New(dErrors.CodeNotBanned, "account is not banned")
	}
	if err := st.SetBanned(ctx, account, false); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unban account")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventUnblacklisted, Account: account, Caller: caller})
	return nil
}

func (g *Guard) rejectPrivileged(ctx context.Context, st Store, account domain.Account) error {
	meta, err := st.Metadata(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger metadata")
	}
	if account == meta.Self {
		return dErrors.New(dErrors.CodeNotAllowed, "the ledger account cannot be banned")
	}
	supervisor, err := st.Supervisor(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read supervisor")
	}
	if account == supervisor {
		return dErrors.New(dErrors.CodeNotAllowed, "the supervisor cannot be banned")
	}
	blacklister, err := st.HasRole(ctx, domain.BlacklisterRole, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role membership")
	}
	if blacklister {
		return dErrors.New(dErrors.CodeNotAllowed, "blacklist role holders cannot be banned")
	}
	return nil
}
