// Package pause implements the global emergency switch gating value-moving
// operations.
package pause

import (
	"context"

	"mintgate/internal/guard"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
)

type Store interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
	Emit(ctx context.Context, event audit.Event)
}

type Switch struct{}

func New() *Switch {
	return &Switch{}
}

func (s *Switch) Paused(ctx context.Context, st Store) (bool, error) {
	paused, err := st.Paused(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause state")
	}
	return paused, nil
}

// Pause fails EnforcedPause when already paused.
func (s *Switch) Pause(ctx context.Context, st Store, caller domain.Account) error {
	return s.set(ctx, st, caller, true,
		guard.HasRole(st, domain.PauserRole, caller),
		guard.WhenNotPaused(st),
	)
}

// Unpause fails ExpectedPause when not paused.
func (s *Switch) Unpause(ctx context.Context, st Store, caller domain.Account) error {
	return s.set(ctx, st, caller, false,
		guard.HasRole(st, domain.PauserRole, caller),
		guard.WhenPaused(st),
	)
}

func (s *Switch) set(ctx context.Context, st Store, caller domain.Account, paused bool, checks ...guard.Check) error {
	if err := guard.All(ctx, checks...); err != nil {
		return err
	}
	if err := st.SetPaused(ctx, paused); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update pause state")
	}
	name := audit.EventUnpaused
	if paused {
		name = audit.EventPaused
	}
	st.Emit(ctx, audit.Event{Name: name, Account: caller, Caller: caller})
	return nil
}
