// Package upgrade authorizes replacement of the ledger's executable logic and
// records which implementation is current.
//
// Authorization is independent of the pause switch so a paused ledger can
// still be repaired. The supervisor may upgrade only while it does not itself
// hold the upgrade role; once it does, the role check alone governs.
package upgrade

import (
	"context"
	"fmt"
	"strings"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

type Store interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	Supervisor(ctx context.Context) (domain.Account, error)
	Implementation(ctx context.Context) (state.Implementation, error)
	SetImplementation(ctx context.Context, impl state.Implementation) error
	Emit(ctx context.Context, event audit.Event)
}

type Gate struct{}

func New() *Gate {
	return &Gate{}
}

// Authorize fails Unauthorized unless caller holds the upgrade role, or is the
// supervisor while the supervisor lacks the upgrade role.
func (g *Gate) Authorize(ctx context.Context, st Store, caller domain.Account) error {
	if domain.IsNull(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not authorized to upgrade")
	}
	holds, err := st.HasRole(ctx, domain.UpgradeAdminRole, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role membership")
	}
	if holds {
		return nil
	}
	supervisor, err := st.Supervisor(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read supervisor")
	}
	if caller != supervisor {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not authorized to upgrade")
	}
	// caller is the supervisor and, from the check above, lacks the upgrade role
	return nil
}

// Current returns the recorded implementation.
func (g *Gate) Current(ctx context.Context, st Store) (state.Implementation, error) {
	impl, err := st.Implementation(ctx)
	if err != nil {
		return state.Implementation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read implementation")
	}
	return impl, nil
}

// Upgrade authorizes caller and records next as the current implementation.
// The version must strictly increase.
func (g *Gate) Upgrade(ctx context.Context, st Store, caller domain.Account, next state.Implementation) error {
	if err := g.Authorize(ctx, st, caller); err != nil {
		return err
	}
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "implementation name is required")
	}
	current, err := g.Current(ctx, st)
	if err != nil {
		return err
	}
	if next.Version <= current.Version {
		return dErrors.New(dErrors.CodeInvariantViolation, "implementation version must increase")
	}
	next.UpdatedAt = requestcontext.Now(ctx)
	if err := st.SetImplementation(ctx, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record implementation")
	}
	st.Emit(ctx, audit.Event{
		Name:   audit.EventUpgraded,
		Caller: caller,
		Detail: fmt.Sprintf("%s v%d %s", next.Name, next.Version, next.Reference),
	})
	return nil
}
