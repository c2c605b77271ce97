// Package access implements the role registry: role membership, the
// role-admin hierarchy, and the two-phase supervisor handover.
//
// Invariants:
//   - exactly one account holds the supervisor role once the ledger is
//     initialized, and it changes only through AcceptSupervisorTransfer
//   - the supervisor role is its own admin; every other role's admin chain
//     reaches the supervisor role without cycles
//   - a banned account never becomes supervisor
//
// The registry is stateless; every method works on the transaction it is
// given so role checks and the mutations they guard commit together.
package access

import (
	"context"
	"log/slog"

	"mintgate/internal/guard"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
)

// Store is the slice of ledger state the registry reads and writes.
type Store interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	AddRoleMember(ctx context.Context, role domain.Role, account domain.Account) error
	RemoveRoleMember(ctx context.Context, role domain.Role, account domain.Account) error
	RoleMembers(ctx context.Context, role domain.Role) ([]domain.Account, error)
	RoleAdmin(ctx context.Context, role domain.Role) (domain.Role, bool, error)
	SetRoleAdmin(ctx context.Context, role, admin domain.Role) error
	Supervisor(ctx context.Context) (domain.Account, error)
	SetSupervisor(ctx context.Context, account domain.Account) error
	PendingSupervisor(ctx context.Context) (domain.Account, error)
	SetPendingSupervisor(ctx context.Context, account domain.Account) error
	IsBanned(ctx context.Context, account domain.Account) (bool, error)
	Emit(ctx context.Context, event audit.Event)
}

// maxAdminDepth bounds admin-chain walks; a longer chain means corrupt state.
const maxAdminDepth = 64

type Registry struct {
	logger *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func internal(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// Bootstrap installs the first supervisor. Callers guarantee it runs once,
// inside ledger initialization.
func (r *Registry) Bootstrap(ctx context.Context, st Store, supervisor domain.Account) error {
	if domain.IsNull(supervisor) {
		return dErrors.New(dErrors.CodeZeroAddress, "supervisor cannot be the null account")
	}
	if err := st.AddRoleMember(ctx, domain.SupervisorRole, supervisor); err != nil {
		return internal(err, "failed to grant supervisor role")
	}
	if err := st.SetSupervisor(ctx, supervisor); err != nil {
		return internal(err, "failed to record supervisor")
	}
	st.Emit(ctx, audit.Event{
		Name:    audit.EventRoleGranted,
		Role:    domain.SupervisorRole,
		Account: supervisor,
		Caller:  supervisor,
	})
	return nil
}

func (r *Registry) HasRole(ctx context.Context, st Store, role domain.Role, account domain.Account) (bool, error) {
	ok, err := st.HasRole(ctx, role, account)
	if err != nil {
		return false, internal(err, "failed to read role membership")
	}
	return ok, nil
}

// GetRoleAdmin returns the admin of role. An unset admin resolves to the
// supervisor role.
func (r *Registry) GetRoleAdmin(ctx context.Context, st Store, role domain.Role) (domain.Role, error) {
	if role.IsSupervisor() {
		return domain.SupervisorRole, nil
	}
	admin, ok, err := st.RoleAdmin(ctx, role)
	if err != nil {
		return domain.Role{}, internal(err, "failed to read role admin")
	}
	if !ok {
		return domain.SupervisorRole, nil
	}
	return admin, nil
}

func (r *Registry) RoleMembers(ctx context.Context, st Store, role domain.Role) ([]domain.Account, error) {
	members, err := st.RoleMembers(ctx, role)
	if err != nil {
		return nil, internal(err, "failed to list role members")
	}
	return members, nil
}

func (r *Registry) requireAdmin(ctx context.Context, st Store, caller domain.Account, role domain.Role) error {
	admin, err := r.GetRoleAdmin(ctx, st, role)
	if err != nil {
		return err
	}
	return guard.HasRole(st, admin, caller)(ctx)
}

func rejectSupervisorRole(role domain.Role, op string) error {
	if role.IsSupervisor() {
		return dErrors.New(dErrors.CodeInvariantViolation, "supervisor role cannot be changed by "+op+"; use the supervisor handover")
	}
	return nil
}

// GrantRole adds account to role. Granting a held role is a no-op that emits
// nothing.
func (r *Registry) GrantRole(ctx context.Context, st Store, caller domain.Account, role domain.Role, account domain.Account) error {
	if err := rejectSupervisorRole(role, "grant"); err != nil {
		return err
	}
	if err := r.requireAdmin(ctx, st, caller, role); err != nil {
		return err
	}
	if domain.IsNull(account) {
		return dErrors.New(dErrors.CodeZeroAddress, "cannot grant a role to the null account")
	}
	held, err := r.HasRole(ctx, st, role, account)
	if err != nil {
		return err
	}
	if held {
		r.logger.DebugContext(ctx, "role already held", "role", role.String(), "account", account.Hex())
		return nil
	}
	if err := st.AddRoleMember(ctx, role, account); err != nil {
		return internal(err, "failed to grant role")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventRoleGranted, Role: role, Account: account, Caller: caller})
	return nil
}

// RevokeRole removes account from role. Revoking an unheld role is a no-op.
func (r *Registry) RevokeRole(ctx context.Context, st Store, caller domain.Account, role domain.Role, account domain.Account) error {
	if err := rejectSupervisorRole(role, "revoke"); err != nil {
		return err
	}
	if err := r.requireAdmin(ctx, st, caller, role); err != nil {
		return err
	}
	return r.revoke(ctx, st, caller, role, account)
}

// RenounceRole lets an account drop its own role. confirmation must equal the
// caller exactly.
func (r *Registry) RenounceRole(ctx context.Context, st Store, caller domain.Account, role domain.Role, confirmation domain.Account) error {
	if caller != confirmation {
		return dErrors.New(dErrors.CodeBadConfirmation, "can only renounce roles for self")
	}
	if err := rejectSupervisorRole(role, "renounce"); err != nil {
		return err
	}
	return r.revoke(ctx, st, caller, role, confirmation)
}

func (r *Registry) revoke(ctx context.Context, st Store, caller domain.Account, role domain.Role, account domain.Account) error {
	held, err := r.HasRole(ctx, st, role, account)
	if err != nil {
		return err
	}
	if !held {
		return nil
	}
	if err := st.RemoveRoleMember(ctx, role, account); err != nil {
		return internal(err, "failed to revoke role")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventRoleRevoked, Role: role, Account: account, Caller: caller})
	return nil
}

// SetRoleAdmin changes the admin of role. The caller must hold the current
// admin, and the new assignment must keep the admin graph acyclic.
func (r *Registry) SetRoleAdmin(ctx context.Context, st Store, caller domain.Account, role, newAdmin domain.Role) error {
	if err := rejectSupervisorRole(role, "setRoleAdmin"); err != nil {
		return err
	}
	previous, err := r.GetRoleAdmin(ctx, st, role)
	if err != nil {
		return err
	}
	if err := guard.HasRole(st, previous, caller)(ctx); err != nil {
		return err
	}
	if newAdmin == role {
		return dErrors.New(dErrors.CodeInvariantViolation, "a role cannot administer itself")
	}
	if err := r.ensureAcyclic(ctx, st, role, newAdmin); err != nil {
		return err
	}
	if err := st.SetRoleAdmin(ctx, role, newAdmin); err != nil {
		return internal(err, "failed to set role admin")
	}
	st.Emit(ctx, audit.Event{
		Name:              audit.EventRoleAdminChanged,
		Role:              role,
		AdminRole:         newAdmin,
		PreviousAdminRole: previous,
		Caller:            caller,
	})
	return nil
}

// ensureAcyclic walks the admin chain of newAdmin and fails if it reaches role.
func (r *Registry) ensureAcyclic(ctx context.Context, st Store, role, newAdmin domain.Role) error {
	cur := newAdmin
	for range maxAdminDepth {
		if cur == role {
			return dErrors.New(dErrors.CodeInvariantViolation, "role admin assignment would create a cycle")
		}
		if cur.IsSupervisor() {
			return nil
		}
		next, err := r.GetRoleAdmin(ctx, st, cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return dErrors.New(dErrors.CodeInvariantViolation, "role admin chain does not reach the supervisor role")
}

func (r *Registry) Supervisor(ctx context.Context, st Store) (domain.Account, error) {
	s, err := st.Supervisor(ctx)
	if err != nil {
		return domain.Account{}, internal(err, "failed to read supervisor")
	}
	return s, nil
}

func (r *Registry) PendingSupervisor(ctx context.Context, st Store) (domain.Account, error) {
	p, err := st.PendingSupervisor(ctx)
	if err != nil {
		return domain.Account{}, internal(err, "failed to read pending supervisor")
	}
	return p, nil
}

// IsSupervisor reflects the current holder only, never the pending candidate.
func (r *Registry) IsSupervisor(ctx context.Context, st Store, account domain.Account) (bool, error) {
	if domain.IsNull(account) {
		return false, nil
	}
	s, err := r.Supervisor(ctx, st)
	if err != nil {
		return false, err
	}
	return s == account, nil
}

func (r *Registry) requireSupervisor(ctx context.Context, st Store, caller domain.Account) (domain.Account, error) {
	current, err := r.Supervisor(ctx, st)
	if err != nil {
		return domain.Account{}, err
	}
	if domain.IsNull(current) || current != caller {
		return domain.Account{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not the supervisor")
	}
	return current, nil
}

func (r *Registry) rejectBanned(ctx context.Context, st Store, account domain.Account) error {
	banned, err := st.IsBanned(ctx, account)
	if err != nil {
		return internal(err, "failed to read blacklist")
	}
	if banned {
		return dErrors.New(dErrors.CodeNotAllowed, "a banned account cannot become supervisor")
	}
	return nil
}

// BeginSupervisorTransfer nominates candidate, replacing any pending nominee.
func (r *Registry) BeginSupervisorTransfer(ctx context.Context, st Store, caller, candidate domain.Account) error {
	current, err := r.requireSupervisor(ctx, st, caller)
	if err != nil {
		return err
	}
	if domain.IsNull(candidate) {
		return dErrors.New(dErrors.CodeZeroAddress, "candidate cannot be the null account")
	}
	if err := r.rejectBanned(ctx, st, candidate); err != nil {
		return err
	}
	if err := st.SetPendingSupervisor(ctx, candidate); err != nil {
		return internal(err, "failed to record pending supervisor")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventSupervisorTransferStarted,
		Account:      current,
		Counterparty: candidate,
		Caller:       caller,
	})
	return nil
}

// CancelSupervisorTransfer clears the pending nominee.
func (r *Registry) CancelSupervisorTransfer(ctx context.Context, st Store, caller domain.Account) error {
	current, err := r.requireSupervisor(ctx, st, caller)
	if err != nil {
		return err
	}
	pending, err := r.PendingSupervisor(ctx, st)
	if err != nil {
		return err
	}
	if err := st.SetPendingSupervisor(ctx, domain.NullAccount); err != nil {
		return internal(err, "failed to clear pending supervisor")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventSupervisorTransferCanceled,
		Account:      current,
		Counterparty: pending,
		Caller:       caller,
	})
	return nil
}

// AcceptSupervisorTransfer completes the handover. It is the only operation
// that changes the supervisor.
func (r *Registry) AcceptSupervisorTransfer(ctx context.Context, st Store, caller domain.Account) error {
	pending, err := r.PendingSupervisor(ctx, st)
	if err != nil {
		return err
	}
	if domain.IsNull(pending) || pending != caller {
		return dErrors.New(dErrors.CodeInvalidCandidate, "caller is not the pending supervisor")
	}
	if err := r.rejectBanned(ctx, st, caller); err != nil {
		return err
	}
	old, err := r.Supervisor(ctx, st)
	if err != nil {
		return err
	}

	if err := st.RemoveRoleMember(ctx, domain.SupervisorRole, old); err != nil {
		return internal(err, "failed to revoke supervisor role")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventRoleRevoked, Role: domain.SupervisorRole, Account: old, Caller: caller})

	if err := st.AddRoleMember(ctx, domain.SupervisorRole, caller); err != nil {
		return internal(err, "failed to grant supervisor role")
	}
	st.Emit(ctx, audit.Event{Name: audit.EventRoleGranted, Role: domain.SupervisorRole, Account: caller, Caller: caller})

	if err := st.SetSupervisor(ctx, caller); err != nil {
		return internal(err, "failed to record supervisor")
	}
	if err := st.SetPendingSupervisor(ctx, domain.NullAccount); err != nil {
		return internal(err, "failed to clear pending supervisor")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventSupervisorTransferAccepted,
		Account:      old,
		Counterparty: caller,
		Caller:       caller,
	})
	return nil
}
