package node

import (
	"context"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
)

func (n *Node) GrantRole(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error {
	return n.run(ctx, "grant_role", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.GrantRole(ctx, tx, caller, role, account)
	})
}

func (n *Node) RevokeRole(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error {
	return n.run(ctx, "revoke_role", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.RevokeRole(ctx, tx, caller, role, account)
	})
}

// RenounceRole drops caller's own membership; confirmation must equal caller.
func (n *Node) RenounceRole(ctx context.Context, caller domain.Account, role domain.Role, confirmation domain.Account) error {
	return n.run(ctx, "renounce_role", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.RenounceRole(ctx, tx, caller, role, confirmation)
	})
}

func (n *Node) SetRoleAdmin(ctx context.Context, caller domain.Account, role, admin domain.Role) error {
	return n.run(ctx, "set_role_admin", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.SetRoleAdmin(ctx, tx, caller, role, admin)
	})
}

func (n *Node) BeginSupervisorTransfer(ctx context.Context, caller, candidate domain.Account) error {
	return n.run(ctx, "begin_supervisor_transfer", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.BeginSupervisorTransfer(ctx, tx, caller, candidate)
	})
}

func (n *Node) CancelSupervisorTransfer(ctx context.Context, caller domain.Account) error {
	return n.run(ctx, "cancel_supervisor_transfer", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.CancelSupervisorTransfer(ctx, tx, caller)
	})
}

// AcceptSupervisorTransfer is the only operation that changes the
// supervisor. The bridge delegate is left as is.
func (n *Node) AcceptSupervisorTransfer(ctx context.Context, caller domain.Account) error {
	return n.run(ctx, "accept_supervisor_transfer", caller, func(ctx context.Context, tx state.Tx) error {
		return n.registry.AcceptSupervisorTransfer(ctx, tx, caller)
	})
}

func (n *Node) HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error) {
	return query(ctx, n, "has_role", func(ctx context.Context, tx state.Tx) (bool, error) {
		return n.registry.HasRole(ctx, tx, role, account)
	})
}

func (n *Node) GetRoleAdmin(ctx context.Context, role domain.Role) (domain.Role, error) {
	return query(ctx, n, "get_role_admin", func(ctx context.Context, tx state.Tx) (domain.Role, error) {
		return n.registry.GetRoleAdmin(ctx, tx, role)
	})
}

func (n *Node) RoleMembers(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	return query(ctx, n, "role_members", func(ctx context.Context, tx state.Tx) ([]domain.Account, error) {
		return n.registry.RoleMembers(ctx, tx, role)
	})
}

func (n *Node) Supervisor(ctx context.Context) (domain.Account, error) {
	return query(ctx, n, "supervisor", func(ctx context.Context, tx state.Tx) (domain.Account, error) {
		return n.registry.Supervisor(ctx, tx)
	})
}

// Owner is an alias of Supervisor.
func (n *Node) Owner(ctx context.Context) (domain.Account, error) {
	return n.Supervisor(ctx)
}

func (n *Node) PendingSupervisor(ctx context.Context) (domain.Account, error) {
	return query(ctx, n, "pending_supervisor", func(ctx context.Context, tx state.Tx) (domain.Account, error) {
		return n.registry.PendingSupervisor(ctx, tx)
	})
}

func (n *Node) IsSupervisor(ctx context.Context, account domain.Account) (bool, error) {
	return query(ctx, n, "is_supervisor", func(ctx context.Context, tx state.Tx) (bool, error) {
		return n.registry.IsSupervisor(ctx, tx, account)
	})
}

func (n *Node) AddToBlacklist(ctx context.Context, caller, account domain.Account) error {
	return n.run(ctx, "add_to_blacklist", caller, func(ctx context.Context, tx state.Tx) error {
		return n.blacklist.Add(ctx, tx, caller, account)
	})
}

func (n *Node) RemoveFromBlacklist(ctx context.Context, caller, account domain.Account) error {
	return n.run(ctx, "remove_from_blacklist", caller, func(ctx context.Context, tx state.Tx) error {
		return n.blacklist.Remove(ctx, tx, caller, account)
	})
}

func (n *Node) IsBanned(ctx context.Context, account domain.Account) (bool, error) {
	return query(ctx, n, "is_banned", func(ctx context.Context, tx state.Tx) (bool, error) {
		return n.blacklist.IsBanned(ctx, tx, account)
	})
}

func (n *Node) Pause(ctx context.Context, caller domain.Account) error {
	return n.run(ctx, "pause", caller, func(ctx context.Context, tx state.Tx) error {
		return n.pause.Pause(ctx, tx, caller)
	})
}

func (n *Node) Unpause(ctx context.Context, caller domain.Account) error {
	return n.run(ctx, "unpause", caller, func(ctx context.Context, tx state.Tx) error {
		return n.pause.Unpause(ctx, tx, caller)
	})
}

func (n *Node) Paused(ctx context.Context) (bool, error) {
	return query(ctx, n, "paused", func(ctx context.Context, tx state.Tx) (bool, error) {
		return n.pause.Paused(ctx, tx)
	})
}

func (n *Node) Upgrade(ctx context.Context, caller domain.Account, next state.Implementation) error {
	return n.run(ctx, "upgrade", caller, func(ctx context.Context, tx state.Tx) error {
		return n.upgrade.Upgrade(ctx, tx, caller, next)
	})
}

// AuthorizeUpgrade evaluates the upgrade gate without recording anything.
func (n *Node) AuthorizeUpgrade(ctx context.Context, caller domain.Account) error {
	return n.exec.Query(ctx, "authorize_upgrade", func(tx state.Tx) error {
		return n.upgrade.Authorize(ctx, tx, caller)
	})
}

func (n *Node) Implementation(ctx context.Context) (state.Implementation, error) {
	return query(ctx, n, "implementation", func(ctx context.Context, tx state.Tx) (state.Implementation, error) {
		return n.upgrade.Current(ctx, tx)
	})
}

func (n *Node) Version(ctx context.Context) (uint64, error) {
	impl, err := n.Implementation(ctx)
	return impl.Version, err
}
