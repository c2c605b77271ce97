// Package state defines the persisted ledger state and the transactional
// boundary every public operation runs inside.
//
// A Tx is a view of the whole ledger scoped to one serialized operation. All
// writes and emitted events become visible together on commit or are
// discarded together on rollback, so a failing guard leaves the state
// byte-identical to its pre-call value.
package state

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mintgate/pkg/domain"
	audit "mintgate/pkg/platform/audit"
)

// Metadata is the ledger's identity, recorded once at initialization.
type Metadata struct {
	Initialized bool
	Self        domain.Account
	Name        string
	Symbol      string
	Decimals    uint8
}

// Implementation records the executable logic currently serving the ledger.
// Upgrades replace this record; no other state is touched.
type Implementation struct {
	Name      string
	Version   uint64
	Reference string
	UpdatedAt time.Time
}

// BridgeConfig is attached once when the cross-network extension is
// introduced and is reconfigurable thereafter.
type BridgeConfig struct {
	LocalChain     domain.ChainID
	Endpoint       string
	SharedDecimals uint8
	LocalDecimals  uint8
	Delegate       domain.Account
}

// OutboxEntry is an outbound bridge message committed alongside the burn that
// produced it and later delivered by the relay.
type OutboxEntry struct {
	ID          uuid.UUID
	GUID        uuid.UUID
	Dst         domain.ChainID
	Envelope    []byte
	CreatedAt   time.Time
	Attempts    int
	DeliveredAt *time.Time
}

// Tx is the full ledger state as seen from inside one transaction. Component
// packages depend on narrower interfaces that Tx satisfies.
type Tx interface {
	Metadata(ctx context.Context) (Metadata, error)
	SetMetadata(ctx context.Context, m Metadata) error

	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	AddRoleMember(ctx context.Context, role domain.Role, account domain.Account) error
	RemoveRoleMember(ctx context.Context, role domain.Role, account domain.Account) error
	RoleMembers(ctx context.Context, role domain.Role) ([]domain.Account, error)
	// RoleAdmin returns the explicitly assigned admin, ok=false when unset.
	RoleAdmin(ctx context.Context, role domain.Role) (admin domain.Role, ok bool, err error)
	SetRoleAdmin(ctx context.Context, role, admin domain.Role) error
	Supervisor(ctx context.Context) (domain.Account, error)
	SetSupervisor(ctx context.Context, account domain.Account) error
	PendingSupervisor(ctx context.Context) (domain.Account, error)
	SetPendingSupervisor(ctx context.Context, account domain.Account) error

	IsBanned(ctx context.Context, account domain.Account) (bool, error)
	SetBanned(ctx context.Context, account domain.Account, banned bool) error

	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error

	Balance(ctx context.Context, account domain.Account) (*domain.Amount, error)
	SetBalance(ctx context.Context, account domain.Account, amount *domain.Amount) error
	Allowance(ctx context.Context, owner, spender domain.Account) (*domain.Amount, error)
	SetAllowance(ctx context.Context, owner, spender domain.Account, amount *domain.Amount) error
	TotalSupply(ctx context.Context) (*domain.Amount, error)
	SetTotalSupply(ctx context.Context, amount *domain.Amount) error
	// Balances lists every non-zero balance; used by conservation checks.
	Balances(ctx context.Context) (map[domain.Account]*domain.Amount, error)

	Implementation(ctx context.Context) (Implementation, error)
	SetImplementation(ctx context.Context, impl Implementation) error

	// BridgeConfig returns ok=false until the bridge is initialized.
	BridgeConfig(ctx context.Context) (cfg BridgeConfig, ok bool, err error)
	SetBridgeConfig(ctx context.Context, cfg BridgeConfig) error
	Peer(ctx context.Context, chain domain.ChainID) (peer domain.Account, ok bool, err error)
	SetPeer(ctx context.Context, chain domain.ChainID, peer domain.Account) error
	// MarkReceived records an inbound message GUID. It returns
	// sentinel.ErrConflict when the GUID was already processed.
	MarkReceived(ctx context.Context, guid uuid.UUID, src domain.ChainID) error
	EnqueueOutbound(ctx context.Context, entry OutboxEntry) error

	// Emit buffers an event; it is persisted with the transaction and
	// discarded on rollback.
	Emit(ctx context.Context, event audit.Event)
	// Events returns the events emitted so far in this transaction.
	Events() []audit.Event
}

// Runner executes functions inside serialized transactions.
type Runner interface {
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against the current state and always rolls back.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Outbox is consumed by the bridge relay outside of ledger transactions.
type Outbox interface {
	// PendingOutbound returns undelivered entries, oldest first, leaving out
	// entries addressed to any chain in skip.
	PendingOutbound(ctx context.Context, limit int, skip ...domain.ChainID) ([]OutboxEntry, error)
	// NextOutbound returns the oldest undelivered entry for dst, or
	// sentinel.ErrNotFound when there is none.
	NextOutbound(ctx context.Context, dst domain.ChainID) (OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAttempted(ctx context.Context, id uuid.UUID) error
}
