package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mintgate/pkg/domain"
)

// EventCategory classifies ledger events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers value movement and ban changes. These have
	// regulatory significance and are retained for the life of the ledger.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who may do what: role membership,
	// role hierarchy, supervisor handover, pause switch, upgrades and bridge
	// authorization.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers configuration and bookkeeping events.
	CategoryOperations EventCategory = "operations"
)

// Event is one committed state change. Every successful state-changing
// operation produces one or more events; failed operations produce none.
//
// Field use by event kind:
//   - transfer: Account=from, Counterparty=to, Amount
//   - approval: Account=owner, Counterparty=spender, Amount
//   - role_*: Role, Account=member; role_admin_changed also sets AdminRole and PreviousAdminRole
//   - supervisor_transfer_*: Account=current supervisor, Counterparty=candidate
//   - blacklisted/unblacklisted/black_funds_burned: Account, Amount for burns
//   - bridge_sent/bridge_received: Chain, GUID, Account=local subject, Counterparty=remote subject
type Event struct {
	ID                uuid.UUID
	Name              AuditEvent
	Timestamp         time.Time
	Caller            domain.Account
	Account           domain.Account
	Counterparty      domain.Account
	Role              domain.Role
	AdminRole         domain.Role
	PreviousAdminRole domain.Role
	Amount            *domain.Amount
	Chain             domain.ChainID
	GUID              string
	Detail            string
	RequestID         string
}

// Category derives the category from the event name.
func (e Event) Category() EventCategory {
	return e.Name.Category()
}

// Involves reports whether account appears as caller, subject or counterparty.
func (e Event) Involves(account domain.Account) bool {
	return e.Caller == account || e.Account == account || e.Counterparty == account
}

type AuditEvent string

const (
	// Lifecycle events
	EventInitialized       AuditEvent = "initialized"
	EventUpgraded          AuditEvent = "upgraded"
	EventBridgeInitialized AuditEvent = "bridge_initialized"

	// Role events
	EventRoleGranted                AuditEvent = "role_granted"
	EventRoleRevoked                AuditEvent = "role_revoked"
	EventRoleAdminChanged           AuditEvent = "role_admin_changed"
	EventSupervisorTransferStarted  AuditEvent = "supervisor_transfer_started"
	EventSupervisorTransferCanceled AuditEvent = "supervisor_transfer_canceled"
	EventSupervisorTransferAccepted AuditEvent = "supervisor_transfer_accepted"

	// Blacklist events
	EventBlacklisted      AuditEvent = "blacklisted"
	EventUnblacklisted    AuditEvent = "unblacklisted"
	EventBlackFundsBurned AuditEvent = "black_funds_burned"

	// Pause events
	EventPaused   AuditEvent = "paused"
	EventUnpaused AuditEvent = "unpaused"

	// Ledger events
	EventTransfer AuditEvent = "transfer"
	EventApproval AuditEvent = "approval"

	// Bridge events
	EventBridgeSent     AuditEvent = "bridge_sent"
	EventBridgeReceived AuditEvent = "bridge_received"
	EventDelegateSet    AuditEvent = "delegate_set"
	EventPeerSet        AuditEvent = "peer_set"
)

// eventCategories maps each ledger event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventTransfer:         CategoryCompliance,
	EventApproval:         CategoryCompliance,
	EventBlacklisted:      CategoryCompliance,
	EventUnblacklisted:    CategoryCompliance,
	EventBlackFundsBurned: CategoryCompliance,
	EventBridgeSent:       CategoryCompliance,
	EventBridgeReceived:   CategoryCompliance,

	EventRoleGranted:                CategorySecurity,
	EventRoleRevoked:                CategorySecurity,
	EventRoleAdminChanged:           CategorySecurity,
	EventSupervisorTransferStarted:  CategorySecurity,
	EventSupervisorTransferCanceled: CategorySecurity,
	EventSupervisorTransferAccepted: CategorySecurity,
	EventPaused:                     CategorySecurity,
	EventUnpaused:                   CategorySecurity,
	EventUpgraded:                   CategorySecurity,
	EventDelegateSet:                CategorySecurity,
	EventPeerSet:                    CategorySecurity,

	EventInitialized:       CategoryOperations,
	EventBridgeInitialized: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists committed events for later querying.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account domain.Account) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
