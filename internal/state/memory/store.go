// Package memory is the in-process ledger state store.
//
// A single mutex serializes every transaction. Writes apply directly to the
// committed maps and record an undo step; rollback replays the undo log in
// reverse so a failed call leaves no trace.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/sentinel"
)

const (
	defaultTxTimeout = 5 * time.Second
	defaultEventLog  = 1024
)

type allowanceKey struct {
	owner   domain.Account
	spender domain.Account
}

type data struct {
	meta        state.Metadata
	impl        state.Implementation
	members     map[domain.Role]map[domain.Account]struct{}
	admins      map[domain.Role]domain.Role
	supervisor  domain.Account
	pending     domain.Account
	banned      map[domain.Account]struct{}
	paused      bool
	balances    map[domain.Account]*domain.Amount
	allowances  map[allowanceKey]*domain.Amount
	totalSupply *domain.Amount
	bridge      *state.BridgeConfig
	peers       map[domain.ChainID]domain.Account
	received    map[uuid.UUID]domain.ChainID
	outbox      []state.OutboxEntry
	events      []audit.Event
}

// Store holds one ledger instance's state in memory.
type Store struct {
	mu       sync.Mutex
	d        *data
	timeout  time.Duration
	eventLog int
}

type Option func(*Store)

// WithTimeout bounds transactions whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithEventLog keeps the n most recent committed events for CommittedEvents.
// Zero disables the log.
func WithEventLog(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.eventLog = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		d: &data{
			members:     make(map[domain.Role]map[domain.Account]struct{}),
			admins:      make(map[domain.Role]domain.Role),
			banned:      make(map[domain.Account]struct{}),
			balances:    make(map[domain.Account]*domain.Amount),
			allowances:  make(map[allowanceKey]*domain.Amount),
			totalSupply: domain.ZeroAmount(),
			peers:       make(map[domain.ChainID]domain.Account),
			received:    make(map[uuid.UUID]domain.ChainID),
		},
		timeout:  defaultTxTimeout,
		eventLog: defaultEventLog,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx state.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := &memTx{d: s.d}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if s.eventLog > 0 {
		s.d.events = append(s.d.events, tx.events...)
		if over := len(s.d.events) - s.eventLog; over > 0 {
			s.d.events = slices.Delete(s.d.events, 0, over)
		}
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx state.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "view aborted: context cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{d: s.d}
	defer tx.rollback()
	return fn(tx)
}

// CommittedEvents returns the retained committed events in commit order.
func (s *Store) CommittedEvents() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.d.events...)
}

func (s *Store) PendingOutbound(_ context.Context, limit int, skip ...domain.ChainID) ([]state.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []state.OutboxEntry
	for _, e := range s.d.outbox {
		if e.DeliveredAt != nil || slices.Contains(skip, e.Dst) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) NextOutbound(_ context.Context, dst domain.ChainID) (state.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.d.outbox {
		if e.DeliveredAt == nil && e.Dst == dst {
			return e, nil
		}
	}
	return state.OutboxEntry{}, sentinel.ErrNotFound
}

func (s *Store) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.d.outbox {
		if s.d.outbox[i].ID == id {
			delivered := at
			s.d.outbox[i].DeliveredAt = &delivered
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *Store) MarkAttempted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.d.outbox {
		if s.d.outbox[i].ID == id {
			s.d.outbox[i].Attempts++
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// memTx mutates the shared data under the store lock and keeps an undo log.
type memTx struct {
	d      *data
	undo   []func()
	events []audit.Event
}

func (t *memTx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.events = nil
}

func copyAmount(a *domain.Amount) *domain.Amount {
	if a == nil {
		return domain.ZeroAmount()
	}
	return new(domain.Amount).Set(a)
}

func (t *memTx) Metadata(context.Context) (state.Metadata, error) {
	return t.d.meta, nil
}

func (t *memTx) SetMetadata(_ context.Context, m state.Metadata) error {
	prev := t.d.meta
	t.record(func() { t.d.meta = prev })
	t.d.meta = m
	return nil
}

func (t *memTx) HasRole(_ context.Context, role domain.Role, account domain.Account) (bool, error) {
	_, ok := t.d.members[role][account]
	return ok, nil
}

func (t *memTx) AddRoleMember(_ context.Context, role domain.Role, account domain.Account) error {
	set, ok := t.d.members[role]
	if !ok {
		set = make(map[domain.Account]struct{})
		t.d.members[role] = set
	}
	if _, held := set[account]; held {
		return nil
	}
	set[account] = struct{}{}
	t.record(func() { delete(set, account) })
	return nil
}

func (t *memTx) RemoveRoleMember(_ context.Context, role domain.Role, account domain.Account) error {
	set := t.d.members[role]
	if _, held := set[account]; !held {
		return nil
	}
	delete(set, account)
	t.record(func() { set[account] = struct{}{} })
	return nil
}

func (t *memTx) RoleMembers(_ context.Context, role domain.Role) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(t.d.members[role]))
	for a := range t.d.members[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out, nil
}

func (t *memTx) RoleAdmin(_ context.Context, role domain.Role) (domain.Role, bool, error) {
	admin, ok := t.d.admins[role]
	return admin, ok, nil
}

func (t *memTx) SetRoleAdmin(_ context.Context, role, admin domain.Role) error {
	prev, had := t.d.admins[role]
	t.record(func() {
		if had {
			t.d.admins[role] = prev
		} else {
			delete(t.d.admins, role)
		}
	})
	t.d.admins[role] = admin
	return nil
}

func (t *memTx) Supervisor(context.Context) (domain.Account, error) {
	return t.d.supervisor, nil
}

func (t *memTx) SetSupervisor(_ context.Context, account domain.Account) error {
	prev := t.d.supervisor
	t.record(func() { t.d.supervisor = prev })
	t.d.supervisor = account
	return nil
}

func (t *memTx) PendingSupervisor(context.Context) (domain.Account, error) {
	return t.d.pending, nil
}

func (t *memTx) SetPendingSupervisor(_ context.Context, account domain.Account) error {
	prev := t.d.pending
	t.record(func() { t.d.pending = prev })
	t.d.pending = account
	return nil
}

func (t *memTx) IsBanned(_ context.Context, account domain.Account) (bool, error) {
	_, ok := t.d.banned[account]
	return ok, nil
}

func (t *memTx) SetBanned(_ context.Context, account domain.Account, banned bool) error {
	_, was := t.d.banned[account]
	if was == banned {
		return nil
	}
	if banned {
		t.d.banned[account] = struct{}{}
		t.record(func() { delete(t.d.banned, account) })
	} else {
		delete(t.d.banned, account)
		t.record(func() { t.d.banned[account] = struct{}{} })
	}
	return nil
}

func (t *memTx) Paused(context.Context) (bool, error) {
	return t.d.paused, nil
}

func (t *memTx) SetPaused(_ context.Context, paused bool) error {
	prev := t.d.paused
	t.record(func() { t.d.paused = prev })
	t.d.paused = paused
	return nil
}

func (t *memTx) Balance(_ context.Context, account domain.Account) (*domain.Amount, error) {
	return copyAmount(t.d.balances[account]), nil
}

func (t *memTx) SetBalance(_ context.Context, account domain.Account, amount *domain.Amount) error {
	prev, had := t.d.balances[account]
	t.record(func() {
		if had {
			t.d.balances[account] = prev
		} else {
			delete(t.d.balances, account)
		}
	})
	if amount == nil || amount.IsZero() {
		delete(t.d.balances, account)
		return nil
	}
	t.d.balances[account] = copyAmount(amount)
	return nil
}

func (t *memTx) Balances(context.Context) (map[domain.Account]*domain.Amount, error) {
	out := make(map[domain.Account]*domain.Amount, len(t.d.balances))
	for a, v := range t.d.balances {
		out[a] = copyAmount(v)
	}
	return out, nil
}

func (t *memTx) Allowance(_ context.Context, owner, spender domain.Account) (*domain.Amount, error) {
	return copyAmount(t.d.allowances[allowanceKey{owner, spender}]), nil
}

func (t *memTx) SetAllowance(_ context.Context, owner, spender domain.Account, amount *domain.Amount) error {
	key := allowanceKey{owner, spender}
	prev, had := t.d.allowances[key]
	t.record(func() {
		if had {
			t.d.allowances[key] = prev
		} else {
			delete(t.d.allowances, key)
		}
	})
	if amount == nil || amount.IsZero() {
		delete(t.d.allowances, key)
		return nil
	}
	t.d.allowances[key] = copyAmount(amount)
	return nil
}

func (t *memTx) TotalSupply(context.Context) (*domain.Amount, error) {
	return copyAmount(t.d.totalSupply), nil
}

func (t *memTx) SetTotalSupply(_ context.Context, amount *domain.Amount) error {
	prev := t.d.totalSupply
	t.record(func() { t.d.totalSupply = prev })
	t.d.totalSupply = copyAmount(amount)
	return nil
}

func (t *memTx) Implementation(context.Context) (state.Implementation, error) {
	return t.d.impl, nil
}

func (t *memTx) SetImplementation(_ context.Context, impl state.Implementation) error {
	prev := t.d.impl
	t.record(func() { t.d.impl = prev })
	t.d.impl = impl
	return nil
}

func (t *memTx) BridgeConfig(context.Context) (state.BridgeConfig, bool, error) {
	if t.d.bridge == nil {
		return state.BridgeConfig{}, false, nil
	}
	return *t.d.bridge, true, nil
}

func (t *memTx) SetBridgeConfig(_ context.Context, cfg state.BridgeConfig) error {
	prev := t.d.bridge
	t.record(func() { t.d.bridge = prev })
	t.d.bridge = &cfg
	return nil
}

func (t *memTx) Peer(_ context.Context, chain domain.ChainID) (domain.Account, bool, error) {
	peer, ok := t.d.peers[chain]
	return peer, ok, nil
}

func (t *memTx) SetPeer(_ context.Context, chain domain.ChainID, peer domain.Account) error {
	prev, had := t.d.peers[chain]
	t.record(func() {
		if had {
			t.d.peers[chain] = prev
		} else {
			delete(t.d.peers, chain)
		}
	})
	if domain.IsNull(peer) {
		delete(t.d.peers, chain)
		return nil
	}
	t.d.peers[chain] = peer
	return nil
}

func (t *memTx) MarkReceived(_ context.Context, guid uuid.UUID, src domain.ChainID) error {
	if _, seen := t.d.received[guid]; seen {
		return sentinel.ErrConflict
	}
	t.d.received[guid] = src
	t.record(func() { delete(t.d.received, guid) })
	return nil
}

func (t *memTx) EnqueueOutbound(_ context.Context, entry state.OutboxEntry) error {
	n := len(t.d.outbox)
	t.d.outbox = append(t.d.outbox, entry)
	t.record(func() { t.d.outbox = t.d.outbox[:n] })
	return nil
}

func (t *memTx) Emit(_ context.Context, event audit.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	t.events = append(t.events, event)
}

func (t *memTx) Events() []audit.Event {
	return append([]audit.Event(nil), t.events...)
}
