// Package postgres persists ledger state in PostgreSQL.
//
// Every transaction takes a transaction-scoped advisory lock before touching
// state, which serializes operations across every process sharing the
// database. Committed events are written to ledger_events in the same
// transaction, and a NOTIFY on the outbox channel wakes the bridge relay when
// outbound messages were enqueued.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	auditpostgres "mintgate/pkg/platform/audit/store/postgres"
	"mintgate/pkg/platform/sentinel"
	txcontext "mintgate/pkg/platform/tx"
)

// OutboxChannel is the LISTEN/NOTIFY channel signalled on outbox commits.
const OutboxChannel = "mintgate_outbox"

const (
	defaultTxTimeout = 5 * time.Second
	defaultLockKey   = int64(0x6d696e74)
	uniqueViolation  = "23505"
)

//go:embed schema.sql
var schema string

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// Store implements state.Runner and state.Outbox on PostgreSQL.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	lockKey int64
	clock   func() time.Time
	events  *auditpostgres.Store
}

type Option func(*Store)

func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLockKey selects the advisory lock; instances sharing one database need
// distinct keys only if they also use distinct schemas.
func WithLockKey(key int64) Option {
	return func(s *Store) {
		s.lockKey = key
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		timeout: defaultTxTimeout,
		lockKey: defaultLockKey,
		clock:   time.Now,
		events:  auditpostgres.New(db),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx state.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx state.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx state.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Writers run READ COMMITTED: the snapshot of a REPEATABLE READ
	// transaction would be taken by the lock statement, before it waits.
	isolation := sql.LevelReadCommitted
	if readOnly {
		isolation = sql.LevelRepeatableRead
	}
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly, Isolation: isolation})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if !readOnly {
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockKey); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "acquire ledger lock")
		}
	}

	tx := &pgTx{tx: sqlTx, clock: s.clock}
	if err := fn(tx); err != nil {
		return err
	}
	if readOnly {
		return nil
	}

	if err := tx.flushEvents(ctx, s.events); err != nil {
		return err
	}
	if tx.outboxDirty {
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_notify($1, '')`, OutboxChannel); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "notify outbox")
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

func (s *Store) PendingOutbound(ctx context.Context, limit int, skip ...domain.ChainID) ([]state.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	skipped := make([]int64, 0, len(skip))
	for _, c := range skip {
		skipped = append(skipped, int64(c))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guid, dst_chain, envelope, created_at, attempts
		FROM bridge_outbox
		WHERE delivered_at IS NULL
		  AND NOT (dst_chain = ANY($2))
		ORDER BY created_at, id
		LIMIT $1
	`, limit, pq.Array(skipped))
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	defer rows.Close()

	var out []state.OutboxEntry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) NextOutbound(ctx context.Context, dst domain.ChainID) (state.OutboxEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guid, dst_chain, envelope, created_at, attempts
		FROM bridge_outbox
		WHERE delivered_at IS NULL AND dst_chain = $1
		ORDER BY created_at, id
		LIMIT 1
	`, int64(dst))
	e, err := scanOutboxEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return state.OutboxEntry{}, sentinel.ErrNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutboxEntry(row rowScanner) (state.OutboxEntry, error) {
	var (
		e   state.OutboxEntry
		dst int64
	)
	if err := row.Scan(&e.ID, &e.GUID, &dst, &e.Envelope, &e.CreatedAt, &e.Attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan outbox entry: %w", err)
	}
	e.Dst = domain.ChainID(dst)
	return e, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bridge_outbox SET delivered_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox delivered: %w", err)
	}
	return expectOneRow(res)
}

func (s *Store) MarkAttempted(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bridge_outbox SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox attempted: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type pgTx struct {
	tx          *sql.Tx
	clock       func() time.Time
	events      []audit.Event
	outboxDirty bool
}

func accountBytes(a domain.Account) []byte {
	return a.Bytes()
}

func accountFrom(b []byte) domain.Account {
	return common.BytesToAddress(b)
}

func roleBytes(r domain.Role) []byte {
	return r[:]
}

func amountFrom(s string) (*domain.Amount, error) {
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("decode amount %q: %w", s, err)
	}
	return a, nil
}

func (t *pgTx) Metadata(ctx context.Context) (state.Metadata, error) {
	var (
		m        state.Metadata
		self     []byte
		decimals int16
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT initialized, self_account, name, symbol, decimals FROM ledger_meta WHERE id = 1
	`).Scan(&m.Initialized, &self, &m.Name, &m.Symbol, &decimals)
	if err != nil {
		return state.Metadata{}, fmt.Errorf("load metadata: %w", err)
	}
	m.Self = accountFrom(self)
	m.Decimals = uint8(decimals)
	return m, nil
}

func (t *pgTx) SetMetadata(ctx context.Context, m state.Metadata) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE ledger_meta SET initialized = $1, self_account = $2, name = $3, symbol = $4, decimals = $5
		WHERE id = 1
	`, m.Initialized, accountBytes(m.Self), m.Name, m.Symbol, int16(m.Decimals))
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func (t *pgTx) HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM role_members WHERE role = $1 AND account = $2)
	`, roleBytes(role), accountBytes(account)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return exists, nil
}

func (t *pgTx) AddRoleMember(ctx context.Context, role domain.Role, account domain.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_members (role, account) VALUES ($1, $2)
		ON CONFLICT (role, account) DO NOTHING
	`, roleBytes(role), accountBytes(account))
	if err != nil {
		return fmt.Errorf("add role member: %w", err)
	}
	return nil
}

func (t *pgTx) RemoveRoleMember(ctx context.Context, role domain.Role, account domain.Account) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM role_members WHERE role = $1 AND account = $2`,
		roleBytes(role), accountBytes(account))
	if err != nil {
		return fmt.Errorf("remove role member: %w", err)
	}
	return nil
}

func (t *pgTx) RoleMembers(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT account FROM role_members WHERE role = $1 ORDER BY account`, roleBytes(role))
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	out := []domain.Account{}
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		out = append(out, accountFrom(b))
	}
	return out, rows.Err()
}

func (t *pgTx) RoleAdmin(ctx context.Context, role domain.Role) (domain.Role, bool, error) {
	var b []byte
	err := t.tx.QueryRowContext(ctx, `SELECT admin FROM role_admins WHERE role = $1`, roleBytes(role)).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Role{}, false, nil
	}
	if err != nil {
		return domain.Role{}, false, fmt.Errorf("load role admin: %w", err)
	}
	var admin domain.Role
	copy(admin[:], b)
	return admin, true, nil
}

func (t *pgTx) SetRoleAdmin(ctx context.Context, role, admin domain.Role) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_admins (role, admin) VALUES ($1, $2)
		ON CONFLICT (role) DO UPDATE SET admin = EXCLUDED.admin
	`, roleBytes(role), roleBytes(admin))
	if err != nil {
		return fmt.Errorf("save role admin: %w", err)
	}
	return nil
}

func (t *pgTx) metaAccount(ctx context.Context, column string) (domain.Account, error) {
	var b []byte
	if err := t.tx.QueryRowContext(ctx, `SELECT `+column+` FROM ledger_meta WHERE id = 1`).Scan(&b); err != nil {
		return domain.Account{}, fmt.Errorf("load %s: %w", column, err)
	}
	return accountFrom(b), nil
}

func (t *pgTx) setMeta(ctx context.Context, column string, value any) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE ledger_meta SET `+column+` = $1 WHERE id = 1`, value); err != nil {
		return fmt.Errorf("save %s: %w", column, err)
	}
	return nil
}

func (t *pgTx) Supervisor(ctx context.Context) (domain.Account, error) {
	return t.metaAccount(ctx, "supervisor")
}

func (t *pgTx) SetSupervisor(ctx context.Context, account domain.Account) error {
	return t.setMeta(ctx, "supervisor", accountBytes(account))
}

func (t *pgTx) PendingSupervisor(ctx context.Context) (domain.Account, error) {
	return t.metaAccount(ctx, "pending_supervisor")
}

func (t *pgTx) SetPendingSupervisor(ctx context.Context, account domain.Account) error {
	return t.setMeta(ctx, "pending_supervisor", accountBytes(account))
}

func (t *pgTx) IsBanned(ctx context.Context, account domain.Account) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM banned_accounts WHERE account = $1)`,
		accountBytes(account)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return exists, nil
}

func (t *pgTx) SetBanned(ctx context.Context, account domain.Account, banned bool) error {
	var err error
	if banned {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO banned_accounts (account, banned_at) VALUES ($1, $2)
			ON CONFLICT (account) DO NOTHING
		`, accountBytes(account), t.clock())
	} else {
		_, err = t.tx.ExecContext(ctx, `DELETE FROM banned_accounts WHERE account = $1`, accountBytes(account))
	}
	if err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	return nil
}

func (t *pgTx) Paused(ctx context.Context) (bool, error) {
	var paused bool
	if err := t.tx.QueryRowContext(ctx, `SELECT paused FROM ledger_meta WHERE id = 1`).Scan(&paused); err != nil {
		return false, fmt.Errorf("load paused: %w", err)
	}
	return paused, nil
}

func (t *pgTx) SetPaused(ctx context.Context, paused bool) error {
	return t.setMeta(ctx, "paused", paused)
}

func (t *pgTx) Balance(ctx context.Context, account domain.Account) (*domain.Amount, error) {
	var s string
	err := t.tx.QueryRowContext(ctx, `SELECT amount::text FROM balances WHERE account = $1`, accountBytes(account)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAmount(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return amountFrom(s)
}

func (t *pgTx) SetBalance(ctx context.Context, account domain.Account, amount *domain.Amount) error {
	var err error
	if amount == nil || amount.IsZero() {
		_, err = t.tx.ExecContext(ctx, `DELETE FROM balances WHERE account = $1`, accountBytes(account))
	} else {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO balances (account, amount) VALUES ($1, $2::numeric)
			ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount
		`, accountBytes(account), amount.Dec())
	}
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

func (t *pgTx) Balances(ctx context.Context) (map[domain.Account]*domain.Amount, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT account, amount::text FROM balances`)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Account]*domain.Amount)
	for rows.Next() {
		var (
			b []byte
			s string
		)
		if err := rows.Scan(&b, &s); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		a, err := amountFrom(s)
		if err != nil {
			return nil, err
		}
		out[accountFrom(b)] = a
	}
	return out, rows.Err()
}

func (t *pgTx) Allowance(ctx context.Context, owner, spender domain.Account) (*domain.Amount, error) {
	var s string
	err := t.tx.QueryRowContext(ctx, `SELECT amount::text FROM allowances WHERE owner = $1 AND spender = $2`,
		accountBytes(owner), accountBytes(spender)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAmount(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load allowance: %w", err)
	}
	return amountFrom(s)
}

func (t *pgTx) SetAllowance(ctx context.Context, owner, spender domain.Account, amount *domain.Amount) error {
	var err error
	if amount == nil || amount.IsZero() {
		_, err = t.tx.ExecContext(ctx, `DELETE FROM allowances WHERE owner = $1 AND spender = $2`,
			accountBytes(owner), accountBytes(spender))
	} else {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO allowances (owner, spender, amount) VALUES ($1, $2, $3::numeric)
			ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount
		`, accountBytes(owner), accountBytes(spender), amount.Dec())
	}
	if err != nil {
		return fmt.Errorf("save allowance: %w", err)
	}
	return nil
}

func (t *pgTx) TotalSupply(ctx context.Context) (*domain.Amount, error) {
	var s string
	if err := t.tx.QueryRowContext(ctx, `SELECT total_supply::text FROM ledger_meta WHERE id = 1`).Scan(&s); err != nil {
		return nil, fmt.Errorf("load total supply: %w", err)
	}
	return amountFrom(s)
}

func (t *pgTx) SetTotalSupply(ctx context.Context, amount *domain.Amount) error {
	if amount == nil {
		amount = domain.ZeroAmount()
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE ledger_meta SET total_supply = $1::numeric WHERE id = 1`, amount.Dec()); err != nil {
		return fmt.Errorf("save total supply: %w", err)
	}
	return nil
}

func (t *pgTx) Implementation(ctx context.Context) (state.Implementation, error) {
	var (
		impl      state.Implementation
		version   int64
		updatedAt sql.NullTime
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT impl_name, impl_version, impl_reference, impl_updated_at FROM ledger_meta WHERE id = 1
	`).Scan(&impl.Name, &version, &impl.Reference, &updatedAt)
	if err != nil {
		return state.Implementation{}, fmt.Errorf("load implementation: %w", err)
	}
	impl.Version = uint64(version)
	if updatedAt.Valid {
		impl.UpdatedAt = updatedAt.Time
	}
	return impl, nil
}

func (t *pgTx) SetImplementation(ctx context.Context, impl state.Implementation) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE ledger_meta SET impl_name = $1, impl_version = $2, impl_reference = $3, impl_updated_at = $4
		WHERE id = 1
	`, impl.Name, int64(impl.Version), impl.Reference, impl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save implementation: %w", err)
	}
	return nil
}

func (t *pgTx) BridgeConfig(ctx context.Context) (state.BridgeConfig, bool, error) {
	var (
		cfg           state.BridgeConfig
		chain         int64
		shared, local int16
		delegate      []byte
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT local_chain, endpoint, shared_decimals, local_decimals, delegate FROM bridge_config WHERE id = 1
	`).Scan(&chain, &cfg.Endpoint, &shared, &local, &delegate)
	if errors.Is(err, sql.ErrNoRows) {
		return state.BridgeConfig{}, false, nil
	}
	if err != nil {
		return state.BridgeConfig{}, false, fmt.Errorf("load bridge config: %w", err)
	}
	cfg.LocalChain = domain.ChainID(chain)
	cfg.SharedDecimals = uint8(shared)
	cfg.LocalDecimals = uint8(local)
	cfg.Delegate = accountFrom(delegate)
	return cfg, true, nil
}

func (t *pgTx) SetBridgeConfig(ctx context.Context, cfg state.BridgeConfig) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bridge_config (id, local_chain, endpoint, shared_decimals, local_decimals, delegate)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			local_chain = EXCLUDED.local_chain,
			endpoint = EXCLUDED.endpoint,
			shared_decimals = EXCLUDED.shared_decimals,
			local_decimals = EXCLUDED.local_decimals,
			delegate = EXCLUDED.delegate
	`, int64(cfg.LocalChain), cfg.Endpoint, int16(cfg.SharedDecimals), int16(cfg.LocalDecimals), accountBytes(cfg.Delegate))
	if err != nil {
		return fmt.Errorf("save bridge config: %w", err)
	}
	return nil
}

func (t *pgTx) Peer(ctx context.Context, chain domain.ChainID) (domain.Account, bool, error) {
	var b []byte
	err := t.tx.QueryRowContext(ctx, `SELECT peer FROM bridge_peers WHERE chain = $1`, int64(chain)).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("load peer: %w", err)
	}
	return accountFrom(b), true, nil
}

func (t *pgTx) SetPeer(ctx context.Context, chain domain.ChainID, peer domain.Account) error {
	var err error
	if domain.IsNull(peer) {
		_, err = t.tx.ExecContext(ctx, `DELETE FROM bridge_peers WHERE chain = $1`, int64(chain))
	} else {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO bridge_peers (chain, peer) VALUES ($1, $2)
			ON CONFLICT (chain) DO UPDATE SET peer = EXCLUDED.peer
		`, int64(chain), accountBytes(peer))
	}
	if err != nil {
		return fmt.Errorf("save peer: %w", err)
	}
	return nil
}

func (t *pgTx) MarkReceived(ctx context.Context, guid uuid.UUID, src domain.ChainID) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bridge_received (guid, src_chain, received_at) VALUES ($1, $2, $3)
		ON CONFLICT (guid) DO NOTHING
	`, guid, int64(src), t.clock())
	if err != nil {
		return fmt.Errorf("record received message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record received message: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (t *pgTx) EnqueueOutbound(ctx context.Context, entry state.OutboxEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bridge_outbox (id, guid, dst_chain, envelope, created_at, attempts)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, entry.ID, entry.GUID, int64(entry.Dst), entry.Envelope, entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("enqueue outbound: %w", err)
	}
	t.outboxDirty = true
	return nil
}

func (t *pgTx) Emit(_ context.Context, event audit.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.clock()
	}
	t.events = append(t.events, event)
}

func (t *pgTx) Events() []audit.Event {
	return append([]audit.Event(nil), t.events...)
}

func (t *pgTx) flushEvents(ctx context.Context, events *auditpostgres.Store) error {
	ctx = txcontext.WithTx(ctx, t.tx)
	for _, e := range t.events {
		if err := events.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
