// Package bridge moves value between independently operated ledger instances.
//
// A send burns locally and enqueues one outbound message in the same
// transaction; a relay later hands committed messages to the Endpoint. A
// receive is a separate transaction on the remote instance, triggered by the
// Endpoint's inbound callback, and mints the rescaled amount. The two halves
// are never atomic together; redelivered messages are dropped by GUID.
//
// Amounts cross the wire in shared decimals. The local-to-shared rate is
// 10^(local - shared); a send whose amount is not a multiple of the rate fails
// PrecisionLoss rather than silently dropping dust.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"mintgate/internal/guard"
	"mintgate/internal/ledger"
	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/requestcontext"
)

// Store is the slice of ledger state the bridge reads and writes.
type Store interface {
	ledger.Store
	Supervisor(ctx context.Context) (domain.Account, error)
	Metadata(ctx context.Context) (state.Metadata, error)
	BridgeConfig(ctx context.Context) (state.BridgeConfig, bool, error)
	SetBridgeConfig(ctx context.Context, cfg state.BridgeConfig) error
	Peer(ctx context.Context, chain domain.ChainID) (domain.Account, bool, error)
	SetPeer(ctx context.Context, chain domain.ChainID, peer domain.Account) error
	MarkReceived(ctx context.Context, guid uuid.UUID, src domain.ChainID) error
	EnqueueOutbound(ctx context.Context, entry state.OutboxEntry) error
}

// Config is supplied once by initializeBridge.
type Config struct {
	LocalChain     domain.ChainID
	Endpoint       string
	SharedDecimals uint8
	// Delegate defaults to the supervisor when null.
	Delegate domain.Account
}

type Bridge struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

type Option func(*Bridge)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

func New(l *ledger.Ledger, opts ...Option) *Bridge {
	b := &Bridge{ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func internal(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// IsAuthorizedOperator reports whether account is the supervisor or holds the
// upgrade role.
func (b *Bridge) IsAuthorizedOperator(ctx context.Context, st Store, account domain.Account) (bool, error) {
	if domain.IsNull(account) {
		return false, nil
	}
	supervisor, err := st.Supervisor(ctx)
	if err != nil {
		return false, internal(err, "failed to read supervisor")
	}
	if account == supervisor {
		return true, nil
	}
	ok, err := st.HasRole(ctx, domain.UpgradeAdminRole, account)
	if err != nil {
		return false, internal(err, "failed to read role membership")
	}
	return ok, nil
}

func (b *Bridge) requireOperator(ctx context.Context, st Store, caller domain.Account) error {
	ok, err := b.IsAuthorizedOperator(ctx, st, caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized operator")
	}
	return nil
}

// Config returns the bridge configuration, failing InvalidInitialization
// before initializeBridge has run.
func (b *Bridge) Config(ctx context.Context, st Store) (state.BridgeConfig, error) {
	cfg, ok, err := st.BridgeConfig(ctx)
	if err != nil {
		return state.BridgeConfig{}, internal(err, "failed to read bridge config")
	}
	if !ok {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInitialization, "bridge is not initialized")
	}
	return cfg, nil
}

// Initialize attaches the cross-network extension. It runs once.
func (b *Bridge) Initialize(ctx context.Context, st Store, caller domain.Account, cfg Config) (state.BridgeConfig, error) {
	if err := b.requireOperator(ctx, st, caller); err != nil {
		return state.BridgeConfig{}, err
	}
	if _, ok, err := st.BridgeConfig(ctx); err != nil {
		return state.BridgeConfig{}, internal(err, "failed to read bridge config")
	} else if ok {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInitialization, "bridge is already initialized")
	}
	if cfg.LocalChain == 0 {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInput, "local chain id is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInput, "endpoint reference is required")
	}
	meta, err := st.Metadata(ctx)
	if err != nil {
		return state.BridgeConfig{}, internal(err, "failed to read ledger metadata")
	}
	if cfg.SharedDecimals > meta.Decimals {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInput, "shared decimals exceed local decimals")
	}
	if _, overflow := conversionRate(meta.Decimals, cfg.SharedDecimals); overflow {
		return state.BridgeConfig{}, dErrors.New(dErrors.CodeInvalidInput, "decimal conversion rate overflows")
	}
	delegate := cfg.Delegate
	if domain.IsNull(delegate) {
		if delegate, err = st.Supervisor(ctx); err != nil {
			return state.BridgeConfig{}, internal(err, "failed to read supervisor")
		}
	}
	stored := state.BridgeConfig{
		LocalChain:     cfg.LocalChain,
		Endpoint:       endpoint,
		SharedDecimals: cfg.SharedDecimals,
		LocalDecimals:  meta.Decimals,
		Delegate:       delegate,
	}
	if err := st.SetBridgeConfig(ctx, stored); err != nil {
		return state.BridgeConfig{}, internal(err, "failed to record bridge config")
	}
	st.Emit(ctx, audit.Event{
		Name:    audit.EventBridgeInitialized,
		Caller:  caller,
		Account: delegate,
		Chain:   cfg.LocalChain,
		Detail:  endpoint,
	})
	return stored, nil
}

// SetDelegate replaces the Endpoint-facing delegate. It is not resynchronized
// on supervisor handover; the new supervisor calls it explicitly.
func (b *Bridge) SetDelegate(ctx context.Context, st Store, caller, delegate domain.Account) (state.BridgeConfig, error) {
	if err := guard.All(ctx,
		func(ctx context.Context) error { return b.requireOperator(ctx, st, caller) },
		guard.NotNull(delegate, "delegate"),
	); err != nil {
		return state.BridgeConfig{}, err
	}
	cfg, err := b.Config(ctx, st)
	if err != nil {
		return state.BridgeConfig{}, err
	}
	cfg.Delegate = delegate
	if err := st.SetBridgeConfig(ctx, cfg); err != nil {
		return state.BridgeConfig{}, internal(err, "failed to record delegate")
	}
	st.Emit(ctx, audit.Event{
		Name:    audit.EventDelegateSet,
		Caller:  caller,
		Account: delegate,
		Chain:   cfg.LocalChain,
	})
	return cfg, nil
}

// SetPeer records the remote ledger account trusted for chain. A null peer
// removes it.
func (b *Bridge) SetPeer(ctx context.Context, st Store, caller domain.Account, chain domain.ChainID, peer domain.Account) error {
	if err := b.requireOperator(ctx, st, caller); err != nil {
		return err
	}
	cfg, err := b.Config(ctx, st)
	if err != nil {
		return err
	}
	if chain == 0 || chain == cfg.LocalChain {
		return dErrors.New(dErrors.CodeInvalidInput, "peer chain must be a remote chain id")
	}
	if err := st.SetPeer(ctx, chain, peer); err != nil {
		return internal(err, "failed to record peer")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventPeerSet,
		Caller:       caller,
		Counterparty: peer,
		Chain:        chain,
	})
	return nil
}

// Peer returns the trusted remote account for chain.
func (b *Bridge) Peer(ctx context.Context, st Store, chain domain.ChainID) (domain.Account, bool, error) {
	peer, ok, err := st.Peer(ctx, chain)
	if err != nil {
		return domain.NullAccount, false, internal(err, "failed to read peer")
	}
	return peer, ok, nil
}

// DecimalConversionRate returns 10^(local - shared).
func (b *Bridge) DecimalConversionRate(ctx context.Context, st Store) (*domain.Amount, error) {
	cfg, err := b.Config(ctx, st)
	if err != nil {
		return nil, err
	}
	rate, _ := conversionRate(cfg.LocalDecimals, cfg.SharedDecimals)
	return rate, nil
}

// Token is the ledger's own account; the bridge moves the ledger's asset, not
// a wrapped one.
func (b *Bridge) Token(ctx context.Context, st Store) (domain.Account, error) {
	meta, err := st.Metadata(ctx)
	if err != nil {
		return domain.NullAccount, internal(err, "failed to read ledger metadata")
	}
	return meta.Self, nil
}

// ApprovalRequired is always false: send burns the caller's own balance.
func (b *Bridge) ApprovalRequired() bool {
	return false
}

// Send burns amount from the caller and enqueues a message minting the same
// value to `to` on dst.
//
// Guard order: pause, zero value, null recipient, sender ban, peer, precision,
// balance.
func (b *Bridge) Send(ctx context.Context, st Store, caller domain.Account, dst domain.ChainID, to domain.Account, amount *domain.Amount) (Message, error) {
	if err := guard.All(ctx,
		guard.WhenNotPaused(st),
		guard.NonZero(amount),
		guard.NotNull(caller, "sender"),
		guard.NotNull(to, "recipient"),
		guard.NotBanned(st, caller),
	); err != nil {
		return Message{}, err
	}
	cfg, err := b.Config(ctx, st)
	if err != nil {
		return Message{}, err
	}
	if _, ok, err := b.Peer(ctx, st, dst); err != nil {
		return Message{}, err
	} else if !ok {
		return Message{}, dErrors.New(dErrors.CodeNoPeer, "no peer configured for destination chain "+dst.String())
	}
	shared, err := toShared(amount, cfg)
	if err != nil {
		return Message{}, err
	}
	if err := b.ledger.Debit(ctx, st, caller, caller, amount); err != nil {
		return Message{}, err
	}

	meta, err := st.Metadata(ctx)
	if err != nil {
		return Message{}, internal(err, "failed to read ledger metadata")
	}
	env := Envelope{
		GUID:    uuid.New(),
		Src:     cfg.LocalChain,
		Dst:     dst,
		Sender:  meta.Self,
		Payload: Payload{To: to, SharedAmount: shared}.Encode(),
	}
	raw, err := env.Marshal()
	if err != nil {
		return Message{}, err
	}
	if err := st.EnqueueOutbound(ctx, state.OutboxEntry{
		ID:        uuid.New(),
		GUID:      env.GUID,
		Dst:       dst,
		Envelope:  raw,
		CreatedAt: requestcontext.Now(ctx),
	}); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Message{}, dErrors.Wrap(err, dErrors.CodeConflict, "duplicate outbound message")
		}
		return Message{}, internal(err, "failed to enqueue outbound message")
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventBridgeSent,
		Caller:       caller,
		Account:      caller,
		Counterparty: to,
		Amount:       new(domain.Amount).Set(amount),
		Chain:        dst,
		GUID:         env.GUID.String(),
	})
	return Message{
		GUID:         env.GUID,
		Dst:          dst,
		To:           to,
		Amount:       new(domain.Amount).Set(amount),
		SharedAmount: shared,
	}, nil
}

// Receive applies an inbound envelope. It returns applied=false when the GUID
// was already processed; a duplicate is not an error.
func (b *Bridge) Receive(ctx context.Context, st Store, env Envelope) (applied bool, err error) {
	if err := guard.WhenNotPaused(st)(ctx); err != nil {
		return false, err
	}
	cfg, err := b.Config(ctx, st)
	if err != nil {
		return false, err
	}
	if env.Dst != cfg.LocalChain {
		return false, dErrors.New(dErrors.CodeInvalidInput, "message is addressed to chain "+env.Dst.String())
	}
	peer, ok, err := b.Peer(ctx, st, env.Src)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, dErrors.New(dErrors.CodeNoPeer, "no peer configured for source chain "+env.Src.String())
	}
	if peer != env.Sender {
		return false, dErrors.New(dErrors.CodeUnauthorized, "message origin is not the configured peer")
	}
	payload, err := DecodePayload(env.Payload)
	if err != nil {
		return false, err
	}
	if err := st.MarkReceived(ctx, env.GUID, env.Src); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			b.logger.InfoContext(ctx, "duplicate bridge message dropped",
				"guid", env.GUID.String(),
				"src", env.Src.String(),
			)
			return false, nil
		}
		return false, internal(err, "failed to record inbound message")
	}
	amount, err := toLocal(payload.SharedAmount, cfg)
	if err != nil {
		return false, err
	}
	if err := guard.All(ctx,
		guard.NotNull(payload.To, "recipient"),
		guard.NotBanned(st, payload.To),
	); err != nil {
		return false, err
	}
	if err := b.ledger.Credit(ctx, st, env.Sender, payload.To, amount); err != nil {
		return false, err
	}
	st.Emit(ctx, audit.Event{
		Name:         audit.EventBridgeReceived,
		Caller:       env.Sender,
		Account:      payload.To,
		Counterparty: env.Sender,
		Amount:       amount,
		Chain:        env.Src,
		GUID:         env.GUID.String(),
	})
	return true, nil
}
