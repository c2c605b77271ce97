// Package node composes one ledger instance: the role registry, blacklist,
// pause switch, ledger, upgrade gate and bridge, each operation running as one
// serialized transaction through the executor.
//
// Components are stateless and share the transaction handed to them, so a
// role check and the mutation it guards always commit together.
package node

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mintgate/internal/access"
	"mintgate/internal/blacklist"
	"mintgate/internal/bridge"
	"mintgate/internal/executor"
	"mintgate/internal/ledger"
	"mintgate/internal/pause"
	"mintgate/internal/state"
	"mintgate/internal/upgrade"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

// ImplementationName is recorded by Initialize as version 1.
const ImplementationName = "mintgate"

// Genesis describes a fresh ledger.
type Genesis struct {
	Supervisor domain.Account
	Self       domain.Account
	Name       string
	Symbol     string
	Decimals   uint8
}

type Node struct {
	exec      *executor.Executor
	registry  *access.Registry
	blacklist *blacklist.Guard
	pause     *pause.Switch
	ledger    *ledger.Ledger
	upgrade   *upgrade.Gate
	bridge    *bridge.Bridge
	endpoint  bridge.Endpoint
	logger    *slog.Logger
}

type Option func(*Node)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithEndpoint sets the collaborator that delegate changes are registered
// on. Without one, delegate changes are recorded in state only.
func WithEndpoint(e bridge.Endpoint) Option {
	return func(n *Node) {
		n.endpoint = e
	}
}

func New(exec *executor.Executor, opts ...Option) (*Node, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	n := &Node{exec: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	l := ledger.New()
	n.registry = access.New(access.WithLogger(n.logger))
	n.blacklist = blacklist.New(blacklist.WithLogger(n.logger))
	n.pause = pause.New()
	n.ledger = l
	n.upgrade = upgrade.New()
	n.bridge = bridge.New(l, bridge.WithLogger(n.logger))
	return n, nil
}

// run executes a state-changing operation on behalf of caller.
func (n *Node) run(ctx context.Context, op string, caller domain.Account, fn func(ctx context.Context, tx state.Tx) error) error {
	ctx = requestcontext.WithCaller(ctx, caller)
	return n.exec.Execute(ctx, op, func(tx state.Tx) error {
		return fn(ctx, tx)
	})
}

// query runs fn against a read-only view and returns its result.
func query[T any](ctx context.Context, n *Node, op string, fn func(ctx context.Context, tx state.Tx) (T, error)) (T, error) {
	var out T
	err := n.exec.Query(ctx, op, func(tx state.Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func orZero(a *domain.Amount) *domain.Amount {
	if a == nil {
		return domain.ZeroAmount()
	}
	return a
}

// Initialize installs the supervisor, the ledger's own account and its
// metadata. It fails InvalidInitialization on a second call.
func (n *Node) Initialize(ctx context.Context, g Genesis) error {
	return n.run(ctx, "initialize", g.Supervisor, func(ctx context.Context, tx state.Tx) error {
		if domain.IsNull(g.Supervisor) {
			return dErrors.New(dErrors.CodeZeroAddress, "supervisor cannot be the null account")
		}
		if domain.IsNull(g.Self) {
			return dErrors.New(dErrors.CodeZeroAddress, "ledger account cannot be the null account")
		}
		if g.Supervisor == g.Self {
			return dErrors.New(dErrors.CodeInvalidInput, "supervisor cannot be the ledger account")
		}
		meta, err := tx.Metadata(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger metadata")
		}
		if meta.Initialized {
			return dErrors.New(dErrors.CodeInvalidInitialization, "ledger is already initialized")
		}
		if err := tx.SetMetadata(ctx, state.Metadata{
			Initialized: true,
			Self:        g.Self,
			Name:        strings.TrimSpace(g.Name),
			Symbol:      strings.TrimSpace(g.Symbol),
			Decimals:    g.Decimals,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record ledger metadata")
		}
		if err := tx.SetImplementation(ctx, state.Implementation{
			Name:      ImplementationName,
			Version:   1,
			UpdatedAt: requestcontext.Now(ctx),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record implementation")
		}
		if err := n.registry.Bootstrap(ctx, tx, g.Supervisor); err != nil {
			return err
		}
		tx.Emit(ctx, audit.Event{
			Name:    audit.EventInitialized,
			Caller:  g.Supervisor,
			Account: g.Self,
			Detail:  strings.TrimSpace(g.Name) + " (" + strings.TrimSpace(g.Symbol) + ")",
		})
		return nil
	})
}

// Initialized reports whether Initialize has run.
func (n *Node) Initialized(ctx context.Context) (bool, error) {
	meta, err := n.Metadata(ctx)
	if err != nil {
		return false, err
	}
	return meta.Initialized, nil
}

func (n *Node) Metadata(ctx context.Context) (state.Metadata, error) {
	return query(ctx, n, "metadata", func(ctx context.Context, tx state.Tx) (state.Metadata, error) {
		meta, err := tx.Metadata(ctx)
		if err != nil {
			return state.Metadata{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger metadata")
		}
		return meta, nil
	})
}

func (n *Node) Name(ctx context.Context) (string, error) {
	meta, err := n.Metadata(ctx)
	return meta.Name, err
}

func (n *Node) Symbol(ctx context.Context) (string, error) {
	meta, err := n.Metadata(ctx)
	return meta.Symbol, err
}

func (n *Node) Decimals(ctx context.Context) (uint8, error) {
	meta, err := n.Metadata(ctx)
	return meta.Decimals, err
}

// CheckConservation verifies that balances sum to the total supply.
func (n *Node) CheckConservation(ctx context.Context) error {
	return n.exec.Query(ctx, "check_conservation", func(tx state.Tx) error {
		return n.ledger.CheckConservation(ctx, tx)
	})
}
