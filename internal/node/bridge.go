package node

import (
	"context"

	"mintgate/internal/bridge"
	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/requestcontext"
)

// InitializeBridge attaches the cross-network extension and registers the
// delegate on the endpoint.
func (n *Node) InitializeBridge(ctx context.Context, caller domain.Account, cfg bridge.Config) error {
	var stored state.BridgeConfig
	err := n.run(ctx, "initialize_bridge", caller, func(ctx context.Context, tx state.Tx) error {
		c, err := n.bridge.Initialize(ctx, tx, caller, cfg)
		stored = c
		return err
	})
	if err != nil {
		return err
	}
	return n.registerDelegate(ctx, stored)
}

// SetDelegate records a new delegate and registers it on the endpoint.
func (n *Node) SetDelegate(ctx context.Context, caller, delegate domain.Account) error {
	var stored state.BridgeConfig
	err := n.run(ctx, "set_delegate", caller, func(ctx context.Context, tx state.Tx) error {
		c, err := n.bridge.SetDelegate(ctx, tx, caller, delegate)
		stored = c
		return err
	})
	if err != nil {
		return err
	}
	return n.registerDelegate(ctx, stored)
}

// SyncDelegate re-registers the recorded delegate on the endpoint, for use
// after a registration failure.
func (n *Node) SyncDelegate(ctx context.Context) error {
	cfg, err := n.BridgeConfig(ctx)
	if err != nil {
		return err
	}
	return n.registerDelegate(ctx, cfg)
}

// registerDelegate runs after commit: the endpoint is outside the ledger's
// transaction, so a failure here leaves the recorded delegate in place.
func (n *Node) registerDelegate(ctx context.Context, cfg state.BridgeConfig) error {
	if n.endpoint == nil {
		return nil
	}
	if err := n.endpoint.SetDelegate(ctx, cfg.LocalChain, cfg.Delegate); err != nil {
		n.logger.ErrorContext(ctx, "endpoint delegate registration failed",
			"chain", cfg.LocalChain.String(),
			"delegate", cfg.Delegate.Hex(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "delegate recorded but endpoint registration failed")
	}
	return nil
}

func (n *Node) SetPeer(ctx context.Context, caller domain.Account, chain domain.ChainID, peer domain.Account) error {
	return n.run(ctx, "set_peer", caller, func(ctx context.Context, tx state.Tx) error {
		return n.bridge.SetPeer(ctx, tx, caller, chain, peer)
	})
}

// Send burns amount from caller and commits the outbound message; the relay
// delivers it later.
func (n *Node) Send(ctx context.Context, caller domain.Account, dst domain.ChainID, to domain.Account, amount *domain.Amount) (bridge.Message, error) {
	var msg bridge.Message
	err := n.run(ctx, "bridge_send", caller, func(ctx context.Context, tx state.Tx) error {
		m, err := n.bridge.Send(ctx, tx, caller, dst, to, amount)
		msg = m
		return err
	})
	return msg, err
}

// Receive is the endpoint's inbound callback. A redelivered message is
// accepted without effect.
func (n *Node) Receive(ctx context.Context, src domain.ChainID, raw []byte) error {
	env, err := bridge.UnmarshalEnvelope(raw)
	if err != nil {
		return err
	}
	if env.Src != src {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope source does not match the delivering chain")
	}
	ctx = requestcontext.WithRequestID(ctx, env.GUID.String())
	return n.run(ctx, "bridge_receive", env.Sender, func(ctx context.Context, tx state.Tx) error {
		_, err := n.bridge.Receive(ctx, tx, env)
		return err
	})
}

func (n *Node) BridgeConfig(ctx context.Context) (state.BridgeConfig, error) {
	return query(ctx, n, "bridge_config", func(ctx context.Context, tx state.Tx) (state.BridgeConfig, error) {
		return n.bridge.Config(ctx, tx)
	})
}

// Delegate returns the delegate recorded in ledger state.
func (n *Node) Delegate(ctx context.Context) (domain.Account, error) {
	cfg, err := n.BridgeConfig(ctx)
	return cfg.Delegate, err
}

func (n *Node) Endpoint(ctx context.Context) (string, error) {
	cfg, err := n.BridgeConfig(ctx)
	return cfg.Endpoint, err
}

func (n *Node) SharedDecimals(ctx context.Context) (uint8, error) {
	cfg, err := n.BridgeConfig(ctx)
	return cfg.SharedDecimals, err
}

func (n *Node) DecimalConversionRate(ctx context.Context) (*domain.Amount, error) {
	return query(ctx, n, "decimal_conversion_rate", func(ctx context.Context, tx state.Tx) (*domain.Amount, error) {
		return n.bridge.DecimalConversionRate(ctx, tx)
	})
}

func (n *Node) IsAuthorizedOperator(ctx context.Context, account domain.Account) (bool, error) {
	return query(ctx, n, "is_authorized_operator", func(ctx context.Context, tx state.Tx) (bool, error) {
		return n.bridge.IsAuthorizedOperator(ctx, tx, account)
	})
}

func (n *Node) Peer(ctx context.Context, chain domain.ChainID) (domain.Account, error) {
	return query(ctx, n, "peer", func(ctx context.Context, tx state.Tx) (domain.Account, error) {
		peer, _, err := n.bridge.Peer(ctx, tx, chain)
		return peer, err
	})
}

// Token is the ledger's own account.
func (n *Node) Token(ctx context.Context) (domain.Account, error) {
	return query(ctx, n, "token", func(ctx context.Context, tx state.Tx) (domain.Account, error) {
		return n.bridge.Token(ctx, tx)
	})
}

func (n *Node) ApprovalRequired() bool {
	return n.bridge.ApprovalRequired()
}
