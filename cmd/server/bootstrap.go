package main

import (
	"context"
	"fmt"
	"log/slog"

	"mintgate/internal/bridge"
	"mintgate/internal/node"
	"mintgate/internal/platform/config"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/requestcontext"
)

// defaultChain is the local chain id when no bridge is configured.
const defaultChain domain.ChainID = 1

// bootstrap applies the genesis document. Grants and peers are only applied
// by the run that performs the initialization; later restarts leave the
// recorded state alone and only re-register the delegate on the endpoint.
func bootstrap(ctx context.Context, n *node.Node, g config.Genesis, log *slog.Logger) error {
	ctx = requestcontext.WithSource(ctx, "genesis")

	fresh, err := initResult(n.Initialize(ctx, node.Genesis{
		Supervisor: g.Supervisor,
		Self:       g.Self,
		Name:       g.Name,
		Symbol:     g.Symbol,
		Decimals:   g.Decimals,
	}))
	if err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}
	if fresh {
		for _, grant := range g.Grants {
			if err := n.GrantRole(ctx, g.Supervisor, grant.Role, grant.Account); err != nil {
				return fmt.Errorf("grant %s to %s: %w", grant.Role, grant.Account.Hex(), err)
			}
		}
		log.Info("ledger initialized", "symbol", g.Symbol, "supervisor", g.Supervisor.Hex(), "grants", len(g.Grants))
	}

	if g.Bridge == nil {
		return nil
	}
	fresh, err = initResult(n.InitializeBridge(ctx, g.Supervisor, bridge.Config{
		LocalChain:     g.Bridge.LocalChain,
		Endpoint:       g.Bridge.Endpoint,
		SharedDecimals: g.Bridge.SharedDecimals,
		Delegate:       g.Bridge.Delegate,
	}))
	if err != nil {
		return fmt.Errorf("initialize bridge: %w", err)
	}
	if fresh {
		for chain, peer := range g.Bridge.Peers {
			if err := n.SetPeer(ctx, g.Supervisor, chain, peer); err != nil {
				return fmt.Errorf("set peer for chain %s: %w", chain, err)
			}
		}
		log.Info("bridge initialized", "chain", g.Bridge.LocalChain.String(), "peers", len(g.Bridge.Peers))
	}
	if err := n.SyncDelegate(ctx); err != nil {
		log.Warn("delegate registration failed, retry with a restart or PUT /v1/bridge/delegate", "error", err)
	}
	return nil
}

// initResult treats a repeated initialization as success. A bridge
// initialization that committed but could not register its delegate still
// counts as fresh; SyncDelegate retries the registration.
func initResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case dErrors.HasCode(err, dErrors.CodeInvalidInitialization):
		return false, nil
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		return true, nil
	}
	return false, err
}
