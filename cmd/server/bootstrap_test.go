package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/endpoint"
	"mintgate/internal/executor"
	"mintgate/internal/node"
	"mintgate/internal/platform/config"
	"mintgate/internal/state/memory"
	"mintgate/pkg/domain"
	"mintgate/pkg/testutil"
)

func newTestNode(t *testing.T, network *endpoint.Network, chain domain.ChainID) *node.Node {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec, err := executor.New(memory.New(), executor.WithLogger(logger))
	require.NoError(t, err)
	n, err := node.New(exec, node.WithLogger(logger), node.WithEndpoint(network.Endpoint(chain)))
	require.NoError(t, err)
	network.Attach(chain, n)
	return n
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	genesis := config.Genesis{
		Supervisor: testutil.Supervisor,
		Self:       testutil.LedgerSelf,
		Name:       "Mint Gate USD",
		Symbol:     "MGUSD",
		Decimals:   6,
		Grants:     []config.Grant{{Role: domain.MinterRole, Account: testutil.Minter}},
		Bridge: &config.BridgeGenesis{
			LocalChain:     30101,
			Endpoint:       "loopback",
			SharedDecimals: 6,
			Delegate:       testutil.Supervisor,
			Peers:          map[domain.ChainID]domain.Account{30102: testutil.Carol},
		},
	}

	testutil.Given(t, "a fresh ledger", func(t *testing.T) {
		network := endpoint.NewNetwork()
		n := newTestNode(t, network, 30101)

		testutil.When(t, "the genesis is applied", func(t *testing.T) {
			require.NoError(t, bootstrap(ctx, n, genesis, logger))

			testutil.Then(t, "metadata, grants, bridge and peers are recorded", func(t *testing.T) {
				symbol, err := n.Symbol(ctx)
				require.NoError(t, err)
				assert.Equal(t, "MGUSD", symbol)

				ok, err := n.HasRole(ctx, domain.MinterRole, testutil.Minter)
				require.NoError(t, err)
				assert.True(t, ok)

				peer, err := n.Peer(ctx, 30102)
				require.NoError(t, err)
				assert.Equal(t, testutil.Carol, peer)

				delegate, err := network.Endpoint(30101).Delegate(ctx, 30101)
				require.NoError(t, err)
				assert.Equal(t, testutil.Supervisor, delegate)
			})
		})

		testutil.When(t, "the process restarts after the minter was revoked", func(t *testing.T) {
			require.NoError(t, n.RevokeRole(ctx, testutil.Supervisor, domain.MinterRole, testutil.Minter))
			require.NoError(t, bootstrap(ctx, n, genesis, logger))

			testutil.Then(t, "recorded state is left alone", func(t *testing.T) {
				ok, err := n.HasRole(ctx, domain.MinterRole, testutil.Minter)
				require.NoError(t, err)
				assert.False(t, ok)
			})
		})
	})

	testutil.Given(t, "a genesis without a bridge", func(t *testing.T) {
		n := newTestNode(t, endpoint.NewNetwork(), defaultChain)
		g := genesis
		g.Bridge = nil

		testutil.Then(t, "the bridge stays uninitialized", func(t *testing.T) {
			require.NoError(t, bootstrap(ctx, n, g, logger))
			_, err := n.Endpoint(ctx)
			assert.Error(t, err)
		})
	})
}

func TestChains(t *testing.T) {
	g := config.Genesis{Bridge: &config.BridgeGenesis{
		LocalChain: 30101,
		Peers:      map[domain.ChainID]domain.Account{30102: testutil.Carol},
	}}
	assert.ElementsMatch(t, []domain.ChainID{30101, 30102}, chains(g, 30101))
	assert.Equal(t, []domain.ChainID{defaultChain}, chains(config.Genesis{}, defaultChain))
}

func TestLoadGenesisMissingFile(t *testing.T) {
	_, ok, err := loadGenesis(t.TempDir() + "/missing.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}
