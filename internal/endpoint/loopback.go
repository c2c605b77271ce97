package endpoint

import (
	"context"
	"sync"

	"mintgate/internal/bridge"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Network connects in-process ledger instances by chain id. Delivery is
// synchronous: Send returns the remote receiver's error, so a message the
// remote side rejects stays in the sender's outbox.
type Network struct {
	mu        sync.RWMutex
	receivers map[domain.ChainID]bridge.Receiver
	delegates DelegateRegistry
}

func NewNetwork() *Network {
	return &Network{
		receivers: make(map[domain.ChainID]bridge.Receiver),
		delegates: NewMemoryDelegates(),
	}
}

// Attach routes envelopes addressed to chain to r.
func (n *Network) Attach(chain domain.ChainID, r bridge.Receiver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receivers[chain] = r
}

func (n *Network) Detach(chain domain.ChainID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.receivers, chain)
}

// Endpoint returns the endpoint used by the instance on local.
func (n *Network) Endpoint(local domain.ChainID) *Loopback {
	return &Loopback{network: n, local: local}
}

// Loopback is one instance's view of a Network.
type Loopback struct {
	network *Network
	local   domain.ChainID
}

func (l *Loopback) Send(ctx context.Context, dst domain.ChainID, envelope []byte) error {
	l.network.mu.RLock()
	r, ok := l.network.receivers[dst]
	l.network.mu.RUnlock()
	if !ok {
		return dErrors.New(dErrors.CodeUnavailable, "no ledger attached for chain "+dst.String())
	}
	return r.Receive(ctx, l.local, envelope)
}

func (l *Loopback) SetDelegate(ctx context.Context, chain domain.ChainID, delegate domain.Account) error {
	return l.network.delegates.SetDelegate(ctx, chain, delegate)
}

func (l *Loopback) Delegate(ctx context.Context, chain domain.ChainID) (domain.Account, error) {
	return l.network.delegates.Delegate(ctx, chain)
}
