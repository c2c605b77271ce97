package bridge

import (
	"context"

	"mintgate/pkg/domain"
)

// Endpoint transports envelopes between ledger instances and records who may
// reconfigure bridging for the local chain.
type Endpoint interface {
	Send(ctx context.Context, dst domain.ChainID, envelope []byte) error
	SetDelegate(ctx context.Context, chain domain.ChainID, delegate domain.Account) error
	Delegate(ctx context.Context, chain domain.ChainID) (domain.Account, error)
}

// Receiver is the inbound callback an Endpoint invokes for every message
// addressed to the local chain.
type Receiver interface {
	Receive(ctx context.Context, src domain.ChainID, envelope []byte) error
}
