package bridge

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// PayloadSize is the encoded size of a transfer payload: a 20-byte recipient
// followed by an 8-byte big-endian shared amount.
const PayloadSize = common.AddressLength + 8

// Payload is the value-carrying part of a bridge message.
type Payload struct {
	To           domain.Account
	SharedAmount uint64
}

// Encode returns the wire form of p.
func (p Payload) Encode() []byte {
	out := make([]byte, PayloadSize)
	copy(out, p.To.Bytes())
	binary.BigEndian.PutUint64(out[common.AddressLength:], p.SharedAmount)
	return out
}

// DecodePayload parses the wire form produced by Encode.
func DecodePayload(b []byte) (Payload, error) {
	if len(b) != PayloadSize {
		return Payload{}, dErrors.New(dErrors.CodeInvalidInput, "bridge payload must be 28 bytes")
	}
	return Payload{
		To:           common.BytesToAddress(b[:common.AddressLength]),
		SharedAmount: binary.BigEndian.Uint64(b[common.AddressLength:]),
	}, nil
}

// Envelope is the transport-level message exchanged through the Endpoint.
// Sender is the sending ledger's own account, matched against the receiving
// side's recorded peer for Src.
type Envelope struct {
	GUID    uuid.UUID      `json:"guid"`
	Src     domain.ChainID `json:"src"`
	Dst     domain.ChainID `json:"dst"`
	Sender  domain.Account `json:"sender"`
	Payload hexutil.Bytes  `json:"payload"`
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode bridge envelope")
	}
	return b, nil
}

// UnmarshalEnvelope decodes and validates a JSON envelope.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed bridge envelope")
	}
	if e.GUID == uuid.Nil {
		return Envelope{}, dErrors.New(dErrors.CodeInvalidInput, "bridge envelope is missing a guid")
	}
	if e.Src == 0 || e.Dst == 0 {
		return Envelope{}, dErrors.New(dErrors.CodeInvalidInput, "bridge envelope is missing a chain id")
	}
	if _, err := DecodePayload(e.Payload); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Message is the receipt of a committed send.
type Message struct {
	GUID         uuid.UUID
	Dst          domain.ChainID
	To           domain.Account
	Amount       *domain.Amount
	SharedAmount uint64
}
