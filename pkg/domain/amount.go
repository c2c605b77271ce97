package domain

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	dErrors "mintgate/pkg/domain-errors"
)

// Amount is a 256-bit unsigned token quantity in local decimals.
type Amount = uint256.Int

// Unlimited is the allowance sentinel: an allowance equal to it is never
// decremented by transferFrom.
func Unlimited() *Amount {
	return new(uint256.Int).SetAllOne()
}

// IsUnlimited reports whether a is the unlimited allowance sentinel.
func IsUnlimited(a *Amount) bool {
	return a != nil && a.Eq(Unlimited())
}

// ZeroAmount returns a fresh zero amount.
func ZeroAmount() *Amount {
	return new(uint256.Int)
}

// NewAmount returns an amount holding v.
func NewAmount(v uint64) *Amount {
	return uint256.NewInt(v)
}

// ParseAmount parses a base-10 amount, or "unlimited" for the allowance
// sentinel.
//
// Errors: returns CodeInvalidInput for empty, negative, non-numeric or
// overflowing input.
func ParseAmount(s string) (*Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be empty")
	}
	if strings.EqualFold(s, "unlimited") {
		return Unlimited(), nil
	}
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid amount")
	}
	return a, nil
}

// ChainID identifies a ledger instance on the bridge network.
type ChainID uint32

// ParseChainID parses a decimal chain id.
func ParseChainID(s string) (ChainID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid chain id")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "chain id cannot be zero")
	}
	return ChainID(v), nil
}

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}
