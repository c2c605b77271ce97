package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "mintgate/pkg/domain-errors"
)

// Account is an opaque 20-byte identity. The zero value is the null identity,
// which can never hold a role, a balance, or appear as a transfer recipient.
type Account = common.Address

// NullAccount is the null identity used as the source of mints and the
// destination of burns.
var NullAccount Account

// ParseAccount constructs an Account from external hex input ("0x" prefix
// optional).
//
// Errors: returns CodeInvalidInput when the value is empty or not a 20-byte
// hex string. The null identity parses successfully; callers that must reject
// it check IsNull.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "account cannot be empty")
	}
	if !common.IsHexAddress(s) {
		return Account{}, dErrors.New(dErrors.CodeInvalidInput, "invalid account format")
	}
	return common.HexToAddress(s), nil
}

// MustParseAccount is ParseAccount for constants and tests.
func MustParseAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsNull reports whether a is the null identity.
func IsNull(a Account) bool {
	return a == NullAccount
}
