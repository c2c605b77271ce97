package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "mintgate/pkg/domain-errors"
)

// Role is an opaque 32-byte role identifier. Named roles are the keccak-256
// hash of their name so identifiers match across every ledger instance.
type Role [32]byte

// SupervisorRole is the top-level authority. Its admin is fixed to itself and
// it can only change hands through the supervisor handover.
var SupervisorRole Role

// Well-known operational roles.
var (
	MinterRole       = RoleFromName("MINTER_ROLE")
	BurnerRole       = RoleFromName("BURNER_ROLE")
	PauserRole       = RoleFromName("PAUSER_ROLE")
	BlacklisterRole  = RoleFromName("BLACKLISTER_ROLE")
	UpgradeAdminRole = RoleFromName("UPGRADE_ADMIN_ROLE")
)

var roleNames = map[Role]string{
	SupervisorRole:   "SUPERVISOR_ROLE",
	MinterRole:       "MINTER_ROLE",
	BurnerRole:       "BURNER_ROLE",
	PauserRole:       "PAUSER_ROLE",
	BlacklisterRole:  "BLACKLISTER_ROLE",
	UpgradeAdminRole: "UPGRADE_ADMIN_ROLE",
}

// RoleFromName derives a role identifier from its name.
func RoleFromName(name string) Role {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	var r Role
	copy(r[:], h.Sum(nil))
	return r
}

// ParseRole accepts either a well-known role name or a 32-byte hex identifier.
//
// Errors: returns CodeInvalidInput for empty input or malformed hex.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Role{}, dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	for r, name := range roleNames {
		if strings.EqualFold(name, s) {
			return r, nil
		}
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 64 {
		return Role{}, dErrors.New(dErrors.CodeInvalidInput, "role must be a known name or 32-byte hex")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return Role{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid role hex")
	}
	var r Role
	copy(r[:], b)
	return r, nil
}

// Hex returns the 0x-prefixed identifier.
func (r Role) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

// String returns the well-known name when there is one, otherwise the hex form.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return r.Hex()
}

// IsSupervisor reports whether r is the supervisor role.
func (r Role) IsSupervisor() bool {
	return r == SupervisorRole
}

// MarshalText encodes the role as hex so JSON and YAML stay readable.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

// UnmarshalText accepts the same forms as ParseRole.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
