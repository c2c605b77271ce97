package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/pkg/domain"
)

func TestPayload(t *testing.T) {
	alice := domain.MustParseAccount("0x00000000000000000000000000000000000a11ce")
	bob := domain.MustParseAccount("0x0000000000000000000000000000000000000b0b")

	t.Run("transfer keeps accounts and amount", func(t *testing.T) {
		in := Event{
			Name:         EventTransfer,
			Caller:       alice,
			Account:      alice,
			Counterparty: bob,
			Amount:       domain.NewAmount(42),
			RequestID:    "req-1",
		}
		raw, err := MarshalPayload(in)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "role")

		out := Event{Name: EventTransfer}
		require.NoError(t, UnmarshalPayload(raw, &out))
		assert.Equal(t, alice, out.Account)
		assert.Equal(t, bob, out.Counterparty)
		assert.Equal(t, uint64(42), out.Amount.Uint64())
		assert.Equal(t, "req-1", out.RequestID)
	})

	t.Run("supervisor role survives on role events", func(t *testing.T) {
		in := Event{
			Name:              EventRoleAdminChanged,
			Role:              domain.MinterRole,
			AdminRole:         domain.SupervisorRole,
			PreviousAdminRole: domain.SupervisorRole,
		}
		raw, err := MarshalPayload(in)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"admin_role"`)

		var out Event
		require.NoError(t, UnmarshalPayload(raw, &out))
		assert.Equal(t, domain.MinterRole, out.Role)
		assert.Equal(t, domain.SupervisorRole, out.AdminRole)
		assert.True(t, domain.IsNull(out.Caller))
		assert.Nil(t, out.Amount)
	})

	t.Run("bridge fields", func(t *testing.T) {
		in := Event{Name: EventBridgeSent, Chain: 30102, GUID: "abc", Account: alice}
		raw, err := MarshalPayload(in)
		require.NoError(t, err)

		var out Event
		require.NoError(t, UnmarshalPayload(raw, &out))
		assert.Equal(t, domain.ChainID(30102), out.Chain)
		assert.Equal(t, "abc", out.GUID)
	})

	t.Run("malformed account is rejected", func(t *testing.T) {
		var out Event
		err := UnmarshalPayload([]byte(`{"account":"nope"}`), &out)
		require.Error(t, err)
	})
}
