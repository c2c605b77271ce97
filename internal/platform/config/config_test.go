package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/pkg/domain"
	"mintgate/pkg/testutil"
)

type envTestConfig struct {
	Port int `env:"MINTGATE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 123, cfg.Port)
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("MINTGATE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults boot a loopback instance", func(t *testing.T) {
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, EndpointLoopback, cfg.Endpoint)
		assert.Equal(t, 5*time.Second, cfg.TxTimeout)
		assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 64, cfg.Relay.BatchSize)
	})

	t.Run("kafka endpoint needs redis", func(t *testing.T) {
		t.Setenv("MINTGATE_ENDPOINT", EndpointKafka)
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_URL")

		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("broker list is cleaned", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", " k1:9092,,k2:9092, k1:9092 ")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		t.Setenv("MINTGATE_ENDPOINT", "carrier-pigeon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}

const genesisYAML = `
supervisor: "0x5000000000000000000000000000000000000005"
self: "0x7e57000000000000000000000000000000007e57"
name: Mint Gate USD
symbol: MGUSD
decimals: 18
grants:
  - role: MINTER_ROLE
    account: "0x1000000000000000000000000000000000000001"
  - role: PAUSER_ROLE
    account: "0x1200000000000000000000000000000000000012"
bridge:
  local_chain: 30101
  endpoint: kafka
  shared_decimals: 6
  peers:
    30102: "0x7e570000000000000000000000000000000000b0"
`

func TestParseGenesis(t *testing.T) {
	g, err := ParseGenesis(strings.NewReader(genesisYAML))
	require.NoError(t, err)

	assert.Equal(t, testutil.Supervisor, g.Supervisor)
	assert.Equal(t, testutil.LedgerSelf, g.Self)
	assert.Equal(t, "MGUSD", g.Symbol)
	assert.Equal(t, uint8(18), g.Decimals)
	require.Len(t, g.Grants, 2)
	assert.Equal(t, domain.MinterRole, g.Grants[0].Role)
	assert.Equal(t, testutil.Minter, g.Grants[0].Account)

	require.NotNil(t, g.Bridge)
	assert.Equal(t, domain.ChainID(30101), g.Bridge.LocalChain)
	assert.Equal(t, uint8(6), g.Bridge.SharedDecimals)
	assert.True(t, domain.IsNull(g.Bridge.Delegate), "delegate defaults later to the supervisor")
	assert.Equal(t, domain.MustParseAccount("0x7e570000000000000000000000000000000000b0"), g.Bridge.Peers[30102])
}

func TestParseGenesisRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad supervisor", `supervisor: "0x12"
self: "0x7e57000000000000000000000000000000007e57"`},
		{"unknown role", `supervisor: "0x5000000000000000000000000000000000000005"
self: "0x7e57000000000000000000000000000000007e57"
grants:
  - role: KING_ROLE
    account: "0x1000000000000000000000000000000000000001"`},
		{"unknown key", `supervisor: "0x5000000000000000000000000000000000000005"
self: "0x7e57000000000000000000000000000000007e57"
granst: []`},
		{"bridge without chain", `supervisor: "0x5000000000000000000000000000000000000005"
self: "0x7e57000000000000000000000000000000007e57"
bridge:
  shared_decimals: 6`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGenesis(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}
