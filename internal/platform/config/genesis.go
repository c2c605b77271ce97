package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"mintgate/pkg/domain"
)

// Genesis describes the ledger instance a process boots: its supervisor,
// metadata, initial role grants and optional bridge extension.
type Genesis struct {
	Supervisor domain.Account
	Self       domain.Account
	Name       string
	Symbol     string
	Decimals   uint8
	Grants     []Grant
	Bridge     *BridgeGenesis
}

type Grant struct {
	Role    domain.Role
	Account domain.Account
}

type BridgeGenesis struct {
	LocalChain     domain.ChainID
	Endpoint       string
	SharedDecimals uint8
	Delegate       domain.Account
	Peers          map[domain.ChainID]domain.Account
}

type genesisFile struct {
	Supervisor string `yaml:"supervisor"`
	Self       string `yaml:"self"`
	Name       string `yaml:"name"`
	Symbol     string `yaml:"symbol"`
	Decimals   uint8  `yaml:"decimals"`
	Grants     []struct {
		Role    string `yaml:"role"`
		Account string `yaml:"account"`
	} `yaml:"grants"`
	Bridge *struct {
		LocalChain     uint32            `yaml:"local_chain"`
		Endpoint       string            `yaml:"endpoint"`
		SharedDecimals uint8             `yaml:"shared_decimals"`
		Delegate       string            `yaml:"delegate"`
		Peers          map[uint32]string `yaml:"peers"`
	} `yaml:"bridge"`
}

// LoadGenesis reads a genesis file from disk.
func LoadGenesis(path string) (Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("open genesis: %w", err)
	}
	defer f.Close()
	return ParseGenesis(f)
}

// ParseGenesis decodes and validates a YAML genesis document. Unknown keys are
// rejected so a typo cannot silently drop a grant.
func ParseGenesis(r io.Reader) (Genesis, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var file genesisFile
	if err := dec.Decode(&file); err != nil {
		return Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}

	var g Genesis
	if g.Supervisor, err = domain.ParseAccount(file.Supervisor); err != nil {
		return Genesis{}, fmt.Errorf("genesis supervisor: %w", err)
	}
	if g.Self, err = domain.ParseAccount(file.Self); err != nil {
		return Genesis{}, fmt.Errorf("genesis self: %w", err)
	}
	g.Name, g.Symbol, g.Decimals = file.Name, file.Symbol, file.Decimals

	for i, grant := range file.Grants {
		role, err := domain.ParseRole(grant.Role)
		if err != nil {
			return Genesis{}, fmt.Errorf("genesis grant %d: %w", i, err)
		}
		account, err := domain.ParseAccount(grant.Account)
		if err != nil {
			return Genesis{}, fmt.Errorf("genesis grant %d: %w", i, err)
		}
		g.Grants = append(g.Grants, Grant{Role: role, Account: account})
	}

	if file.Bridge == nil {
		return g, nil
	}
	b := &BridgeGenesis{
		LocalChain:     domain.ChainID(file.Bridge.LocalChain),
		Endpoint:       file.Bridge.Endpoint,
		SharedDecimals: file.Bridge.SharedDecimals,
		Peers:          make(map[domain.ChainID]domain.Account, len(file.Bridge.Peers)),
	}
	if b.LocalChain == 0 {
		return Genesis{}, fmt.Errorf("genesis bridge: local_chain is required")
	}
	if file.Bridge.Delegate != "" {
		if b.Delegate, err = domain.ParseAccount(file.Bridge.Delegate); err != nil {
			return Genesis{}, fmt.Errorf("genesis bridge delegate: %w", err)
		}
	}
	for chain, peer := range file.Bridge.Peers {
		if chain == 0 {
			return Genesis{}, fmt.Errorf("genesis bridge: peer chain id cannot be 0")
		}
		account, err := domain.ParseAccount(peer)
		if err != nil {
			return Genesis{}, fmt.Errorf("genesis bridge peer %d: %w", chain, err)
		}
		b.Peers[domain.ChainID(chain)] = account
	}
	g.Bridge = b
	return g, nil
}
