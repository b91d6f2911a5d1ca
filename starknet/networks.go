// Package starknet defines the named networks a settlement client can attach to:
// the L1 chain, where its core contract lives, and the chain spec when it is
// fixed in advance.
package starknet

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/settlement"
)

// L1 chain identifiers.
const (
	MainNetworkID    uint64 = 1
	SepoliaNetworkID uint64 = 11155111
	FakeNetworkID    uint64 = 1337
)

// Network describes one deployment.
type Network struct {
	Name string
	L1   L1Rules

	// Spec is the expected chain spec. Nil means it is read from the contract.
	Spec *settlement.ChainSpec `json:",omitempty"`
}

// L1Rules locate the core contract on its settlement chain.
type L1Rules struct {
	ChainID      uint64
	CoreContract common.Address
	// DeployBlock is the first L1 block worth scanning for contract events.
	DeployBlock uint64
}

func MainNet() Network {
	return Network{
		Name: "main",
		L1: L1Rules{
			ChainID:      MainNetworkID,
			CoreContract: common.HexToAddress("0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4"),
			DeployBlock:  13617000,
		},
	}
}

func SepoliaNet() Network {
	return Network{
		Name: "sepolia",
		L1: L1Rules{
			ChainID:      SepoliaNetworkID,
			CoreContract: common.HexToAddress("0xE2Bb56ee936fd6433DC0F6e7e3b8365C906AA057"),
			DeployBlock:  5000000,
		},
	}
}

// FakeNet is the local sandbox network. Its spec is fixed so a fresh contract
// can be initialized without further input.
func FakeNet() Network {
	return Network{
		Name: "fake",
		L1: L1Rules{
			ChainID:      FakeNetworkID,
			CoreContract: common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"),
		},
		Spec: &settlement.ChainSpec{
			ProgramHash: felt.FromUint64(1),
			ConfigHash:  felt.FromUint64(1),
		},
	}
}

// NetworkByName resolves a preset.
func NetworkByName(name string) (Network, error) {
	switch name {
	case "main", "mainnet":
		return MainNet(), nil
	case "sepolia", "test", "testnet":
		return SepoliaNet(), nil
	case "fake", "fakenet", "":
		return FakeNet(), nil
	}
	return Network{}, fmt.Errorf("unknown network %q", name)
}

// Signer returns the transaction signer for the L1 chain.
func (n Network) Signer() types.Signer {
	return types.LatestSignerForChainID(new(big.Int).SetUint64(n.L1.ChainID))
}

// Copy returns a deep copy.
func (n Network) Copy() Network {
	cp := n
	if n.Spec != nil {
		spec := *n.Spec
		cp.Spec = &spec
	}
	return cp
}

func (n Network) String() string {
	b, _ := json.Marshal(&n)
	return string(b)
}
