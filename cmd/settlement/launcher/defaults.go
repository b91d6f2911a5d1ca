package launcher

import (
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/integration"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/starknet"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node    NodeConfig
	Network NetworkConfig
	Storage integration.PresetConfig
	Metrics MetricsConfig
}

type NodeConfig struct {
	DataDir string
	Logging logger.Config
}

// NetworkConfig locates the core contract and the chain spec it is initialized with.
type NetworkConfig struct {
	Name string

	// Endpoint is the L1 JSON-RPC URL. Empty settles against the local database.
	Endpoint string `toml:",omitempty"`
	KeyFile  string `toml:",omitempty"`
	Contract common.Address
	ChainID  uint64
	Timeout  time.Duration

	ProgramHash felt.Felt
	ConfigHash  felt.Felt
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

// DefaultConfig is the baseline before the config file and flags are applied.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			DataDir: filepath.Join(GuessHomeDir(), ".settlement"),
			Logging: logger.Config{
				Verbosity: 3,
				Format:    "text",
			},
		},
		Network: networkConfig(starknet.FakeNet()),
		Storage: integration.DefaultPreset(),
		Metrics: MetricsConfig{
			Addr: "127.0.0.1",
			Port: 6060,
		},
	}
}

func networkConfig(n starknet.Network) NetworkConfig {
	cfg := NetworkConfig{
		Name:     n.Name,
		Contract: n.L1.CoreContract,
		ChainID:  n.L1.ChainID,
		Timeout:  2 * time.Minute,
	}
	if n.Spec != nil {
		cfg.ProgramHash = n.Spec.ProgramHash
		cfg.ConfigHash = n.Spec.ConfigHash
	}
	return cfg
}
