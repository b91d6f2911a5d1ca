package launcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rony4d/go-settlement/client"
	"github.com/rony4d/go-settlement/integration"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
)

// backend is what the commands settle against: the contract over RPC or the
// local provider.
type backend interface {
	settlement.API
	SendNextMessageToL2(ctx context.Context, msg messaging.MessageL1ToL2) (messaging.MessageL1ToL2, common.Hash, error)
}

var (
	_ backend = (*client.StarknetContractClient)(nil)
	_ backend = (*settlement.Provider)(nil)
)

// makeBackend dials cfg.Network.Endpoint if set, and opens the local
// database otherwise. The returned func releases it.
func makeBackend(ctx context.Context, cfg *Config) (backend, func(), error) {
	if cfg.Network.Endpoint != "" {
		if cfg.Network.KeyFile == "" {
			return nil, nil, fmt.Errorf("l1.keyfile is required with l1.endpoint")
		}
		key, err := crypto.LoadECDSA(cfg.Network.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load key: %w", err)
		}
		c, err := client.Dial(ctx, cfg.Network.Endpoint, cfg.Network.Contract, key)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Settling on L1", "endpoint", cfg.Network.Endpoint, "contract", cfg.Network.Contract, "from", c.From())
		return c, c.Close, nil
	}

	if cfg.Storage.DBPreset != integration.MemoryDB {
		if err := ensureDir(cfg.Node.DataDir); err != nil {
			return nil, nil, err
		}
	}
	db, err := integration.OpenDatabase(cfg.Storage, cfg.Node.DataDir)
	if err != nil {
		return nil, nil, err
	}
	p, err := settlement.NewProvider(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return p, func() { db.Close() }, nil
}

// defaultSender is the L1 address messages are sent from when --from is omitted.
func defaultSender(b backend) (common.Address, bool) {
	if c, ok := b.(*client.StarknetContractClient); ok {
		return c.From(), true
	}
	return common.Address{}, false
}
