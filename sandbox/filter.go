package sandbox

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// FilterLogs returns the mined logs matching q, in chain order.
func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, to := q.FromBlock, q.ToBlock
	if q.BlockHash != nil {
		header := b.headerByHash(*q.BlockHash)
		if header == nil {
			return nil, ethereum.NotFound
		}
		from, to = header.Number, header.Number
	}
	var out []types.Log
	for _, l := range filterLogs(b.logs, from, to, q.Addresses, q.Topics) {
		out = append(out, *l)
	}
	return out, nil
}

func (b *Backend) headerByHash(hash common.Hash) *types.Header {
	for _, h := range b.headers {
		if h.Hash() == hash {
			return h
		}
	}
	return nil
}

// SubscribeFilterLogs streams logs matching q as their blocks are mined.
func (b *Backend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sink := make(chan []*types.Log)
	sub := b.scope.Track(b.logsFeed.Subscribe(sink))

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case logs := <-sink:
				for _, l := range filterLogs(logs, q.FromBlock, q.ToBlock, q.Addresses, q.Topics) {
					select {
					case ch <- *l:
					case err := <-sub.Err():
						return err
					case <-quit:
						return nil
					}
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// filterLogs selects the logs within [from, to] emitted by one of addresses
// whose topics match. A nil bound is open. An empty topic position matches
// anything; otherwise one of its hashes must equal the log topic.
func filterLogs(logs []*types.Log, from, to *big.Int, addresses []common.Address, topics [][]common.Hash) []*types.Log {
	var ret []*types.Log
Logs:
	for _, l := range logs {
		if from != nil && from.Sign() >= 0 && from.Uint64() > l.BlockNumber {
			continue
		}
		if to != nil && to.Sign() >= 0 && to.Uint64() < l.BlockNumber {
			continue
		}
		if len(addresses) > 0 && !includes(addresses, l.Address) {
			continue
		}
		if len(topics) > len(l.Topics) {
			continue
		}
		for i, sub := range topics {
			match := len(sub) == 0
			for _, topic := range sub {
				if l.Topics[i] == topic {
					match = true
					break
				}
			}
			if !match {
				continue Logs
			}
		}
		ret = append(ret, l)
	}
	return ret
}

func includes(addresses []common.Address, a common.Address) bool {
	for _, addr := range addresses {
		if addr == a {
			return true
		}
	}
	return false
}
