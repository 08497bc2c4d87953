package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"refledger/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const maxBlockRange = 2000

type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// EventHandler receives decoded chain events.
type EventHandler interface {
	HandleTransfer(ctx context.Context, e models.TransferEvent) error
	HandleStake(ctx context.Context, e models.StakeEvent) error
}

// Feed polls token Transfer and pool Deposit/Withdraw logs and pushes them
// into a handler. Blocks are processed in order; a block range is retried
// until every log in it was handled.
type Feed struct {
	src           LogSource
	handler       EventHandler
	token         common.Address
	masterChef    common.Address
	confirmations uint64
	next          uint64
}

func NewFeed(src LogSource, handler EventHandler, token, masterChef string, startBlock, confirmations uint64) *Feed {
	return &Feed{
		src:           src,
		handler:       handler,
		token:         common.HexToAddress(token),
		masterChef:    common.HexToAddress(masterChef),
		confirmations: confirmations,
		next:          startBlock,
	}
}

func (f *Feed) NextBlock() uint64 {
	return f.next
}

// Poll handles every confirmed block not yet seen.
func (f *Feed) Poll(ctx context.Context) error {
	head, err := f.src.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head < f.confirmations {
		return nil
	}
	head -= f.confirmations

	for f.next <= head {
		to := f.next + maxBlockRange - 1
		if to > head {
			to = head
		}

		logs, err := f.src.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(f.next),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{f.token, f.masterChef},
			Topics:    [][]common.Hash{{transferTopic, depositTopic, withdrawTopic}},
		})
		if err != nil {
			return err
		}

		for _, l := range logs {
			if err := f.dispatch(ctx, l); err != nil {
				return err
			}
		}
		f.next = to + 1
	}
	return nil
}

func (f *Feed) dispatch(ctx context.Context, l types.Log) error {
	if l.Removed {
		return nil
	}

	switch l.Address {
	case f.token:
		e, err := DecodeTransfer(l)
		if err != nil {
			log.Warn("Skipping undecodable transfer log: ", err)
			return nil
		}
		return f.handler.HandleTransfer(ctx, e)
	case f.masterChef:
		e, err := DecodeStake(l)
		if err != nil {
			log.Warn("Skipping undecodable stake log: ", err)
			return nil
		}
		return f.handler.HandleStake(ctx, e)
	}
	return nil
}

// Run polls every interval until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infoln("waiting for chain events from block", f.next)
	for {
		if err := f.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event feed poll failed: ", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
