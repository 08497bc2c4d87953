package chain

import (
	"errors"
	"math/big"
	"strings"

	"refledger/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUnknownLog = errors.New("unknown log")

var (
	transferTopic = erc20.Events["Transfer"].ID
	depositTopic  = masterChef.Events["Deposit"].ID
	withdrawTopic = masterChef.Events["Withdraw"].ID
)

func DecodeTransfer(l types.Log) (models.TransferEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != transferTopic {
		return models.TransferEvent{}, ErrUnknownLog
	}

	value, err := unpackAmount("Transfer", erc20.Unpack, l.Data)
	if err != nil {
		return models.TransferEvent{}, err
	}

	return models.TransferEvent{
		From:     lowerHex(common.BytesToAddress(l.Topics[1].Bytes())),
		To:       lowerHex(common.BytesToAddress(l.Topics[2].Bytes())),
		Amount:   value,
		TxHash:   l.TxHash.Hex(),
		LogIndex: l.Index,
	}, nil
}

func DecodeStake(l types.Log) (models.StakeEvent, error) {
	if len(l.Topics) != 3 {
		return models.StakeEvent{}, ErrUnknownLog
	}

	var kind, name string
	switch l.Topics[0] {
	case depositTopic:
		kind, name = models.StakeDeposit, "Deposit"
	case withdrawTopic:
		kind, name = models.StakeWithdraw, "Withdraw"
	default:
		return models.StakeEvent{}, ErrUnknownLog
	}

	value, err := unpackAmount(name, masterChef.Unpack, l.Data)
	if err != nil {
		return models.StakeEvent{}, err
	}

	return models.StakeEvent{
		Kind:     kind,
		Address:  lowerHex(common.BytesToAddress(l.Topics[1].Bytes())),
		PoolId:   new(big.Int).SetBytes(l.Topics[2].Bytes()).Uint64(),
		Amount:   value,
		TxHash:   l.TxHash.Hex(),
		LogIndex: l.Index,
	}, nil
}

func unpackAmount(name string, unpack func(string, []byte) ([]interface{}, error), data []byte) (models.Amount, error) {
	out, err := unpack(name, data)
	if err != nil {
		return models.Amount{}, err
	}
	if len(out) != 1 {
		return models.Amount{}, ErrUnknownLog
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return models.Amount{}, ErrUnknownLog
	}
	return models.AmountFromBig(v), nil
}

func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}
