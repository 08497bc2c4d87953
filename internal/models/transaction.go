package models

import "fmt"

// TransferEvent is a token Transfer log delivered by the event feed.
type TransferEvent struct {
	From     string
	To       string
	Amount   Amount
	TxHash   string
	LogIndex uint
}

func (e TransferEvent) Key() string {
	if e.TxHash == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

const (
	StakeDeposit  = "deposit"
	StakeWithdraw = "withdraw"
)

// StakeEvent is a pool Deposit/Withdraw log delivered by the event feed.
type StakeEvent struct {
	Kind     string
	Address  string
	PoolId   uint64
	Amount   Amount
	TxHash   string
	LogIndex uint
}

// ActionEvent is a referred value-generating action ready to be credited.
// EventKey identifies the source event for de-duplication; empty disables it.
type ActionEvent struct {
	Referred string
	Channel  Channel
	Value    Amount
	EventKey string
}

// TransferOperation is the on-chain payout of an approved drawing.
type TransferOperation struct {
	To     string
	Amount Amount
}

// SignedTransfer is a transfer that is signed but not yet broadcast. Its
// hash is known before the network sees it.
type SignedTransfer struct {
	TxHash string
	Raw    []byte
}

// TransferReceipt is the definitive outcome of a submitted transfer.
type TransferReceipt struct {
	TxHash  string
	FeePaid Amount
	Success bool
}
