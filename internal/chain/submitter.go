package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"refledger/internal/config"
	"refledger/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var log = config.InitLogger()

var ErrReceiptNotFound = errors.New("receipt not found")

// EthSubmitter pays token transfers from a single hot key.
type EthSubmitter struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	token   common.Address
	chainId *big.Int

	nonceSource interface {
		PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	}
	nonceMu   sync.Mutex
	nextNonce *uint64
}

func NewEthSubmitter(ctx context.Context, cfg *config.ChainConfig) (*EthSubmitter, error) {
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, errors.New("TOKEN_ADDRESS is not a valid address")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		log.Error("Failed to parse PRIVATE_KEY")
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		log.Error("Failed to dial rpc: ", err)
		return nil, err
	}

	return &EthSubmitter{
		client:      client,
		nonceSource: client,
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		token:       common.HexToAddress(cfg.TokenAddress),
		chainId:     big.NewInt(cfg.ChainId),
	}, nil
}

func (s *EthSubmitter) Client() *ethclient.Client {
	return s.client
}

// Payer is the wallet that funds every drawing.
func (s *EthSubmitter) Payer() string {
	return strings.ToLower(s.from.Hex())
}

// EstimateCost returns the raw gas estimate of the token transfer.
func (s *EthSubmitter) EstimateCost(ctx context.Context, op models.TransferOperation) (models.Amount, error) {
	data, err := transferCallData(op)
	if err != nil {
		return models.Amount{}, err
	}

	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &s.token,
		Data: data,
	})
	if err != nil {
		log.Error("Failed to estimate gas: ", err)
		return models.Amount{}, err
	}

	return models.AmountFromBig(new(big.Int).SetUint64(gas)), nil
}

// Sign builds and signs the transfer with gasCeiling as gas limit and
// reserves its nonce. Nothing is broadcast; pass the result to Send, or
// to Abandon if it will never be sent.
func (s *EthSubmitter) Sign(ctx context.Context, op models.TransferOperation, gasCeiling models.Amount) (*models.SignedTransfer, error) {
	data, err := transferCallData(op)
	if err != nil {
		return nil, err
	}
	if !gasCeiling.Big().IsUint64() {
		return nil, errors.New("gas ceiling out of range")
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		log.Error("Failed to get gas price: ", err)
		return nil, err
	}

	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	nonce, err := s.reserveNonce(ctx)
	if err != nil {
		log.Error("Failed to get nonce: ", err)
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.token,
		Gas:      gasCeiling.Big().Uint64(),
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainId), s.key)
	if err != nil {
		log.Error("Failed to sign transaction: ", err)
		s.nextNonce = nil
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		s.nextNonce = nil
		return nil, err
	}

	return &models.SignedTransfer{TxHash: signed.Hash().Hex(), Raw: raw}, nil
}

// Send broadcasts a transfer produced by Sign. A failed send releases the
// nonce cursor so the next Sign asks the node again.
func (s *EthSubmitter) Send(ctx context.Context, st *models.SignedTransfer) error {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(st.Raw); err != nil {
		s.Abandon(st)
		return err
	}

	if err := s.client.SendTransaction(ctx, tx); err != nil {
		log.Error("Failed to send transaction: ", err)
		s.Abandon(st)
		return err
	}

	log.Infof("Transfer %s submitted", st.TxHash)
	return nil
}

// Abandon drops a signed transfer that will not be broadcast.
func (s *EthSubmitter) Abandon(st *models.SignedTransfer) {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	log.Warnf("Transfer %s abandoned, nonce cursor reset", st.TxHash)
	s.nextNonce = nil
}

// reserveNonce hands out consecutive nonces from a local cursor seeded by
// the node's pending nonce. nonceMu must be held.
func (s *EthSubmitter) reserveNonce(ctx context.Context) (uint64, error) {
	if s.nextNonce == nil {
		n, err := s.nonceSource.PendingNonceAt(ctx, s.from)
		if err != nil {
			return 0, err
		}
		s.nextNonce = &n
	}
	n := *s.nextNonce
	*s.nextNonce = n + 1
	return n, nil
}

// Receipt returns ErrReceiptNotFound while the transaction is not mined.
func (s *EthSubmitter) Receipt(ctx context.Context, txHash string) (*models.TransferReceipt, error) {
	r, err := s.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return toReceipt(txHash, r), nil
}

// WaitReceipt polls src until the transaction is mined or ctx ends.
func WaitReceipt(ctx context.Context, src interface {
	Receipt(ctx context.Context, txHash string) (*models.TransferReceipt, error)
}, txHash string, interval time.Duration) (*models.TransferReceipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := src.Receipt(ctx, txHash)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrReceiptNotFound) {
			log.Warn("Receipt lookup failed, retrying: ", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toReceipt(txHash string, r *types.Receipt) *models.TransferReceipt {
	price := r.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), price)
	return &models.TransferReceipt{
		TxHash:  txHash,
		FeePaid: models.AmountFromBig(fee),
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
}

func transferCallData(op models.TransferOperation) ([]byte, error) {
	if !common.IsHexAddress(op.To) {
		return nil, errors.New("transfer recipient is not a valid address")
	}
	return erc20.Pack("transfer", common.HexToAddress(op.To), op.Amount.Big())
}
