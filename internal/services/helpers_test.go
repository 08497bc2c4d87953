package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"refledger/internal/chain"
	"refledger/internal/models"
	"refledger/internal/repositories"
	"refledger/internal/signature"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const payerAddr = "0x00000000000000000000000000000000000000aa"

type fakeSubmitter struct {
	mu sync.Mutex

	estimate    int64
	estimateErr error
	signErr     error
	sendErr     error
	// receipt stays missing until mined is set
	mined    bool
	reverted bool
	fee      int64

	seq       int
	ceilings  []models.Amount
	ops       []models.TransferOperation
	sent      []string
	abandoned []string
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{estimate: 21000, mined: true, fee: 105000}
}

func (f *fakeSubmitter) Payer() string { return payerAddr }

func (f *fakeSubmitter) EstimateCost(_ context.Context, _ models.TransferOperation) (models.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.estimateErr != nil {
		return models.Amount{}, f.estimateErr
	}
	return models.NewAmount(f.estimate), nil
}

func (f *fakeSubmitter) Sign(_ context.Context, op models.TransferOperation, ceiling models.Amount) (*models.SignedTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return nil, f.signErr
	}
	f.seq++
	f.ops = append(f.ops, op)
	f.ceilings = append(f.ceilings, ceiling)
	return &models.SignedTransfer{TxHash: fmt.Sprintf("0x%064x", f.seq)}, nil
}

func (f *fakeSubmitter) Send(_ context.Context, st *models.SignedTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, st.TxHash)
	return nil
}

func (f *fakeSubmitter) Abandon(st *models.SignedTransfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, st.TxHash)
}

func (f *fakeSubmitter) broadcasts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSubmitter) Receipt(_ context.Context, txHash string) (*models.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.mined {
		return nil, chain.ErrReceiptNotFound
	}
	return &models.TransferReceipt{
		TxHash:  txHash,
		FeePaid: models.NewAmount(f.fee),
		Success: !f.reverted,
	}, nil
}

func (f *fakeSubmitter) set(fn func(f *fakeSubmitter)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recordingNotifier struct {
	mu       sync.Mutex
	rejected []int64
}

func (n *recordingNotifier) WithdrawalRejected(_ context.Context, w *models.WithdrawalRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, w.Id.Int64)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rejected)
}

type wallet struct {
	key  *ecdsa.PrivateKey
	addr string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, addr: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w wallet) sign(t *testing.T, msg []byte) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func seedReferrer(t *testing.T, store repositories.Store, addr, link string, earned map[models.Channel]int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTransaction(ctx, func(tx repositories.Tx) error {
		st := models.NewReferralStatus(addr, link, time.Now())
		for ch, v := range earned {
			st.EarnedTotal.Add(ch, models.NewAmount(v))
		}
		created, err := tx.CreateStatus(ctx, st)
		if err == nil && !created {
			err = errors.New("status already exists")
		}
		return err
	}))
}

func mustStatus(t *testing.T, store repositories.Store, addr string) *models.ReferralStatus {
	t.Helper()
	st, err := store.Status(context.Background(), addr)
	require.NoError(t, err)
	return st
}

func testDrawingConfig() DrawingConfig {
	return DrawingConfig{
		MarginBps:           1000,
		TransferTimeout:     time.Second,
		ReceiptPollInterval: 5 * time.Millisecond,
		StalePendingAfter:   time.Minute,
	}
}

func drawingRequest(t *testing.T, w wallet, ch models.Channel, amount string) models.DrawingRequest {
	t.Helper()
	return models.DrawingRequest{
		Account:   w.addr,
		Amount:    amount,
		Channel:   string(ch),
		Signature: w.sign(t, signature.DrawingMessage(string(ch), w.addr, amount)),
	}
}
