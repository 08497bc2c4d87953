package services

import (
	"context"
	"errors"
	"math/big"
	"time"

	"refledger/internal/chain"
	"refledger/internal/models"
	"refledger/internal/monitoring"
	"refledger/internal/repositories"
	"refledger/internal/signature"
	"refledger/internal/util"
)

// TransferSubmitter is the chain side of a drawing. Sign fixes the tx hash
// without broadcasting; Send puts the signed transfer on the network.
type TransferSubmitter interface {
	Payer() string
	EstimateCost(ctx context.Context, op models.TransferOperation) (models.Amount, error)
	Sign(ctx context.Context, op models.TransferOperation, gasCeiling models.Amount) (*models.SignedTransfer, error)
	Send(ctx context.Context, st *models.SignedTransfer) error
	Abandon(st *models.SignedTransfer)
	Receipt(ctx context.Context, txHash string) (*models.TransferReceipt, error)
}

// Notifier is told about withdrawals that ended rejected and still need
// an operator decision.
type Notifier interface {
	WithdrawalRejected(ctx context.Context, w *models.WithdrawalRecord)
}

type NopNotifier struct{}

func (NopNotifier) WithdrawalRejected(context.Context, *models.WithdrawalRecord) {}

type DrawingConfig struct {
	MarginBps           int64
	TransferTimeout     time.Duration
	ReceiptPollInterval time.Duration
	StalePendingAfter   time.Duration
	AutoCompensate      bool
}

const reconcileBatch = 100

// DrawingService authorizes drawings against the ledger and pays them out.
type DrawingService struct {
	store     repositories.Store
	submitter TransferSubmitter
	notifier  Notifier
	cfg       DrawingConfig
	now       func() time.Time
}

func NewDrawingService(store repositories.Store, submitter TransferSubmitter, notifier Notifier, cfg DrawingConfig) *DrawingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.MarginBps < 0 {
		cfg.MarginBps = 0
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 2 * time.Minute
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 3 * time.Second
	}
	if cfg.StalePendingAfter <= 0 {
		cfg.StalePendingAfter = 30 * time.Minute
	}
	return &DrawingService{
		store:     store,
		submitter: submitter,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// AuthorizeDrawing checks the request signature and the available balance.
// Nothing is written.
func (s *DrawingService) AuthorizeDrawing(ctx context.Context, req models.DrawingRequest) (*models.ApprovedDrawing, error) {
	addr, err := signature.NormalizeAddress(req.Account)
	if err != nil {
		return nil, err
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		return nil, models.NewError(models.InvalidRequest, "amount must be a positive integer")
	}
	ch, err := models.ParseChannel(req.Channel)
	if err != nil {
		return nil, err
	}

	msg := signature.DrawingMessage(req.Channel, req.Account, req.Amount)
	if err := signature.Verify(msg, req.Signature, addr); err != nil {
		return nil, err
	}

	st, err := s.store.Status(ctx, addr)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, models.NewError(models.UnknownAccount, "user does not exist")
	}
	if err != nil {
		return nil, boundary("authorize drawing", err)
	}
	if amount.Cmp(st.Available(ch)) > 0 {
		return nil, models.NewError(models.InsufficientBalance, "too much withdrawal amount")
	}

	return &models.ApprovedDrawing{Account: addr, Amount: amount, Channel: ch}, nil
}

// Draw authorizes and executes a drawing request.
func (s *DrawingService) Draw(ctx context.Context, req models.DrawingRequest) (*models.WithdrawalRecord, error) {
	approved, err := s.AuthorizeDrawing(ctx, req)
	if err != nil {
		label := "unknown"
		if ch, err := models.ParseChannel(req.Channel); err == nil {
			label = string(ch)
		}
		monitoring.Drawings.WithLabelValues(label, monitoring.OutcomeRejected).Inc()
		return nil, err
	}
	return s.ExecuteDrawing(ctx, *approved)
}

// ExecuteDrawing debits the referrer and transfers the amount on chain.
// The tx hash is stored before the transfer is broadcast, so a record
// without a hash was never sent. A transfer that is broadcast but not
// confirmed within the transfer timeout is returned pending; the
// reconciler finishes it.
func (s *DrawingService) ExecuteDrawing(ctx context.Context, d models.ApprovedDrawing) (*models.WithdrawalRecord, error) {
	channel := string(d.Channel)
	op := models.TransferOperation{To: d.Account, Amount: d.Amount}

	estimate, err := s.submitter.EstimateCost(ctx, op)
	if err != nil {
		monitoring.Drawings.WithLabelValues(channel, monitoring.OutcomeError).Inc()
		return nil, models.WrapError(models.ExternalTransferFailed, "failed to estimate transfer cost", err)
	}
	ceiling := util.ApplyMargin(estimate, s.cfg.MarginBps)
	if f, _ := new(big.Float).SetInt(ceiling.Big()).Float64(); f > 0 {
		monitoring.GasCeiling.Observe(f)
	}

	record, err := s.debitPending(ctx, d, ceiling)
	if err != nil {
		monitoring.Drawings.WithLabelValues(channel, string(models.KindOf(err))).Inc()
		return nil, boundary("execute drawing", err)
	}
	id := record.Id.Int64

	// the transfer is not abandoned when the caller goes away
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TransferTimeout)
	defer cancel()

	signed, err := s.submitter.Sign(sendCtx, op, ceiling)
	if err != nil {
		log.Error("Failed to sign drawing transfer: ", err)
		return s.fail(ctx, id, models.Amount{}, "transfer was not submitted: "+err.Error())
	}
	txHash := signed.TxHash

	if record, err = s.attachHash(ctx, id, txHash); err != nil {
		log.Errorf("Withdrawal %d: failed to store tx hash, transfer not sent: %v", id, err)
		s.submitter.Abandon(signed)
		return s.fail(ctx, id, models.Amount{}, "transfer was not submitted: tx hash could not be stored")
	}

	if err := s.submitter.Send(sendCtx, signed); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// the node may still have accepted it
			log.Warnf("Withdrawal %d: broadcast of %s timed out, left pending", id, txHash)
			monitoring.Drawings.WithLabelValues(channel, monitoring.OutcomePending).Inc()
			return record, nil
		}
		log.Error("Failed to send drawing transfer: ", err)
		return s.fail(ctx, id, models.Amount{}, "transfer was not submitted: "+err.Error())
	}

	receipt, err := chain.WaitReceipt(sendCtx, s.submitter, txHash, s.cfg.ReceiptPollInterval)
	if err != nil {
		log.Warnf("Withdrawal %d: no receipt for %s yet, left pending", id, txHash)
		monitoring.Drawings.WithLabelValues(channel, monitoring.OutcomePending).Inc()
		return record, nil
	}
	if !receipt.Success {
		return s.fail(ctx, id, receipt.FeePaid, "transfer reverted on chain")
	}

	record, err = s.finish(ctx, id, models.WithdrawalResolved, receipt.FeePaid, "")
	if err != nil {
		return nil, boundary("resolve withdrawal", err)
	}
	monitoring.Drawings.WithLabelValues(channel, monitoring.OutcomeOk).Inc()
	log.Infof("Withdrawal %d resolved: %s %s to %s", id, d.Amount, d.Channel, d.Account)
	return record, nil
}

func (s *DrawingService) debitPending(ctx context.Context, d models.ApprovedDrawing, ceiling models.Amount) (*models.WithdrawalRecord, error) {
	var record *models.WithdrawalRecord
	err := s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		st, err := tx.FindStatus(ctx, d.Account)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewError(models.UnknownAccount, "user does not exist")
		}
		if err != nil {
			return err
		}

		now := s.now()
		if err := debit(st, d.Channel, d.Amount, now); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, st); err != nil {
			return err
		}

		record = &models.WithdrawalRecord{
			From:        s.submitter.Payer(),
			To:          d.Account,
			Amount:      d.Amount,
			Channel:     d.Channel,
			FeeEstimate: ceiling,
			State:       models.WithdrawalPending,
			RequestedAt: now,
			UpdatedAt:   now,
		}
		return tx.CreateWithdrawal(ctx, record)
	})
	return record, err
}

func (s *DrawingService) attachHash(ctx context.Context, id int64, txHash string) (*models.WithdrawalRecord, error) {
	var record *models.WithdrawalRecord
	err := s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		w, err := tx.FindWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		w.TxHash.String, w.TxHash.Valid = txHash, true
		w.UpdatedAt = s.now()
		record = w
		return tx.UpdateWithdrawal(ctx, w)
	})
	return record, err
}

// fail rejects the record and reports ExternalTransferFailed with it.
func (s *DrawingService) fail(ctx context.Context, id int64, feePaid models.Amount, reason string) (*models.WithdrawalRecord, error) {
	record, err := s.finish(ctx, id, models.WithdrawalRejected, feePaid, reason)
	if err != nil {
		return nil, boundary("reject withdrawal", err)
	}
	monitoring.Drawings.WithLabelValues(string(record.Channel), monitoring.OutcomeRejected).Inc()
	return record, models.NewError(models.ExternalTransferFailed, reason)
}

// finish moves a pending record to a terminal state. A record that is
// already terminal is returned unchanged.
func (s *DrawingService) finish(ctx context.Context, id int64, state models.WithdrawalState, feePaid models.Amount, msg string) (*models.WithdrawalRecord, error) {
	var record *models.WithdrawalRecord
	changed := false
	err := s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		w, err := tx.FindWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		record = w
		if w.State.Terminal() {
			return nil
		}

		now := s.now()
		w.State = state
		w.FeePaid = feePaid
		w.Message = msg
		w.UpdatedAt = now

		if state == models.WithdrawalRejected && s.cfg.AutoCompensate {
			if err := s.reverse(ctx, tx, w, now); err != nil {
				return err
			}
		}

		changed = true
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	if changed && record.State == models.WithdrawalRejected {
		log.Warnf("Withdrawal %d rejected: %s", id, msg)
		if !record.CompensatedAt.Valid {
			s.notifier.WithdrawalRejected(ctx, record)
		}
	}
	return record, nil
}

func (s *DrawingService) reverse(ctx context.Context, tx repositories.Tx, w *models.WithdrawalRecord, now time.Time) error {
	st, err := tx.FindStatus(ctx, w.To)
	if err != nil {
		return err
	}
	if err := refund(st, w.Channel, w.Amount); err != nil {
		return err
	}
	if err := tx.UpdateStatus(ctx, st); err != nil {
		return err
	}
	w.CompensatedAt.Time, w.CompensatedAt.Valid = now, true
	return nil
}

// Compensate gives the amount of a rejected withdrawal back to the
// referrer's available balance. Each record can be compensated once.
func (s *DrawingService) Compensate(ctx context.Context, id int64) (*models.WithdrawalRecord, error) {
	var record *models.WithdrawalRecord
	err := s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		w, err := tx.FindWithdrawal(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewError(models.InvalidRequest, "withdrawal does not exist")
		}
		if err != nil {
			return err
		}
		if w.State != models.WithdrawalRejected {
			return models.NewError(models.InvalidRequest, "only rejected withdrawals can be compensated")
		}
		if w.CompensatedAt.Valid {
			return models.NewError(models.AlreadyCompensated, "withdrawal already compensated")
		}

		now := s.now()
		if err := s.reverse(ctx, tx, w, now); err != nil {
			return err
		}
		w.UpdatedAt = now
		record = w
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, boundary("compensate", err)
	}

	log.Infof("Withdrawal %d compensated: %s %s back to %s", id, record.Amount, record.Channel, record.To)
	return record, nil
}

// ReconcilePending finishes pending withdrawals. A record with a tx hash is
// decided by its receipt only; one without a hash was never broadcast and
// is rejected once it is older than the stale threshold. Returns how many
// records reached a terminal state.
func (s *DrawingService) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := s.store.PendingWithdrawals(ctx, reconcileBatch)
	if err != nil {
		return 0, boundary("load pending withdrawals", err)
	}

	done := 0
	for _, w := range pending {
		id := w.Id.Int64

		if !w.TxHash.Valid {
			if s.now().Sub(w.RequestedAt) < s.cfg.StalePendingAfter {
				continue
			}
			if _, err := s.finish(ctx, id, models.WithdrawalRejected, models.Amount{}, "transfer was never submitted"); err != nil {
				log.Errorf("Failed to reject stale withdrawal %d: %v", id, err)
				continue
			}
			done++
			continue
		}

		receipt, err := s.submitter.Receipt(ctx, w.TxHash.String)
		if errors.Is(err, chain.ErrReceiptNotFound) {
			if s.now().Sub(w.RequestedAt) >= s.cfg.StalePendingAfter {
				log.Warnf("Withdrawal %d: still no receipt for %s", id, w.TxHash.String)
			}
			continue
		}
		if err != nil {
			log.Errorf("Failed to get receipt of withdrawal %d: %v", id, err)
			continue
		}

		state, msg := models.WithdrawalResolved, ""
		if !receipt.Success {
			state, msg = models.WithdrawalRejected, "transfer reverted on chain"
		}
		if _, err := s.finish(ctx, id, state, receipt.FeePaid, msg); err != nil {
			log.Errorf("Failed to finish withdrawal %d: %v", id, err)
			continue
		}
		done++
	}

	if done > 0 {
		log.Infof("Reconciled %d pending withdrawals", done)
	}
	return done, nil
}

// Withdrawals lists the drawing history of account, newest first.
func (s *DrawingService) Withdrawals(ctx context.Context, account string, offset, limit int) ([]models.WithdrawalRecord, error) {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}
	offset, limit = util.NormalizePage(offset, limit)
	res, err := s.store.WithdrawalsByAddress(ctx, addr, offset, limit)
	if err != nil {
		return nil, boundary("withdrawals", err)
	}
	return res, nil
}
