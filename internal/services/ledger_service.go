package services

import (
	"context"
	"errors"
	"time"

	"refledger/internal/config"
	"refledger/internal/models"
	"refledger/internal/monitoring"
	"refledger/internal/repositories"
	"refledger/internal/signature"
	"refledger/internal/util"
)

var log = config.InitLogger()

// boundary turns anything that is not a typed ledger failure into an
// InternalError, logging the cause.
func boundary(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *models.LedgerError
	if errors.As(err, &le) {
		return le
	}
	log.Errorf("Failed %s: %v", op, err)
	return models.Internal(err)
}

// LedgerService owns every write to earned and withdrawn totals.
type LedgerService struct {
	store  repositories.Store
	dedupe bool
	now    func() time.Time
}

func NewLedgerService(store repositories.Store, dedupe bool) *LedgerService {
	return &LedgerService{
		store:  store,
		dedupe: dedupe,
		now:    time.Now,
	}
}

// CreditAction records a referred action and credits the inviter's
// commission in the same transaction. With de-duplication on, an event
// key seen before makes the call a no-op.
func (s *LedgerService) CreditAction(ctx context.Context, e models.ActionEvent) error {
	addr, err := signature.NormalizeAddress(e.Referred)
	if err != nil {
		return err
	}
	if !e.Channel.Valid() {
		return models.NewError(models.InvalidRequest, "unknown channel")
	}

	outcome := monitoring.OutcomeOk
	err = s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		if s.dedupe && e.EventKey != "" {
			fresh, err := tx.MarkEventProcessed(ctx, e.EventKey)
			if err != nil {
				return err
			}
			if !fresh {
				outcome = monitoring.OutcomeDuplicate
				return nil
			}
		}

		now := s.now()
		acc, err := tx.FindAccount(ctx, addr)
		if errors.Is(err, repositories.ErrNotFound) {
			acc = &models.Account{
				Address:        addr,
				Active:         true,
				Tallies:        models.ChannelTallies{e.Channel: {Channel: e.Value}},
				CreatedAt:      now,
				LastActivityAt: now,
			}
			created, err := tx.CreateAccount(ctx, acc)
			if err != nil || created {
				return err
			}
			// lost a creation race, continue with the stored row
			if acc, err = tx.FindAccount(ctx, addr); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		prev := acc.Tallies.Get(e.Channel)
		if acc.Tallies == nil {
			acc.Tallies = models.ChannelTallies{}
		}
		acc.Tallies[e.Channel] = models.Tally{Channel: prev.Channel.Add(e.Value), Quote: prev.Quote}
		acc.Active = true
		acc.LastActivityAt = now

		if acc.HasInviter() {
			if err := s.creditInviter(ctx, tx, acc, e, prev.Channel.IsZero()); err != nil {
				return err
			}
		}

		return tx.UpdateAccount(ctx, acc)
	})
	if err != nil {
		monitoring.CommissionCredits.WithLabelValues(string(e.Channel), monitoring.OutcomeError).Inc()
		return boundary("credit action", err)
	}

	monitoring.CommissionCredits.WithLabelValues(string(e.Channel), outcome).Inc()
	if outcome == monitoring.OutcomeDuplicate {
		log.Infof("Event %s already credited, skipping", e.EventKey)
	}
	return nil
}

func (s *LedgerService) creditInviter(ctx context.Context, tx repositories.Tx, acc *models.Account, e models.ActionEvent, firstInChannel bool) error {
	st, err := tx.FindStatus(ctx, acc.Inviter.String)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Errorf("Inviter %s of %s has no referral status, commission skipped", acc.Inviter.String, acc.Address)
		return nil
	}
	if err != nil {
		return err
	}

	commission := util.Commission(e.Value, st.CommissionPercent.For(e.Channel))
	if st.EarnedTotal == nil {
		st.EarnedTotal = models.ChannelAmounts{}
	}
	st.EarnedTotal.Add(e.Channel, commission)

	if firstInChannel {
		if st.ReferredUserCount == nil {
			st.ReferredUserCount = models.ChannelCounts{}
		}
		st.ReferredUserCount[e.Channel]++
	}

	log.Debugf("Credited %s %s commission to %s", commission, e.Channel, st.Address)
	return tx.UpdateStatus(ctx, st)
}

// Balance returns the current per-channel position of a referrer.
func (s *LedgerService) Balance(ctx context.Context, account string) (*models.BalanceView, error) {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}

	st, err := s.store.Status(ctx, addr)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, models.NewError(models.UnknownAccount, "user does not exist")
	}
	if err != nil {
		return nil, boundary("balance", err)
	}

	view := &models.BalanceView{
		Address:   addr,
		Earned:    models.ChannelAmounts{},
		Withdrawn: models.ChannelAmounts{},
		Available: models.ChannelAmounts{},
	}
	for _, ch := range models.AllChannels {
		view.Earned[ch] = st.EarnedTotal.Get(ch)
		view.Withdrawn[ch] = st.WithdrawnTotal.Get(ch)
		view.Available[ch] = st.Available(ch)
	}
	return view, nil
}

// SetCommissionPercent changes the percent of a channel, or the default
// percent when key is "default".
func (s *LedgerService) SetCommissionPercent(ctx context.Context, account, key string, percent int64) error {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return err
	}
	if key != models.DefaultPercentKey && !models.Channel(key).Valid() {
		return models.NewError(models.InvalidRequest, "unknown commission key")
	}
	if percent < 0 || percent > 100 {
		return models.NewError(models.InvalidRequest, "percent must be within 0..100")
	}

	err = s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		st, err := tx.FindStatus(ctx, addr)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewError(models.UnknownAccount, "user does not exist")
		}
		if err != nil {
			return err
		}
		if st.CommissionPercent == nil {
			st.CommissionPercent = models.DefaultCommissionPercents()
		}
		st.CommissionPercent[key] = percent
		return tx.UpdateStatus(ctx, st)
	})
	return boundary("set commission percent", err)
}

// debit moves amount of ch from available to withdrawn.
func debit(st *models.ReferralStatus, ch models.Channel, amount models.Amount, now time.Time) error {
	if amount.Cmp(st.Available(ch)) > 0 {
		return models.NewError(models.InsufficientBalance, "too much withdrawal amount")
	}
	if st.WithdrawnTotal == nil {
		st.WithdrawnTotal = models.ChannelAmounts{}
	}
	st.WithdrawnTotal.Add(ch, amount)
	st.LastDistributionAt.Time, st.LastDistributionAt.Valid = now, true
	return nil
}

// refund reverses a debit whose transfer never happened.
func refund(st *models.ReferralStatus, ch models.Channel, amount models.Amount) error {
	left := st.WithdrawnTotal.Get(ch).Sub(amount)
	if left.Sign() < 0 {
		return errors.New("refund exceeds withdrawn total")
	}
	st.WithdrawnTotal[ch] = left
	return nil
}
