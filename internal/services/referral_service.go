package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"refledger/internal/models"
	"refledger/internal/monitoring"
	"refledger/internal/repositories"
	"refledger/internal/signature"
	"refledger/internal/util"
)

// ReferralService manages the referral graph: links, bindings and the
// referred-user lists.
type ReferralService struct {
	store    repositories.Store
	linkBase string
	now      func() time.Time
}

func NewReferralService(store repositories.Store, linkBase string) *ReferralService {
	return &ReferralService{
		store:    store,
		linkBase: linkBase,
		now:      time.Now,
	}
}

func (s *ReferralService) ResolveReferralLink(ctx context.Context, link string) (*models.ReferralStatus, error) {
	st, err := s.store.StatusByLink(ctx, strings.TrimSpace(link))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, models.NewError(models.InviterNotFound, "recommender does not exist")
	}
	if err != nil {
		return nil, boundary("resolve referral link", err)
	}
	return st, nil
}

func (s *ReferralService) IsReferralLink(ctx context.Context, link string) (bool, error) {
	_, err := s.ResolveReferralLink(ctx, link)
	if errors.Is(err, models.ErrInviterNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BindInviter attaches account to the referrer owning inviterLink. Only new
// or inactive accounts can be bound; claimedInviter is informational.
func (s *ReferralService) BindInviter(ctx context.Context, account, claimedInviter, inviterLink string) error {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return err
	}
	inviterLink = strings.TrimSpace(inviterLink)

	err = s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		// account before referral status, the order CreditAction locks in
		acc, err := tx.FindAccount(ctx, addr)
		if errors.Is(err, repositories.ErrNotFound) {
			acc = nil
		} else if err != nil {
			return err
		}

		inviter, err := tx.FindStatusByLink(ctx, inviterLink)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewError(models.InviterNotFound, "recommender does not exist")
		}
		if err != nil {
			return err
		}

		if inviter.Address == addr {
			return models.NewError(models.InvalidRequest, "account cannot refer itself")
		}
		if claimedInviter != "" && !strings.EqualFold(claimedInviter, inviter.Address) {
			log.Warnf("Bind %s: claimed inviter %s differs from link owner %s", addr, claimedInviter, inviter.Address)
		}

		now := s.now()
		if acc == nil {
			acc = &models.Account{
				Address:        addr,
				Active:         true,
				Tallies:        models.ChannelTallies{},
				CreatedAt:      now,
				LastActivityAt: now,
			}
			setInviter(acc, inviter.Address, inviterLink)

			created, err := tx.CreateAccount(ctx, acc)
			if err != nil {
				return err
			}
			if !created {
				// created concurrently; that account is active by now
				return models.NewError(models.AlreadyBound, "not a new user")
			}
		} else {
			if acc.Active {
				return models.NewError(models.AlreadyBound, "not a new user")
			}
			setInviter(acc, inviter.Address, inviterLink)
			acc.LastActivityAt = now
			if err := tx.UpdateAccount(ctx, acc); err != nil {
				return err
			}
		}

		inviter.TotalReferredUsers++
		return tx.UpdateStatus(ctx, inviter)
	})
	if err != nil {
		monitoring.Bindings.WithLabelValues(string(models.KindOf(err))).Inc()
		return boundary("bind inviter", err)
	}

	monitoring.Bindings.WithLabelValues(monitoring.OutcomeOk).Inc()
	log.Infof("Account %s bound to link %s", addr, inviterLink)
	return nil
}

func setInviter(acc *models.Account, inviter, link string) {
	acc.Inviter.String, acc.Inviter.Valid = inviter, true
	acc.InviterLink.String, acc.InviterLink.Valid = link, true
}

// GenerateLink returns the referral url of account, creating its referral
// status on first use.
func (s *ReferralService) GenerateLink(ctx context.Context, account string) (string, error) {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return "", err
	}

	st, err := s.store.Status(ctx, addr)
	if err == nil {
		return util.ReferralUrl(s.linkBase, st.ReferralLink), nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return "", boundary("generate link", err)
	}

	var link string
	err = s.store.WithTransaction(ctx, func(tx repositories.Tx) error {
		st := models.NewReferralStatus(addr, util.GenerateReferralLink(), s.now())
		created, err := tx.CreateStatus(ctx, st)
		if err != nil {
			return err
		}
		if !created {
			if st, err = tx.FindStatus(ctx, addr); err != nil {
				return err
			}
		}
		link = st.ReferralLink
		return nil
	})
	if err != nil {
		return "", boundary("generate link", err)
	}

	return util.ReferralUrl(s.linkBase, link), nil
}

func (s *ReferralService) UserActive(ctx context.Context, account string) (bool, error) {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return false, err
	}

	acc, err := s.store.Account(ctx, addr)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, boundary("user active", err)
	}
	return acc.Active, nil
}

// ReferredUsers lists the accounts bound to account as inviter.
func (s *ReferralService) ReferredUsers(ctx context.Context, account string, offset, limit int) ([]models.Account, error) {
	addr, err := signature.NormalizeAddress(account)
	if err != nil {
		return nil, err
	}

	offset, limit = util.NormalizePage(offset, limit)
	users, err := s.store.ReferredAccounts(ctx, addr, offset, limit)
	if err != nil {
		return nil, boundary("referred users", err)
	}
	return users, nil
}
