package models

import (
	"database/sql"
	"time"
)

type Account struct {
	Id             sql.NullInt64  `db:"id" json:"id"`
	Address        string         `db:"address" json:"address"`
	Active         bool           `db:"active" json:"active"`
	Inviter        sql.NullString `db:"inviter" json:"-"`
	InviterLink    sql.NullString `db:"inviter_link" json:"-"`
	Tallies        ChannelTallies `db:"tallies" json:"tallies"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	LastActivityAt time.Time      `db:"last_activity_at" json:"last_activity_at"`
}

func (a *Account) HasInviter() bool {
	return a.Inviter.Valid && a.Inviter.String != ""
}

type ReferralStatus struct {
	Id                 sql.NullInt64      `db:"id" json:"id"`
	Address            string             `db:"address" json:"address"`
	ReferralLink       string             `db:"referral_link" json:"referral_link"`
	EarnedTotal        ChannelAmounts     `db:"earned_total" json:"earned_total"`
	WithdrawnTotal     ChannelAmounts     `db:"withdrawn_total" json:"withdrawn_total"`
	ReferredUserCount  ChannelCounts      `db:"referred_user_count" json:"referred_user_count"`
	TotalReferredUsers int64              `db:"total_referred_users" json:"total_referred_users"`
	CommissionPercent  CommissionPercents `db:"commission_percent" json:"commission_percent"`
	LastDistributionAt sql.NullTime       `db:"last_distribution_at" json:"-"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

func NewReferralStatus(address, link string, now time.Time) *ReferralStatus {
	return &ReferralStatus{
		Address:           address,
		ReferralLink:      link,
		EarnedTotal:       ChannelAmounts{},
		WithdrawnTotal:    ChannelAmounts{},
		ReferredUserCount: ChannelCounts{},
		CommissionPercent: DefaultCommissionPercents(),
		CreatedAt:         now,
	}
}

// Available is earned minus withdrawn in ch.
func (s *ReferralStatus) Available(ch Channel) Amount {
	return s.EarnedTotal.Get(ch).Sub(s.WithdrawnTotal.Get(ch))
}

type WithdrawalState string

const (
	WithdrawalPending  WithdrawalState = "pending"
	WithdrawalResolved WithdrawalState = "resolved"
	WithdrawalRejected WithdrawalState = "rejected"
)

func (s WithdrawalState) Terminal() bool {
	return s == WithdrawalResolved || s == WithdrawalRejected
}

type WithdrawalRecord struct {
	Id            sql.NullInt64   `db:"id" json:"id"`
	From          string          `db:"from_address" json:"from"`
	To            string          `db:"to_address" json:"to"`
	Amount        Amount          `db:"amount" json:"amount"`
	Channel       Channel         `db:"channel" json:"channel"`
	FeeEstimate   Amount          `db:"fee_estimate" json:"fee_estimate"`
	FeePaid       Amount          `db:"fee_paid" json:"fee_paid"`
	TxHash        sql.NullString  `db:"tx_hash" json:"-"`
	State         WithdrawalState `db:"state" json:"state"`
	Message       string          `db:"message" json:"message"`
	RequestedAt   time.Time       `db:"requested_at" json:"requested_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	CompensatedAt sql.NullTime    `db:"compensated_at" json:"-"`
}

// BalanceView is the read-only per-channel position of a referrer.
type BalanceView struct {
	Address   string         `json:"address"`
	Earned    ChannelAmounts `json:"earned"`
	Withdrawn ChannelAmounts `json:"withdrawn"`
	Available ChannelAmounts `json:"available"`
}
