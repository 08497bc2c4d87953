package repositories

import (
	"context"
	"database/sql"
	"errors"

	"refledger/internal/models"

	"github.com/jmoiron/sqlx"
)

type ReferralStatusRepository struct {
	db sqlx.ExtContext
}

func NewReferralStatusRepository(db sqlx.ExtContext) *ReferralStatusRepository {
	return &ReferralStatusRepository{
		db: db,
	}
}

func (r *ReferralStatusRepository) FindByAddress(ctx context.Context, address string, forUpdate bool) (*models.ReferralStatus, error) {
	return r.findOne(ctx, "select * from referral_status where address=$1", address, forUpdate)
}

func (r *ReferralStatusRepository) FindByLink(ctx context.Context, link string, forUpdate bool) (*models.ReferralStatus, error) {
	return r.findOne(ctx, "select * from referral_status where referral_link=$1", link, forUpdate)
}

func (r *ReferralStatusRepository) findOne(ctx context.Context, query string, arg string, forUpdate bool) (*models.ReferralStatus, error) {
	if forUpdate {
		query += " for update"
	}

	var status models.ReferralStatus
	if err := sqlx.GetContext(ctx, r.db, &status, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error("Failed find referral status: ", err)
		return nil, err
	}

	return &status, nil
}

func (r *ReferralStatusRepository) Save(ctx context.Context, status *models.ReferralStatus) (bool, error) {
	query, args, err := r.db.BindNamed(
		"insert into referral_status(address, referral_link, earned_total, withdrawn_total, referred_user_count, total_referred_users, commission_percent, last_distribution_at, created_at) values (:address, :referral_link, :earned_total, :withdrawn_total, :referred_user_count, :total_referred_users, :commission_percent, :last_distribution_at, :created_at) on conflict (address) do nothing returning id",
		status,
	)
	if err != nil {
		log.Error("Failed insert referral status: ", err)
		return false, err
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&status.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Error("Failed save referral status: ", err)
		return false, err
	}

	return true, nil
}

// Update writes the mutable columns. referral_link is immutable.
func (r *ReferralStatusRepository) Update(ctx context.Context, status *models.ReferralStatus) error {
	if _, err := sqlx.NamedExecContext(
		ctx,
		r.db,
		"update referral_status set earned_total = :earned_total, withdrawn_total = :withdrawn_total, referred_user_count = :referred_user_count, total_referred_users = :total_referred_users, commission_percent = :commission_percent, last_distribution_at = :last_distribution_at where address = :address",
		status,
	); err != nil {
		log.Error("Failed update referral status: ", err)
		return err
	}

	return nil
}
