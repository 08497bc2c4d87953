package repositories

import (
	"context"
	"database/sql"
	"errors"

	"refledger/internal/models"

	"github.com/jmoiron/sqlx"
)

type AccountRepository struct {
	db sqlx.ExtContext
}

func NewAccountRepository(db sqlx.ExtContext) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

func (r *AccountRepository) FindByAddress(ctx context.Context, address string, forUpdate bool) (*models.Account, error) {
	query := "select * from account where address=$1"
	if forUpdate {
		query += " for update"
	}

	var acc models.Account
	if err := sqlx.GetContext(ctx, r.db, &acc, query, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error("Failed find account by address: ", err)
		return nil, err
	}

	return &acc, nil
}

func (r *AccountRepository) Save(ctx context.Context, acc *models.Account) (bool, error) {
	query, args, err := r.db.BindNamed(
		"insert into account(address, active, inviter, inviter_link, tallies, created_at, last_activity_at) values (:address, :active, :inviter, :inviter_link, :tallies, :created_at, :last_activity_at) on conflict (address) do nothing returning id",
		acc,
	)
	if err != nil {
		log.Error("Failed insert account: ", err)
		return false, err
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&acc.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		log.Error("Failed save account: ", err)
		return false, err
	}

	return true, nil
}

func (r *AccountRepository) Update(ctx context.Context, acc *models.Account) error {
	if _, err := sqlx.NamedExecContext(
		ctx,
		r.db,
		"update account set active = :active, inviter = :inviter, inviter_link = :inviter_link, tallies = :tallies, last_activity_at = :last_activity_at where address = :address",
		acc,
	); err != nil {
		log.Error("Failed update account: ", err)
		return err
	}

	return nil
}

func (r *AccountRepository) FindByInviterLimit(ctx context.Context, inviter string, offset, limit int) ([]models.Account, error) {
	accounts := make([]models.Account, 0)

	if err := sqlx.SelectContext(
		ctx,
		r.db,
		&accounts,
		"select * from account where inviter = $1 order by id offset $2 limit $3",
		inviter,
		offset,
		limit,
	); err != nil {
		log.Error("Failed find referred accounts: ", err)
		return nil, err
	}

	return accounts, nil
}
