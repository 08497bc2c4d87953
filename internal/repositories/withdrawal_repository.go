package repositories

import (
	"context"
	"database/sql"
	"errors"

	"refledger/internal/models"

	"github.com/jmoiron/sqlx"
)

type WithdrawalRepository struct {
	db sqlx.ExtContext
}

func NewWithdrawalRepository(db sqlx.ExtContext) *WithdrawalRepository {
	return &WithdrawalRepository{
		db: db,
	}
}

func (r *WithdrawalRepository) Save(ctx context.Context, w *models.WithdrawalRecord) error {
	query, args, err := r.db.BindNamed(
		"insert into withdrawal_record(from_address, to_address, amount, channel, fee_estimate, fee_paid, tx_hash, state, message, requested_at, updated_at) values (:from_address, :to_address, :amount, :channel, :fee_estimate, :fee_paid, :tx_hash, :state, :message, :requested_at, :updated_at) returning id",
		w,
	)
	if err != nil {
		log.Error("Error creating query: ", err)
		return err
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&w.Id); err != nil {
		log.Error("Failed save withdrawal record: ", err)
		return err
	}

	return nil
}

func (r *WithdrawalRepository) Update(ctx context.Context, w *models.WithdrawalRecord) error {
	if _, err := sqlx.NamedExecContext(
		ctx,
		r.db,
		"update withdrawal_record set fee_paid = :fee_paid, tx_hash = :tx_hash, state = :state, message = :message, updated_at = :updated_at, compensated_at = :compensated_at where id = :id",
		w,
	); err != nil {
		log.Error("Failed update withdrawal record: ", err)
		return err
	}

	return nil
}

func (r *WithdrawalRepository) FindById(ctx context.Context, id int64, forUpdate bool) (*models.WithdrawalRecord, error) {
	query := "select * from withdrawal_record where id=$1"
	if forUpdate {
		query += " for update"
	}

	var w models.WithdrawalRecord
	if err := sqlx.GetContext(ctx, r.db, &w, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Error("Failed find withdrawal record: ", err)
		return nil, err
	}

	return &w, nil
}

func (r *WithdrawalRepository) FindByStateLimit(ctx context.Context, state models.WithdrawalState, limit int) ([]models.WithdrawalRecord, error) {
	records := make([]models.WithdrawalRecord, 0)

	if err := sqlx.SelectContext(
		ctx,
		r.db,
		&records,
		"select * from withdrawal_record where state = $1 order by id limit $2",
		state,
		limit,
	); err != nil {
		log.Error("Failed find withdrawal records by state: ", err)
		return nil, err
	}

	return records, nil
}

func (r *WithdrawalRepository) FindByAddressLimit(ctx context.Context, address string, offset, limit int) ([]models.WithdrawalRecord, error) {
	records := make([]models.WithdrawalRecord, 0)

	if err := sqlx.SelectContext(
		ctx,
		r.db,
		&records,
		"select * from withdrawal_record where to_address = $1 order by id desc offset $2 limit $3",
		address,
		offset,
		limit,
	); err != nil {
		log.Error("Failed find withdrawal records by address: ", err)
		return nil, err
	}

	return records, nil
}
