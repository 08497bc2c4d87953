package repositories

import (
	"context"
	"database/sql"
	"time"

	"refledger/internal/models"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 30 * time.Second

// PostgresStore runs ledger transactions at READ COMMITTED and serializes
// writers with row locks (select ... for update).
type PostgresStore struct {
	db          *sqlx.DB
	accounts    *AccountRepository
	statuses    *ReferralStatusRepository
	withdrawals *WithdrawalRepository
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:          db,
		accounts:    NewAccountRepository(db),
		statuses:    NewReferralStatusRepository(db),
		withdrawals: NewWithdrawalRepository(db),
	}
}

func (s *PostgresStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		log.Error("Error starting transaction: ", err)
		return err
	}

	if err := fn(newPgTx(tx)); err != nil {
		if er := tx.Rollback(); er != nil {
			log.Error("Failed to rollback transaction: ", er)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction: ", err)
		return err
	}

	return nil
}

func (s *PostgresStore) Account(ctx context.Context, address string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.accounts.FindByAddress(ctx, address, false)
}

func (s *PostgresStore) ReferredAccounts(ctx context.Context, inviter string, offset, limit int) ([]models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.accounts.FindByInviterLimit(ctx, inviter, offset, limit)
}

func (s *PostgresStore) Status(ctx context.Context, address string) (*models.ReferralStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.statuses.FindByAddress(ctx, address, false)
}

func (s *PostgresStore) StatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.statuses.FindByLink(ctx, link, false)
}

func (s *PostgresStore) Withdrawal(ctx context.Context, id int64) (*models.WithdrawalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.withdrawals.FindById(ctx, id, false)
}

func (s *PostgresStore) PendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.withdrawals.FindByStateLimit(ctx, models.WithdrawalPending, limit)
}

func (s *PostgresStore) WithdrawalsByAddress(ctx context.Context, address string, offset, limit int) ([]models.WithdrawalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.withdrawals.FindByAddressLimit(ctx, address, offset, limit)
}

type pgTx struct {
	accounts    *AccountRepository
	statuses    *ReferralStatusRepository
	withdrawals *WithdrawalRepository
	events      *EventRepository
}

func newPgTx(tx *sqlx.Tx) *pgTx {
	return &pgTx{
		accounts:    NewAccountRepository(tx),
		statuses:    NewReferralStatusRepository(tx),
		withdrawals: NewWithdrawalRepository(tx),
		events:      NewEventRepository(tx),
	}
}

func (t *pgTx) FindAccount(ctx context.Context, address string) (*models.Account, error) {
	return t.accounts.FindByAddress(ctx, address, true)
}

func (t *pgTx) CreateAccount(ctx context.Context, acc *models.Account) (bool, error) {
	return t.accounts.Save(ctx, acc)
}

func (t *pgTx) UpdateAccount(ctx context.Context, acc *models.Account) error {
	return t.accounts.Update(ctx, acc)
}

func (t *pgTx) FindStatus(ctx context.Context, address string) (*models.ReferralStatus, error) {
	return t.statuses.FindByAddress(ctx, address, true)
}

func (t *pgTx) FindStatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error) {
	return t.statuses.FindByLink(ctx, link, true)
}

func (t *pgTx) CreateStatus(ctx context.Context, s *models.ReferralStatus) (bool, error) {
	return t.statuses.Save(ctx, s)
}

func (t *pgTx) UpdateStatus(ctx context.Context, s *models.ReferralStatus) error {
	return t.statuses.Update(ctx, s)
}

func (t *pgTx) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRecord) error {
	return t.withdrawals.Save(ctx, w)
}

func (t *pgTx) FindWithdrawal(ctx context.Context, id int64) (*models.WithdrawalRecord, error) {
	return t.withdrawals.FindById(ctx, id, true)
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRecord) error {
	return t.withdrawals.Update(ctx, w)
}

func (t *pgTx) MarkEventProcessed(ctx context.Context, key string) (bool, error) {
	return t.events.MarkProcessed(ctx, key)
}
