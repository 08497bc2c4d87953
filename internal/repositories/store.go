package repositories

import (
	"context"
	"errors"

	"refledger/internal/config"
	"refledger/internal/models"
)

var log = config.InitLogger()

var ErrNotFound = errors.New("record not found")

// Tx is a transaction-scoped view of the ledger tables. Every Find method
// locks the returned row until the transaction ends.
type Tx interface {
	FindAccount(ctx context.Context, address string) (*models.Account, error)
	// CreateAccount returns false when the address already exists.
	CreateAccount(ctx context.Context, acc *models.Account) (bool, error)
	UpdateAccount(ctx context.Context, acc *models.Account) error

	FindStatus(ctx context.Context, address string) (*models.ReferralStatus, error)
	FindStatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error)
	// CreateStatus returns false when the address already has a status.
	CreateStatus(ctx context.Context, s *models.ReferralStatus) (bool, error)
	UpdateStatus(ctx context.Context, s *models.ReferralStatus) error

	CreateWithdrawal(ctx context.Context, w *models.WithdrawalRecord) error
	FindWithdrawal(ctx context.Context, id int64) (*models.WithdrawalRecord, error)
	UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRecord) error

	// MarkEventProcessed returns false when key was already recorded.
	MarkEventProcessed(ctx context.Context, key string) (bool, error)
}

// Store is the persistence boundary of the ledger. Mutations go through
// WithTransaction; the remaining methods are lock-free reads.
type Store interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error

	Account(ctx context.Context, address string) (*models.Account, error)
	ReferredAccounts(ctx context.Context, inviter string, offset, limit int) ([]models.Account, error)
	Status(ctx context.Context, address string) (*models.ReferralStatus, error)
	StatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error)
	Withdrawal(ctx context.Context, id int64) (*models.WithdrawalRecord, error)
	PendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRecord, error)
	WithdrawalsByAddress(ctx context.Context, address string, offset, limit int) ([]models.WithdrawalRecord, error)
}
