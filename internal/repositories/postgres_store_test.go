package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"refledger/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0x05258a3c3c9790e087056411f7a0f4c5b3f5129c"

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "address", "active", "inviter", "inviter_link", "tallies", "created_at", "last_activity_at"})
}

func TestAccountRepository_FindByAddressForUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("select * from account where address=$1 for update")).
		WithArgs(testAddr).
		WillReturnRows(accountRows().AddRow(1, testAddr, true, "0xinviter", "L123", []byte(`{"pool":{"channel":"5000","quote":"0"}}`), now, now))
	mock.ExpectCommit()

	var got *models.Account
	err := store.WithTransaction(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.FindAccount(context.Background(), testAddr)
		return err
	})
	require.NoError(t, err)

	assert.True(t, got.Active)
	assert.Equal(t, "0xinviter", got.Inviter.String)
	assert.Equal(t, "5000", got.Tallies.Get(models.ChannelPool).Channel.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_FindMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("select * from account where address=$1")).
		WithArgs(testAddr).
		WillReturnRows(accountRows())

	_, err := store.Account(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SaveConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into account").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("insert into account").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := store.WithTransaction(context.Background(), func(tx Tx) error {
		acc := &models.Account{Address: testAddr, Active: true, Tallies: models.ChannelTallies{}}
		created, err := tx.CreateAccount(context.Background(), acc)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(7), acc.Id.Int64)

		created, err = tx.CreateAccount(context.Background(), &models.Account{Address: testAddr, Tallies: models.ChannelTallies{}})
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RollbackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("update referral_status set").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.WithTransaction(context.Background(), func(tx Tx) error {
		st := models.NewReferralStatus(testAddr, "L123", time.Now())
		if err := tx.UpdateStatus(context.Background(), st); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralStatusRepository_FindByLink(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "address", "referral_link", "earned_total", "withdrawn_total", "referred_user_count", "total_referred_users", "commission_percent", "last_distribution_at", "created_at"}).
		AddRow(3, testAddr, "L123", []byte(`{"pool":"500"}`), []byte(`{"pool":"200"}`), []byte(`{"pool":1}`), 4, []byte(`{"default":10,"pool":2}`), nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("select * from referral_status where referral_link=$1")).
		WithArgs("L123").
		WillReturnRows(rows)

	st, err := store.StatusByLink(context.Background(), "L123")
	require.NoError(t, err)

	assert.Equal(t, int64(4), st.TotalReferredUsers)
	assert.Equal(t, "300", st.Available(models.ChannelPool).String())
	assert.Equal(t, int64(2), st.CommissionPercent.For(models.ChannelPool))
	assert.Equal(t, int64(10), st.CommissionPercent.For(models.ChannelSwap))
	assert.False(t, st.LastDistributionAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_MarkProcessed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into processed_event").WithArgs("0xabc:1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into processed_event").WithArgs("0xabc:1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithTransaction(context.Background(), func(tx Tx) error {
		first, err := tx.MarkEventProcessed(context.Background(), "0xabc:1")
		require.NoError(t, err)
		second, err := tx.MarkEventProcessed(context.Background(), "0xabc:1")
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_SaveAndPending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into withdrawal_record").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	w := &models.WithdrawalRecord{
		From:        "0xpayer",
		To:          testAddr,
		Amount:      models.NewAmount(500),
		Channel:     models.ChannelPool,
		FeeEstimate: models.NewAmount(55000),
		State:       models.WithdrawalPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.WithTransaction(context.Background(), func(tx Tx) error {
		return tx.CreateWithdrawal(context.Background(), w)
	}))
	assert.Equal(t, int64(11), w.Id.Int64)

	rows := sqlmock.NewRows([]string{"id", "from_address", "to_address", "amount", "channel", "fee_estimate", "fee_paid", "tx_hash", "state", "message", "requested_at", "updated_at", "compensated_at"}).
		AddRow(11, "0xpayer", testAddr, []byte("500"), "pool", []byte("55000"), []byte("0"), "0xhash", "pending", "In execution", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("select * from withdrawal_record where state = $1 order by id limit $2")).
		WithArgs(models.WithdrawalPending, 100).
		WillReturnRows(rows)

	pending, err := store.PendingWithdrawals(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "500", pending[0].Amount.String())
	assert.Equal(t, "0xhash", pending[0].TxHash.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}
