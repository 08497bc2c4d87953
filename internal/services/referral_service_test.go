package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"refledger/internal/models"
	"refledger/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	referrerAddr = "0x1111111111111111111111111111111111111111"
	userAddr     = "0x2222222222222222222222222222222222222222"
	otherAddr    = "0x3333333333333333333333333333333333333333"
)

func TestBindInviter_NewAccount(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedReferrer(t, store, referrerAddr, "L123", nil)
	rs := NewReferralService(store, "https://app/?ref=")
	ctx := context.Background()

	require.NoError(t, rs.BindInviter(ctx, "0x"+strings.ToUpper(userAddr[2:]), "", "L123"))

	acc, err := store.Account(ctx, userAddr)
	require.NoError(t, err)
	assert.True(t, acc.Active)
	assert.Equal(t, referrerAddr, acc.Inviter.String)
	assert.Equal(t, "L123", acc.InviterLink.String)
	assert.Equal(t, int64(1), mustStatus(t, store, referrerAddr).TotalReferredUsers)
}

func TestBindInviter_ActiveAccountTwice(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedReferrer(t, store, referrerAddr, "L123", nil)
	seedReferrer(t, store, otherAddr, "L456", nil)
	rs := NewReferralService(store, "")
	ctx := context.Background()

	require.NoError(t, rs.BindInviter(ctx, userAddr, "", "L123"))

	for _, link := range []string{"L123", "L456"} {
		err := rs.BindInviter(ctx, userAddr, "", link)
		assert.ErrorIs(t, err, models.ErrAlreadyBound)
	}

	acc, err := store.Account(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, referrerAddr, acc.Inviter.String)
	assert.Equal(t, int64(1), mustStatus(t, store, referrerAddr).TotalReferredUsers)
	assert.Equal(t, int64(0), mustStatus(t, store, otherAddr).TotalReferredUsers)
}

func TestBindInviter_InactiveAccount(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedReferrer(t, store, referrerAddr, "L123", nil)
	ctx := context.Background()

	require.NoError(t, store.WithTransaction(ctx, func(tx repositories.Tx) error {
		_, err := tx.CreateAccount(ctx, &models.Account{Address: userAddr, CreatedAt: time.Now()})
		return err
	}))

	rs := NewReferralService(store, "")
	require.NoError(t, rs.BindInviter(ctx, userAddr, referrerAddr, "L123"))

	acc, err := store.Account(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, referrerAddr, acc.Inviter.String)
}

func TestBindInviter_Rejections(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedReferrer(t, store, referrerAddr, "L123", nil)
	rs := NewReferralService(store, "")
	ctx := context.Background()

	assert.ErrorIs(t, rs.BindInviter(ctx, userAddr, "", "nope"), models.ErrInviterNotFound)
	assert.ErrorIs(t, rs.BindInviter(ctx, "not-an-address", "", "L123"), models.ErrInvalidRequest)
	assert.ErrorIs(t, rs.BindInviter(ctx, referrerAddr, "", "L123"), models.ErrInvalidRequest)

	_, err := store.Account(ctx, userAddr)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, int64(0), mustStatus(t, store, referrerAddr).TotalReferredUsers)
}

func TestGenerateLink_GetOrCreate(t *testing.T) {
	store := repositories.NewMemoryStore()
	rs := NewReferralService(store, "https://app/?ref=")
	ctx := context.Background()

	first, err := rs.GenerateLink(ctx, referrerAddr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "https://app/?ref="))

	second, err := rs.GenerateLink(ctx, referrerAddr)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	link := strings.TrimPrefix(first, "https://app/?ref=")
	ok, err := rs.IsReferralLink(ctx, link)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rs.IsReferralLink(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserActiveAndReferredUsers(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedReferrer(t, store, referrerAddr, "L123", nil)
	rs := NewReferralService(store, "")
	ctx := context.Background()

	active, err := rs.UserActive(ctx, userAddr)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, rs.BindInviter(ctx, userAddr, "", "L123"))
	require.NoError(t, rs.BindInviter(ctx, otherAddr, "", "L123"))

	active, err = rs.UserActive(ctx, userAddr)
	require.NoError(t, err)
	assert.True(t, active)

	users, err := rs.ReferredUsers(ctx, referrerAddr, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = rs.ReferredUsers(ctx, referrerAddr, 1, 10)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

// lockOrderStore records the table behind every row-locking Find.
type lockOrderStore struct {
	repositories.Store
	mu    sync.Mutex
	locks []string
}

func (s *lockOrderStore) WithTransaction(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.WithTransaction(ctx, func(tx repositories.Tx) error {
		return fn(&lockOrderTx{Tx: tx, store: s})
	})
}

func (s *lockOrderStore) record(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, table)
}

func (s *lockOrderStore) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.locks
	s.locks = nil
	return res
}

type lockOrderTx struct {
	repositories.Tx
	store *lockOrderStore
}

func (tx *lockOrderTx) FindAccount(ctx context.Context, address string) (*models.Account, error) {
	tx.store.record("account")
	return tx.Tx.FindAccount(ctx, address)
}

func (tx *lockOrderTx) FindStatus(ctx context.Context, address string) (*models.ReferralStatus, error) {
	tx.store.record("referral_status")
	return tx.Tx.FindStatus(ctx, address)
}

func (tx *lockOrderTx) FindStatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error) {
	tx.store.record("referral_status")
	return tx.Tx.FindStatusByLink(ctx, link)
}

func TestBindInviter_LocksAccountBeforeStatus(t *testing.T) {
	store := &lockOrderStore{Store: repositories.NewMemoryStore()}
	seedReferrer(t, store, referrerAddr, "L123", nil)
	store.take()
	ctx := context.Background()

	require.NoError(t, NewReferralService(store, "").BindInviter(ctx, userAddr, "", "L123"))
	bind := store.take()

	ls := NewLedgerService(store, true)
	credit(t, ls, models.ChannelPool, 1000, "0xa:0")
	credited := store.take()

	// both paths lock account first
	assert.Equal(t, []string{"account", "referral_status"}, bind)
	require.NotEmpty(t, credited)
	assert.Equal(t, "account", credited[0])
	assert.Contains(t, credited, "referral_status")
}
