package repositories

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"refledger/internal/models"
)

// MemoryStore keeps the ledger in process memory. Transactions hold the
// store lock for their whole duration and apply their writes on commit
// only, so a failed fn leaves no trace. Used for local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*models.Account
	statuses    map[string]*models.ReferralStatus
	withdrawals map[int64]*models.WithdrawalRecord
	events      map[string]bool
	nextId      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*models.Account),
		statuses:    make(map[string]*models.ReferralStatus),
		withdrawals: make(map[int64]*models.WithdrawalRecord),
		events:      make(map[string]bool),
	}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:           s,
		accounts:    make(map[string]*models.Account),
		statuses:    make(map[string]*models.ReferralStatus),
		withdrawals: make(map[int64]*models.WithdrawalRecord),
		events:      make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Account(_ context.Context, address string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(acc), nil
}

func (s *MemoryStore) ReferredAccounts(_ context.Context, inviter string, offset, limit int) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Account, 0)
	for _, acc := range s.accounts {
		if acc.Inviter.Valid && acc.Inviter.String == inviter {
			res = append(res, *cloneAccount(acc))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Id.Int64 < res[j].Id.Int64 })
	return page(res, offset, limit), nil
}

func (s *MemoryStore) Status(_ context.Context, address string) (*models.ReferralStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[address]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneStatus(st), nil
}

func (s *MemoryStore) StatusByLink(_ context.Context, link string) (*models.ReferralStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.statuses {
		if st.ReferralLink == link {
			return cloneStatus(st), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Withdrawal(_ context.Context, id int64) (*models.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *w
	return &c, nil
}

func (s *MemoryStore) PendingWithdrawals(_ context.Context, limit int) ([]models.WithdrawalRecord, error) {
	return s.filterWithdrawals(func(w *models.WithdrawalRecord) bool {
		return w.State == models.WithdrawalPending
	}, false, 0, limit), nil
}

func (s *MemoryStore) WithdrawalsByAddress(_ context.Context, address string, offset, limit int) ([]models.WithdrawalRecord, error) {
	return s.filterWithdrawals(func(w *models.WithdrawalRecord) bool {
		return w.To == address
	}, true, offset, limit), nil
}

func (s *MemoryStore) filterWithdrawals(match func(*models.WithdrawalRecord) bool, desc bool, offset, limit int) []models.WithdrawalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.WithdrawalRecord, 0)
	for _, w := range s.withdrawals {
		if match(w) {
			res = append(res, *w)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if desc {
			return res[i].Id.Int64 > res[j].Id.Int64
		}
		return res[i].Id.Int64 < res[j].Id.Int64
	})
	return page(res, offset, limit)
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// memTx stages copies of every row it touches.
type memTx struct {
	s           *MemoryStore
	accounts    map[string]*models.Account
	statuses    map[string]*models.ReferralStatus
	withdrawals map[int64]*models.WithdrawalRecord
	events      map[string]bool
}

func (t *memTx) FindAccount(_ context.Context, address string) (*models.Account, error) {
	if acc, ok := t.accounts[address]; ok {
		return acc, nil
	}
	acc, ok := t.s.accounts[address]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneAccount(acc)
	t.accounts[address] = c
	return c, nil
}

func (t *memTx) CreateAccount(ctx context.Context, acc *models.Account) (bool, error) {
	if _, err := t.FindAccount(ctx, acc.Address); err == nil {
		return false, nil
	}
	t.s.nextId++
	acc.Id = sql.NullInt64{Int64: t.s.nextId, Valid: true}
	t.accounts[acc.Address] = acc
	return true, nil
}

func (t *memTx) UpdateAccount(_ context.Context, acc *models.Account) error {
	t.accounts[acc.Address] = acc
	return nil
}

func (t *memTx) FindStatus(_ context.Context, address string) (*models.ReferralStatus, error) {
	if st, ok := t.statuses[address]; ok {
		return st, nil
	}
	st, ok := t.s.statuses[address]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneStatus(st)
	t.statuses[address] = c
	return c, nil
}

func (t *memTx) FindStatusByLink(ctx context.Context, link string) (*models.ReferralStatus, error) {
	for _, st := range t.statuses {
		if st.ReferralLink == link {
			return st, nil
		}
	}
	for addr, st := range t.s.statuses {
		if st.ReferralLink == link {
			return t.FindStatus(ctx, addr)
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CreateStatus(ctx context.Context, st *models.ReferralStatus) (bool, error) {
	if _, err := t.FindStatus(ctx, st.Address); err == nil {
		return false, nil
	}
	t.s.nextId++
	st.Id = sql.NullInt64{Int64: t.s.nextId, Valid: true}
	t.statuses[st.Address] = st
	return true, nil
}

func (t *memTx) UpdateStatus(_ context.Context, st *models.ReferralStatus) error {
	t.statuses[st.Address] = st
	return nil
}

func (t *memTx) CreateWithdrawal(_ context.Context, w *models.WithdrawalRecord) error {
	t.s.nextId++
	w.Id = sql.NullInt64{Int64: t.s.nextId, Valid: true}
	t.withdrawals[w.Id.Int64] = w
	return nil
}

func (t *memTx) FindWithdrawal(_ context.Context, id int64) (*models.WithdrawalRecord, error) {
	if w, ok := t.withdrawals[id]; ok {
		return w, nil
	}
	w, ok := t.s.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *w
	t.withdrawals[id] = &c
	return &c, nil
}

func (t *memTx) UpdateWithdrawal(_ context.Context, w *models.WithdrawalRecord) error {
	t.withdrawals[w.Id.Int64] = w
	return nil
}

func (t *memTx) MarkEventProcessed(_ context.Context, key string) (bool, error) {
	if t.events[key] || t.s.events[key] {
		return false, nil
	}
	t.events[key] = true
	return true, nil
}

func (t *memTx) commit() {
	for k, v := range t.accounts {
		t.s.accounts[k] = cloneAccount(v)
	}
	for k, v := range t.statuses {
		t.s.statuses[k] = cloneStatus(v)
	}
	for k, v := range t.withdrawals {
		c := *v
		t.s.withdrawals[k] = &c
	}
	for k := range t.events {
		t.s.events[k] = true
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.Tallies = make(models.ChannelTallies, len(a.Tallies))
	for k, v := range a.Tallies {
		c.Tallies[k] = v
	}
	return &c
}

func cloneStatus(s *models.ReferralStatus) *models.ReferralStatus {
	c := *s
	c.EarnedTotal = make(models.ChannelAmounts, len(s.EarnedTotal))
	for k, v := range s.EarnedTotal {
		c.EarnedTotal[k] = v
	}
	c.WithdrawnTotal = make(models.ChannelAmounts, len(s.WithdrawnTotal))
	for k, v := range s.WithdrawnTotal {
		c.WithdrawnTotal[k] = v
	}
	c.ReferredUserCount = make(models.ChannelCounts, len(s.ReferredUserCount))
	for k, v := range s.ReferredUserCount {
		c.ReferredUserCount[k] = v
	}
	c.CommissionPercent = make(models.CommissionPercents, len(s.CommissionPercent))
	for k, v := range s.CommissionPercent {
		c.CommissionPercent[k] = v
	}
	return &c
}
