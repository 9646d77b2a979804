package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyflow/internal/alerts"
	"moneyflow/internal/core"
	"moneyflow/internal/limits"
	"moneyflow/internal/seed"
)

type recorder struct {
	mu     sync.Mutex
	events []alerts.Event
	calls  int
	err    error
}

func (r *recorder) Notify(_ context.Context, events []alerts.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.events = append(r.events, events...)
	return r.err
}

func newState(t *testing.T, opts ...Option) *State {
	t.Helper()
	s, err := New(seed.Default(), opts...)
	require.NoError(t, err)
	return s
}

func statusOf(t *testing.T, sts []limits.Status, category string) limits.Status {
	t.Helper()
	for _, st := range sts {
		if st.Category == category {
			return st
		}
	}
	require.FailNowf(t, "missing status", "no status for %q", category)
	return limits.Status{}
}

func TestNewRejectsInvalidData(t *testing.T) {
	data := seed.Default()
	data.Transactions[0].Amount = core.Money{}

	_, err := New(data)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSnapshot(t *testing.T) {
	s := newState(t)
	snap := s.Snapshot()

	assert.Equal(t, "₽", snap.Currency)
	assert.Equal(t, core.FromMajor(664540), snap.TotalBalance)
	assert.Equal(t, core.FromMajor(86200), snap.Summary.TotalIncome)
	assert.Equal(t, core.FromMajor(9310), snap.Summary.TotalExpenses)
	assert.Equal(t, core.FromMajor(76890), snap.Summary.NetBalance)
	assert.Len(t, snap.Transactions, 5)
	assert.Equal(t, "1", snap.Transactions[0].ID)
	assert.Equal(t, uint64(0), snap.Revision)
	assert.Equal(t, []core.Money{
		core.FromMajor(500), core.FromMajor(1000), core.FromMajor(5000), core.FromMajor(10000),
	}, snap.QuickAmounts)

	groceries := statusOf(t, snap.Statuses, "Продукты")
	assert.Equal(t, limits.OK, groceries.Classification)
	assert.Equal(t, core.FromMajor(11580), groceries.Remaining)

	for _, st := range snap.Statuses {
		assert.NotEqual(t, limits.Exceeded, st.Classification, st.Category)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newState(t)
	snap := s.Snapshot()
	snap.Accounts[0].Name = "changed"
	snap.Transactions[0].Title = "changed"

	again := s.Snapshot()
	assert.Equal(t, "Основная карта", again.Accounts[0].Name)
	assert.Equal(t, "Поступление зарплаты", again.Transactions[0].Title)
}

func TestNewNeverAlerts(t *testing.T) {
	data := seed.Default()
	data.Limits[1].Limit = core.FromMajor(1000) // Переводы already exceeded

	rec := &recorder{}
	s, err := New(data, WithNotifier(rec))
	require.NoError(t, err)

	assert.Equal(t, 0, rec.calls)
	assert.Equal(t, limits.Exceeded, statusOf(t, s.Snapshot().Statuses, "Переводы").Classification)

	// Already exceeded at load, so tightening further stays silent.
	upd, err := s.SetLimit(context.Background(), "Переводы", core.FromMajor(900))
	require.NoError(t, err)
	assert.Empty(t, upd.Alerts)
}

func TestSetLimitEdgeTriggered(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newState(t, WithNotifier(rec))

	upd, err := s.SetLimit(ctx, "Переводы", core.FromMajor(4000))
	require.NoError(t, err)
	require.Len(t, upd.Alerts, 1)
	assert.Equal(t, "Переводы", upd.Alerts[0].Category)
	assert.Equal(t, core.FromMajor(5000), upd.Alerts[0].Spent)
	assert.Equal(t, core.FromMajor(4000), upd.Alerts[0].Limit)
	assert.Equal(t, "125", upd.Alerts[0].RawPercentage.String())
	assert.Equal(t, uint64(1), upd.Revision)
	assert.Equal(t, upd.Revision, upd.Alerts[0].Revision)
	assert.Equal(t, 1, rec.calls)

	upd, err = s.SetLimit(ctx, "Переводы", core.FromMajor(3000))
	require.NoError(t, err)
	assert.Empty(t, upd.Alerts, "still exceeded")

	upd, err = s.SetLimit(ctx, "Переводы", core.FromMajor(10000))
	require.NoError(t, err)
	assert.Empty(t, upd.Alerts, "recovery is silent")
	assert.Equal(t, limits.OK, statusOf(t, upd.Statuses, "Переводы").Classification)

	upd, err = s.SetLimit(ctx, "Переводы", core.FromMajor(4000))
	require.NoError(t, err)
	assert.Len(t, upd.Alerts, 1, "exceeding again fires again")

	assert.Equal(t, 2, rec.calls)
	assert.Len(t, rec.events, 2)
	assert.Equal(t, uint64(4), s.Revision())
}

func TestSetLimitNeverAlertsForOtherCategories(t *testing.T) {
	s := newState(t)
	upd, err := s.SetLimit(context.Background(), "Услуги", core.FromMajor(890))
	require.NoError(t, err)
	assert.Empty(t, upd.Alerts)
	assert.Equal(t, limits.OK, statusOf(t, upd.Statuses, "Услуги").Classification)

	upd, err = s.SetLimit(context.Background(), "Услуги", core.FromMajor(1000))
	require.NoError(t, err)
	assert.Empty(t, upd.Alerts)
	assert.Equal(t, limits.Warning, statusOf(t, upd.Statuses, "Услуги").Classification)
}

func TestSetLimitErrorsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newState(t)
	before := s.Snapshot()

	_, err := s.SetLimit(ctx, "Продукты", core.FromMajor(-5))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = s.SetLimit(ctx, "Продукты", core.Money{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = s.SetLimit(ctx, "Путешествия", core.FromMajor(100))
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, before, s.Snapshot())
}

func TestSetLimitNotifierFailureIsNotAnError(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	s := newState(t, WithNotifier(rec))

	upd, err := s.SetLimit(context.Background(), "Продукты", core.FromMajor(3000))
	require.NoError(t, err)
	assert.Len(t, upd.Alerts, 1)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, core.FromMajor(3000), statusOf(t, s.Snapshot().Statuses, "Продукты").Limit)
}

func TestSetLimitConcurrent(t *testing.T) {
	s := newState(t)
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_, err := s.SetLimit(context.Background(), "Развлечения", core.FromMajor(n*100))
			assert.NoError(t, err)
			_ = s.Snapshot()
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, uint64(20), s.Revision())
}

func TestSetLimitConcurrentAlertsCarryRevision(t *testing.T) {
	rec := &recorder{}
	s := newState(t, WithNotifier(rec))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fired = map[uint64]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			limit := core.FromMajor(10000)
			if n%2 == 0 {
				limit = core.FromMajor(4000)
			}
			upd, err := s.SetLimit(context.Background(), "Переводы", limit)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, e := range upd.Alerts {
				assert.Equal(t, upd.Revision, e.Revision)
				fired[e.Revision] = true
			}
		}(i)
	}
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.events)
	require.Len(t, rec.events, len(fired))
	for _, e := range rec.events {
		assert.True(t, fired[e.Revision], "delivered revision %d was not returned", e.Revision)
		assert.LessOrEqual(t, e.Revision, uint64(20))
	}
}

func TestWithdraw(t *testing.T) {
	s := newState(t)

	r, err := s.Withdraw("1", core.FromMajor(1500))
	require.NoError(t, err)
	assert.Equal(t, "Выдано 1 500 ₽ из счёта Основная карта", r.Message)
	assert.Equal(t, "Основная карта", r.AccountName)
	assert.Equal(t, core.FromMajor(125340), s.Snapshot().Accounts[0].Balance)
	assert.Equal(t, uint64(0), s.Revision())

	_, err = s.Withdraw("1", core.Money{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = s.Withdraw("42", core.FromMajor(500))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
