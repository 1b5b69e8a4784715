package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/store"
)

func item(upload uuid.UUID, paid money.Cents, expected *money.Cents) model.LineItem {
	it := model.LineItem{ID: uuid.New(), UploadID: upload, CPTCode: "99490", PaidCents: paid, ProgramType: model.ProgramUnknown}
	if expected != nil {
		v := paid - *expected
		it.SystemRevenueCents = expected
		it.VarianceCents = &v
		it.ProgramType = model.ProgramCCM
	}
	return it
}

func fixture() []model.LineItem {
	a, b := uuid.New(), uuid.New()
	return []model.LineItem{
		item(a, 6200, money.Ptr(6200)), // exact
		item(a, 1500, nil),             // unknown code
		item(b, 4000, money.Ptr(4800)), // underpaid
		item(b, 7000, money.Ptr(6200)), // overpaid
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())

	assert.Equal(t, 2, s.UploadCount)
	assert.Equal(t, 4, s.LineItemCount)
	assert.Equal(t, money.Cents(18700), s.TotalPaid)
	assert.Equal(t, money.Cents(17200), s.TotalSystemRevenue)
	// Only the three items with an expected amount contribute: 17200 - 17200.
	assert.Equal(t, money.Cents(0), s.TotalVariance)
	assert.Equal(t, 2, s.DiscrepancyCount)
	require.Len(t, s.Discrepancies, 2)

	var sum money.Cents
	for _, d := range s.Discrepancies {
		assert.Equal(t, d.Paid-d.Expected, d.Variance)
		sum += d.Variance
	}
	assert.Equal(t, money.Cents(0), sum)
}

func TestSummarize_UnknownExcludedFromVariance(t *testing.T) {
	u := uuid.New()
	s := Summarize([]model.LineItem{
		item(u, 5000, money.Ptr(6200)),
		item(u, 9999, nil),
	})
	assert.Equal(t, money.Cents(14999), s.TotalPaid)
	assert.Equal(t, money.Cents(6200), s.TotalSystemRevenue)
	assert.Equal(t, money.Cents(-1200), s.TotalVariance)
	assert.Equal(t, 1, s.DiscrepancyCount)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.LineItemCount)
	assert.Zero(t, s.UploadCount)
	assert.Zero(t, s.TotalPaid)
	assert.NotNil(t, s.Discrepancies)
	assert.Empty(t, s.Discrepancies)
}

func TestSummarize_OrderIndependent(t *testing.T) {
	items := fixture()
	want := Summarize(items)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]model.LineItem(nil), items...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Summarize(shuffled)

		assert.Equal(t, want.TotalPaid, got.TotalPaid)
		assert.Equal(t, want.TotalSystemRevenue, got.TotalSystemRevenue)
		assert.Equal(t, want.TotalVariance, got.TotalVariance)
		assert.Equal(t, want.DiscrepancyCount, got.DiscrepancyCount)
		assert.Equal(t, want.UploadCount, got.UploadCount)
		assert.ElementsMatch(t, want.Discrepancies, got.Discrepancies)
	}
}

func TestSummarize_NoTruncation(t *testing.T) {
	u := uuid.New()
	var items []model.LineItem
	for i := 0; i < 500; i++ {
		items = append(items, item(u, money.Cents(100+i), money.Ptr(50)))
	}
	s := Summarize(items)
	assert.Equal(t, 500, s.DiscrepancyCount)
	assert.Len(t, s.Discrepancies, 500)
}

type fakeSource struct {
	items []model.LineItem
	err   error
	got   store.Filter
}

func (f *fakeSource) PeriodLineItems(_ context.Context, filter store.Filter) ([]model.LineItem, error) {
	f.got = filter
	return f.items, f.err
}

func TestAggregator_Reconcile(t *testing.T) {
	src := &fakeSource{items: fixture()}
	agg := NewAggregator(src, zerolog.Nop())

	practice := "P1"
	period := model.Period{Month: "JAN", Year: 2024}
	s, err := agg.Reconcile(context.Background(), store.Filter{PracticeID: &practice, Period: &period})
	require.NoError(t, err)
	assert.Equal(t, 4, s.LineItemCount)
	assert.Equal(t, &practice, src.got.PracticeID)
	assert.Equal(t, &period, src.got.Period)

	src.err = errors.New("db down")
	_, err = agg.Reconcile(context.Background(), store.Filter{})
	assert.Error(t, err)
}
