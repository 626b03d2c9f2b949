package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"gold-rush/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTS = time.Date(2026, 2, 13, 16, 10, 0, 0, time.UTC)

func testSnapshot(symbol string, ts time.Time, price string) *domain.PriceSnapshot {
	s := &domain.PriceSnapshot{
		Provider:             domain.ProviderAlphaVantage,
		ProviderFunction:     domain.FunctionGoldSilverSpot,
		Symbol:               symbol,
		QuoteCurrency:        domain.CurrencyUSD,
		Price:                decimal.RequireFromString(price).Round(domain.PriceScale),
		NominalRaw:           "1 troy ounce",
		ProviderTimestampRaw: ts.Format("2006-01-02 15:04:05"),
		ProviderTimestampUTC: ts,
		FetchedAtUTC:         ts.Add(2 * time.Second),
	}
	if name, ok := domain.MetalName(symbol); ok {
		s.MetalName = &name
	}
	return s
}

func TestMemoryInsertIfNewIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	first := testSnapshot("XAU", baseTS, "2000")
	inserted, err := repo.InsertIfNew(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(1), first.ID)

	again := testSnapshot("XAU", baseTS.In(time.FixedZone("CET", 3600)), "2000")
	again.FetchedAtUTC = baseTS.Add(time.Minute)
	inserted, err = repo.InsertIfNew(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, again.ID)

	history, err := repo.HistoryForSymbol(ctx, "XAU", 100)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.FetchedAtUTC, history[0].FetchedAtUTC)
}

func TestMemoryInsertIfNewDistinguishesKeyParts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	a := testSnapshot("XAU", baseTS, "2000")
	b := testSnapshot("XAU", baseTS, "2000")
	b.QuoteCurrency = "EUR"
	c := testSnapshot("XAU", baseTS, "2000")
	c.Provider = "OTHER"
	d := testSnapshot("XAG", baseTS, "31")

	for _, s := range []*domain.PriceSnapshot{a, b, c, d} {
		inserted, err := repo.InsertIfNew(ctx, s)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestMemoryInsertIfNewRejectsBrokenRows(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	bad := testSnapshot("XAU", baseTS, "1")
	bad.Price = decimal.Zero

	_, err := repo.InsertIfNew(context.Background(), bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageConstraint)
}

func TestMemoryInsertIfNewConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	var wg sync.WaitGroup
	results := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := repo.InsertIfNew(ctx, testSnapshot("XAU", baseTS, "2000"))
			assert.NoError(t, err)
			results <- inserted
		}()
	}
	wg.Wait()
	close(results)

	count := 0
	for inserted := range results {
		if inserted {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMemoryLatestPerSymbol(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	rows := []*domain.PriceSnapshot{
		testSnapshot("XAU", baseTS, "2000"),
		testSnapshot("XAU", baseTS.Add(time.Hour), "2010"),
		testSnapshot("XAU", baseTS.Add(-time.Hour), "1990"),
		testSnapshot("XAG", baseTS, "31"),
		testSnapshot("XPT", baseTS.Add(-time.Hour), "980"),
	}
	for _, s := range rows {
		_, err := repo.InsertIfNew(ctx, s)
		require.NoError(t, err)
	}

	latest, err := repo.LatestPerSymbol(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, []string{"XAG", "XAU", "XPT"}, symbolsOf(latest))
	assert.Equal(t, "2010.00000000", latest[1].PriceString())
	assert.True(t, latest[1].ProviderTimestampUTC.Equal(baseTS.Add(time.Hour)))
}

func TestMemoryLatestPerSymbolTieBreaksOnHighestID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	a := testSnapshot("XAU", baseTS, "2000")
	b := testSnapshot("XAU", baseTS, "2001")
	b.Provider = "SECOND_SOURCE"
	for _, s := range []*domain.PriceSnapshot{a, b} {
		_, err := repo.InsertIfNew(ctx, s)
		require.NoError(t, err)
	}

	latest, err := repo.LatestPerSymbol(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, b.ID, latest[0].ID)
}

func TestMemoryHistoryForSymbol(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	for i := 0; i < 10; i++ {
		_, err := repo.InsertIfNew(ctx, testSnapshot("XAU", baseTS.Add(time.Duration(i*7%10)*time.Minute), "2000"))
		require.NoError(t, err)
	}
	_, err := repo.InsertIfNew(ctx, testSnapshot("XAG", baseTS.Add(time.Hour), "31"))
	require.NoError(t, err)

	history, err := repo.HistoryForSymbol(ctx, "XAU", 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, s := range history {
		assert.Equal(t, "XAU", s.Symbol)
		if i > 0 {
			assert.False(t, s.ProviderTimestampUTC.After(history[i-1].ProviderTimestampUTC))
		}
	}
	assert.True(t, history[0].ProviderTimestampUTC.Equal(baseTS.Add(9*time.Minute)))

	empty, err := repo.HistoryForSymbol(ctx, "ZZZ", 100)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryRecentlyFetched(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()

	old := testSnapshot("XAU", baseTS.Add(time.Hour), "2000")
	old.FetchedAtUTC = baseTS
	fresh := testSnapshot("XAG", baseTS, "31")
	fresh.FetchedAtUTC = baseTS.Add(2 * time.Hour)
	for _, s := range []*domain.PriceSnapshot{old, fresh} {
		_, err := repo.InsertIfNew(ctx, s)
		require.NoError(t, err)
	}

	recent, err := repo.RecentlyFetched(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "XAG", recent[0].Symbol)
}

func TestMemoryResultsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()
	_, err := repo.InsertIfNew(ctx, testSnapshot("XAU", baseTS, "2000"))
	require.NoError(t, err)

	latest, err := repo.LatestPerSymbol(ctx)
	require.NoError(t, err)
	latest[0].Price = decimal.RequireFromString("1")

	again, err := repo.LatestPerSymbol(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2000.00000000", again[0].PriceString())
}

func symbolsOf(snaps []*domain.PriceSnapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Symbol)
	}
	return out
}
