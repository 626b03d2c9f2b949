package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gold-rush/internal/domain"
)

// MemorySnapshotRepository is an in-process ledger with the same
// uniqueness and ordering rules as SnapshotRepository. It backs tests and
// the server when DATABASE_URL is not configured.
type MemorySnapshotRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*domain.PriceSnapshot
	keys   map[string]struct{}
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{keys: make(map[string]struct{})}
}

func observationKey(s *domain.PriceSnapshot) string {
	return fmt.Sprintf("%s|%s|%s|%d", s.Provider, s.Symbol, s.QuoteCurrency, s.ProviderTimestampUTC.UnixMicro())
}

func (r *MemorySnapshotRepository) InsertIfNew(_ context.Context, s *domain.PriceSnapshot) (bool, error) {
	if s == nil || s.Symbol == "" || !s.Price.IsPositive() {
		return false, fmt.Errorf("insert snapshot: %w", domain.ErrStorageConstraint)
	}

	key := observationKey(s)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key]; exists {
		return false, nil
	}

	r.nextID++
	s.ID = r.nextID
	stored := *s
	r.rows = append(r.rows, &stored)
	r.keys[key] = struct{}{}
	return true, nil
}

func (r *MemorySnapshotRepository) LatestPerSymbol(_ context.Context) ([]*domain.PriceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*domain.PriceSnapshot)
	for _, row := range r.rows {
		cur, ok := latest[row.Symbol]
		if !ok || newerThan(row, cur) {
			latest[row.Symbol] = row
		}
	}

	out := make([]*domain.PriceSnapshot, 0, len(latest))
	for _, row := range latest {
		out = append(out, copySnapshot(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *MemorySnapshotRepository) HistoryForSymbol(_ context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.PriceSnapshot{}
	for _, row := range r.rows {
		if row.Symbol == symbol {
			out = append(out, copySnapshot(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerThan(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemorySnapshotRepository) RecentlyFetched(_ context.Context, limit int) ([]*domain.PriceSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.PriceSnapshot, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, copySnapshot(row))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchedAtUTC.Equal(out[j].FetchedAtUTC) {
			return out[i].FetchedAtUTC.After(out[j].FetchedAtUTC)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// newerThan orders by provider timestamp, then id, both descending.
func newerThan(a, b *domain.PriceSnapshot) bool {
	if !a.ProviderTimestampUTC.Equal(b.ProviderTimestampUTC) {
		return a.ProviderTimestampUTC.After(b.ProviderTimestampUTC)
	}
	return a.ID > b.ID
}

func copySnapshot(s *domain.PriceSnapshot) *domain.PriceSnapshot {
	c := *s
	return &c
}
