package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gold-rush/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	latestCacheKey = "metals:latest"
	latestCacheTTL = 60 * time.Second
)

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	LatestPerSymbol(ctx context.Context) ([]*domain.PriceSnapshot, error)
	HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error)
	RecentlyFetched(ctx context.Context, limit int) ([]*domain.PriceSnapshot, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// MetalQueryService serves latest and history views over the snapshot
// store. Inputs are expected to be validated by the caller: symbols are
// well formed and limits already clamped.
type MetalQueryService struct {
	tracer trace.Tracer
	store  SnapshotReader
	redis  RedisClient
}

func NewMetalQueryService(tracer trace.Tracer, store SnapshotReader, redisClient RedisClient) *MetalQueryService {
	return &MetalQueryService{
		tracer: tracer,
		store:  store,
		redis:  redisClient,
	}
}

// LatestPerSymbol returns one snapshot per stored symbol, ordered by symbol.
// Results are cached in Redis for a minute when a client is configured.
func (s *MetalQueryService) LatestPerSymbol(ctx context.Context) ([]*domain.PriceSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "metal-query.latest-per-symbol")
	defer span.End()

	if s.redis != nil {
		cached, err := s.getLatestCache(ctx)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	snapshots, err := s.store.LatestPerSymbol(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setLatestCache(ctx, snapshots); err != nil {
			log.Printf("redis cache write error: %v", err)
		}
	}
	return snapshots, nil
}

func (s *MetalQueryService) HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "metal-query.history-for-symbol")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit))

	return s.store.HistoryForSymbol(ctx, symbol, limit)
}

func (s *MetalQueryService) RecentlyFetched(ctx context.Context, limit int) ([]*domain.PriceSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "metal-query.recently-fetched")
	defer span.End()

	return s.store.RecentlyFetched(ctx, limit)
}

// InvalidateLatest drops the cached latest view after new rows are stored.
func (s *MetalQueryService) InvalidateLatest(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, latestCacheKey).Err(); err != nil {
		log.Printf("redis cache invalidate error: %v", err)
	}
}

func (s *MetalQueryService) setLatestCache(ctx context.Context, snapshots []*domain.PriceSnapshot) error {
	data, err := json.Marshal(snapshots)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, latestCacheKey, data, latestCacheTTL).Err()
}

func (s *MetalQueryService) getLatestCache(ctx context.Context) ([]*domain.PriceSnapshot, error) {
	data, err := s.redis.Get(ctx, latestCacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snapshots := []*domain.PriceSnapshot{}
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}
