package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gold-rush/internal/domain"
	"gold-rush/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// symbolPacing keeps consecutive upstream calls under the provider's
// per-minute quota.
const symbolPacing = time.Second

type QuoteClient interface {
	Fetch(ctx context.Context, symbol, apiKey string) (domain.RawPayload, error)
}

type SnapshotNormalizer interface {
	Normalize(symbol string, payload domain.RawPayload, fetchedAt time.Time) (*domain.PriceSnapshot, error)
}

type SnapshotWriter interface {
	InsertIfNew(ctx context.Context, snapshot *domain.PriceSnapshot) (bool, error)
}

// LatestInvalidator is notified when a batch stored at least one new row.
type LatestInvalidator interface {
	InvalidateLatest(ctx context.Context)
}

// IngestionService runs fetch, normalize and store for a batch of symbols,
// one symbol at a time. Per-symbol failures never abort the batch.
type IngestionService struct {
	tracer      trace.Tracer
	client      QuoteClient
	normalizer  SnapshotNormalizer
	store       SnapshotWriter
	invalidator LatestInvalidator
	metrics     *observability.Metrics

	pacing time.Duration
	pause  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewIngestionService(
	tracer trace.Tracer,
	client QuoteClient,
	normalizer SnapshotNormalizer,
	store SnapshotWriter,
	invalidator LatestInvalidator,
	metrics *observability.Metrics,
) *IngestionService {
	return &IngestionService{
		tracer:      tracer,
		client:      client,
		normalizer:  normalizer,
		store:       store,
		invalidator: invalidator,
		metrics:     metrics,
		pacing:      symbolPacing,
		pause:       sleep,
		now:         time.Now,
	}
}

// Run ingests symbols with apiKey. Symbols are trimmed, uppercased and
// deduplicated; malformed ones are recorded as failures without a fetch.
//
// The returned result is always non-nil when symbols were given. The error
// is ErrAllSymbolsFailed when no symbol succeeded, and nil for success or
// partial success.
func (s *IngestionService) Run(ctx context.Context, symbols []string, apiKey string) (*domain.BatchResult, error) {
	symbols = domain.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, domain.ErrNoSymbols
	}

	ctx, span := s.tracer.Start(ctx, "ingestion.run")
	defer span.End()

	result := domain.NewBatchResult(s.now().UTC())
	span.SetAttributes(
		attribute.String("run_id", result.RunID.String()),
		attribute.Int("symbols", len(symbols)),
	)
	log.Printf("ingestion run %s started for %v", result.RunID, symbols)

	fetched := false
	for i, symbol := range symbols {
		if !domain.ValidSymbol(symbol) {
			s.fail(result, symbol, fmt.Errorf("%w: %q", domain.ErrInvalidSymbol, symbol))
			continue
		}

		if fetched {
			if err := s.pause(ctx, s.pacing); err != nil {
				for _, rest := range symbols[i:] {
					s.fail(result, rest, fmt.Errorf("batch interrupted: %w", err))
				}
				break
			}
		}
		fetched = true

		s.ingestSymbol(ctx, result, symbol, apiKey)
	}

	result.FinishedAt = s.now().UTC()
	status := result.Status()
	s.metrics.ObserveBatch(string(status), result.FinishedAt, len(result.Succeeded) > 0)
	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.Int("succeeded", len(result.Succeeded)),
		attribute.Int("failed", len(result.Failed)),
	)

	if result.Inserted() > 0 && s.invalidator != nil {
		s.invalidator.InvalidateLatest(context.WithoutCancel(ctx))
	}

	log.Printf("ingestion run %s finished: status=%s succeeded=%d inserted=%d failed=%d",
		result.RunID, status, len(result.Succeeded), result.Inserted(), len(result.Failed))

	if status == domain.BatchFailed {
		return result, fmt.Errorf("%w: %d symbol(s)", domain.ErrAllSymbolsFailed, len(result.Failed))
	}
	return result, nil
}

func (s *IngestionService) ingestSymbol(ctx context.Context, result *domain.BatchResult, symbol, apiKey string) {
	ctx, span := s.tracer.Start(ctx, "ingestion.symbol")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	payload, err := s.client.Fetch(ctx, symbol, apiKey)
	if err != nil {
		s.fail(result, symbol, err)
		return
	}

	snapshot, err := s.normalizer.Normalize(symbol, payload, s.now())
	if err != nil {
		s.fail(result, symbol, err)
		return
	}

	inserted, err := s.store.InsertIfNew(ctx, snapshot)
	if err != nil {
		if errors.Is(err, domain.ErrStorageConstraint) {
			log.Printf("FATAL-ROW ingestion %s: %v", symbol, err)
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		s.fail(result, symbol, err)
		return
	}

	result.AddSuccess(snapshot, inserted)
	outcome := "duplicate"
	if inserted {
		outcome = "inserted"
	}
	s.metrics.ObserveSymbol(outcome)
	span.SetAttributes(attribute.Bool("inserted", inserted))
	log.Printf("ingestion %s: %s %s at %s (%s)",
		symbol, snapshot.PriceString(), snapshot.QuoteCurrency,
		snapshot.ProviderTimestampUTC.Format(time.RFC3339), outcome)
}

func (s *IngestionService) fail(result *domain.BatchResult, symbol string, err error) {
	result.AddFailure(symbol, err)
	s.metrics.ObserveSymbol(string(domain.FailureKindOf(err)))
	log.Printf("ingestion %s failed: %v", symbol, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
