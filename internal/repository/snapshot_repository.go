package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gold-rush/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS metal_price_snapshots (
    id                      BIGSERIAL      PRIMARY KEY,
    provider                VARCHAR(32)    NOT NULL,
    provider_function       VARCHAR(64)    NOT NULL,
    symbol                  VARCHAR(10)    NOT NULL,
    metal_name              VARCHAR(32),
    quote_currency          CHAR(3)        NOT NULL,
    price                   NUMERIC(20, 8) NOT NULL CHECK (price > 0),
    nominal_raw             VARCHAR(64)    NOT NULL,
    provider_timestamp_raw  VARCHAR(64)    NOT NULL,
    provider_timestamp_utc  TIMESTAMPTZ    NOT NULL,
    fetched_at_utc          TIMESTAMPTZ    NOT NULL,
    CONSTRAINT uniq_metal_provider_symbol_curr_ts
        UNIQUE (provider, symbol, quote_currency, provider_timestamp_utc)
);

CREATE INDEX IF NOT EXISTS idx_metal_symbol_provider_ts
    ON metal_price_snapshots (symbol, provider_timestamp_utc DESC);

CREATE INDEX IF NOT EXISTS idx_metal_fetched_at
    ON metal_price_snapshots (fetched_at_utc DESC);
`

const snapshotColumns = `id, provider, provider_function, symbol, metal_name, quote_currency,
       price::text, nominal_raw, provider_timestamp_raw, provider_timestamp_utc, fetched_at_utc`

// Postgres error codes that mean a row broke a table invariant.
const (
	pgErrUniqueViolation  = "23505"
	pgErrCheckViolation   = "23514"
	pgErrNumericOverflow  = "22003"
	pgErrStringTooLong    = "22001"
	pgErrNotNullViolation = "23502"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SnapshotRepository is the append-only Postgres ledger of price snapshots.
// Rows are never updated or deleted.
type SnapshotRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSnapshotRepository(pool PgxPool, tracer trace.Tracer) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, tracer: tracer}
}

func (r *SnapshotRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createSnapshotsTable)
	return err
}

// InsertIfNew stores the snapshot unless an observation with the same
// (provider, symbol, quote_currency, provider_timestamp_utc) exists. The
// decision is made by the unique constraint in a single statement, so two
// concurrent ingestions of the same observation yield one row and one
// (false, nil). On insert the generated id is written back to s.
func (r *SnapshotRepository) InsertIfNew(ctx context.Context, s *domain.PriceSnapshot) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.insert-if-new")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", s.Symbol))

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO metal_price_snapshots (
		     provider, provider_function, symbol, metal_name, quote_currency, price,
		     nominal_raw, provider_timestamp_raw, provider_timestamp_utc, fetched_at_utc)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)
		 ON CONFLICT ON CONSTRAINT uniq_metal_provider_symbol_curr_ts DO NOTHING
		 RETURNING id`,
		s.Provider, s.ProviderFunction, s.Symbol, s.MetalName, s.QuoteCurrency, s.PriceString(),
		s.NominalRaw, s.ProviderTimestampRaw, s.ProviderTimestampUTC.UTC(), s.FetchedAtUTC.UTC(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetAttributes(attribute.Bool("inserted", false))
		return false, nil
	}
	if err != nil {
		if isConstraintError(err) {
			return false, fmt.Errorf("insert snapshot %s: %w: %v", s.Symbol, domain.ErrStorageConstraint, err)
		}
		return false, fmt.Errorf("insert snapshot %s: %w", s.Symbol, err)
	}

	s.ID = id
	span.SetAttributes(attribute.Bool("inserted", true))
	return true, nil
}

// LatestPerSymbol returns, for every symbol, the row with the greatest
// provider timestamp, ties broken by the highest id. Ordered by symbol.
func (r *SnapshotRepository) LatestPerSymbol(ctx context.Context) ([]*domain.PriceSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.latest-per-symbol")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (symbol) `+snapshotColumns+`
		 FROM metal_price_snapshots
		 ORDER BY symbol ASC, provider_timestamp_utc DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// HistoryForSymbol returns up to limit rows for symbol, newest provider
// timestamp first. symbol and limit must already be validated.
func (r *SnapshotRepository) HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.history-for-symbol")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit))

	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotColumns+`
		 FROM metal_price_snapshots
		 WHERE symbol = $1
		 ORDER BY provider_timestamp_utc DESC, id DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot history for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// RecentlyFetched returns the most recently captured rows across all
// symbols, for operational inspection.
func (r *SnapshotRepository) RecentlyFetched(ctx context.Context, limit int) ([]*domain.PriceSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot-repo.recently-fetched")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotColumns+`
		 FROM metal_price_snapshots
		 ORDER BY fetched_at_utc DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recently fetched snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]*domain.PriceSnapshot, error) {
	snapshots := []*domain.PriceSnapshot{}
	for rows.Next() {
		var (
			s        domain.PriceSnapshot
			price    string
			provTS   time.Time
			fetchedT time.Time
		)
		if err := rows.Scan(
			&s.ID, &s.Provider, &s.ProviderFunction, &s.Symbol, &s.MetalName, &s.QuoteCurrency,
			&price, &s.NominalRaw, &s.ProviderTimestampRaw, &provTS, &fetchedT,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q of snapshot %d: %w", price, s.ID, err)
		}
		s.Price = d
		s.ProviderTimestampUTC = provTS.UTC()
		s.FetchedAtUTC = fetchedT.UTC()
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshots, nil
}

func isConstraintError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgErrUniqueViolation, pgErrCheckViolation, pgErrNumericOverflow, pgErrStringTooLong, pgErrNotNullViolation:
		return true
	default:
		return false
	}
}
