package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"gold-rush/internal/cache"
	"gold-rush/internal/config"
	"gold-rush/internal/db"
	"gold-rush/internal/domain"
	"gold-rush/internal/normalizer"
	"gold-rush/internal/provider"
	"gold-rush/internal/repository"
	"gold-rush/internal/service"
	"gold-rush/pkg/tracing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "gold-rush-ingest"

type batchRunner interface {
	Run(ctx context.Context, symbols []string, apiKey string) (*domain.BatchResult, error)
}

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newRunnerFunc    = newRunner
	exitFunc         = os.Exit
	argsFunc         = func() []string { return os.Args[1:] }
)

var stdout io.Writer = os.Stdout

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	partialStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type options struct {
	symbols  []string
	currency string
	apiKey   string
}

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitFunc(run(ctx, argsFunc(), cfg, stdout))
}

func parseOptions(args []string, cfg *config.Config) (options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	symbols := fs.String("symbols", strings.Join(domain.DefaultSymbols, ","), "comma-separated metal symbols")
	currency := fs.String("currency", domain.CurrencyUSD, "quote currency (only USD is supported)")
	apiKey := fs.String("api-key", "", "provider API key (defaults to ALPHA_VANTAGE_API_KEY)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		symbols:  domain.ParseSymbolList(*symbols),
		currency: strings.ToUpper(strings.TrimSpace(*currency)),
		apiKey:   strings.TrimSpace(*apiKey),
	}
	if !currencyPattern.MatchString(opts.currency) {
		return options{}, fmt.Errorf("invalid currency format %q: expected 3 letters", opts.currency)
	}
	if opts.currency != domain.CurrencyUSD {
		log.Printf("Warning: --currency=%q is not supported by the provider, using %s", opts.currency, domain.CurrencyUSD)
		opts.currency = domain.CurrencyUSD
	}
	if opts.apiKey == "" {
		opts.apiKey = cfg.AlphaVantageAPIKey
	}
	if opts.apiKey == "" {
		return options{}, errors.New("missing API key: pass --api-key or set ALPHA_VANTAGE_API_KEY")
	}
	return opts, nil
}

// run returns the process exit code: 0 for success or partial success,
// 1 when nothing could be ingested.
func run(ctx context.Context, args []string, cfg *config.Config, out io.Writer) int {
	opts, err := parseOptions(args, cfg)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Printf("ingest: %v", err)
		return 1
	}

	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		log.Printf("ingest: initialize tracer: %v", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	runner, cleanup, err := newRunnerFunc(ctx, tracer, cfg)
	if err != nil {
		log.Printf("ingest: %v", err)
		return 1
	}
	defer cleanup()

	result, err := runner.Run(ctx, opts.symbols, opts.apiKey)
	if result != nil {
		renderResult(out, result)
	}
	if err != nil {
		log.Printf("ingest: %v", err)
		return 1
	}
	return 0
}

// newRunner wires the ingestion pipeline against Postgres when DATABASE_URL
// is set, and against an in-process store otherwise.
func newRunner(ctx context.Context, tracer trace.Tracer, cfg *config.Config) (batchRunner, func(), error) {
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	var store interface {
		service.SnapshotReader
		service.SnapshotWriter
	}
	if db.Pool != nil {
		repo := repository.NewSnapshotRepository(db.Pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		store = repo
	} else {
		log.Println("Warning: DATABASE_URL not set, snapshots will not be persisted")
		store = repository.NewMemorySnapshotRepository()
	}

	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	query := service.NewMetalQueryService(tracer, store, redisClient)

	client := provider.NewAlphaVantageClient(tracer, nil, cfg.AlphaVantageBaseURL, cfg.AlphaVantageRatePerMin)
	runner := service.NewIngestionService(tracer, client, normalizer.New(), store, query, nil)

	cleanup := func() {
		db.Close()
		if cache.Client != nil {
			_ = cache.Client.Close()
		}
	}
	return runner, cleanup, nil
}

func renderResult(out io.Writer, result *domain.BatchResult) {
	if len(result.Succeeded) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("Metal", "Symbol", "Price", "Nominal", "Timestamp", "Stored")
		for _, s := range result.Succeeded {
			t.Row(
				s.Snapshot.DisplayName(),
				s.Symbol,
				s.Snapshot.PriceString(),
				s.Snapshot.NominalRaw,
				s.Snapshot.ProviderTimestampUTC.UTC().Format(time.RFC3339),
				storedLabel(s.Inserted),
			)
		}
		fmt.Fprintln(out, t.Render())
	}

	for _, f := range result.Failed {
		fmt.Fprintf(out, "%s %s [%s]: %s\n", failStyle.Render("FAILED"), f.Symbol, f.Kind, f.Reason)
	}
	fmt.Fprintln(out, summaryLine(result))
}

func storedLabel(inserted bool) string {
	if inserted {
		return "new"
	}
	return "existing"
}

func summaryLine(result *domain.BatchResult) string {
	total := len(result.Succeeded) + len(result.Failed)
	switch result.Status() {
	case domain.BatchSucceeded:
		return okStyle.Render("Success") +
			fmt.Sprintf(": %d of %d symbol(s) stored, %d new (run %s)", len(result.Succeeded), total, result.Inserted(), result.RunID)
	case domain.BatchPartial:
		return partialStyle.Render("Partial success") +
			fmt.Sprintf(": %d of %d symbol(s) stored, %d failed (run %s)", len(result.Succeeded), total, len(result.Failed), result.RunID)
	default:
		return failStyle.Render("Failed") +
			fmt.Sprintf(": all %d symbol(s) failed (run %s)", total, result.RunID)
	}
}
