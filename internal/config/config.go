package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gold-rush/internal/domain"
)

const (
	defaultAlphaVantageBaseURL = "https://www.alphavantage.co/query"
	defaultRateLimitPerMin     = 60
	defaultIngestPollSecs      = 3600
	defaultHTTPPort            = 8080
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	AlphaVantageAPIKey     string
	AlphaVantageBaseURL    string
	AlphaVantageRatePerMin int

	Symbols        []string
	QuoteCurrency  string
	IngestPollSecs int
	IngestEnabled  bool

	HTTPPort         int
	AdminAPIKey      string
	TelegramBotToken string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		AlphaVantageAPIKey: strings.TrimSpace(os.Getenv("ALPHA_VANTAGE_API_KEY")),
		AdminAPIKey:        strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, snapshots are kept in memory only")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, latest-price cache disabled")
	}
	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHA_VANTAGE_API_KEY not set, ingestion disabled")
	}
	if cfg.AdminAPIKey == "" {
		log.Println("Warning: ADMIN_API_KEY not set, manual ingestion endpoint is unauthenticated")
	}

	cfg.AlphaVantageBaseURL = strings.TrimSpace(os.Getenv("ALPHA_VANTAGE_BASE_URL"))
	if cfg.AlphaVantageBaseURL == "" {
		cfg.AlphaVantageBaseURL = defaultAlphaVantageBaseURL
	}

	cfg.AlphaVantageRatePerMin = positiveInt("ALPHA_VANTAGE_RATE_LIMIT_PER_MIN", defaultRateLimitPerMin)

	cfg.Symbols = domain.ParseSymbolList(os.Getenv("METALS_SYMBOLS"))
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), domain.DefaultSymbols...)
	}

	cfg.QuoteCurrency = strings.ToUpper(strings.TrimSpace(os.Getenv("METALS_QUOTE_CURRENCY")))
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = domain.CurrencyUSD
	}
	if cfg.QuoteCurrency != domain.CurrencyUSD {
		log.Printf("Warning: METALS_QUOTE_CURRENCY=%q is not supported by the provider, using %s", cfg.QuoteCurrency, domain.CurrencyUSD)
		cfg.QuoteCurrency = domain.CurrencyUSD
	}

	cfg.IngestPollSecs = positiveInt("INGEST_POLL_SECS", defaultIngestPollSecs)
	cfg.IngestEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("INGEST_ENABLED")), "true")

	cfg.HTTPPort = positiveInt("HTTP_PORT", defaultHTTPPort)

	return cfg
}

func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
