package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gold-rush/internal/config"
	"gold-rush/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions(nil, &config.Config{AlphaVantageAPIKey: "env-key"})
	require.NoError(t, err)

	assert.Equal(t, []string{"XAU", "XAG"}, opts.symbols)
	assert.Equal(t, domain.CurrencyUSD, opts.currency)
	assert.Equal(t, "env-key", opts.apiKey)
}

func TestParseOptionsFlags(t *testing.T) {
	opts, err := parseOptions([]string{"--symbols", " xpt, XPD,xpt ", "--currency", "eur", "--api-key", "flag-key"},
		&config.Config{AlphaVantageAPIKey: "env-key"})
	require.NoError(t, err)

	assert.Equal(t, []string{"XPT", "XPD"}, opts.symbols)
	assert.Equal(t, domain.CurrencyUSD, opts.currency, "unsupported currency falls back to USD")
	assert.Equal(t, "flag-key", opts.apiKey)
}

func TestParseOptionsRejectsMalformedCurrency(t *testing.T) {
	for _, currency := range []string{"12345", "US", "U$D", "EURO"} {
		_, err := parseOptions([]string{"--currency", currency}, &config.Config{AlphaVantageAPIKey: "k"})
		require.Error(t, err, currency)
		assert.Contains(t, err.Error(), "invalid currency format", currency)
	}
}

func TestRunMalformedCurrencyExitsWithoutRunning(t *testing.T) {
	runner := &stubRunner{}
	restore := stubIngestDeps(runner, nil)
	defer restore()

	code := run(context.Background(), []string{"--currency=12345"}, &config.Config{AlphaVantageAPIKey: "k"}, &bytes.Buffer{})

	assert.Equal(t, 1, code)
	assert.Zero(t, runner.calls)
}

func TestParseOptionsMissingKey(t *testing.T) {
	_, err := parseOptions(nil, &config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing API key")
}

func TestRunExitCodes(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		result   *domain.BatchResult
		err      error
		wantCode int
		wantOut  []string
	}{
		{
			name:     "success",
			result:   batchResult(t, []string{"XAU", "XAG"}, nil),
			wantCode: 0,
			wantOut:  []string{"Gold", "Silver", "2000.12345679", "1 troy ounce", "new", "Success"},
		},
		{
			name:     "partial",
			result:   batchResult(t, []string{"XAU"}, []string{"XAG"}),
			wantCode: 0,
			wantOut:  []string{"Gold", "FAILED XAG", "Partial success"},
		},
		{
			name:     "all failed",
			result:   batchResult(t, nil, []string{"XAU", "XAG"}),
			err:      fmt.Errorf("%w: 2 symbol(s)", domain.ErrAllSymbolsFailed),
			wantCode: 1,
			wantOut:  []string{"FAILED XAU", "all 2 symbol(s) failed"},
		},
		{
			name:     "no symbols",
			args:     []string{"--symbols", " , "},
			err:      domain.ErrNoSymbols,
			wantCode: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{result: tc.result, err: tc.err}
			restore := stubIngestDeps(runner, nil)
			defer restore()

			var out bytes.Buffer
			code := run(context.Background(), tc.args, &config.Config{AlphaVantageAPIKey: "k"}, &out)

			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, 1, runner.calls)
			assert.Equal(t, "k", runner.apiKey)
			for _, want := range tc.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRunMissingKeyExitsWithoutRunning(t *testing.T) {
	runner := &stubRunner{}
	restore := stubIngestDeps(runner, nil)
	defer restore()

	code := run(context.Background(), nil, &config.Config{}, &bytes.Buffer{})

	assert.Equal(t, 1, code)
	assert.Zero(t, runner.calls)
}

func TestRunRunnerSetupError(t *testing.T) {
	restore := stubIngestDeps(nil, errors.New("migrations failed"))
	defer restore()

	code := run(context.Background(), nil, &config.Config{AlphaVantageAPIKey: "k"}, &bytes.Buffer{})
	assert.Equal(t, 1, code)
}

func TestMainUsesExitCode(t *testing.T) {
	runner := &stubRunner{result: batchResult(t, []string{"XAU"}, nil)}
	restore := stubIngestDeps(runner, nil)
	defer restore()

	origLoadEnv, origLoadConfig, origExit, origArgs, origStdout := loadEnvFunc, loadConfigFunc, exitFunc, argsFunc, stdout
	defer func() {
		loadEnvFunc, loadConfigFunc, exitFunc, argsFunc, stdout = origLoadEnv, origLoadConfig, origExit, origArgs, origStdout
	}()

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return &config.Config{AlphaVantageAPIKey: "k"} }
	argsFunc = func() []string { return []string{"--symbols", "XAU"} }
	stdout = &bytes.Buffer{}
	code := -1
	exitFunc = func(c int) { code = c }

	main()
	assert.Equal(t, 0, code)
}

func TestStoredLabel(t *testing.T) {
	assert.Equal(t, "new", storedLabel(true))
	assert.Equal(t, "existing", storedLabel(false))
}

func stubIngestDeps(runner batchRunner, setupErr error) func() {
	origInitTracer := initTracerFunc
	origNewRunner := newRunnerFunc

	initTracerFunc = func(ctx context.Context, name string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer(name), nil
	}
	newRunnerFunc = func(context.Context, trace.Tracer, *config.Config) (batchRunner, func(), error) {
		if setupErr != nil {
			return nil, nil, setupErr
		}
		return runner, func() {}, nil
	}

	return func() {
		initTracerFunc = origInitTracer
		newRunnerFunc = origNewRunner
	}
}

func batchResult(t *testing.T, stored, failed []string) *domain.BatchResult {
	t.Helper()
	ts := time.Date(2026, 2, 13, 16, 10, 0, 0, time.UTC)
	result := domain.NewBatchResult(ts)
	for _, symbol := range stored {
		var metalName *string
		if name, ok := domain.MetalName(symbol); ok {
			metalName = &name
		}
		result.AddSuccess(&domain.PriceSnapshot{
			Provider:             domain.ProviderAlphaVantage,
			ProviderFunction:     domain.FunctionGoldSilverSpot,
			Symbol:               symbol,
			MetalName:            metalName,
			QuoteCurrency:        domain.CurrencyUSD,
			Price:                decimal.RequireFromString("2000.12345679"),
			NominalRaw:           "1 troy ounce",
			ProviderTimestampRaw: "2026-02-13 16:10:00",
			ProviderTimestampUTC: ts,
			FetchedAtUTC:         ts,
		}, true)
	}
	for _, symbol := range failed {
		result.AddFailure(symbol, fmt.Errorf("%w: note", domain.ErrRateLimited))
	}
	result.FinishedAt = ts.Add(time.Second)
	return result
}

type stubRunner struct {
	calls  int
	apiKey string
	result *domain.BatchResult
	err    error
}

func (s *stubRunner) Run(ctx context.Context, symbols []string, apiKey string) (*domain.BatchResult, error) {
	s.calls++
	s.apiKey = apiKey
	return s.result, s.err
}
