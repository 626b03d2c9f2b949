package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gold-rush/internal/domain"
	"gold-rush/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	userAgent           = "gold-rush/1.0"

	maxAttemptsPerSymbol = 3
	attemptTimeout       = 15 * time.Second
	retryPause           = time.Second
	maxBodyBytes         = 1 << 20

	rateLimitMarker = "spreading out your free api requests"
)

// Sentinel fields carrying provider errors, in precedence order.
var upstreamMessageFields = []string{"Error Message", "Note", "Information"}

// AlphaVantageClient fetches GOLD_SILVER_SPOT quotes one symbol at a time.
// Each symbol gets up to three attempts separated by a fixed one second
// pause; rate limit notes, transport failures, non-200 responses and
// malformed JSON are retried, other provider errors are returned at once.
type AlphaVantageClient struct {
	client      *http.Client
	baseURL     string
	tracer      trace.Tracer
	limiter     *RateLimiter
	metrics     *observability.Metrics
	maxAttempts int
	retryPause  time.Duration
	pause       func(ctx context.Context, d time.Duration) error
}

// NewAlphaVantageClient creates a client. baseURL may be empty to use the
// public endpoint; ratePerMin <= 0 disables the shared request limiter.
func NewAlphaVantageClient(tracer trace.Tracer, metrics *observability.Metrics, baseURL string, ratePerMin int) *AlphaVantageClient {
	if baseURL == "" {
		baseURL = alphaVantageBaseURL
	}
	var limiter *RateLimiter
	if ratePerMin > 0 {
		limiter = NewPerMinuteRateLimiter(ratePerMin)
	}
	return &AlphaVantageClient{
		client:      &http.Client{Timeout: attemptTimeout},
		baseURL:     baseURL,
		tracer:      tracer,
		limiter:     limiter,
		metrics:     metrics,
		maxAttempts: maxAttemptsPerSymbol,
		retryPause:  retryPause,
		pause:       sleepContext,
	}
}

// Fetch returns the decoded provider payload for symbol. Failures are
// reported as errors wrapping one of the domain sentinels; they never panic
// and never abort the caller's batch.
func (p *AlphaVantageClient) Fetch(ctx context.Context, symbol, apiKey string) (domain.RawPayload, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attempts = attempt
		payload, err := p.attempt(ctx, symbol, apiKey)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return payload, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if attempt == p.maxAttempts {
			break
		}

		log.Printf("alphavantage %s attempt %d/%d failed, retrying: %v", symbol, attempt, p.maxAttempts, err)
		if err := p.pause(ctx, p.retryPause); err != nil {
			break
		}
	}

	err := fmt.Errorf("giving up after %d attempt(s): %w", attempts, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (p *AlphaVantageClient) attempt(ctx context.Context, symbol, apiKey string) (payload domain.RawPayload, err error) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveFetchAttempt(attemptOutcome(err), time.Since(start))
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", domain.ErrTransport, err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, p.queryURL(symbol, apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: network failure calling alpha vantage: %v", domain.ErrTransport, redactKey(err, apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read alpha vantage response: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: non-200 response from alpha vantage: HTTP %d", domain.ErrTransport, resp.StatusCode)
	}

	payload, err = decodePayload(body)
	if err != nil {
		return nil, err
	}

	if msg, ok := upstreamMessage(payload); ok {
		if strings.Contains(strings.ToLower(msg), rateLimitMarker) {
			return nil, fmt.Errorf("%w: alpha vantage rate limit: %s", domain.ErrRateLimited, msg)
		}
		return nil, fmt.Errorf("%w: alpha vantage error: %s", domain.ErrUpstreamRejected, msg)
	}

	return payload, nil
}

func (p *AlphaVantageClient) queryURL(symbol, apiKey string) string {
	q := url.Values{}
	q.Set("function", domain.FunctionGoldSilverSpot)
	q.Set("symbol", symbol)
	q.Set("apikey", apiKey)
	return p.baseURL + "?" + q.Encode()
}

func decodePayload(body []byte) (domain.RawPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON response from alpha vantage: %v", domain.ErrMalformedPayload, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: unexpected response format from alpha vantage", domain.ErrMalformedPayload)
	}
	return domain.RawPayload(payload), nil
}

// upstreamMessage returns the first sentinel field present in the payload.
func upstreamMessage(payload domain.RawPayload) (string, bool) {
	for _, field := range upstreamMessageFields {
		v, ok := payload[field]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprint(v), true
	}
	return "", false
}

func attemptOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.FailureKindOf(err))
}

// redactKey keeps the API key out of url.Error messages.
func redactKey(err error, apiKey string) string {
	msg := err.Error()
	if apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(apiKey), "REDACTED")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
