// Package normalizer turns raw GOLD_SILVER_SPOT payloads into canonical
// price snapshots.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gold-rush/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	fieldPrice     = "price"
	fieldTimestamp = "timestamp"
	fieldNominal   = "nominal"

	// invalidNominal is what the provider reports for unsupported symbols.
	invalidNominal = "invalid"

	maxRawLength = 64
)

// Provider timestamps carry no zone; they are read as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

var maxPrice = decimal.New(1, domain.PriceMaxIntegerDigits)

// Normalizer validates payloads and builds unpersisted snapshots for a
// single provider function.
type Normalizer struct {
	provider      string
	function      string
	quoteCurrency string
}

func New() *Normalizer {
	return &Normalizer{
		provider:      domain.ProviderAlphaVantage,
		function:      domain.FunctionGoldSilverSpot,
		quoteCurrency: domain.CurrencyUSD,
	}
}

// Normalize converts payload into a snapshot. Rejections wrap
// domain.ErrValidation.
//
// Prices are rounded half away from zero to eight fractional digits:
// "1.234567895" becomes "1.23456790".
func (n *Normalizer) Normalize(symbol string, payload domain.RawPayload, fetchedAt time.Time) (*domain.PriceSnapshot, error) {
	rawPrice, okPrice := scalar(payload[fieldPrice])
	rawTimestamp, okTimestamp := scalar(payload[fieldTimestamp])
	rawNominal, okNominal := scalar(payload[fieldNominal])
	rawNominal = strings.TrimSpace(rawNominal)

	if okNominal && strings.EqualFold(rawNominal, invalidNominal) {
		return nil, reject(symbol, "unsupported symbol (nominal %q)", rawNominal)
	}
	if !okPrice || !okTimestamp || !okNominal {
		return nil, reject(symbol, "missing required fields in GOLD_SILVER_SPOT payload")
	}

	rawPrice = strings.TrimSpace(rawPrice)
	rawTimestamp = strings.TrimSpace(rawTimestamp)
	if rawTimestamp == "" {
		return nil, reject(symbol, "empty timestamp")
	}
	if len(rawNominal) > maxRawLength || len(rawTimestamp) > maxRawLength {
		return nil, reject(symbol, "nominal or timestamp longer than %d characters", maxRawLength)
	}

	price, err := canonicalPrice(rawPrice)
	if err != nil {
		return nil, reject(symbol, "%v", err)
	}

	providerTS, err := ParseProviderTimestamp(rawTimestamp)
	if err != nil {
		return nil, reject(symbol, "%v", err)
	}

	snapshot := &domain.PriceSnapshot{
		Provider:             n.provider,
		ProviderFunction:     n.function,
		Symbol:               symbol,
		QuoteCurrency:        n.quoteCurrency,
		Price:                price,
		NominalRaw:           rawNominal,
		ProviderTimestampRaw: rawTimestamp,
		ProviderTimestampUTC: providerTS,
		FetchedAtUTC:         fetchedAt.UTC().Truncate(time.Microsecond),
	}
	if name, ok := domain.MetalName(symbol); ok {
		snapshot.MetalName = &name
	}
	return snapshot, nil
}

// canonicalPrice parses a numeric string and rounds it to the stored scale.
// Magnitude is checked from the digit count and exponent before rounding,
// so exponent notation like "1e-20000000" never reaches a big rescale.
func canonicalPrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}
	if len(raw) > maxRawLength {
		return decimal.Zero, fmt.Errorf("price longer than %d characters", maxRawLength)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q is not numeric", raw)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("price %q is not positive", raw)
	}

	// d lies in [10^(k-1), 10^k).
	k := int64(d.NumDigits()) + int64(d.Exponent())
	if k > domain.PriceMaxIntegerDigits {
		return decimal.Zero, fmt.Errorf("price %q exceeds %d integer digits", raw, domain.PriceMaxIntegerDigits)
	}
	if k < -domain.PriceScale {
		return decimal.Zero, fmt.Errorf("price %q is not positive at %d decimals", raw, domain.PriceScale)
	}

	d = d.Round(domain.PriceScale)
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("price %q is not positive at %d decimals", raw, domain.PriceScale)
	}
	if d.GreaterThanOrEqual(maxPrice) {
		return decimal.Zero, fmt.Errorf("price %q exceeds %d integer digits", raw, domain.PriceMaxIntegerDigits)
	}
	return d, nil
}

// ParseProviderTimestamp parses the provider's literal timestamp and
// normalizes it to UTC at microsecond precision, the resolution the store
// keeps.
func ParseProviderTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// scalar stringifies JSON strings and numbers. Objects, arrays, booleans
// and null are not accepted.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func reject(symbol, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrValidation, symbol, fmt.Sprintf(format, args...))
}
