package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderAlphaVantage   = "ALPHA_VANTAGE"
	FunctionGoldSilverSpot = "GOLD_SILVER_SPOT"
	CurrencyUSD            = "USD"

	// PriceScale is the number of fractional digits every stored price carries.
	PriceScale = 8
	// PriceMaxIntegerDigits follows from NUMERIC(20, 8).
	PriceMaxIntegerDigits = 12
)

// PriceSnapshot is one immutable price observation for a symbol at a
// provider timestamp. ID is zero until the snapshot has been stored.
type PriceSnapshot struct {
	ID                   int64           `json:"id"`
	Provider             string          `json:"provider"`
	ProviderFunction     string          `json:"provider_function"`
	Symbol               string          `json:"symbol"`
	MetalName            *string         `json:"metal_name"`
	QuoteCurrency        string          `json:"quote_currency"`
	Price                decimal.Decimal `json:"price"`
	NominalRaw           string          `json:"nominal_raw"`
	ProviderTimestampRaw string          `json:"provider_timestamp_raw"`
	ProviderTimestampUTC time.Time       `json:"provider_timestamp_utc"`
	FetchedAtUTC         time.Time       `json:"fetched_at_utc"`
}

// PriceString renders the price with exactly PriceScale fractional digits.
func (s *PriceSnapshot) PriceString() string {
	return s.Price.StringFixed(PriceScale)
}

// DisplayName returns the metal name, or the symbol when the symbol is not
// a known metal.
func (s *PriceSnapshot) DisplayName() string {
	if s.MetalName != nil {
		return *s.MetalName
	}
	return s.Symbol
}

// SameObservation reports whether two snapshots share the uniqueness key
// (provider, symbol, quote currency, provider timestamp).
func (s *PriceSnapshot) SameObservation(other *PriceSnapshot) bool {
	return s.Provider == other.Provider &&
		s.Symbol == other.Symbol &&
		s.QuoteCurrency == other.QuoteCurrency &&
		s.ProviderTimestampUTC.Equal(other.ProviderTimestampUTC)
}

// RawPayload is a decoded provider JSON object. Numbers are kept as
// json.Number so prices never pass through float64.
type RawPayload map[string]any
