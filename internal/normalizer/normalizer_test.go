package normalizer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gold-rush/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2026, 2, 13, 16, 10, 2, 123456789, time.UTC)

func TestNormalizeGoldScenario(t *testing.T) {
	payload := domain.RawPayload{
		"price":     "2000.00000000",
		"timestamp": "2026-02-13 16:10:00",
		"nominal":   "1 troy ounce",
	}

	snap, err := New().Normalize("XAU", payload, fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "2000.00000000", snap.PriceString())
	require.NotNil(t, snap.MetalName)
	assert.Equal(t, "Gold", *snap.MetalName)
	assert.Equal(t, "USD", snap.QuoteCurrency)
	assert.Equal(t, "ALPHA_VANTAGE", snap.Provider)
	assert.Equal(t, "GOLD_SILVER_SPOT", snap.ProviderFunction)
	assert.Equal(t, "XAU", snap.Symbol)
	assert.Equal(t, "1 troy ounce", snap.NominalRaw)
	assert.Equal(t, "2026-02-13 16:10:00", snap.ProviderTimestampRaw)
	assert.True(t, snap.ProviderTimestampUTC.Equal(time.Date(2026, 2, 13, 16, 10, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, snap.ProviderTimestampUTC.Location())
	assert.Equal(t, time.Date(2026, 2, 13, 16, 10, 2, 123456000, time.UTC), snap.FetchedAtUTC)
	assert.Zero(t, snap.ID)
}

func TestNormalizeUnknownSymbolHasNoMetalName(t *testing.T) {
	payload := domain.RawPayload{"price": "12.5", "timestamp": "2026-02-13 16:10:00", "nominal": "1 unit"}

	snap, err := New().Normalize("XRH", payload, fetchedAt)
	require.NoError(t, err)
	assert.Nil(t, snap.MetalName)
	assert.Equal(t, "12.50000000", snap.PriceString())
}

func TestNormalizePriceRounding(t *testing.T) {
	tests := map[string]string{
		"2000":          "2000.00000000",
		"31.5":          "31.50000000",
		"1.234567894":   "1.23456789",
		"1.234567895":   "1.23456790",
		"1.234567885":   "1.23456789",
		"0.000000005":   "0.00000001",
		"99.999999999":  "100.00000000",
		"  42.1  ":      "42.10000000",
		"1e3":           "1000.00000000",
		"2650.12345678": "2650.12345678",
	}
	for raw, want := range tests {
		payload := domain.RawPayload{"price": raw, "timestamp": "2026-02-13 16:10:00", "nominal": "1 troy ounce"}
		snap, err := New().Normalize("XAG", payload, fetchedAt)
		require.NoError(t, err, raw)
		assert.Equal(t, want, snap.PriceString(), raw)
	}
}

func TestNormalizeJSONNumberPrice(t *testing.T) {
	payload := domain.RawPayload{
		"price":     json.Number("2650.123456785"),
		"timestamp": "2026-02-13 16:10:00",
		"nominal":   "1 troy ounce",
	}
	snap, err := New().Normalize("XAU", payload, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, "2650.12345679", snap.PriceString())

	payload["price"] = 31.25
	snap, err = New().Normalize("XAU", payload, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, "31.25000000", snap.PriceString())
}

func TestNormalizeRejections(t *testing.T) {
	base := func() domain.RawPayload {
		return domain.RawPayload{"price": "2000", "timestamp": "2026-02-13 16:10:00", "nominal": "1 troy ounce"}
	}
	tests := map[string]func(domain.RawPayload){
		"invalid nominal":     func(p domain.RawPayload) { p["nominal"] = "Invalid" },
		"invalid nominal uc":  func(p domain.RawPayload) { p["nominal"] = " INVALID " },
		"missing price":       func(p domain.RawPayload) { delete(p, "price") },
		"missing timestamp":   func(p domain.RawPayload) { delete(p, "timestamp") },
		"missing nominal":     func(p domain.RawPayload) { delete(p, "nominal") },
		"null price":          func(p domain.RawPayload) { p["price"] = nil },
		"object price":        func(p domain.RawPayload) { p["price"] = map[string]any{"v": "1"} },
		"array timestamp":     func(p domain.RawPayload) { p["timestamp"] = []any{"2026"} },
		"bool nominal":        func(p domain.RawPayload) { p["nominal"] = true },
		"empty price":         func(p domain.RawPayload) { p["price"] = "  " },
		"non numeric price":   func(p domain.RawPayload) { p["price"] = "abc" },
		"nan price":           func(p domain.RawPayload) { p["price"] = "NaN" },
		"zero price":          func(p domain.RawPayload) { p["price"] = "0" },
		"rounds to zero":      func(p domain.RawPayload) { p["price"] = "0.000000004" },
		"negative price":      func(p domain.RawPayload) { p["price"] = "-5" },
		"too large price":     func(p domain.RawPayload) { p["price"] = "1000000000000" },
		"empty timestamp":     func(p domain.RawPayload) { p["timestamp"] = "" },
		"bad timestamp":       func(p domain.RawPayload) { p["timestamp"] = "yesterday" },
		"long nominal":        func(p domain.RawPayload) { p["nominal"] = string(make([]byte, 65)) },
		"invalid only":        func(p domain.RawPayload) { delete(p, "price"); delete(p, "timestamp"); p["nominal"] = "invalid" },
	}
	for name, mutate := range tests {
		payload := base()
		mutate(payload)

		snap, err := New().Normalize("XAU", payload, fetchedAt)
		assert.Nil(t, snap, name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrValidation), name)
		assert.Equal(t, domain.FailureValidation, domain.FailureKindOf(err), name)
	}
}

func TestNormalizeExtremeExponentsRejectQuickly(t *testing.T) {
	tests := map[string]string{
		"1e-20000000":   "not positive",
		"1e-2000000000": "not positive",
		"0e2000000000":  "not positive",
		"1e20000000":    "exceeds 12 integer digits",
		"1e2000000000":  "exceeds 12 integer digits",
		"1e13":          "exceeds 12 integer digits",
		"1e-9":          "not positive",
	}
	for raw, reason := range tests {
		payload := domain.RawPayload{"price": raw, "timestamp": "2026-02-13 16:10:00", "nominal": "1 troy ounce"}

		start := time.Now()
		snap, err := New().Normalize("XAU", payload, fetchedAt)
		elapsed := time.Since(start)

		assert.Nil(t, snap, raw)
		require.ErrorIs(t, err, domain.ErrValidation, raw)
		assert.Contains(t, err.Error(), reason, raw)
		assert.Less(t, elapsed, 100*time.Millisecond, raw)
	}
}

func TestNormalizePriceNearBounds(t *testing.T) {
	tests := map[string]string{
		"5e-9":               "0.00000001",
		"999999999999.99":    "999999999999.99000000",
		"2.0000000000000001": "2.00000000",
	}
	for raw, want := range tests {
		payload := domain.RawPayload{"price": raw, "timestamp": "2026-02-13 16:10:00", "nominal": "1 troy ounce"}
		snap, err := New().Normalize("XAU", payload, fetchedAt)
		require.NoError(t, err, raw)
		assert.Equal(t, want, snap.PriceString(), raw)
	}

	long := "1." + strings.Repeat("1", 70)
	_, err := New().Normalize("XAU", domain.RawPayload{"price": long, "timestamp": "2026-02-13 16:10:00", "nominal": "1 troy ounce"}, fetchedAt)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "longer than 64 characters")
}

func TestNormalizeInvalidNominalReason(t *testing.T) {
	_, err := New().Normalize("XZZ", domain.RawPayload{"nominal": "Invalid"}, fetchedAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported symbol")
}

func TestParseProviderTimestamp(t *testing.T) {
	want := time.Date(2026, 2, 13, 16, 10, 0, 0, time.UTC)
	tests := map[string]time.Time{
		"2026-02-13 16:10:00":           want,
		"2026-02-13T16:10:00":           want,
		"2026-02-13T16:10:00Z":          want,
		"2026-02-13T18:10:00+02:00":     want,
		"2026-02-13 11:10:00-05:00":     want,
		"2026-02-13 16:10":              want,
		"2026-02-13":                    time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		"2026-02-13 16:10:00.123456789": want.Add(123456 * time.Microsecond),
	}
	for raw, expected := range tests {
		got, err := ParseProviderTimestamp(raw)
		require.NoError(t, err, raw)
		assert.True(t, expected.Equal(got), "%s: got %v", raw, got)
		assert.Equal(t, time.UTC, got.Location(), raw)
	}

	_, err := ParseProviderTimestamp("13/02/2026")
	assert.Error(t, err)
}
