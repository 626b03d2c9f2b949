package domain

import (
	"regexp"
	"strings"
)

var metalNames = map[string]string{
	"XAU": "Gold",
	"XAG": "Silver",
	"XPT": "Platinum",
	"XPD": "Palladium",
}

// DefaultSymbols are ingested when no symbols are configured.
var DefaultSymbols = []string{"XAU", "XAG"}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// MetalName looks up the human-readable name for a symbol.
func MetalName(symbol string) (string, bool) {
	name, ok := metalNames[symbol]
	return name, ok
}

// KnownMetals returns the symbols that have a metal name, in table order.
func KnownMetals() []string {
	return []string{"XAU", "XAG", "XPT", "XPD"}
}

// ValidSymbol reports whether symbol is 2-10 uppercase letters or digits.
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

// NormalizeSymbol trims and uppercases a user supplied symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeSymbols uppercases, trims and deduplicates symbols, keeping
// first-seen order and dropping empty entries.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseSymbolList splits a comma-separated list and normalizes it.
func ParseSymbolList(raw string) []string {
	return NormalizeSymbols(strings.Split(raw, ","))
}
