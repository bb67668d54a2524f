package advisor

import (
	"strings"

	"crypto-concierge/internal/domain"
)

// Common names users type instead of ticker symbols.
var symbolAliases = map[string]string{
	"BITCOIN":  "BTC",
	"ETHEREUM": "ETH",
	"ETHER":    "ETH",
	"SOLANA":   "SOL",
	"RIPPLE":   "XRP",
	"CARDANO":  "ADA",
	"DOGECOIN": "DOGE",
	"POLKADOT": "DOT",
	"POLYGON":  "MATIC",
}

// ExtractSymbols scans the user message for mentions of supported crypto
// symbols or their common names. Returns deduplicated uppercase symbols.
func ExtractSymbols(text string) []string {
	upper := strings.ToUpper(text)
	words := strings.FieldsFunc(upper, func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})

	seen := make(map[string]bool)
	var result []string
	for _, w := range words {
		if alias, ok := symbolAliases[w]; ok {
			w = alias
		}
		if _, ok := domain.BinancePair[w]; ok && !seen[w] {
			seen[w] = true
			result = append(result, w)
		}
	}
	return result
}
