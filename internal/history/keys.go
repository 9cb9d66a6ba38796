package history

import (
	"strings"

	"gttdash/internal/domain"
)

// StockKey returns the cache key and provider ticker for an equity. NSE
// listings take the ".NS" suffix; other exchanges use the bare symbol.
func StockKey(symbol string, exchange domain.Exchange) (key, ticker string) {
	if exchange == domain.ExchangeNSE {
		return symbol, symbol + ".NS"
	}
	return symbol, symbol
}

// IndexKey returns the cache key for an index symbol such as "^NSEI":
// "INDEX_" followed by the symbol without "^" and with "." replaced by "_".
func IndexKey(symbol string) string {
	s := strings.ReplaceAll(symbol, "^", "")
	s = strings.ReplaceAll(s, ".", "_")
	return "INDEX_" + s
}
