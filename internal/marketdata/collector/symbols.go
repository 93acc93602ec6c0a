package collector

import "strings"

// derivSymbols maps Yahoo-style tickers to Deriv symbols. Deriv is tried
// first for these because it serves them without Yahoo's rate limits.
var derivSymbols = map[string]string{
	"^NDX":   "OTC_NDX",
	"^GSPC":  "OTC_SPC",
	"^DJI":   "OTC_DJI",
	"^IXIC":  "OTC_NDX",
	"^GDAXI": "OTC_GDAXI",
	"^FTSE":  "OTC_FTSE",
	"^FCHI":  "OTC_FCHI",
	"^N225":  "OTC_N225",
	"GC=F":   "frxXAUUSD",
	"SI=F":   "frxXAGUSD",
	"CL=F":   "frxWTI",
}

func init() {
	for _, pair := range []string{
		"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "EURJPY", "GBPJPY", "EURGBP",
		"USDCAD", "USDCHF", "USDIDR", "USDINR", "USDBRL", "EURIDR", "USDMXN",
	} {
		derivSymbols[pair+"=X"] = "frx" + pair
	}
}

// DerivSymbol returns the Deriv symbol for a forex/commodity ticker. The
// raw symbol is looked up first, then its Yahoo-normalized form, so
// "GOLD" and "EURUSD" resolve as well.
func DerivSymbol(symbol string) (string, bool) {
	if s, ok := derivSymbols[symbol]; ok {
		return s, true
	}
	s, ok := derivSymbols[YahooSymbol(symbol)]
	return s, ok
}

// YahooSymbol normalizes a forex/commodity symbol to a Yahoo ticker.
func YahooSymbol(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "GOLD":
		return "GC=F"
	case "USOIL":
		return "CL=F"
	}
	if strings.Contains(symbol, "USD") && !strings.Contains(symbol, "=") && !strings.Contains(symbol, "/") {
		return symbol + "=X"
	}
	return symbol
}

// YahooCryptoSymbol maps an exchange pair to Yahoo's USD ticker:
// "BTC/USDT" -> "BTC-USD".
func YahooCryptoSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "/", "-")
	return strings.ReplaceAll(s, "USDT", "USD")
}
