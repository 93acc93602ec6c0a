package signal

import (
	"fmt"
	"strconv"
	"strings"

	"signalengine/internal/feature"
	"signalengine/internal/model"
)

// DefaultDurationMinutes is used for an unparsable manual duration.
const DefaultDurationMinutes = 5

// SmartExpiry picks the expiry from volatility and confidence: more volatile
// means shorter, more confident means longer.
func SmartExpiry(confidence float64, v model.Volatility) (string, int) {
	var m int
	switch v {
	case model.VolatilityHigh:
		switch {
		case confidence > 80:
			m = 5
		case confidence > 60:
			m = 3
		default:
			m = 1
		}
	case model.VolatilityLow:
		switch {
		case confidence > 85:
			m = 15
		case confidence > 65:
			m = 10
		default:
			m = 5
		}
	default:
		switch {
		case confidence > 85:
			m = 15
		case confidence > 60:
			m = 5
		default:
			m = 1
		}
	}
	return ExpiryLabel(m), m
}

// ExpiryLabel renders "1 Minute" or "N Minutes".
func ExpiryLabel(minutes int) string {
	if minutes == 1 {
		return "1 Minute"
	}
	return fmt.Sprintf("%d Minutes", minutes)
}

// ParseDuration converts a manual duration to minutes. Seconds round up to
// one minute; "5m", "5 min", "5 minutes" give 5; "2h", "1 hour" give
// hours*60. A bare number is minutes. Anything else gives 5.
func ParseDuration(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n <= 0 {
		return DefaultDurationMinutes
	}
	unit := strings.TrimSpace(s[i:])
	switch {
	case unit == "":
		return n
	case strings.HasPrefix(unit, "s"):
		return 1
	case strings.HasPrefix(unit, "m"):
		return n
	case strings.HasPrefix(unit, "h"):
		return n * 60
	}
	return DefaultDurationMinutes
}

// Rationale phrases.
const (
	phraseActive       = "Multi-factor market detection active"
	phraseTechBull     = "Strong bullish technical confluence"
	phraseTechBear     = "Bearish technical rejection confirmed"
	phraseTechBias     = "Technical bias forming"
	phraseStructBull   = "Higher highs with momentum intact"
	phraseStructBear   = "Lower lows, downtrend confirmed"
	phraseVolume       = "High volume confirming the move"
	phraseMomentumUp   = "Strong upward momentum detected"
	phraseMomentumDown = "Bearish momentum accelerating"
	phraseNewsBull     = "Bullish news driving sentiment"
	phraseNewsBear     = "Fear and panic in the news flow"
	phraseHighVol      = "High volatility, tight stops recommended"
)

// RationaleSeparator joins rationale phrases.
const RationaleSeparator = " • "

// Rationale builds the human-readable explanation.
func Rationale(ta float64, trend feature.Trend, sent, vol, mom float64, v model.Volatility) string {
	parts := []string{phraseActive}

	switch {
	case ta > 0.4:
		parts = append(parts, phraseTechBull)
	case ta < -0.4:
		parts = append(parts, phraseTechBear)
	case ta > 0.2 || ta < -0.2:
		parts = append(parts, phraseTechBias)
	}

	switch trend {
	case feature.TrendBullish:
		parts = append(parts, phraseStructBull)
	case feature.TrendBearish:
		parts = append(parts, phraseStructBear)
	}

	if vol > 0.5 || vol < -0.5 {
		parts = append(parts, phraseVolume)
	}

	switch {
	case mom > 0.5:
		parts = append(parts, phraseMomentumUp)
	case mom < -0.5:
		parts = append(parts, phraseMomentumDown)
	}

	switch {
	case sent > 0.4:
		parts = append(parts, phraseNewsBull)
	case sent < -0.4:
		parts = append(parts, phraseNewsBear)
	}

	if v == model.VolatilityHigh {
		parts = append(parts, phraseHighVol)
	}
	return strings.Join(parts, RationaleSeparator)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToUpper(s), sub)
}
