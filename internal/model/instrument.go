package model

import "strings"

// Class tags an instrument and decides which providers may serve it.
type Class string

const (
	ClassUnknown   Class = ""
	ClassForex     Class = "forex"
	ClassCrypto    Class = "crypto"
	ClassSynthetic Class = "synthetic"
	ClassCommodity Class = "commodity"
)

// Instrument is a symbol plus its class tag.
type Instrument struct {
	Symbol string `json:"symbol"`
	Class  Class  `json:"class"`
}

// NewInstrument builds an instrument, detecting the class when none is given.
func NewInstrument(symbol string, class Class) Instrument {
	if class == ClassUnknown {
		class = DetectClass(symbol)
	}
	return Instrument{Symbol: symbol, Class: class}
}

// Key returns "class:symbol".
func (i Instrument) Key() string {
	return string(i.Class) + ":" + i.Symbol
}

var syntheticMarkers = []string{"HZ", "R_", "C10", "B10", "BOOM", "CRASH"}

// DetectClass infers the instrument class from symbol conventions.
func DetectClass(symbol string) Class {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") || strings.Contains(s, "USDT") {
		return ClassCrypto
	}
	for _, m := range syntheticMarkers {
		if strings.Contains(s, m) {
			return ClassSynthetic
		}
	}
	if strings.HasSuffix(s, "=F") {
		return ClassCommodity
	}
	return ClassForex
}

// ParseAssetList splits a comma-separated asset list, trimming blanks.
func ParseAssetList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
