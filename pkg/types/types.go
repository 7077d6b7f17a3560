package types

import (
	"strings"

	"golang.org/x/exp/slices"
)

// FitMode controls how the customer photo is scaled into the placeholder.
type FitMode string

const (
	// FitCover fills the placeholder and crops whatever overflows.
	FitCover FitMode = "cover"
	// FitContain fits the whole photo inside the placeholder and pads the rest.
	FitContain FitMode = "contain"
)

// ParseFitMode normalizes a fit string. The second result is false for unknown modes.
func ParseFitMode(s string) (FitMode, bool) {
	switch FitMode(strings.ToLower(strings.TrimSpace(s))) {
	case FitCover:
		return FitCover, true
	case FitContain:
		return FitContain, true
	default:
		return FitMode(s), false
	}
}

// Preset is an x264 speed/efficiency preset.
type Preset string

// Presets ordered from fastest/lowest quality to slowest/highest quality.
var Presets = []Preset{
	"ultrafast",
	"superfast",
	"veryfast",
	"faster",
	"fast",
	"medium",
	"slow",
	"slower",
	"veryslow",
}

// Valid reports whether p is one of Presets.
func (p Preset) Valid() bool {
	return p.Rank() >= 0
}

// Rank returns the position of p in Presets, or -1 when unknown.
func (p Preset) Rank() int {
	return slices.Index(Presets, p)
}
