// Package params normalizes the external request knobs (quality selector,
// target width) into the internal values the pipeline works with.
package params

import "strconv"

// Encode qualities the three-level external selector resolves to.
const (
	QualityOriginal  = 100
	QualityMedium    = 75
	QualityThumbnail = 50
)

// ResolveQuality maps the external quality selector to an encode quality.
// "0" is original fidelity, "1" medium, "2" thumbnail; anything else,
// including an absent parameter, falls back to medium. This never fails.
func ResolveQuality(selector string) int {
	switch selector {
	case "0":
		return QualityOriginal
	case "1":
		return QualityMedium
	case "2":
		return QualityThumbnail
	default:
		return QualityMedium
	}
}

// ResolveWidth parses the th parameter into a target width. The zero value
// means "no resize": an absent parameter, a non-integer value and a
// non-positive value are all equivalent to not asking for a width at all,
// never an error.
func ResolveWidth(raw string) int {
	w, err := strconv.Atoi(raw)
	if err != nil || w <= 0 {
		return 0
	}
	return w
}
