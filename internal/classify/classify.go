// Package classify labels raw identifiers by naming convention. The label is
// advisory: it is shown to users and passed to the enrichment provider but
// never gates processing.
package classify

import (
	"strings"

	"github.com/dharsanguruparan/skypulse/internal/model"
)

// minCatalogDigits is the digit run length that marks a bare catalog number
// rather than a resolvable name.
const minCatalogDigits = 5

// Detect classifies one identifier. It is pure and defined for every input.
func Detect(input string) model.IDType {
	normalized := strings.ToLower(strings.TrimSpace(input))
	switch {
	case normalized == "":
		return model.IDTypeUnknown
	case strings.HasPrefix(normalized, "gaia"):
		return model.IDTypeGaia
	case strings.HasPrefix(normalized, "tic"):
		return model.IDTypeTIC
	case strings.HasPrefix(normalized, "kic"), strings.HasPrefix(normalized, "koi"):
		// Kepler ids resolve through SIMBAD.
		return model.IDTypeSimbad
	case !hasDigitRun(normalized, minCatalogDigits):
		return model.IDTypeSimbad
	default:
		return model.IDTypeUnknown
	}
}

func hasDigitRun(s string, n int) bool {
	run := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			run++
			if run >= n {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}
