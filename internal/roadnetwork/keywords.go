package roadnetwork

import (
	"strings"

	"shuttleplan/internal/config"
)

// isMainRoad reports whether a road name matches one of the
// main-road keywords (avenue, boulevard, highway, ...).
func isMainRoad(name string) bool {
	return containsAny(name, config.MainRoadKeywords)
}

// isResidential reports whether a road name matches one of the
// small-street keywords (lane, court, close, ...).
func isResidential(name string) bool {
	return containsAny(name, config.ResidentialKeywords)
}

func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
