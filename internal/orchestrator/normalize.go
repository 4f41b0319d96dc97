package orchestrator

import (
	"encoding/json"
	"strings"
)

// Normalizer rewrites a function call's arguments before execution. It is the
// seam for per-tool argument validation: an argument class that must not stay
// an ambiguous placeholder is rewritten to its documented default.
type Normalizer func(args json.RawMessage) json.RawMessage

// DefaultLocation replaces placeholder weather locations.
const DefaultLocation = "Seattle"

// locationPlaceholders are the recognized ambiguous location values. Each is
// normalized to DefaultLocation.
var locationPlaceholders = map[string]bool{
	"":                 true,
	"here":             true,
	"my location":      true,
	"your location":    true,
	"this location":    true,
	"there":            true,
	"current location": true,
}

// DefaultNormalizers returns the builtin per-tool normalizers.
func DefaultNormalizers() map[string]Normalizer {
	return map[string]Normalizer{
		"fetch_weather": normalizeWeatherArgs,
	}
}

func normalizeWeatherArgs(args json.RawMessage) json.RawMessage {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		out, _ := json.Marshal(map[string]any{
			"location":  DefaultLocation,
			"timeframe": "current",
		})
		return out
	}
	loc, _ := m["location"].(string)
	if !locationPlaceholders[strings.ToLower(strings.TrimSpace(loc))] {
		return args
	}
	m["location"] = DefaultLocation
	out, err := json.Marshal(m)
	if err != nil {
		return args
	}
	return out
}
