package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StripFences removes a surrounding markdown code fence from LLM output.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if nl := strings.Index(raw, "\n"); nl != -1 {
			raw = raw[nl+1:]
		}
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

// ExtractJSON returns the outermost JSON object found in raw, or an error
// if none is present.
func ExtractJSON(raw string) (string, error) {
	raw = StripFences(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return raw[start : end+1], nil
}

// CoerceFloat accepts numbers encoded as JSON numbers or strings.
// It returns NaN for anything else.
func CoerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(strings.ReplaceAll(s, " ", "_"), "-", "_")
}
