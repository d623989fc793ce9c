package impact

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseNumber coerces v to a float. Strings keep only digits, '.', '-' and
// ',' (a comma is read as the decimal point) before parsing.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumericString(n)
	}
	return 0, false
}

func parseNumericString(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseEmphasis reads capacity-focus weights: "75/100", "75%", "75" and
// plain numbers all give 75. Anything unreadable is 0.
func ParseEmphasis(v any) float64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if i := strings.Index(s, "/"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSuffix(s, "%")
		f, ok := parseNumericString(s)
		if !ok {
			return 0
		}
		return f
	}
	f, ok := ParseNumber(v)
	if !ok {
		return 0
	}
	return f
}
