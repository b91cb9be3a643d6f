package insight

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// stripCodeFences removes a markdown code fence wrapping, which models emit
// even when asked for bare JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop a language hint like "json" on the fence line.
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeObject parses model output into a generic JSON object. Raw provider
// output is never trust-cast into domain types; every field goes through an
// explicit coercion below.
func decodeObject(text string) (map[string]any, error) {
	cleaned := stripCodeFences(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, fmt.Errorf("insight: response is not a JSON object: %w", err)
	}
	return obj, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asStringSlice keeps only the string elements; anything else in the array
// is dropped. Missing or mistyped values yield an empty slice, never nil
// in the serialized form.
func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// clampScore coerces a bounded 1..10 score. Numeric strings are parsed;
// anything non-numeric falls back to the default, and out-of-range values
// are clamped rather than rejected.
func clampScore(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return clampInt(int(n))
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return clampInt(int(parsed))
		}
	case json.Number:
		if parsed, err := n.Float64(); err == nil {
			return clampInt(int(parsed))
		}
	}
	return clampInt(fallback)
}

func clampInt(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// coercePatterns filters to the fixed communication pattern vocabulary.
func coercePatterns(v any) []CommunicationPattern {
	out := make([]CommunicationPattern, 0, 4)
	for _, s := range asStringSlice(v) {
		p := CommunicationPattern(s)
		if knownPatterns[p] {
			out = append(out, p)
		}
	}
	return out
}

func coercePiiFindings(v any) []PiiFinding {
	items, ok := v.([]any)
	if !ok {
		return []PiiFinding{}
	}
	out := make([]PiiFinding, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		finding := PiiFinding{
			Value:               asString(obj["value"]),
			Category:            coercePiiCategory(obj["category"]),
			RiskLevel:           coerceRiskLevel(obj["riskLevel"]),
			Context:             asString(obj["context"]),
			ConversationContext: asString(obj["conversationContext"]),
		}
		if finding.Value == "" {
			continue
		}
		out = append(out, finding)
	}
	return out
}

func coercePiiCategory(v any) PiiCategory {
	c := PiiCategory(asString(v))
	if knownPiiCategories[c] {
		return c
	}
	return PiiOther
}

func coerceRiskLevel(v any) RiskLevel {
	switch RiskLevel(strings.ToLower(asString(v))) {
	case RiskHigh:
		return RiskHigh
	case RiskMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}
