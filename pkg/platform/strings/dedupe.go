// Package strings provides string slice utilities shared by the registry,
// the neighbor client and configuration parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  http://a.example ", "http://b.example", "http://a.example", ""})
//	// Returns: []string{"http://a.example", "http://b.example"}
func DedupeAndTrim(values []string) []string {
	return DedupeLimit(values, 0)
}

// DedupeLimit is like DedupeAndTrim but stops once limit unique values have
// been collected. A limit <= 0 means no limit.
func DedupeLimit(values []string, limit int) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if limit > 0 && len(result) >= limit {
			break
		}
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits a comma separated list, as used in environment variables,
// and applies DedupeAndTrim. An empty input returns nil.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
