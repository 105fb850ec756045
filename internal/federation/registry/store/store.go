// Package store implements persistence backends for the location registry.
//
// Every backend stores the same logical layout: one identifier string mapped to
// an ordered URL array. The registry loads the whole state at startup and
// rewrites it wholesale after each successful append.
package store

import (
	"encoding/json"
	"fmt"

	"emojifed/pkg/platform/sentinel"
)

// decodeEntries parses the persisted JSON object. Values may be a URL array or,
// for state written by older versions, a single URL string. Values of any other
// shape are dropped.
func decodeEntries(data []byte) (map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode registry state: %w: %w", sentinel.ErrCorrupt, err)
	}

	entries := make(map[string][]string, len(raw))
	for identifier, value := range raw {
		var urls []string
		if err := json.Unmarshal(value, &urls); err == nil {
			entries[identifier] = urls
			continue
		}
		var url string
		if err := json.Unmarshal(value, &url); err == nil && url != "" {
			entries[identifier] = []string{url}
		}
	}
	return entries, nil
}

func encodeEntries(entries map[string][]string) ([]byte, error) {
	if entries == nil {
		entries = map[string][]string{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registry state: %w", err)
	}
	return data, nil
}
