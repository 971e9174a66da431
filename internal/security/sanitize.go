// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package security

import "regexp"

// scriptBlock matches <script ...>...</script> blocks, case-insensitive,
// across newlines.
var scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)

// SanitizeString strips script blocks from a single string.
func SanitizeString(s string) string {
	return scriptBlock.ReplaceAllString(s, "")
}

// Sanitize recursively strips script blocks from string leaves of
// arbitrarily nested maps and slices. Non-string values pass through
// unchanged. The input is not mutated; a sanitized copy is returned.
func Sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return SanitizeString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[key] = Sanitize(elem)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Sanitize(elem)
		}
		return out
	default:
		return value
	}
}
