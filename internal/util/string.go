package util

import "strings"

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Normalize performs basic string normalization (lowercase + trim)
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Sample returns up to n distinct elements of items, picked by perm, in the
// order perm yields them.
func Sample(items []string, n int, perm func(int) []int) []string {
	n = max(0, min(n, len(items)))
	out := make([]string, 0, n)
	for _, idx := range perm(len(items))[:n] {
		out = append(out, items[idx])
	}
	return out
}
