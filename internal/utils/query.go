// Package utils holds small helpers for parsing request parameters. They
// know nothing about the domain.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a decimal int, returning def when s is empty or
// malformed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// BoolDefault parses s with strconv.ParseBool, returning def when s is empty
// or malformed.
func BoolDefault(s string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		return b
	}
	return def
}

// SplitList splits a comma-separated list, trimming blanks and dropping
// empty items. Order and duplicates are kept.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
