// Package version orders the loosely structured version strings found in
// firmware file names, e.g. "10.2.4-1.0-00047" or "WLAN.RM.4.4.1-00157-QCARMSWPZ-1".
package version

import (
	"cmp"
	"strings"
)

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to
// or after b.
//
// Hyphens are treated as dots and both strings are split into tokens. Tokens
// are compared pairwise: numerically when both parse as integers, otherwise
// as plain strings. The first differing token decides. When one token list is
// a prefix of the other, the longer (more specific) version is greater.
//
// Note that mapping "-" to "." loses information, so two versions that only
// differ in where the hyphens are placed compare by their raw strings.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	at := tokens(a)
	bt := tokens(b)

	n := min(len(at), len(bt))
	for i := 0; i < n; i++ {
		if c := compareToken(at[i], bt[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(at) > len(bt):
		return 1
	case len(at) < len(bt):
		return -1
	}

	// Same tokens, different spelling.
	return strings.Compare(a, b)
}

// Equal reports whether a and b are the same version. Only identical strings
// are equal, independent of the token comparison.
func Equal(a, b string) bool {
	return a == b
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

func tokens(v string) []string {
	return strings.Split(strings.ReplaceAll(v, "-", "."), ".")
}

// compareToken compares two integer tokens by value, whatever their size,
// and anything else as plain strings.
func compareToken(a, b string) int {
	if isNumber(a) && isNumber(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
