package util

import "strings"

// Map applies mapper to each element of coll and returns the results in order.
// The mapper receives the element and its index.
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = mapper(item, uint64(i))
	}
	return out
}

// Find returns the first element in coll that satisfies criteria.
func Find[A any](coll []A, criteria func(i A) bool) (A, bool) {
	for _, item := range coll {
		if criteria(item) {
			return item, true
		}
	}
	var zero A
	return zero, false
}

// Strip0x removes a leading 0x or 0X from a hex string.
func Strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Ensure0x returns s with exactly one 0x prefix. Surrounding whitespace is trimmed.
func Ensure0x(s string) string {
	return "0x" + Strip0x(strings.TrimSpace(s))
}
