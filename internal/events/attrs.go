// Package events extracts typed DEX actions and attribute maps from the
// raw contract event logs in a block's results.
package events

import "strconv"

// Attrs is the attribute map of a single contract event. Values are always
// strings on the wire; typed access goes through the getters so nothing
// untyped leaks past the parser.
type Attrs map[string]string

// Get returns the raw string value, "" if absent.
func (a Attrs) Get(key string) string {
	return a[key]
}

// Has reports whether the key is present (even if empty).
func (a Attrs) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Int returns the value parsed as an int, or def when absent or malformed.
func (a Attrs) Int(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Digits returns the value if it is a non-empty string of ASCII digits,
// "" otherwise. Used for on-chain amounts, which can exceed uint64.
func (a Attrs) Digits(key string) string {
	return DigitsOrEmpty(a[key])
}

// DigitsOrEmpty accepts only strings consisting solely of ASCII digits.
func DigitsOrEmpty(s string) string {
	if s == "" {
		return ""
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return ""
		}
	}
	return s
}
