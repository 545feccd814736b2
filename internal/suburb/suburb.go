// Package suburb turns free-text suburb labels into remote lookup keys.
package suburb

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// StateCodes lists the Australian state and territory abbreviations that
// may trail a suburb label.
var StateCodes = []string{"VIC", "NSW", "QLD", "SA", "WA", "TAS", "NT", "ACT"}

// Normalize returns the lookup key for a raw suburb label.
//
// When the label contains a comma, everything from the first comma onward is
// dropped and the remainder is trimmed; nothing else is removed. Otherwise a
// trailing four-digit postcode and then a trailing state code are stripped,
// each only when separated from the suburb by whitespace.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, ','); i >= 0 {
		return strings.TrimSpace(raw[:i])
	}

	s := strings.TrimSpace(raw)
	if head, last, ok := splitLast(s); ok && isPostcode(last) {
		s = head
	}
	if head, last, ok := splitLast(s); ok && IsStateCode(last) {
		s = head
	}
	return s
}

// IsStateCode reports whether tok is a state code, ignoring case.
func IsStateCode(tok string) bool {
	for _, code := range StateCodes {
		if strings.EqualFold(tok, code) {
			return true
		}
	}
	return false
}

// splitLast splits s at its last run of whitespace. ok is false when s is a
// single token.
func splitLast(s string) (head, last string, ok bool) {
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	// A lone token is the whole label, so "VIC" on its own stays "VIC".
	if i < 0 {
		return s, "", false
	}
	head = strings.TrimRightFunc(s[:i], unicode.IsSpace)
	if head == "" {
		return s, "", false
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return head, s[i+size:], true
}

func isPostcode(tok string) bool {
	if len(tok) != 4 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
