// Package phone converts provider-specific WhatsApp addresses to the
// canonical "+<digits>" form stored on threads, and back.
package phone

import "strings"

// Canonical strips a "whatsapp:" prefix and any formatting, returning
// "+<digits>". ok is false when no digits remain.
func Canonical(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len("whatsapp:") && strings.EqualFold(raw[:len("whatsapp:")], "whatsapp:") {
		raw = raw[len("whatsapp:"):]
	}
	digits := Digits(raw)
	if digits == "" {
		return "", false
	}
	return "+" + digits, true
}

// Digits keeps only ASCII digits
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
