package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"5561999990000":              "+5561999990000",
		"+5561999990000":             "+5561999990000",
		"whatsapp:+5561999990000":    "+5561999990000",
		"WhatsApp:+55 61 99999-0000": "+5561999990000",
	}
	for in, want := range cases {
		got, ok := Canonical(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := Canonical("whatsapp:")
	assert.False(t, ok)
	_, ok = Canonical("")
	assert.False(t, ok)
}
