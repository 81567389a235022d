package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("91")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "local mobile number", raw: "9876543210", want: "+919876543210"},
		{name: "with country code", raw: "919876543210", want: "+919876543210"},
		{name: "trunk prefix", raw: "09876543210", want: "+919876543210"},
		{name: "formatted input", raw: "+91 (987) 654-3210", want: "+919876543210"},
		{name: "local number starting with 5 is left alone", raw: "5876543210", want: "5876543210"},
		{name: "foreign number", raw: "+44 20 7946 0958", want: "442079460958"},
		{name: "too short", raw: "12345", want: "12345"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.raw))
		})
	}
}

func TestNormalizeOtherCountryCode(t *testing.T) {
	n := NewNormalizer("+44")

	assert.Equal(t, "+447946095812", n.Normalize("7946095812"))
	assert.Equal(t, "+447946095812", n.Normalize("447946095812"))
}

func TestValid(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "normalized indian number", address: "+919876543210", want: true},
		{name: "plain digits", address: "442079460958", want: true},
		{name: "nine digits", address: "987654321", want: false},
		{name: "sixteen digits", address: "1234567890123456", want: false},
		{name: "fifteen digits", address: "+123456789012345", want: true},
		{name: "leading zero", address: "0987654321", want: false},
		{name: "empty", address: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.address))
		})
	}
}

func TestCanonical(t *testing.T) {
	n := NewNormalizer("")

	address, ok := n.Canonical("98765-43210")
	assert.True(t, ok)
	assert.Equal(t, "+919876543210", address)

	_, ok = n.Canonical("12-34")
	assert.False(t, ok)
}
