package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseSpaces(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already clean", input: "Income Certificate", expected: "Income Certificate"},
		{name: "leading and trailing", input: "  Ration Card ", expected: "Ration Card"},
		{name: "interior runs", input: "Income   Tax\tFiling", expected: "Income Tax Filing"},
		{name: "empty", input: "", expected: ""},
		{name: "only spaces", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CollapseSpaces(tt.input))
		})
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases", input: "Birth Certificate", expected: "birth certificate"},
		{name: "strips diacritics", input: "Aadhāar Updatè", expected: "aadhaar update"},
		{name: "collapses before folding", input: "  PAN   Card ", expected: "pan card"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fold(tt.input))
		})
	}
}

func TestHashCredential(t *testing.T) {
	h := HashCredential("secret")
	assert.True(t, ValidateHash(h))
	assert.Equal(t, h, HashCredential("secret"))
	assert.NotEqual(t, h, HashCredential("Secret"))
}

func TestCleanUTF8(t *testing.T) {
	cleaned, changed := CleanUTF8("plain text")
	assert.False(t, changed)
	assert.Equal(t, "plain text", cleaned)

	cleaned, changed = CleanUTF8("with\x00null")
	assert.True(t, changed)
	assert.Equal(t, "withnull", cleaned)
}
