package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCodeFormat(t *testing.T) {
	code, err := GenerateCode("ref")
	assert.NoError(t, err)

	parts := strings.SplitN(code, "-", 2)
	assert.Len(t, parts, 2)
	assert.Equal(t, "REF", parts[0], "the prefix is normalized into the code")
	assert.Len(t, parts[1], codeSuffixLength)
	for _, c := range parts[1] {
		assert.Contains(t, codeAlphabet, string(c))
	}
}

func TestGenerateCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode("REF")
		assert.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "consecutive codes should differ")
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "REF-ABC123", NormalizeCode("  ref-abc123 "))
	assert.Equal(t, "REF-ABC123", NormalizeCode("REF-ABC123"))
	assert.Equal(t, "", NormalizeCode("   "))
}
