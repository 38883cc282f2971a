package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet omits 0/O/1/I to keep codes readable when shared aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeSuffixLength = 6

// GenerateCode produces a shareable code of the form PREFIX-XXXXXX. The
// generator has no database access; uniqueness is the caller's problem.
func GenerateCode(prefix string) (string, error) {
	b := make([]byte, codeSuffixLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	suffix := make([]byte, codeSuffixLength)
	for i, v := range b {
		suffix[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return NormalizeCode(prefix) + "-" + string(suffix), nil
}

// NormalizeCode uppercases and trims a code for case-insensitive lookups.
// Codes are stored normalized, so lookups must normalize first.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func StringPtr(s string) *string {
	return &s
}

func UintPtr(v uint) *uint {
	return &v
}

func Int64Ptr(v int64) *int64 {
	return &v
}

func BoolPtr(v bool) *bool {
	return &v
}
