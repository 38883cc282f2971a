package serviceimpl

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// codeGenerationAttempts bounds the retry loop for random shareable codes.
// Exhaustion is a hard failure, never a possibly-colliding code.
const codeGenerationAttempts = 10

// isDuplicateKeyError reports whether an insert failed on a uniqueness
// constraint. The string checks cover the sqlite and postgres drivers, which
// do not translate constraint violations unless TranslateError is enabled.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
