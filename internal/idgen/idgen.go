package idgen

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixQuestion      = "q_"
	PrefixLocalQuestion = "qlocal_"
	PrefixAttempt       = "att_"
)

// NewQuestion generates a new generated-question ID with q_ prefix
func NewQuestion() string {
	return PrefixQuestion + uuid.New().String()
}

// LocalQuestion derives a stable ID for a bank question from its content,
// so re-seeding the same bank never duplicates rows
func LocalQuestion(topic, text string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(topic)) + "\x00" + strings.TrimSpace(text)))
	return PrefixLocalQuestion + hex.EncodeToString(sum[:8])
}

// NewAttempt generates a new attempt ID with att_ prefix
func NewAttempt() string {
	return PrefixAttempt + uuid.New().String()
}

// New generates a generic UUID without prefix (for internal use only)
func New() string {
	return uuid.New().String()
}
