// Package utils provides utility functions for the application.
package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// SHA1Hex returns the lowercase hex SHA1 digest of the given string
func SHA1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NewUID generates a 13 character unique identifier used for campaigns,
// subscribers and lists in public URLs
func NewUID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return raw[:13]
}
