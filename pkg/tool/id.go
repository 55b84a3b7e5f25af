package tool

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDV7 returns a time-ordered id for primary keys.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRef returns a purchase correlation token. It travels in return URLs
// and provider metadata, so it carries no dashes.
func NewRef() string {
	return strings.ReplaceAll(GenerateUUIDV7(), "-", "")
}
