// Package ids generates and checks entity identifiers.
package ids

import "github.com/google/uuid"

// New returns a fresh time-ordered identifier in canonical UUID form.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Valid reports whether s is a canonical (hyphenated, 36 character) UUID.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
