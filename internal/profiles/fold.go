package profiles

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-insensitive form of a username used for lookups and uniqueness.
func Fold(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}
