// Package filename derives safe file names from display names.
package filename

import (
	"regexp"
	"strings"
)

// Everything except unicode word characters, hyphens and dots gets
// stripped after spaces are turned into underscores.
var invalidChars = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)

// Valid turns an arbitrary display name into a string usable as a
// file name: surrounding whitespace is trimmed, inner spaces become
// underscores and all remaining unsafe characters are removed.
func Valid(name string) string {
	s := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	return invalidChars.ReplaceAllString(s, "")
}
