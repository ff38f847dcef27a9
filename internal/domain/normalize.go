package domain

import "strings"

// NormalizeDescription trims leading/trailing whitespace from an item description.
// Internal whitespace is significant for scoring and is left untouched.
func NormalizeDescription(s string) string {
	return strings.TrimSpace(s)
}
