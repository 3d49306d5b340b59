package slug

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var invalidChars = regexp.MustCompile(`[^a-z0-9-]+`)

// Make normalizes a label into a url-safe slug. Empty input yields a random
// fallback so callers always receive a usable key.
func Make(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = strings.ReplaceAll(s, " ", "-")
	s = invalidChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s == "" {
		return "item-" + uuid.NewString()[:8]
	}
	return s
}
