package bookmarks

import (
	"strings"

	"github.com/starford/linkshelf/internal/models"
)

// NormalizeURL prefixes https:// unless raw already starts with http:// or https://.
// No further validation is done; malformed hosts are stored as given.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// NormalizeCategory trims c and substitutes models.DefaultCategory when blank.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return models.DefaultCategory
	}
	return c
}
