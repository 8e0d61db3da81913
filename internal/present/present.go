// Package present computes the presentation hints shown next to a bookmark.
// Nothing here fails: unparsable input degrades to a fallback label.
package present

import (
	"net/url"
	"sort"
	"strings"

	"github.com/starford/linkshelf/internal/models"
)

// FallbackDomain is shown when a URL has no usable host.
const FallbackDomain = "link"

// AllCategories disables FilterByCategory.
const AllCategories = "All"

// Domain returns the lowercased hostname of raw, or FallbackDomain.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return FallbackDomain
	}
	return strings.ToLower(u.Hostname())
}

// FaviconURL returns the favicon service URL for domain.
func FaviconURL(domain string) string {
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(domain) + "&sz=64"
}

// ThumbnailURL returns a page screenshot URL for raw.
// The target is appended unescaped; the thumbnail service expects it that way.
func ThumbnailURL(raw string) string {
	return "https://image.thum.io/get/width/600/crop/1200/" + raw
}

// PlaceholderURL returns the image shown while a thumbnail loads or when it fails.
func PlaceholderURL(domain string) string {
	return "https://placehold.co/600x1200/111827/ffffff?text=" + url.QueryEscape(domain)
}

// Hints bundles the presentation values for one bookmark.
type Hints struct {
	Domain         string `json:"domain"`
	FaviconURL     string `json:"favicon_url"`
	ThumbnailURL   string `json:"thumbnail_url"`
	PlaceholderURL string `json:"placeholder_url"`
}

// For computes the hints for b.
func For(b models.Bookmark) Hints {
	d := Domain(b.URL)
	return Hints{
		Domain:         d,
		FaviconURL:     FaviconURL(d),
		ThumbnailURL:   ThumbnailURL(b.URL),
		PlaceholderURL: PlaceholderURL(d),
	}
}

// FilterByCategory returns the items in category c, preserving order.
// An empty c or AllCategories returns items unchanged.
func FilterByCategory(items []models.Bookmark, c string) []models.Bookmark {
	if c == "" || c == AllCategories {
		return items
	}
	out := make([]models.Bookmark, 0, len(items))
	for _, b := range items {
		if b.Category == c {
			out = append(out, b)
		}
	}
	return out
}

// Categories returns the sorted distinct categories of items.
func Categories(items []models.Bookmark) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, b := range items {
		if _, ok := seen[b.Category]; ok {
			continue
		}
		seen[b.Category] = struct{}{}
		out = append(out, b.Category)
	}
	sort.Strings(out)
	return out
}
