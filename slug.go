package main

import (
	"regexp"
	"strings"
	"time"
)

const maxSlugLength = 50

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeSlug creates a URL/filesystem-safe slug from arbitrary text.
// Lowercase ASCII letters, digits and single hyphens only, no leading or
// trailing hyphen, capped at maxSlugLength. When the text normalizes to fewer
// than two characters (e.g. an entirely non-ASCII title), it falls back to
// post-<YYYYMMDD> from the publish date, so the result is never empty.
func normalizeSlug(text string, publishDate time.Time) string {
	slug := strings.ToLower(text)
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	// Limit length to avoid filesystem issues
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		slug = strings.Trim(slug, "-")
	}

	if len(slug) < 2 {
		return "post-" + publishDate.Format("20060102")
	}

	return slug
}
