// Package sanitize strips markup from user-entered text.
package sanitize

import (
	"html"
	"net/url"
	"strings"

	"studioAPI/internal/types/project"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every tag and returns plain text with entities decoded. The
// pass is repeated until the value stops changing, so encoded markup such as
// "&lt;b&gt;" cannot survive and Text(Text(s)) == Text(s).
func Text(s string) string {
	cur := s
	for {
		next := html.UnescapeString(strict.Sanitize(cur))
		if next == cur {
			return cur
		}
		if len(next) >= len(cur) {
			return next
		}
		cur = next
	}
}

// URL keeps http, https and data URLs and root-relative paths. Anything else
// yields "".
func URL(s string) string {
	clean := strings.TrimSpace(Text(s))
	if clean == "" {
		return ""
	}
	if strings.HasPrefix(clean, "/") {
		return clean
	}
	u, err := url.Parse(clean)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "data":
		return clean
	}
	return ""
}

// Metadata returns m with every text field passed through Text.
func Metadata(m project.Metadata) project.Metadata {
	return project.Metadata{
		Title:         Text(m.Title),
		Subtitle:      Text(m.Subtitle),
		GuestName:     Text(m.GuestName),
		Date:          Text(m.Date),
		Extra1:        Text(m.Extra1),
		Extra2:        Text(m.Extra2),
		IsTransparent: m.IsTransparent,
	}
}

// Clean reports whether m is already sanitized.
func Clean(m project.Metadata) bool {
	return Metadata(m) == m
}
