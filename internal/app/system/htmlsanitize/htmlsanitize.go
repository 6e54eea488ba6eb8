// Package htmlsanitize strips markup from free text submitted through the
// public signup form before it is stored or shown in the review console.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag (and the content of script/style elements)
// and returns trimmed, unescaped text.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
