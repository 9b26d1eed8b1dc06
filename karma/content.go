package karma

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips all markup. Used only to decide whether content has
// any visible text; the stored content is the trimmed original.
var strictPolicy = bluemonday.StrictPolicy()

// NormalizeContent trims content and rejects it when it is blank once markup
// is removed, or longer than maxLen runes.
func NormalizeContent(content string, maxLen int) (string, error) {
	content = strings.TrimSpace(content)

	visible := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(content)))
	if visible == "" {
		return "", &ValidationError{Field: "content", Message: "content cannot be blank"}
	}
	if n := utf8.RuneCountInString(content); n > maxLen {
		return "", &ValidationError{Field: "content", Message: "content is too long"}
	}
	return content, nil
}
