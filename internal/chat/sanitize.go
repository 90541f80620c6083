package chat

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags returns the text content of s with all markup removed and
// entities decoded, the way a browser's textContent reads it.
func StripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// CleanInput is the outbound form of user text: markup stripped and
// surrounding whitespace trimmed.
func CleanInput(s string) string {
	return strings.TrimSpace(StripTags(s))
}

func decodeEntities(s string) string {
	return html.UnescapeString(s)
}
