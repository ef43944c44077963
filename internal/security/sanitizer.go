package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy      = bluemonday.StrictPolicy()
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.@]{1,128}$`)
)

// SanitizeString trims whitespace and removes null bytes
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeMessage strips markup from user content and keeps the plain text.
// Length limits are left to the rule engine.
func SanitizeMessage(input string) string {
	return strings.TrimSpace(html.UnescapeString(SanitizeHTML(SanitizeString(input))))
}

// ValidateIdentifier checks user and session ids taken from requests
func ValidateIdentifier(id string) bool {
	return identifierRegex.MatchString(id)
}
