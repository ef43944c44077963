package utils

import (
	"strings"
	"unicode/utf8"
)

// TrimmedLength returns the number of characters left after trimming surrounding whitespace.
func TrimmedLength(input string) int {
	return utf8.RuneCountInString(strings.TrimSpace(input))
}

// CollapseSpaces trims the input and squeezes inner whitespace runs to a single space.
func CollapseSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
