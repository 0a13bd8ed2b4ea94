package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeFilename turns a display title into something usable as a
// directory or file name.
func SafeFilename(name string) string {
	name = strings.Trim(name, " \n\t")
	name = unsafeFilename.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}
