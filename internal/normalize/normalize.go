// Package normalize cleans raw song titles for querying and for use in
// filesystem paths.
package normalize

import (
	"regexp"
	"strings"
)

var (
	ordinalPrefix = regexp.MustCompile(`^\d+\.\s*`)
	unsafeChars   = regexp.MustCompile(`[\\/*?:"<>|]`)
)

// CleanTitle strips a leading ordinal list marker such as "12. " and trims
// surrounding whitespace. An empty result means there is no work to do.
func CleanTitle(raw string) string {
	return strings.TrimSpace(ordinalPrefix.ReplaceAllString(strings.TrimSpace(raw), ""))
}

// SafeFilename removes characters that are illegal in filenames on common
// filesystems. No substitution characters are inserted.
func SafeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "")
}
