// Package source defines the media sources tried for each song, in
// preference order, and how to build search queries for them.
package source

import "fmt"

// GenreQualifier is appended to every query to bias results toward the target
// genre.
const GenreQualifier = "nhạc cách mạng"

// Tier is one named search/fetch configuration, tried in preference order.
type Tier struct {
	// Name labels the tier in outcomes and logs.
	Name string
	// SearchPrefix is the engine search expression prefix, including the
	// result-count ceiling, e.g. "ytsearch20:".
	SearchPrefix string
	// FetchFormat is the stream selection expression passed to the engine.
	FetchFormat string
	// MinDurationSec filters implausibly short uploads (jingles, previews)
	// when this tier is searched, independent of caller bounds. Zero disables.
	MinDurationSec int
}

// DefaultTiers returns the built-in preference order: a dedicated audio
// platform first, then the general video platform with a wider net.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:           "soundcloud",
			SearchPrefix:   "scsearch10:",
			FetchFormat:    "bestaudio/best",
			MinDurationSec: 30,
		},
		{
			Name:         "youtube",
			SearchPrefix: "ytsearch20:",
			FetchFormat:  "bestaudio/best",
		},
	}
}

// BuildQuery concatenates the tier's search prefix, the song title, and the
// fixed genre qualifier.
func BuildQuery(tier Tier, title string) string {
	return fmt.Sprintf("%s%s %s", tier.SearchPrefix, title, GenreQualifier)
}
