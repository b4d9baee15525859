// Package engine wraps the external media engine (yt-dlp and ffprobe) behind
// small search/fetch interfaces so the ranking and orchestration layers can be
// exercised without network access.
package engine

import "context"

// Candidate is one metadata record returned by a search call.
type Candidate struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Duration  *float64 `json:"duration"`
	ViewCount int64    `json:"view_count"`
	Tier      string   `json:"-"`
}

// SearchOptions configures one search call.
type SearchOptions struct {
	// Flat requests a flat listing (metadata only, no per-entry extraction).
	Flat bool
	// Client selects the player client identity to present ("web", "android").
	Client string
	// CookiesFromBrowser names a browser to read cookies from ("chrome", "firefox").
	CookiesFromBrowser string
}

// FetchOptions configures one fetch call.
type FetchOptions struct {
	// Format is the stream selection expression, e.g. "bestaudio/best".
	Format string
	// OutputTemplate is the output path template, e.g. "dir/name.%(ext)s".
	OutputTemplate string
	// Quality is the target mp3 bitrate in kbps.
	Quality            int
	Client             string
	CookiesFromBrowser string
}

// Searcher locates candidates for a query.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Candidate, error)
}

// Fetcher retrieves one candidate's audio to disk.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) error
}
