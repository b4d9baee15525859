package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSearchTimeout = 2 * time.Minute
	defaultFetchTimeout  = 10 * time.Minute
)

// YTDLP drives the yt-dlp binary. The zero value uses "yt-dlp" from PATH.
type YTDLP struct {
	Binary string
}

func (y *YTDLP) binary() string {
	if y.Binary != "" {
		return y.Binary
	}
	return "yt-dlp"
}

type searchDump struct {
	Entries []Candidate `json:"entries"`
}

// Search runs a yt-dlp JSON dump for query (typically a "ytsearchN:" or
// "scsearchN:" expression) and returns the listed entries.
func (y *YTDLP) Search(ctx context.Context, query string, opts SearchOptions) ([]Candidate, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSearchTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, y.binary(), buildSearchArgs(query, opts)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp search failed: %v\nstderr: %s", err, stderr.String())
	}

	var dump searchDump
	if err := json.Unmarshal(stdout.Bytes(), &dump); err != nil {
		return nil, fmt.Errorf("parsing yt-dlp search JSON: %w", err)
	}

	entries := dump.Entries[:0]
	for _, e := range dump.Entries {
		if e.URL == "" && e.ID != "" {
			e.URL = "https://www.youtube.com/watch?v=" + e.ID
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Fetch downloads and transcodes one item to mp3 at the template path.
func (y *YTDLP) Fetch(ctx context.Context, url string, opts FetchOptions) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFetchTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, y.binary(), buildFetchArgs(url, opts)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("yt-dlp download failed: %v\nstderr: %s", err, stderr.String())
	}
	return nil
}

func buildSearchArgs(query string, opts SearchOptions) []string {
	args := []string{"-J", "--no-warnings", "--no-playlist"}
	if opts.Flat {
		args = append(args, "--flat-playlist")
	}
	args = appendClientArgs(args, opts.Client, opts.CookiesFromBrowser)
	return append(args, query)
}

func buildFetchArgs(url string, opts FetchOptions) []string {
	format := opts.Format
	if format == "" {
		format = "bestaudio/best"
	}
	args := []string{
		"--no-warnings", "--no-playlist",
		"-f", format,
		"-x", "--audio-format", "mp3",
	}
	if opts.Quality > 0 {
		args = append(args, "--audio-quality", strconv.Itoa(opts.Quality)+"K")
	}
	if opts.OutputTemplate != "" {
		args = append(args, "-o", opts.OutputTemplate)
	}
	args = appendClientArgs(args, opts.Client, opts.CookiesFromBrowser)
	return append(args, url)
}

func appendClientArgs(args []string, client, cookiesFromBrowser string) []string {
	if client != "" && !strings.EqualFold(client, "web") {
		args = append(args, "--extractor-args", "youtube:player_client="+strings.ToLower(client))
	}
	if cookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", cookiesFromBrowser)
	}
	return args
}
