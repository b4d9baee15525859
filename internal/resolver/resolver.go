// Package resolver retrieves the best candidates for one song title. It
// queries source tiers in preference order, ranks the results, and drives the
// engine's fetch capability for the top candidates, converting every problem
// into an outcome or failure record instead of an error.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nhatdv/timnhac/internal/engine"
	"github.com/nhatdv/timnhac/internal/normalize"
	"github.com/nhatdv/timnhac/internal/scoring"
	"github.com/nhatdv/timnhac/internal/source"
	"github.com/nhatdv/timnhac/pkg/logger"
	"github.com/nhatdv/timnhac/pkg/utils"
)

// Status classifies one download attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FallbackClient is the player client retried once when the primary client's
// fetch fails and policy permits.
const FallbackClient = "android"

var (
	// ErrNoResults means a tier's search returned nothing for the song.
	ErrNoResults = errors.New("no search results")
	// ErrNoCandidates means every search result was excluded from ranking.
	ErrNoCandidates = errors.New("no eligible candidates")
)

// Outcome records one download attempt, or a song-level failure (Rank 0).
type Outcome struct {
	Song           string
	Tier           string
	Rank           int
	CandidateTitle string
	Path           string
	Status         Status
	Detail         string
}

// Policy holds the behavior switches for a resolution.
type Policy struct {
	// UseAudioTier enables the dedicated audio platform as a first phase.
	UseAudioTier bool
	// SkipExisting records candidates whose output file already exists as
	// skipped without fetching.
	SkipExisting bool
	// DryRun simulates successes without fetching.
	DryRun bool
	// AllowClientFallback permits one retry with FallbackClient after a
	// failed fetch on the general tier.
	AllowClientFallback bool
	// RefillOnPartial lets the general tier fill remaining slots when the
	// audio tier succeeded for fewer than the requested limit.
	RefillOnPartial bool
}

// Params holds the per-song resolution parameters.
type Params struct {
	Limit              int
	Quality            int
	OutputDir          string
	Client             string
	CookiesFromBrowser string
	Bounds             scoring.DurationBounds
	Policy             Policy
}

// Result aggregates one resolution.
type Result struct {
	Successes      int
	Failures       int
	FailureRecords []string
	Outcomes       []Outcome
}

// Resolver resolves song titles against the configured tiers. Safe for
// concurrent use; each Resolve call is independent.
type Resolver struct {
	searcher engine.Searcher
	fetcher  engine.Fetcher
	scorer   *scoring.Scorer
	tiers    []source.Tier
	log      *logger.Logger
}

func New(searcher engine.Searcher, fetcher engine.Fetcher, scorer *scoring.Scorer, tiers []source.Tier) *Resolver {
	return &Resolver{
		searcher: searcher,
		fetcher:  fetcher,
		scorer:   scorer,
		tiers:    tiers,
		log:      logger.GetLogger(),
	}
}

// OutputPath returns the deterministic output path for one attempt.
func OutputPath(dir, song string, rank int, candidateTitle string) string {
	name := fmt.Sprintf("%s - Top%d - %s.mp3",
		normalize.SafeFilename(song), rank, normalize.SafeFilename(candidateTitle))
	return filepath.Join(dir, name)
}

func outputTemplate(dir, song string, rank int, candidateTitle string) string {
	name := fmt.Sprintf("%s - Top%d - %s.%%(ext)s",
		normalize.SafeFilename(song), rank, normalize.SafeFilename(candidateTitle))
	return filepath.Join(dir, name)
}

// Resolve runs the two-phase resolution for one song: the audio tier first
// when enabled, then the general tier. A success in the first phase is
// terminal unless RefillOnPartial asks for the remaining slots.
func (r *Resolver) Resolve(ctx context.Context, song string, p Params) Result {
	var res Result
	if strings.TrimSpace(song) == "" {
		return res
	}
	if p.Limit < 1 {
		p.Limit = 1
	}

	remaining := p.Limit
	audioTier, generalTier := splitTiers(r.tiers)

	if p.Policy.UseAudioTier && audioTier != nil {
		got := r.runTier(ctx, song, *audioTier, remaining, p, false, &res)
		if got > 0 {
			if !p.Policy.RefillOnPartial || got >= remaining {
				return res
			}
			remaining -= got
		}
	}

	r.runTier(ctx, song, generalTier, remaining, p, p.Policy.AllowClientFallback, &res)
	return res
}

// splitTiers separates the preferred audio tier (all but the last) from the
// general fallback tier (the last). A single-tier configuration has no audio
// tier.
func splitTiers(tiers []source.Tier) (*source.Tier, source.Tier) {
	if len(tiers) == 0 {
		return nil, source.DefaultTiers()[1]
	}
	if len(tiers) == 1 {
		return nil, tiers[0]
	}
	return &tiers[0], tiers[len(tiers)-1]
}

// runTier searches one tier, ranks, and attempts up to limit candidates.
// Returns the number of successes (real or simulated) in this tier.
func (r *Resolver) runTier(ctx context.Context, song string, tier source.Tier, limit int, p Params, allowClientRetry bool, res *Result) int {
	query := source.BuildQuery(tier, song)
	candidates, err := r.searcher.Search(ctx, query, engine.SearchOptions{
		Flat:               true,
		Client:             p.Client,
		CookiesFromBrowser: p.CookiesFromBrowser,
	})
	if err != nil {
		r.recordSongFailure(res, song, tier.Name, fmt.Sprintf("%s search failed: %v", tier.Name, err))
		return 0
	}
	if len(candidates) == 0 {
		r.recordSongFailure(res, song, tier.Name, fmt.Sprintf("%s: %v", tier.Name, ErrNoResults))
		return 0
	}

	bounds := p.Bounds
	if tier.MinDurationSec > bounds.Min {
		bounds.Min = tier.MinDurationSec
	}
	ranked := r.scorer.Rank(candidates, song, bounds)
	if len(ranked) == 0 {
		r.recordSongFailure(res, song, tier.Name, fmt.Sprintf("%s: %v", tier.Name, ErrNoCandidates))
		return 0
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	successes := 0
	for i, sc := range ranked {
		rank := i + 1
		title := sc.Candidate.Title
		path := OutputPath(p.OutputDir, song, rank, title)
		r.log.Infof("🎵 %s [Top %d] %s (%s) | score=%.1f", song, rank, title, sc.Candidate.URL, sc.Score)

		outcome := Outcome{
			Song:           song,
			Tier:           tier.Name,
			Rank:           rank,
			CandidateTitle: title,
			Path:           path,
		}

		if p.Policy.SkipExisting && utils.FileExists(path) {
			r.log.Infof("⏭️ already exists, skipping: %s", path)
			outcome.Status = StatusSkipped
			outcome.Detail = "file already exists"
			res.Outcomes = append(res.Outcomes, outcome)
			continue
		}

		if p.Policy.DryRun {
			r.log.Infof("🧪 dry-run, would save: %s", path)
			outcome.Status = StatusSuccess
			outcome.Detail = "dry-run"
			res.Outcomes = append(res.Outcomes, outcome)
			res.Successes++
			successes++
			continue
		}

		tmpl := outputTemplate(p.OutputDir, song, rank, title)
		if err := r.fetch(ctx, sc.Candidate.URL, tier, tmpl, p, allowClientRetry); err != nil {
			record := fmt.Sprintf("%s\tTop%d\t%s\t%v", song, rank, title, err)
			r.log.Errorf("❌ %s", record)
			outcome.Status = StatusFailed
			outcome.Detail = err.Error()
			res.Outcomes = append(res.Outcomes, outcome)
			res.Failures++
			res.FailureRecords = append(res.FailureRecords, record)
			continue
		}

		outcome.Status = StatusSuccess
		res.Outcomes = append(res.Outcomes, outcome)
		res.Successes++
		successes++
	}
	return successes
}

// fetch attempts one download, retrying once with the fallback client when
// permitted and the primary client differs from it. The retry's error wins.
func (r *Resolver) fetch(ctx context.Context, url string, tier source.Tier, tmpl string, p Params, allowClientRetry bool) error {
	opts := engine.FetchOptions{
		Format:             tier.FetchFormat,
		OutputTemplate:     tmpl,
		Quality:            p.Quality,
		Client:             p.Client,
		CookiesFromBrowser: p.CookiesFromBrowser,
	}

	err := r.fetcher.Fetch(ctx, url, opts)
	if err == nil {
		return nil
	}
	if !allowClientRetry || strings.EqualFold(p.Client, FallbackClient) {
		return err
	}

	r.log.Warnf("⚠️ fetch failed (%v), retrying with %s client", err, FallbackClient)
	opts.Client = FallbackClient
	if retryErr := r.fetcher.Fetch(ctx, url, opts); retryErr != nil {
		return fmt.Errorf("after %s client fallback: %w", FallbackClient, retryErr)
	}
	return nil
}

func (r *Resolver) recordSongFailure(res *Result, song, tier, detail string) {
	record := song + "\t" + detail
	r.log.Errorf("❌ %s", record)
	res.Failures++
	res.FailureRecords = append(res.FailureRecords, record)
	res.Outcomes = append(res.Outcomes, Outcome{
		Song:   song,
		Tier:   tier,
		Status: StatusFailed,
		Detail: detail,
	})
}
