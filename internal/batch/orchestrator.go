// Package batch runs per-song resolutions across a title list under a
// bounded worker pool and aggregates their outcomes.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nhatdv/timnhac/internal/normalize"
	"github.com/nhatdv/timnhac/internal/resolver"
	"github.com/nhatdv/timnhac/pkg/logger"
	"github.com/nhatdv/timnhac/pkg/utils"
)

// Runner resolves one song title. Satisfied by *resolver.Resolver.
type Runner interface {
	Resolve(ctx context.Context, song string, p resolver.Params) resolver.Result
}

// Result aggregates a batch run. FailureRecords are collected in completion
// order, which is not deterministic under concurrency.
type Result struct {
	Successes      int
	Failures       int
	FailureRecords []string
	Outcomes       []resolver.Outcome
}

// Run dispatches every title to an independent resolution under at most
// concurrency workers (minimum 1) and folds the results. A panicking
// resolution is converted into one synthetic failure record; it never
// propagates to sibling resolutions or the caller.
func Run(ctx context.Context, r Runner, titles []string, concurrency int, params resolver.Params) Result {
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan string)
	results := make(chan resolver.Result)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for song := range jobs {
				results <- resolveSafe(ctx, r, song, params)
			}
		}()
	}

	go func() {
		for _, title := range titles {
			jobs <- title
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var agg Result
	for res := range results {
		agg.Successes += res.Successes
		agg.Failures += res.Failures
		agg.FailureRecords = append(agg.FailureRecords, res.FailureRecords...)
		agg.Outcomes = append(agg.Outcomes, res.Outcomes...)
	}
	return agg
}

// resolveSafe guards the aggregation boundary: a defect inside one
// resolution becomes a value, never a crash of the batch.
func resolveSafe(ctx context.Context, r Runner, song string, params resolver.Params) (res resolver.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("❌ resolution panicked for %q: %v", song, rec)
			res = resolver.Result{
				Failures:       1,
				FailureRecords: []string{fmt.Sprintf("%s\tunexpected error: %v", song, rec)},
			}
		}
	}()
	return r.Resolve(ctx, song, params)
}

// LoadTitles reads one song title per line from path, normalizing each and
// skipping blanks.
func LoadTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading title list: %w", err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if title := normalize.CleanTitle(scanner.Text()); title != "" {
			titles = append(titles, title)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading title list: %w", err)
	}
	return titles, nil
}

// AppendLedger appends failure records to the ledger at path, one
// tab-delimited record per line.
func AppendLedger(path string, records []string) error {
	return utils.AppendLines(path, records)
}
