package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nhatdv/timnhac/internal/batch"
	"github.com/nhatdv/timnhac/internal/config"
	"github.com/nhatdv/timnhac/internal/engine"
	"github.com/nhatdv/timnhac/internal/history"
	"github.com/nhatdv/timnhac/internal/normalize"
	"github.com/nhatdv/timnhac/internal/resolver"
	"github.com/nhatdv/timnhac/internal/scoring"
	"github.com/nhatdv/timnhac/internal/source"
	"github.com/nhatdv/timnhac/pkg/logger"
	"github.com/nhatdv/timnhac/pkg/utils"
)

const (
	defaultConfigFile = "timnhac.toml"
	defaultListFile   = "list.txt"
	ledgerFile        = "failures.log"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	logger.Debugf("Executing command: %s", command)

	switch command {
	case "get":
		handleGet()
	case "batch":
		handleBatch()
	case "history":
		handleHistory()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfigFromArgs resolves the config file before flag parsing so flag
// defaults can come from it. Precedence: -config flag, TIMNHAC_CONFIG env,
// timnhac.toml in the working directory, built-in defaults.
func loadConfigFromArgs(args []string) (config.Config, error) {
	path := getEnvOrDefault("TIMNHAC_CONFIG", "")
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				path = args[i+1]
			}
		case strings.HasPrefix(arg, "-config="):
			path = strings.TrimPrefix(arg, "-config=")
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		}
	}
	if path == "" {
		if !utils.FileExists(defaultConfigFile) {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	return config.Load(path)
}

// registerDownloadFlags binds the shared retrieval flags directly onto the
// loaded config, so flags override the file which overrides defaults.
func registerDownloadFlags(fs *flag.FlagSet, cfg *config.Config) {
	d := &cfg.Download
	fs.String("config", "", "Path to TOML config file (env: TIMNHAC_CONFIG)")
	fs.StringVar(&d.OutputDir, "output-dir", d.OutputDir, "Directory to save audio files")
	fs.IntVar(&d.Limit, "limit", d.Limit, "Number of top candidates to retrieve per song")
	fs.IntVar(&d.Quality, "quality", d.Quality, "Target mp3 bitrate in kbps")
	fs.StringVar(&d.Client, "client", d.Client, "Player client to present (web or android)")
	fs.StringVar(&d.CookiesFromBrowser, "cookies-from-browser", d.CookiesFromBrowser, "Browser to read cookies from (e.g. chrome, firefox)")
	fs.BoolVar(&d.SkipExisting, "skip-existing", d.SkipExisting, "Skip candidates whose output file already exists")
	fs.IntVar(&d.MinDuration, "min-duration", d.MinDuration, "Minimum candidate duration in seconds (0 = no bound)")
	fs.IntVar(&d.MaxDuration, "max-duration", d.MaxDuration, "Maximum candidate duration in seconds (0 = no bound)")
	fs.BoolVar(&d.UseAudioTier, "audio-tier", d.UseAudioTier, "Try the dedicated audio platform before the general one")
	fs.BoolVar(&d.RefillOnPartial, "refill", d.RefillOnPartial, "Fill remaining slots from the general tier after a partial audio-tier success")
	fs.BoolVar(&d.ClientFallback, "client-fallback", d.ClientFallback, "Retry a failed fetch once with the android client")
}

func buildResolver(cfg *config.Config) *resolver.Resolver {
	ytdlp := &engine.YTDLP{}
	scorer := scoring.NewScorer(cfg.Vocabulary(), scoring.DefaultWeights())
	return resolver.New(ytdlp, ytdlp, scorer, source.DefaultTiers())
}

func resolveParams(cfg *config.Config, dryRun bool) resolver.Params {
	d := cfg.Download
	return resolver.Params{
		Limit:              d.Limit,
		Quality:            d.Quality,
		OutputDir:          d.OutputDir,
		Client:             d.Client,
		CookiesFromBrowser: d.CookiesFromBrowser,
		Bounds:             scoring.DurationBounds{Min: d.MinDuration, Max: d.MaxDuration},
		Policy: resolver.Policy{
			UseAudioTier:        d.UseAudioTier,
			SkipExisting:        d.SkipExisting,
			DryRun:              dryRun,
			AllowClientFallback: d.ClientFallback,
			RefillOnPartial:     d.RefillOnPartial,
		},
	}
}

func handleGet() {
	log := logger.GetLogger()
	args := os.Args[2:]

	cfg, err := loadConfigFromArgs(args)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fs := flag.NewFlagSet("get", flag.ExitOnError)
	name := fs.String("name", "", "Song title to retrieve (required)")
	dryRun := fs.Bool("dry-run", false, "Show what would be retrieved without fetching")
	verbose := fs.Bool("verbose", false, "Show debug logging")
	dbPath := fs.String("db", getEnvOrDefault("TIMNHAC_DB_PATH", cfg.History.Path), "Path to the download-history database")
	registerDownloadFlags(fs, &cfg)
	fs.Parse(args)

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	title := normalize.CleanTitle(*name)
	if title == "" {
		fmt.Println("Error: -name is required")
		fmt.Println("Usage: timnhac get -name \"Tiến Quân Ca\" [options]")
		os.Exit(1)
	}

	if err := utils.MakeDir(cfg.Download.OutputDir); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fmt.Printf("🔍 Resolving: %s\n", title)
	r := buildResolver(&cfg)
	res := r.Resolve(context.Background(), title, resolveParams(&cfg, *dryRun))

	finishRun(&cfg, *dbPath, 1, batch.Result{
		Successes:      res.Successes,
		Failures:       res.Failures,
		FailureRecords: res.FailureRecords,
		Outcomes:       res.Outcomes,
	}, *dryRun)
}

func handleBatch() {
	log := logger.GetLogger()
	args := os.Args[2:]

	cfg, err := loadConfigFromArgs(args)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	list := fs.String("list", defaultListFile, "Path to the title list, one song per line")
	dryRun := fs.Bool("dry-run", false, "Show what would be retrieved without fetching")
	verbose := fs.Bool("verbose", false, "Show debug logging")
	dbPath := fs.String("db", getEnvOrDefault("TIMNHAC_DB_PATH", cfg.History.Path), "Path to the download-history database")
	fs.IntVar(&cfg.Download.Concurrency, "concurrency", cfg.Download.Concurrency, "Songs resolved in parallel")
	registerDownloadFlags(fs, &cfg)
	fs.Parse(args)

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	titles, err := batch.LoadTitles(*list)
	if err != nil {
		log.Fatalf("Failed to load title list: %v", err)
	}
	if len(titles) == 0 {
		fmt.Printf("📭 No titles in %s\n", *list)
		return
	}

	if err := utils.MakeDir(cfg.Download.OutputDir); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fmt.Printf("🔍 Resolving %d songs with %d workers\n", len(titles), cfg.Download.Concurrency)
	r := buildResolver(&cfg)
	res := batch.Run(context.Background(), r, titles, cfg.Download.Concurrency, resolveParams(&cfg, *dryRun))

	finishRun(&cfg, *dbPath, len(titles), res, *dryRun)
}

// finishRun prints the summary, appends the failure ledger, and records the
// run in the history database.
func finishRun(cfg *config.Config, dbPath string, titles int, res batch.Result, dryRun bool) {
	log := logger.GetLogger()

	fmt.Printf("\n📊 Summary: succeeded=%d, failed=%d\n", res.Successes, res.Failures)

	if len(res.FailureRecords) > 0 {
		ledger := filepath.Join(cfg.Download.OutputDir, ledgerFile)
		if err := batch.AppendLedger(ledger, res.FailureRecords); err != nil {
			log.Errorf("Failed to write failure ledger %s: %v", ledger, err)
		} else {
			fmt.Printf("📝 Failures appended to: %s\n", ledger)
		}
	}

	if !cfg.History.Enabled {
		return
	}
	store, err := history.Open(dbPath)
	if err != nil {
		log.Warnf("History disabled for this run: %v", err)
		return
	}
	defer store.Close()

	runID := history.NewRunID()
	attempts := history.AttemptsFromOutcomes(runID, res.Outcomes)
	if !dryRun {
		for i := range attempts {
			if attempts[i].Status != string(resolver.StatusSuccess) || attempts[i].Path == "" {
				continue
			}
			if dur, err := engine.ProbeDuration(context.Background(), attempts[i].Path); err == nil {
				attempts[i].DurationSec = dur
			} else {
				log.Debugf("Could not probe %s: %v", attempts[i].Path, err)
			}
		}
	}

	run := history.BatchRun{
		ID:        runID,
		Titles:    titles,
		Successes: res.Successes,
		Failures:  res.Failures,
	}
	if err := store.RecordRun(run, attempts); err != nil {
		log.Warnf("Failed to record run history: %v", err)
	}
}

func handleHistory() {
	log := logger.GetLogger()

	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", getEnvOrDefault("TIMNHAC_DB_PATH", history.DefaultDBFile), "Path to the download-history database")
	limit := fs.Int("limit", 20, "Number of attempts to show")
	runs := fs.Bool("runs", false, "Show batch runs instead of individual attempts")
	fs.Parse(os.Args[2:])

	store, err := history.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	defer store.Close()

	if *runs {
		items, err := store.ListRuns(*limit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(items) == 0 {
			fmt.Println("📭 No batch runs recorded")
			return
		}
		for _, run := range items {
			fmt.Printf("%s  %s  titles=%d succeeded=%d failed=%d\n",
				run.CreatedAt.Format("2006-01-02 15:04"), run.ID, run.Titles, run.Successes, run.Failures)
		}
		return
	}

	attempts, err := store.RecentAttempts(*limit)
	if err != nil {
		log.Fatalf("Failed to list attempts: %v", err)
	}
	if len(attempts) == 0 {
		fmt.Println("📭 No download attempts recorded")
		return
	}
	for _, a := range attempts {
		line := fmt.Sprintf("%s  [%s] %s", a.CreatedAt.Format("2006-01-02 15:04"), a.Status, a.Song)
		if a.Rank > 0 {
			line += fmt.Sprintf(" | Top%d %s (%s)", a.Rank, a.CandidateTitle, a.Tier)
		}
		if a.Detail != "" {
			line += " | " + a.Detail
		}
		fmt.Println(line)
	}
}

func printUsage() {
	fmt.Println("timnhac - revolutionary-music search and retrieval")
	fmt.Println("\nUsage:")
	fmt.Println("  timnhac get -name <title> [options]      Retrieve the top candidates for one song")
	fmt.Println("  timnhac batch [-list list.txt] [options] Retrieve every song in a title list")
	fmt.Println("  timnhac history [-runs] [-limit N]       Show recorded download attempts")
	fmt.Println("\nCommon options:")
	fmt.Println("  -config <path>           TOML config file (env: TIMNHAC_CONFIG, default: timnhac.toml)")
	fmt.Println("  -output-dir <dir>        Directory to save audio files (default: downloads)")
	fmt.Println("  -limit <n>               Top candidates per song (default: 5)")
	fmt.Println("  -quality <kbps>          mp3 bitrate (default: 192)")
	fmt.Println("  -client <web|android>    Player client to present (default: web)")
	fmt.Println("  -min-duration <sec>      Drop candidates shorter than this")
	fmt.Println("  -max-duration <sec>      Drop candidates longer than this")
	fmt.Println("  -audio-tier              Try the dedicated audio platform first")
	fmt.Println("  -skip-existing           Skip already-downloaded files")
	fmt.Println("  -dry-run                 Plan without fetching")
	fmt.Println("\nExamples:")
	fmt.Println("  timnhac get -name \"3. Tiến Quân Ca\" -limit 2")
	fmt.Println("  timnhac batch -list list.txt -concurrency 4 -skip-existing")
	fmt.Println("  timnhac history -limit 50")
}
