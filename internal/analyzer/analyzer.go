package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/aggregator"
	"github.com/penwyp/go-clang-timetrace/internal/data/parser"
	"github.com/penwyp/go-clang-timetrace/internal/data/scanner"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// Config controls discovery and parallelism of an ingestion run.
type Config struct {
	WorkDir        string
	Pattern        string
	Jobs           int
	FollowSymlinks bool
}

type Analyzer struct {
	config     *Config
	store      *store.Store
	scanner    *scanner.FileScanner
	parser     *parser.Parser
	aggregator *aggregator.Aggregator
	exclude    map[string]struct{}
}

// New creates an Analyzer that ingests into st. The store file and its journals are never ingested.
func New(config *Config, st *store.Store) *Analyzer {
	if config.Jobs < 1 {
		config.Jobs = 1
	}
	if config.Pattern == "" {
		config.Pattern = model.DefaultTracePattern
	}

	agg := aggregator.NewAggregator()
	return &Analyzer{
		config: config,
		store:  st,
		scanner: scanner.NewFileScanner(config.WorkDir,
			scanner.WithPattern(config.Pattern),
			scanner.WithFollowSymlinks(config.FollowSymlinks)),
		parser:     parser.NewParser(config.Jobs, agg),
		aggregator: agg,
		exclude:    storeFiles(st.Path()),
	}
}

// storeFiles lists the database file and its SQLite sidecars, none of which may
// be ingested even when the trace pattern happens to match them.
func storeFiles(dbPath string) map[string]struct{} {
	files := make(map[string]struct{}, 4)
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		files[abs+suffix] = struct{}{}
	}
	return files
}

// Run performs one complete ingestion: reset the store, discover trace files
// and merge each of them. Per-file failures are counted in the returned stats;
// only discovery failures, an unusable store or cancellation produce an error.
func (a *Analyzer) Run(ctx context.Context) (*RunStats, error) {
	stats := NewRunStats()
	util.LogInfo(fmt.Sprintf("Starting ingestion of %s", a.config.WorkDir))

	// Phase 1: Reset
	if err := a.store.Reset(ctx); err != nil {
		return stats, fmt.Errorf("failed to reset store: %w", err)
	}

	// Phase 2: Discover
	scanStart := time.Now()
	files, err := a.scanner.Scan()
	if err != nil {
		return stats, fmt.Errorf("failed to scan %s: %w", a.config.WorkDir, err)
	}
	files = a.filter(files)
	util.LogDebug(fmt.Sprintf("Discovery duration: %v, found %d trace files", time.Since(scanStart), len(files)))

	if len(files) == 0 {
		util.LogWarn(fmt.Sprintf("No trace files matching %s under %s", a.config.Pattern, a.config.WorkDir))
	} else {
		util.LogInfo(fmt.Sprintf("Found %d trace files", len(files)))
	}

	// Phase 3: Ingest
	err = a.Ingest(ctx, files, stats)
	stats.Finish()
	stats.PrintFinalStats()
	return stats, err
}

// Ingest merges files into the store without resetting it first.
func (a *Analyzer) Ingest(ctx context.Context, files []string, stats *RunStats) error {
	stats.AddDiscovered(len(files))
	if len(files) == 0 {
		return nil
	}
	if a.config.Jobs == 1 || len(files) == 1 {
		return a.ingestSequential(ctx, files, stats)
	}
	return a.ingestConcurrent(ctx, files, stats)
}

func (a *Analyzer) ingestSequential(ctx context.Context, files []string, stats *RunStats) error {
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.merge(ctx, a.parser.ProcessFile(file), stats); err != nil {
			return err
		}
	}
	return nil
}

// ingestConcurrent parses and folds in parallel while this goroutine remains
// the only one touching the store.
func (a *Analyzer) ingestConcurrent(ctx context.Context, files []string, stats *RunStats) error {
	parseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := a.parser.ParseFiles(parseCtx, files)

	var fatal error
	for result := range results {
		if fatal != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			fatal = err
			cancel()
			continue
		}
		if err := a.merge(ctx, result, stats); err != nil {
			fatal = err
			cancel()
		}
	}
	if fatal == nil {
		fatal = ctx.Err()
	}
	return fatal
}

// merge applies one parse result and records its outcome. It returns an error
// only when the run has to stop.
func (a *Analyzer) merge(ctx context.Context, result parser.ParseResult, stats *RunStats) error {
	if result.Error != nil {
		stats.RecordSkipped(result.File, result.Error)
		return nil
	}

	err := a.aggregator.Apply(ctx, a.store, result.Aggregate)
	if err != nil {
		// A cancelled context surfaces as a store error; the file was rolled back.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.RecordSkipped(result.File, err)
		if model.Fatal(err) {
			return fmt.Errorf("aborting ingestion at %s: %w", result.File, err)
		}
		return nil
	}

	stats.RecordIngested(result.Aggregate)
	util.LogDebug(fmt.Sprintf("Merged %s: %d keys in %v", result.Aggregate.Object,
		result.Aggregate.KeyCount(), result.Elapsed))
	return nil
}

func (a *Analyzer) filter(files []string) []string {
	kept := files[:0]
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}
		if _, skip := a.exclude[abs]; skip {
			util.LogDebug(fmt.Sprintf("Skipping store file %s", file))
			continue
		}
		kept = append(kept, file)
	}
	return kept
}

// Matches reports whether path would be picked up by discovery.
func (a *Analyzer) Matches(path string) bool {
	if !a.scanner.Matches(path) {
		return false
	}
	return len(a.filter([]string{path})) == 1
}
