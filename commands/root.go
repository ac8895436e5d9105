package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/penwyp/go-clang-timetrace/internal/analyzer"
	"github.com/penwyp/go-clang-timetrace/internal/config"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/data/watcher"
	"github.com/penwyp/go-clang-timetrace/internal/presentation/formatter"
	"github.com/penwyp/go-clang-timetrace/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug     bool
	logFile   string
	logFormat string

	// Input and store
	workDir    string
	configFile string
	dbPath     string

	// Discovery and ingestion
	pattern        string
	jobs           int
	followSymlinks bool

	// Follow mode
	watch       bool
	quietPeriod time.Duration

	rootCmd = &cobra.Command{
		Use:   "go-clang-timetrace [flags]",
		Short: "Aggregate clang -ftime-trace output into a SQLite database",
		Long: `go-clang-timetrace ingests the JSON trace files written by clang -ftime-trace and
aggregates the time spent per included header, per template instantiation and per
parsed class or template into a SQLite database, one row per symbol and object.

Every run starts from an empty database. Files that cannot be read, are not valid
traces, or map to an object that was already ingested are skipped and reported.

Examples:
  go-clang-timetrace                                 # Ingest ./**/*.json into ./tracedb.sqlite
  go-clang-timetrace --dir build                     # Ingest the traces below build/
  go-clang-timetrace --dir build --jobs 8            # Parse files in parallel
  go-clang-timetrace --dir build --watch             # Keep ingesting new traces
  go-clang-timetrace report source --global          # Most expensive headers
  go-clang-timetrace compare a/tracedb.sqlite b/tracedb.sqlite`,
		SilenceUsage: true,
		RunE:         runIngest,
	}
)

func init() {
	// Input data configuration
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".",
		"Work directory holding the trace files")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (default <dir>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "",
		"Database file (default <dir>/tracedb.sqlite)")

	// Discovery and ingestion
	rootCmd.Flags().StringVar(&pattern, "pattern", "",
		"Trace file name pattern, matched case-insensitively (default *.json)")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", config.DefaultJobs,
		"Number of files parsed in parallel")
	rootCmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false,
		"Descend into symlinked directories")

	// Follow mode
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"Keep running and ingest trace files as they appear")
	rootCmd.Flags().DurationVar(&quietPeriod, "quiet-period", watcher.DefaultQuietPeriod,
		"Idle time before changed files are ingested in watch mode")

	// System and debugging
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (text, json)")
}

// settings is the resolved configuration of one command invocation.
type settings struct {
	workDir  string
	database string
	cfg      *config.Config
}

// loadSettings merges the config file with the flags set on the command line
// and initializes logging.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	dir := config.ExpandPath(workDir)
	cfg, err := config.Load(dir, configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = config.ExpandPath(dbPath)
	}
	if flags.Changed("pattern") {
		cfg.Pattern = pattern
	}
	if flags.Changed("jobs") {
		cfg.Jobs = jobs
	}
	if flags.Changed("follow-symlinks") {
		cfg.FollowSymlinks = followSymlinks
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logging
	if cfg.LogFile != "" {
		cfg.LogFile = config.ExpandPath(cfg.LogFile)
		if err := ensureDir(filepath.Dir(cfg.LogFile)); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := util.InitLogger(cfg.LogLevel, cfg.LogFile, util.ParseLogFormat(cfg.LogFormat)); err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		util.LogDebug(fmt.Sprintf("Loaded config from %s", cfg.Source))
	}

	return &settings{
		workDir:  dir,
		database: cfg.DatabasePath(dir),
		cfg:      cfg,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureDir(filepath.Dir(s.database)); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.Open(ctx, s.database)
	if err != nil {
		return err
	}
	defer st.Close()

	a := analyzer.New(&analyzer.Config{
		WorkDir:        s.workDir,
		Pattern:        s.cfg.Pattern,
		Jobs:           s.cfg.Jobs,
		FollowSymlinks: s.cfg.FollowSymlinks,
	}, st)

	stats, err := a.Run(ctx)
	if err := finishRun(err); err != nil {
		return err
	}

	if watch && ctx.Err() == nil {
		if err := finishRun(follow(ctx, a, s.workDir, stats)); err != nil {
			return err
		}
		stats.Finish()
	}

	return formatter.NewSummaryFormatter(cmd.OutOrStdout()).Format(stats.Summary(), s.database)
}

// finishRun turns cancellation into a clean exit; the files merged so far stay committed.
func finishRun(err error) error {
	if errors.Is(err, context.Canceled) {
		util.LogInfo("Interrupted, keeping the files merged so far")
		return nil
	}
	return err
}

// follow ingests trace files created below dir until ctx is cancelled.
func follow(ctx context.Context, a *analyzer.Analyzer, dir string, stats *analyzer.RunStats) error {
	fw, err := watcher.NewFileWatcher(dir, a.Matches, quietPeriod)
	if err != nil {
		return err
	}
	defer fw.Close()
	fw.Start(ctx)

	util.LogInfo(fmt.Sprintf("Watching %s for new trace files", dir))
	for batch := range fw.Batches() {
		util.LogInfo(fmt.Sprintf("Ingesting %d changed trace files", len(batch)))
		if err := a.Ingest(ctx, batch, stats); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func Execute() error {
	return rootCmd.Execute()
}

// Helper functions

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
