package commands

import (
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/presentation/formatter"
	"github.com/penwyp/go-clang-timetrace/internal/report"
	"github.com/penwyp/go-clang-timetrace/internal/util"
	"github.com/spf13/cobra"
)

var (
	reportGlobal bool
	reportObject string
	reportSort   string
	reportLimit  int
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report [table]",
	Short: "Show the most expensive entries of an ingested database",
	Long: `Reads a database produced by an ingestion run and lists the top entries of one table.

Tables: source, instantiate_class, instantiate_function, parse_class, parse_template, objects.
Rows are per object unless --global sums them across objects.

Examples:
  go-clang-timetrace report                                  # Top included headers per object
  go-clang-timetrace report source --global --limit 50       # Top headers over the whole build
  go-clang-timetrace report instantiate_function --sort count
  go-clang-timetrace report objects -o csv                   # Compile time per object
  go-clang-timetrace report source --object build/foo.cpp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVarP(&reportGlobal, "global", "g", false,
		"Sum rows of the same name across objects")
	reportCmd.Flags().StringVar(&reportObject, "object", "",
		"Only show rows of this object")
	reportCmd.Flags().StringVarP(&reportSort, "sort", "s", string(store.SortByDuration),
		"Sort field (duration, count)")
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 0,
		"Limit result count (0 = unlimited, default from config)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output format (table, json, csv)")
}

func runReport(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()

	table := string(model.CategorySource)
	if len(args) == 1 {
		table = strings.ToLower(args[0])
	}

	limit := s.cfg.Report.Limit
	if cmd.Flags().Changed("limit") {
		limit = reportLimit
	}
	output := s.cfg.Report.Output
	if cmd.Flags().Changed("output") {
		output = reportOutput
	}

	opts := report.Options{
		Table:  table,
		Global: reportGlobal,
		Object: reportObject,
		SortBy: store.SortField(strings.ToLower(reportSort)),
		Limit:  limit,
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	f, err := formatter.New(output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	st, err := store.OpenReadOnly(cmd.Context(), s.database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := report.Build(cmd.Context(), st, opts)
	if err != nil {
		return err
	}
	return f.Format(result)
}
