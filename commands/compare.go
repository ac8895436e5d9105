package commands

import (
	"fmt"

	"github.com/penwyp/go-clang-timetrace/internal/config"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/diff"
	"github.com/penwyp/go-clang-timetrace/internal/presentation/formatter"
	"github.com/penwyp/go-clang-timetrace/internal/report"
	"github.com/penwyp/go-clang-timetrace/internal/util"
	"github.com/spf13/cobra"
)

var (
	compareThreshold int64
	compareOutput    string
)

var compareCmd = &cobra.Command{
	Use:   "compare <db1> <db2>",
	Short: "Compare two ingested databases",
	Long: `Compares two databases, for instance the same build in two checkouts.

Object paths and header names below each database's directory are compared relative
to it. Lists objects, headers and instantiated classes present in only one database,
and entries whose duration differs by more than the threshold (db1 minus db2).`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Int64Var(&compareThreshold, "threshold", config.DefaultThreshold,
		"Smallest reported difference in microseconds")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "",
		"Output format (table, json, csv)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()

	threshold := s.cfg.Compare.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = compareThreshold
	}
	if threshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}
	output := s.cfg.Report.Output
	if cmd.Flags().Changed("output") {
		output = compareOutput
	}
	f, err := formatter.New(output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	snapshots := make([]*diff.Snapshot, 0, 2)
	for _, path := range args {
		st, err := store.OpenReadOnly(cmd.Context(), config.ExpandPath(path))
		if err != nil {
			return err
		}
		snap, err := diff.Load(cmd.Context(), st)
		st.Close()
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		snapshots = append(snapshots, snap)
	}

	result := diff.Compare(snapshots[0], snapshots[1], threshold)
	util.LogDebug(fmt.Sprintf("Compared %s and %s, identical within threshold: %v", args[0], args[1], result.Empty()))
	return f.Format(report.Comparison(result)...)
}
