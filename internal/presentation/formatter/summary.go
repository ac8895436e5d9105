package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/penwyp/go-clang-timetrace/internal/analyzer"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// SummaryFormatter prints the outcome of an ingestion run.
type SummaryFormatter struct {
	w       io.Writer
	heading *color.Color
	good    *color.Color
	bad     *color.Color
}

// NewSummaryFormatter creates a new instance of SummaryFormatter.
func NewSummaryFormatter(w io.Writer) *SummaryFormatter {
	f := &SummaryFormatter{
		w:       w,
		heading: color.New(color.Bold),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgYellow),
	}
	if !isTerminal(w) {
		f.heading.DisableColor()
		f.good.DisableColor()
		f.bad.DisableColor()
	}
	return f
}

// Format writes the run totals, the skip reasons and the database location.
func (f *SummaryFormatter) Format(s analyzer.Summary, database string) error {
	var sb strings.Builder

	f.heading.Fprintln(&sb, strings.Repeat("=", 60))
	f.heading.Fprintln(&sb, "Trace Ingestion Summary")
	f.heading.Fprintln(&sb, strings.Repeat("=", 60))

	fmt.Fprintf(&sb, "Database:      %s\n", database)
	fmt.Fprintf(&sb, "Trace files:   %s\n", util.FormatCount(int64(s.Discovered)))
	fmt.Fprintf(&sb, "Ingested:      %s\n", f.good.Sprint(util.FormatCount(int64(s.Ingested))))
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, "Skipped:       %s\n", f.bad.Sprint(util.FormatCount(int64(s.Skipped))))
	} else {
		fmt.Fprintf(&sb, "Skipped:       0\n")
	}
	fmt.Fprintf(&sb, "Events:        %s (%s ignored)\n",
		util.FormatCount(int64(s.Events)), util.FormatCount(int64(s.Ignored)))
	if s.OutOfRange > 0 {
		fmt.Fprintf(&sb, "Out of range:  %s\n", f.bad.Sprint(util.FormatCount(int64(s.OutOfRange))))
	}
	fmt.Fprintf(&sb, "Keys merged:   %s\n", util.FormatCount(int64(s.KeysMerged)))
	fmt.Fprintf(&sb, "Elapsed:       %s\n", s.Elapsed.Round(time.Millisecond))

	if len(s.Reasons) > 0 {
		kinds := make([]string, 0, len(s.Reasons))
		for kind := range s.Reasons {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)

		sb.WriteString("\nSkip reasons:\n")
		for _, kind := range kinds {
			fmt.Fprintf(&sb, "  %-18s %d\n", kind, s.Reasons[model.ErrorKind(kind)])
		}
	}

	if len(s.Skips) > 0 {
		sb.WriteString("\nSkipped files:\n")
		for _, skip := range s.Skips {
			fmt.Fprintf(&sb, "  %s (%s)\n", skip.FilePath, f.bad.Sprint(string(skip.Kind)))
		}
	}

	_, err := io.WriteString(f.w, sb.String())
	return err
}
