package formatter

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

type TableFormatter struct {
	w     io.Writer
	width int
	title *color.Color
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	title := color.New(color.FgCyan, color.Bold)
	if !isTerminal(w) {
		title.DisableColor()
	}
	return &TableFormatter{
		w:     w,
		width: terminalWidth(w),
		title: title,
	}
}

func (f *TableFormatter) Format(tables ...*Table) error {
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(f.w)
		}
		if err := f.formatOne(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *TableFormatter) formatOne(t *Table) error {
	if t.Title != "" {
		if _, err := f.title.Fprintln(f.w, t.Title); err != nil {
			return err
		}
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(f.w, "  (none)")
		return err
	}

	table := tablewriter.NewWriter(f.w)
	table.SetHeader(t.headers())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	aligns := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		if c.Numeric {
			aligns[i] = tablewriter.ALIGN_RIGHT
		} else {
			aligns[i] = tablewriter.ALIGN_LEFT
		}
	}
	table.SetColumnAlignment(aligns)

	table.AppendBulk(f.fit(t))
	if len(t.Footer) > 0 {
		table.SetFooter(t.Footer)
	}
	table.Render()
	return nil
}

// fit truncates text columns so the rendered table stays within the terminal width.
func (f *TableFormatter) fit(t *Table) [][]string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = util.GetDisplayWidth(c.Header)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], util.GetDisplayWidth(cell))
			}
		}
	}

	// Each column carries "| " and " " around its content, plus the closing "|".
	fixed := 1
	textCols := 0
	for i, c := range t.Columns {
		fixed += 3
		if c.Numeric {
			fixed += widths[i]
		} else {
			textCols++
		}
	}
	if textCols == 0 {
		return t.Rows
	}

	budget := max((f.width-fixed)/textCols, minNameWidth)
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(row))
		for i, cell := range row {
			if i < len(t.Columns) && !t.Columns[i].Numeric {
				cell = util.TruncateMiddle(cell, budget)
			}
			out[i] = cell
		}
		rows[r] = out
	}
	return rows
}
