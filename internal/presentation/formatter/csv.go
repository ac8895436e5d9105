package formatter

import (
	"encoding/csv"
	"io"
)

type CSVFormatter struct {
	w io.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{w: w}
}

// Format writes each table as a header line followed by its raw rows. Tables
// after the first are preceded by a "# title" line.
func (f *CSVFormatter) Format(tables ...*Table) error {
	w := csv.NewWriter(f.w)

	for i, t := range tables {
		if i > 0 {
			if err := w.Write([]string{"# " + t.Title}); err != nil {
				return err
			}
		}
		if err := w.Write(t.headers()); err != nil {
			return err
		}
		rows := t.Raw
		if rows == nil {
			rows = t.Rows
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
