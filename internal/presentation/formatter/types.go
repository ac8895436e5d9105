package formatter

import (
	"fmt"
	"io"
	"strings"
)

// Output formats accepted by New.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputCSV   = "csv"
)

type Column struct {
	Header string
	// Numeric columns are right aligned and never truncated.
	Numeric bool
}

// Table is one titled result set, rendered by any Formatter.
type Table struct {
	Title   string
	Columns []Column
	// Rows holds human-readable cells.
	Rows [][]string
	// Raw holds machine-readable cells for CSV; Rows is used when nil.
	Raw [][]string
	// Payload is encoded by the JSON formatter; a list of header/cell maps when nil.
	Payload any
	Footer  []string
}

func (t *Table) headers() []string {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Header
	}
	return headers
}

type Formatter interface {
	Format(tables ...*Table) error
}

// New returns the formatter for output writing to w.
func New(output string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(output) {
	case OutputTable, "":
		return NewTableFormatter(w), nil
	case OutputJSON:
		return NewJSONFormatter(w), nil
	case OutputCSV:
		return NewCSVFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, csv)", output)
	}
}
