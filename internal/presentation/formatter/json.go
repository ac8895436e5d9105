package formatter

import (
	"io"

	"github.com/bytedance/sonic"
)

type JSONFormatter struct {
	w io.Writer
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{w: w}
}

// Format writes one JSON document. Several tables become an object keyed by title.
func (f *JSONFormatter) Format(tables ...*Table) error {
	var doc any
	if len(tables) == 1 {
		doc = payload(tables[0])
	} else {
		byTitle := make(map[string]any, len(tables))
		for _, t := range tables {
			byTitle[t.Title] = payload(t)
		}
		doc = byTitle
	}

	data, err := sonic.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.w.Write(data)
	return err
}

func payload(t *Table) any {
	if t.Payload != nil {
		return t.Payload
	}
	headers := t.headers()
	rows := t.Raw
	if rows == nil {
		rows = t.Rows
	}
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string, len(headers))
		for i, cell := range row {
			if i < len(headers) {
				obj[headers[i]] = cell
			}
		}
		out = append(out, obj)
	}
	return out
}
