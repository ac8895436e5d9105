package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
)

// table describes one metric table: its name and the columns forming its primary key.
type table struct {
	name string
	keys []string
}

// metricTable returns the per-object table for a category.
func metricTable(category model.Category) table {
	return table{name: category.String(), keys: []string{"name", "object"}}
}

// upsertSQL builds the merge statement: insert a new key, or add the incoming
// duration and count onto the stored ones.
func (t table) upsertSQL() string {
	columns := append(append([]string{}, t.keys...), "duration", "count")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)
		 ON CONFLICT(%s) DO UPDATE SET
		   duration = duration + excluded.duration,
		   count = count + excluded.count`,
		t.name, strings.Join(columns, ", "), placeholders, strings.Join(t.keys, ", "))
}

// keyArgs returns the key values of record in the order of t.keys.
func (t table) keyArgs(record model.MetricRecord) ([]any, error) {
	args := make([]any, 0, len(t.keys)+2)
	for _, key := range t.keys {
		switch key {
		case "name":
			args = append(args, record.Name)
		case "object":
			args = append(args, record.Object)
		default:
			return nil, fmt.Errorf("table %s: unsupported key column %q", t.name, key)
		}
	}
	return args, nil
}

// merger prepares one upsert statement per table within a transaction.
type merger struct {
	tx    *sql.Tx
	stmts map[model.Category]*sql.Stmt
}

func newMerger(tx *sql.Tx) *merger {
	return &merger{tx: tx, stmts: make(map[model.Category]*sql.Stmt)}
}

func (m *merger) merge(ctx context.Context, record model.MetricRecord) error {
	if !record.Category.Valid() {
		return fmt.Errorf("unknown category %q", record.Category)
	}
	t := metricTable(record.Category)

	stmt, ok := m.stmts[record.Category]
	if !ok {
		var err error
		stmt, err = m.tx.PrepareContext(ctx, t.upsertSQL())
		if err != nil {
			return fmt.Errorf("preparing %s upsert: %w", t.name, err)
		}
		m.stmts[record.Category] = stmt
	}

	args, err := t.keyArgs(record)
	if err != nil {
		return err
	}
	args = append(args, record.Duration, record.Count)
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("merging %s %q: %w", t.name, record.Name, err)
	}
	return nil
}

func (m *merger) close() {
	for _, stmt := range m.stmts {
		stmt.Close()
	}
}
