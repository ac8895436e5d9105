package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
)

// SortField selects the ordering of query results.
type SortField string

const (
	SortByDuration SortField = "duration"
	SortByCount    SortField = "count"
)

// MetricQuery selects rows of one cost category.
type MetricQuery struct {
	Category model.Category
	// Global sums rows of the same name across objects. Object is empty in the results.
	Global bool
	// Object restricts results to one compiled object.
	Object string
	SortBy SortField
	// Limit of 0 returns every row.
	Limit int
}

// Metrics returns aggregate rows ordered by the requested field, largest first.
func (s *Store) Metrics(ctx context.Context, q MetricQuery) ([]model.MetricRecord, error) {
	if !q.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q", q.Category)
	}

	var sb strings.Builder
	var args []any
	if q.Global {
		fmt.Fprintf(&sb, "SELECT name, '' AS object, SUM(duration) AS duration, SUM(count) AS count FROM %s", q.Category)
	} else {
		fmt.Fprintf(&sb, "SELECT name, object, duration, count FROM %s", q.Category)
	}
	if q.Object != "" {
		sb.WriteString(" WHERE object = ?")
		args = append(args, q.Object)
	}
	if q.Global {
		sb.WriteString(" GROUP BY name")
	}
	fmt.Fprintf(&sb, " ORDER BY %s DESC, name ASC, object ASC", orderColumn(q.SortBy))
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapStoreError(fmt.Errorf("querying %s: %w", q.Category, err))
	}
	defer rows.Close()

	var records []model.MetricRecord
	for rows.Next() {
		record := model.MetricRecord{MetricKey: model.MetricKey{Category: q.Category}}
		if err := rows.Scan(&record.Name, &record.Object, &record.Duration, &record.Count); err != nil {
			return nil, wrapStoreError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err)
	}
	return records, nil
}

// Objects returns compiled objects ordered by total time, largest first.
func (s *Store) Objects(ctx context.Context, limit int) ([]model.CompiledObject, error) {
	query := "SELECT path, total_time, frontend, backend FROM objects ORDER BY total_time DESC, path ASC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreError(fmt.Errorf("querying objects: %w", err))
	}
	defer rows.Close()

	var objects []model.CompiledObject
	for rows.Next() {
		var object model.CompiledObject
		if err := rows.Scan(&object.Path, &object.TotalTime, &object.Frontend, &object.Backend); err != nil {
			return nil, wrapStoreError(err)
		}
		objects = append(objects, object)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err)
	}
	return objects, nil
}

// Object returns a single compiled object.
func (s *Store) Object(ctx context.Context, path string) (model.CompiledObject, bool, error) {
	var object model.CompiledObject
	err := s.db.QueryRowContext(ctx,
		"SELECT path, total_time, frontend, backend FROM objects WHERE path = ?", path).
		Scan(&object.Path, &object.TotalTime, &object.Frontend, &object.Backend)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CompiledObject{}, false, nil
		}
		return model.CompiledObject{}, false, wrapStoreError(err)
	}
	return object, true, nil
}

// TableCounts returns the number of rows in every table.
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, table := range allTables() {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, wrapStoreError(fmt.Errorf("counting %s: %w", table, err))
		}
		counts[table] = n
	}
	return counts, nil
}

func orderColumn(field SortField) string {
	if field == SortByCount {
		return "count"
	}
	return "duration"
}
