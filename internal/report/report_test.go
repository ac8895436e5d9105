package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), model.DefaultDatabaseName))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	src := func(name, object string, duration, count int64) model.MetricRecord {
		return model.MetricRecord{
			MetricKey: model.MetricKey{Category: model.CategorySource, Name: name, Object: object},
			Duration:  duration,
			Count:     count,
		}
	}
	require.NoError(t, st.ApplyFile(ctx,
		model.CompiledObject{Path: "a", TotalTime: 150, Frontend: 100, Backend: 50},
		[]model.MetricRecord{src("x.h", "a", 150, 2), src("y.h", "a", 30, 1)}))
	require.NoError(t, st.ApplyFile(ctx,
		model.CompiledObject{Path: "b", TotalTime: 3000, Frontend: 2000, Backend: 1000},
		[]model.MetricRecord{src("x.h", "b", 10, 1)}))
	return st
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"source", Options{Table: "source"}, false},
		{"objects", Options{Table: "objects"}, false},
		{"count sort", Options{Table: "parse_class", SortBy: store.SortByCount}, false},
		{"unknown table", Options{Table: "headers"}, true},
		{"unknown sort", Options{Table: "source", SortBy: "name"}, true},
		{"negative limit", Options{Table: "source", Limit: -1}, true},
		{"global objects", Options{Table: "objects", Global: true}, true},
		{"objects by count", Options{Table: "objects", SortBy: store.SortByCount}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildPerObject(t *testing.T) {
	st := seededStore(t)

	table, err := Build(context.Background(), st, Options{Table: "source"})
	require.NoError(t, err)
	assert.Equal(t, "source by duration", table.Title)
	require.Len(t, table.Columns, 5)
	assert.Equal(t, "Object", table.Columns[1].Header)

	require.Len(t, table.Raw, 3)
	assert.Equal(t, []string{"x.h", "a", "150", "2", "75"}, table.Raw[0])
	assert.Equal(t, []string{"Total", "", "190µs", "4", ""}, table.Footer)

	records, ok := table.Payload.([]model.MetricRecord)
	require.True(t, ok)
	assert.Len(t, records, 3)
}

func TestBuildGlobal(t *testing.T) {
	st := seededStore(t)

	table, err := Build(context.Background(), st, Options{Table: "source", Global: true, SortBy: store.SortByCount, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "source by count (all objects)", table.Title)
	require.Len(t, table.Columns, 4)
	require.Len(t, table.Raw, 1)
	assert.Equal(t, []string{"x.h", "160", "3", "53"}, table.Raw[0])
}

func TestBuildObjectFilter(t *testing.T) {
	st := seededStore(t)

	table, err := Build(context.Background(), st, Options{Table: "source", Object: "b"})
	require.NoError(t, err)
	require.Len(t, table.Raw, 1)
	assert.Equal(t, "b", table.Raw[0][1])
	assert.Contains(t, table.Title, "in b")
}

func TestBuildObjects(t *testing.T) {
	st := seededStore(t)

	table, err := Build(context.Background(), st, Options{Table: "objects"})
	require.NoError(t, err)
	require.Len(t, table.Raw, 2)
	assert.Equal(t, []string{"b", "3000", "2000", "1000"}, table.Raw[0])
	assert.Equal(t, "Total (2)", table.Footer[0])

	table, err = Build(context.Background(), st, Options{Table: "objects", Object: "a"})
	require.NoError(t, err)
	require.Len(t, table.Raw, 1)
	assert.Nil(t, table.Footer)

	table, err = Build(context.Background(), st, Options{Table: "objects", Object: "missing"})
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, []model.CompiledObject{}, table.Payload)
}

func TestComparison(t *testing.T) {
	result := &diff.Result{
		Threshold: 100000,
		Objects: diff.Section[diff.ObjectDelta]{
			OnlyInFirst: []string{"old.cpp"},
			Differences: []diff.ObjectDelta{{Key: "a.cpp", TotalTime: 250000, Frontend: 250000}},
		},
		Sources: diff.Section[diff.ValueDelta]{
			OnlyInSecond: []string{"new.h"},
			Differences:  []diff.ValueDelta{{Key: "x.h", Duration: -300000, Count: -1}},
		},
	}

	tables := Comparison(result)
	require.Len(t, tables, 6)

	assert.Equal(t, [][]string{{"db1", "old.cpp"}}, tables[0].Rows)
	assert.Equal(t, "Object differences above 100.0ms", tables[1].Title)
	assert.Equal(t, []string{"a.cpp", "+250.0ms", "+250.0ms", "0µs"}, tables[1].Rows[0])
	assert.Equal(t, [][]string{{"db2", "new.h"}}, tables[2].Rows)
	assert.Equal(t, []string{"x.h", "-300.0ms", "-1"}, tables[3].Rows[0])
	assert.Equal(t, []string{"x.h", "-300000", "-1"}, tables[3].Raw[0])
	assert.Empty(t, tables[5].Rows)
	assert.Equal(t, []diff.ValueDelta{}, tables[5].Payload)
}
