package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), model.DefaultDatabaseName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(category model.Category, name, object string, duration, count int64) model.MetricRecord {
	return model.MetricRecord{
		MetricKey: model.MetricKey{Category: category, Name: name, Object: object},
		Duration:  duration,
		Count:     count,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	counts, err := s.TableCounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 6)
	for table, n := range counts {
		assert.Zero(t, n, table)
	}
}

func TestApplyFileInsertsObjectAndRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	object := model.CompiledObject{Path: "a", TotalTime: 150, Frontend: 100, Backend: 50}
	err := s.ApplyFile(ctx, object, []model.MetricRecord{
		record(model.CategorySource, "x.h", "a", 150, 2),
	})
	require.NoError(t, err)

	got, found, err := s.Object(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, object, got)

	rows, err := s.Metrics(ctx, MetricQuery{Category: model.CategorySource})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, record(model.CategorySource, "x.h", "a", 150, 2), rows[0])
}

func TestMergeUpsertAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, category := range model.Categories {
		t.Run(category.String(), func(t *testing.T) {
			require.NoError(t, s.ApplyFile(ctx,
				model.CompiledObject{Path: "obj-" + category.String() + "-1"},
				[]model.MetricRecord{record(category, "sym", "shared", 10, 1)}))
			require.NoError(t, s.ApplyFile(ctx,
				model.CompiledObject{Path: "obj-" + category.String() + "-2"},
				[]model.MetricRecord{record(category, "sym", "shared", 32, 3)}))

			rows, err := s.Metrics(ctx, MetricQuery{Category: category})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, int64(42), rows[0].Duration)
			assert.Equal(t, int64(4), rows[0].Count)
		})
	}
}

func TestPerObjectKeysStayDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "a"},
		[]model.MetricRecord{record(model.CategorySource, "x.h", "a", 150, 2)}))
	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "b"},
		[]model.MetricRecord{record(model.CategorySource, "x.h", "b", 10, 1)}))

	rows, err := s.Metrics(ctx, MetricQuery{Category: model.CategorySource})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Object)
	assert.Equal(t, "b", rows[1].Object)

	global, err := s.Metrics(ctx, MetricQuery{Category: model.CategorySource, Global: true})
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, int64(160), global[0].Duration)
	assert.Equal(t, int64(3), global[0].Count)
	assert.Empty(t, global[0].Object)

	onlyB, err := s.Metrics(ctx, MetricQuery{Category: model.CategorySource, Object: "b"})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, int64(10), onlyB[0].Duration)
}

func TestDuplicateObjectLeavesStoreUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "a", TotalTime: 3, Frontend: 1, Backend: 2},
		[]model.MetricRecord{record(model.CategoryParseClass, "Foo", "a", 5, 1)}))

	err := s.ApplyFile(ctx, model.CompiledObject{Path: "a", TotalTime: 99, Frontend: 90, Backend: 9},
		[]model.MetricRecord{
			record(model.CategoryParseClass, "Foo", "a", 1000, 10),
			record(model.CategorySource, "new.h", "a", 1000, 10),
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDuplicateObject)

	object, _, err := s.Object(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), object.TotalTime)

	rows, err := s.Metrics(ctx, MetricQuery{Category: model.CategoryParseClass})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].Duration)
	assert.Equal(t, int64(1), rows[0].Count)

	sources, err := s.Metrics(ctx, MetricQuery{Category: model.CategorySource})
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestApplyFileRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ApplyFile(ctx, model.CompiledObject{Path: "a"}, []model.MetricRecord{
		record(model.CategorySource, "ok.h", "a", 1, 1),
		record(model.Category("bogus"), "x", "a", 1, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStore)
	assert.False(t, model.Fatal(err))

	_, found, err := s.Object(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found, "object insert must be rolled back")

	counts, err := s.TableCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts["source"])
}

func TestResetClearsEveryTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := make([]model.MetricRecord, 0, len(model.Categories))
	for _, category := range model.Categories {
		records = append(records, record(category, "n", "a", 1, 1))
	}
	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "a"}, records))

	require.NoError(t, s.Reset(ctx))

	counts, err := s.TableCounts(ctx)
	require.NoError(t, err)
	for table, n := range counts {
		assert.Zero(t, n, table)
	}
}

func TestReopenKeepsDataUntilReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.sqlite")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "a", TotalTime: 1, Frontend: 1}, nil))
	require.NoError(t, s.Close())

	ro, err := OpenReadOnly(ctx, path)
	require.NoError(t, err)
	defer ro.Close()

	objects, err := ro.Objects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "a", objects[0].Path)

	err = ro.Reset(ctx)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestMetricsOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyFile(ctx, model.CompiledObject{Path: "a"}, []model.MetricRecord{
		record(model.CategoryInstantiateClass, "small", "a", 1, 9),
		record(model.CategoryInstantiateClass, "large", "a", 100, 1),
		record(model.CategoryInstantiateClass, "medium", "a", 50, 5),
	}))

	byDuration, err := s.Metrics(ctx, MetricQuery{Category: model.CategoryInstantiateClass, Limit: 2})
	require.NoError(t, err)
	require.Len(t, byDuration, 2)
	assert.Equal(t, "large", byDuration[0].Name)
	assert.Equal(t, "medium", byDuration[1].Name)

	byCount, err := s.Metrics(ctx, MetricQuery{Category: model.CategoryInstantiateClass, SortBy: SortByCount})
	require.NoError(t, err)
	require.Len(t, byCount, 3)
	assert.Equal(t, "small", byCount[0].Name)

	_, err = s.Metrics(ctx, MetricQuery{Category: model.Category("objects")})
	assert.Error(t, err)
}

func TestUpsertSQL(t *testing.T) {
	sql := metricTable(model.CategorySource).upsertSQL()

	assert.Contains(t, sql, "INSERT INTO source (name, object, duration, count) VALUES (?, ?, ?, ?)")
	assert.Contains(t, sql, "ON CONFLICT(name, object) DO UPDATE")
	assert.Contains(t, sql, "duration = duration + excluded.duration")
	assert.Contains(t, sql, "count = count + excluded.count")

	global := table{name: "source", keys: []string{"name"}}
	assert.Contains(t, global.upsertSQL(), "ON CONFLICT(name) DO UPDATE")
	args, err := global.keyArgs(record(model.CategorySource, "x.h", "a", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []any{"x.h"}, args)
}
