package diff

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type objectDef struct {
	rel      string
	frontend int64
	backend  int64
	sources  map[string]int64
	classes  map[string]int64
}

func buildStore(t *testing.T, objects ...objectDef) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(dir, model.DefaultDatabaseName))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, def := range objects {
		path := filepath.Join(dir, def.rel)
		var records []model.MetricRecord
		for name, dur := range def.sources {
			if !filepath.IsAbs(name) {
				name = filepath.Join(dir, name)
			}
			records = append(records, model.MetricRecord{
				MetricKey: model.MetricKey{Category: model.CategorySource, Name: name, Object: path},
				Duration:  dur,
				Count:     1,
			})
		}
		for name, dur := range def.classes {
			records = append(records, model.MetricRecord{
				MetricKey: model.MetricKey{Category: model.CategoryInstantiateClass, Name: name, Object: path},
				Duration:  dur,
				Count:     1,
			})
		}
		obj := model.CompiledObject{
			Path:      path,
			TotalTime: def.frontend + def.backend,
			Frontend:  def.frontend,
			Backend:   def.backend,
		}
		require.NoError(t, st.ApplyFile(ctx, obj, records))
	}
	return st, dir
}

func load(t *testing.T, st *store.Store) *Snapshot {
	t.Helper()
	snap, err := Load(context.Background(), st)
	require.NoError(t, err)
	return snap
}

func TestLoadNormalizesPaths(t *testing.T) {
	st, dir := buildStore(t, objectDef{
		rel:      "src/a.cpp",
		frontend: 10,
		backend:  5,
		sources:  map[string]int64{"include/x.h": 7, "/usr/include/vector": 3},
	})

	snap := load(t, st)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, snap.Prefix)
	assert.Contains(t, snap.Objects, filepath.Join("src", "a.cpp"))
	assert.Contains(t, snap.Sources, filepath.Join("include", "x.h"))
	assert.Contains(t, snap.Sources, "/usr/include/vector")
}

func TestLoadSumsSourcesAcrossObjects(t *testing.T) {
	st, _ := buildStore(t,
		objectDef{rel: "a", sources: map[string]int64{"x.h": 100}},
		objectDef{rel: "b", sources: map[string]int64{"x.h": 50}},
	)

	snap := load(t, st)
	assert.Equal(t, model.Partial{Duration: 150, Count: 2}, snap.Sources["x.h"])
}

func TestLoadSumsObjectsWithSameKey(t *testing.T) {
	st, _ := buildStore(t, objectDef{rel: filepath.Join("src", "a.cpp"), frontend: 10, backend: 5})
	ctx := context.Background()
	require.NoError(t, st.ApplyFile(ctx, model.CompiledObject{
		Path:      filepath.Join("src", "a.cpp"),
		TotalTime: 7,
		Frontend:  4,
		Backend:   3,
	}, nil))

	snap := load(t, st)
	require.Len(t, snap.Objects, 1)
	obj := snap.Objects[filepath.Join("src", "a.cpp")]
	assert.Equal(t, int64(22), obj.TotalTime)
	assert.Equal(t, int64(14), obj.Frontend)
	assert.Equal(t, int64(8), obj.Backend)
}

func TestCompareIdenticalStores(t *testing.T) {
	def := objectDef{
		rel:      "a",
		frontend: 300000,
		backend:  200000,
		sources:  map[string]int64{"x.h": 400000},
		classes:  map[string]int64{"Foo<int>": 250000},
	}
	first, _ := buildStore(t, def)
	second, _ := buildStore(t, def)

	result := Compare(load(t, first), load(t, second), 100000)
	assert.True(t, result.Empty())
}

func TestCompareReportsDifferences(t *testing.T) {
	first, _ := buildStore(t,
		objectDef{
			rel:      "a",
			frontend: 500000,
			backend:  100000,
			sources:  map[string]int64{"x.h": 400000, "small.h": 1000},
			classes:  map[string]int64{"Foo<int>": 350000},
		},
		objectDef{rel: "only1", frontend: 1},
	)
	second, _ := buildStore(t,
		objectDef{
			rel:      "a",
			frontend: 100000,
			backend:  100000,
			sources:  map[string]int64{"x.h": 100000, "small.h": 2000},
			classes:  map[string]int64{"Foo<int>": 300000, "Bar": 5},
		},
		objectDef{rel: "only2", frontend: 1},
	)

	result := Compare(load(t, first), load(t, second), 100000)
	assert.False(t, result.Empty())
	assert.Equal(t, int64(100000), result.Threshold)

	assert.Equal(t, []string{"only1"}, result.Objects.OnlyInFirst)
	assert.Equal(t, []string{"only2"}, result.Objects.OnlyInSecond)
	require.Len(t, result.Objects.Differences, 1)
	assert.Equal(t, ObjectDelta{Key: "a", TotalTime: 400000, Frontend: 400000, Backend: 0}, result.Objects.Differences[0])

	require.Len(t, result.Sources.Differences, 1)
	assert.Equal(t, ValueDelta{Key: "x.h", Duration: 300000, Count: 0}, result.Sources.Differences[0])

	assert.Empty(t, result.InstantiateClasses.Differences)
	assert.Equal(t, []string{"Bar"}, result.InstantiateClasses.OnlyInSecond)
}

func TestCompareThresholdIsExclusive(t *testing.T) {
	first := &Snapshot{Sources: Values{"x.h": {Duration: 200}}, Objects: map[string]model.CompiledObject{}}
	second := &Snapshot{Sources: Values{"x.h": {Duration: 100}}, Objects: map[string]model.CompiledObject{}}

	assert.Empty(t, Compare(first, second, 100).Sources.Differences)
	assert.Len(t, Compare(first, second, 99).Sources.Differences, 1)
}

func TestCompareOrdersByMagnitude(t *testing.T) {
	first := &Snapshot{Sources: Values{"a": {Duration: 10}, "b": {Duration: -50}, "c": {Duration: 30}}}
	second := &Snapshot{Sources: Values{"a": {}, "b": {}, "c": {}}}

	diffs := Compare(first, second, 0).Sources.Differences
	require.Len(t, diffs, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{diffs[0].Key, diffs[1].Key, diffs[2].Key})
}
