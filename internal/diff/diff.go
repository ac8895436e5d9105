// Package diff compares the aggregates of two trace stores, typically produced
// by the same build in two checkouts or before and after a change.
package diff

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// Values maps a normalized key to a duration and a count.
type Values map[string]model.Partial

// Snapshot is the content of one store as needed for comparison.
type Snapshot struct {
	// Prefix is the directory stripped from object paths and source names.
	Prefix             string
	Objects            map[string]model.CompiledObject
	Sources            Values
	InstantiateClasses Values
}

// Load reads a snapshot from st. Object paths and source names under the
// store's directory are made relative to it so two checkouts line up.
func Load(ctx context.Context, st *store.Store) (*Snapshot, error) {
	prefix, err := filepath.Abs(filepath.Dir(st.Path()))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", st.Path(), err)
	}

	snap := &Snapshot{
		Prefix:  prefix,
		Objects: make(map[string]model.CompiledObject),
	}

	objects, err := st.Objects(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		key := snap.normalize(obj.Path)
		if prev, ok := snap.Objects[key]; ok {
			util.LogWarnf("Objects %s and %s both compare as %s, summing them", prev.Path, obj.Path, key)
			prev.TotalTime += obj.TotalTime
			prev.Frontend += obj.Frontend
			prev.Backend += obj.Backend
			obj = prev
		}
		snap.Objects[key] = obj
	}

	if snap.Sources, err = loadValues(ctx, st, model.CategorySource, snap.normalize); err != nil {
		return nil, err
	}
	if snap.InstantiateClasses, err = loadValues(ctx, st, model.CategoryInstantiateClass, nil); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadValues(ctx context.Context, st *store.Store, category model.Category, normalize func(string) string) (Values, error) {
	rows, err := st.Metrics(ctx, store.MetricQuery{Category: category, Global: true})
	if err != nil {
		return nil, err
	}
	values := make(Values, len(rows))
	for _, row := range rows {
		key := row.Name
		if normalize != nil {
			key = normalize(key)
		}
		v := values[key]
		v.Duration += row.Duration
		v.Count += row.Count
		values[key] = v
	}
	return values, nil
}

func (s *Snapshot) normalize(path string) string {
	if s.Prefix == "" || s.Prefix == string(filepath.Separator) {
		return path
	}
	if rest, ok := strings.CutPrefix(path, s.Prefix+string(filepath.Separator)); ok {
		return rest
	}
	return path
}

// ObjectDelta is first minus second for one object present in both stores.
type ObjectDelta struct {
	Key       string `json:"key"`
	TotalTime int64  `json:"totalTime"`
	Frontend  int64  `json:"frontend"`
	Backend   int64  `json:"backend"`
}

// ValueDelta is first minus second for one key present in both stores.
type ValueDelta struct {
	Key      string `json:"key"`
	Duration int64  `json:"duration"`
	Count    int64  `json:"count"`
}

// Section is the comparison of one table.
type Section[T any] struct {
	OnlyInFirst  []string `json:"onlyInFirst"`
	OnlyInSecond []string `json:"onlyInSecond"`
	// Differences holds only deltas whose magnitude exceeds the threshold.
	Differences []T `json:"differences"`
}

// Result is the full comparison of two snapshots.
type Result struct {
	Threshold          int64                `json:"threshold"`
	Objects            Section[ObjectDelta] `json:"objects"`
	Sources            Section[ValueDelta]  `json:"sources"`
	InstantiateClasses Section[ValueDelta]  `json:"instantiateClasses"`
}

// Empty reports whether the stores matched within the threshold.
func (r *Result) Empty() bool {
	return sectionEmpty(r.Objects) && sectionEmpty(r.Sources) && sectionEmpty(r.InstantiateClasses)
}

func sectionEmpty[T any](s Section[T]) bool {
	return len(s.OnlyInFirst) == 0 && len(s.OnlyInSecond) == 0 && len(s.Differences) == 0
}

// Compare computes first minus second. A delta is significant when its absolute
// duration exceeds threshold microseconds.
func Compare(first, second *Snapshot, threshold int64) *Result {
	return &Result{
		Threshold:          threshold,
		Objects:            compareObjects(first.Objects, second.Objects, threshold),
		Sources:            compareValues(first.Sources, second.Sources, threshold),
		InstantiateClasses: compareValues(first.InstantiateClasses, second.InstantiateClasses, threshold),
	}
}

func compareObjects(a, b map[string]model.CompiledObject, threshold int64) Section[ObjectDelta] {
	var section Section[ObjectDelta]
	section.OnlyInFirst, section.OnlyInSecond = keyDifference(a, b)

	for key, x := range a {
		y, ok := b[key]
		if !ok {
			continue
		}
		delta := ObjectDelta{
			Key:       key,
			TotalTime: x.TotalTime - y.TotalTime,
			Frontend:  x.Frontend - y.Frontend,
			Backend:   x.Backend - y.Backend,
		}
		if abs(delta.TotalTime) > threshold || abs(delta.Frontend) > threshold || abs(delta.Backend) > threshold {
			section.Differences = append(section.Differences, delta)
		}
	}
	sort.Slice(section.Differences, func(i, j int) bool {
		di, dj := abs(section.Differences[i].TotalTime), abs(section.Differences[j].TotalTime)
		if di != dj {
			return di > dj
		}
		return section.Differences[i].Key < section.Differences[j].Key
	})
	return section
}

func compareValues(a, b Values, threshold int64) Section[ValueDelta] {
	var section Section[ValueDelta]
	section.OnlyInFirst, section.OnlyInSecond = keyDifference(a, b)

	for key, x := range a {
		y, ok := b[key]
		if !ok {
			continue
		}
		delta := ValueDelta{Key: key, Duration: x.Duration - y.Duration, Count: x.Count - y.Count}
		if abs(delta.Duration) > threshold {
			section.Differences = append(section.Differences, delta)
		}
	}
	sort.Slice(section.Differences, func(i, j int) bool {
		di, dj := abs(section.Differences[i].Duration), abs(section.Differences[j].Duration)
		if di != dj {
			return di > dj
		}
		return section.Differences[i].Key < section.Differences[j].Key
	})
	return section
}

func keyDifference[V any](a, b map[string]V) (onlyA, onlyB []string) {
	for key := range a {
		if _, ok := b[key]; !ok {
			onlyA = append(onlyA, key)
		}
	}
	for key := range b {
		if _, ok := a[key]; !ok {
			onlyB = append(onlyB, key)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
