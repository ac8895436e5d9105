package aggregator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/penwyp/go-clang-timetrace/internal/core/classify"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/core/trace"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// Store is the merge target for folded files.
type Store interface {
	ApplyFile(ctx context.Context, object model.CompiledObject, records []model.MetricRecord) error
}

// Aggregator folds the events of one trace file into per-key partial sums.
type Aggregator struct{}

// metricKey is the in-file coalescing key; the object is fixed per file.
type metricKey struct {
	category model.Category
	name     string
}

// FileAggregate is the fold of one trace file, ready to be merged into the store.
type FileAggregate struct {
	FilePath string
	Object   string
	Frontend int64
	Backend  int64
	partials map[metricKey]*model.Partial

	// Event statistics for reporting
	Events       int
	Ignored      int
	OutOfRange   int
	MetricEvents int
	ObjectTotals int
}

// NewAggregator creates a new Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// ObjectPath derives the object key from a trace path by stripping its extension.
// For example: "build/foo.cpp.json" -> "build/foo.cpp"
func ObjectPath(filePath string) string {
	return strings.TrimSuffix(filePath, filepath.Ext(filePath))
}

// Fold classifies every event of the file and coalesces them. It never touches the store.
func (a *Aggregator) Fold(filePath string, events *trace.TraceEvents) *FileAggregate {
	agg := &FileAggregate{
		FilePath: filePath,
		Object:   ObjectPath(filePath),
		partials: make(map[metricKey]*model.Partial),
	}

	for i := range events.Events {
		event := &events.Events[i]
		agg.Events++

		outcome, err := classify.Classify(event)
		if err != nil {
			agg.OutOfRange++
			util.LogWarnf("Skip event in %s: %v", filePath, err)
			continue
		}

		switch outcome.Kind {
		case classify.Metric:
			key := metricKey{category: outcome.Category, name: outcome.Name}
			partial, ok := agg.partials[key]
			if !ok {
				partial = &model.Partial{}
			}
			if err := partial.Add(outcome.Duration); err != nil {
				agg.OutOfRange++
				util.LogWarnf("Skip event in %s: %s %q: %v", filePath, outcome.Category, outcome.Name, err)
				continue
			}
			agg.partials[key] = partial
			agg.MetricEvents++
		case classify.ObjectTotal:
			// Frontend plus Backend must fit, so each half fits on its own.
			if _, err := model.SumDurations(agg.Frontend+agg.Backend, outcome.Duration); err != nil {
				agg.OutOfRange++
				util.LogWarnf("Skip event in %s: Total %s: %v", filePath, outcome.Total, err)
				continue
			}
			agg.ObjectTotals++
			if outcome.Total == classify.Backend {
				agg.Backend += outcome.Duration
			} else {
				agg.Frontend += outcome.Duration
			}
		default:
			agg.Ignored++
		}
	}

	util.LogDebugf("Fold completed %s: %d events, %d keys, total compile time %d",
		agg.Object, agg.Events, len(agg.partials), agg.Frontend+agg.Backend)
	return agg
}

// CompiledObject returns the object row for this file.
func (f *FileAggregate) CompiledObject() model.CompiledObject {
	return model.CompiledObject{
		Path:      f.Object,
		TotalTime: f.Frontend + f.Backend,
		Frontend:  f.Frontend,
		Backend:   f.Backend,
	}
}

// Records returns the coalesced partial sums, ordered by category and name.
func (f *FileAggregate) Records() []model.MetricRecord {
	records := make([]model.MetricRecord, 0, len(f.partials))
	for key, partial := range f.partials {
		records = append(records, model.MetricRecord{
			MetricKey: model.MetricKey{
				Category: key.category,
				Name:     key.name,
				Object:   f.Object,
			},
			Duration: partial.Duration,
			Count:    partial.Count,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Category != records[j].Category {
			return records[i].Category < records[j].Category
		}
		return records[i].Name < records[j].Name
	})
	return records
}

// KeyCount is the number of distinct metric keys, i.e. the number of upserts Apply issues.
func (f *FileAggregate) KeyCount() int {
	return len(f.partials)
}

// Apply merges one folded file into the store as a single unit of work.
func (a *Aggregator) Apply(ctx context.Context, store Store, agg *FileAggregate) error {
	if err := store.ApplyFile(ctx, agg.CompiledObject(), agg.Records()); err != nil {
		return fmt.Errorf("merge %s: %w", agg.Object, err)
	}
	return nil
}
