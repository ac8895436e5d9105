// Package classify maps raw trace events onto cost categories.
package classify

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/core/trace"
)

// Kind is the tag of an Outcome.
type Kind int

const (
	Ignore Kind = iota
	Metric
	ObjectTotal
)

// TotalKind tells which half of an object's compile time a total event covers.
type TotalKind int

const (
	Frontend TotalKind = iota
	Backend
)

func (k TotalKind) String() string {
	if k == Backend {
		return "backend"
	}
	return "frontend"
}

// Outcome is the classification of one event. Category and Name are set for Metric,
// Total for ObjectTotal; Duration for both.
type Outcome struct {
	Kind     Kind
	Category model.Category
	Name     string
	Total    TotalKind
	Duration int64
}

var metricNames = map[string]model.Category{
	"Source":              model.CategorySource,
	"InstantiateClass":    model.CategoryInstantiateClass,
	"InstantiateFunction": model.CategoryInstantiateFunction,
	"ParseClass":          model.CategoryParseClass,
	"ParseTemplate":       model.CategoryParseTemplate,
}

var totalNames = map[string]TotalKind{
	"Total Frontend": Frontend,
	"Total Backend":  Backend,
}

// Classify labels one event. Events lacking the fields a category needs are ignored
// without error; an error is returned only when the duration does not fit the store
// unit, and the caller should skip that event.
func Classify(event *trace.TraceEvent) (Outcome, error) {
	if category, ok := metricNames[event.Name]; ok {
		detail, ok := event.Detail()
		if !ok || !event.HasDuration() {
			return Outcome{Kind: Ignore}, nil
		}
		duration, err := convertDuration(*event.Duration)
		if err != nil {
			return Outcome{Kind: Ignore}, fmt.Errorf("%s %q: %w", event.Name, detail, err)
		}
		return Outcome{Kind: Metric, Category: category, Name: detail, Duration: duration}, nil
	}

	if total, ok := totalNames[event.Name]; ok {
		if !event.HasDuration() {
			return Outcome{Kind: Ignore}, nil
		}
		duration, err := convertDuration(*event.Duration)
		if err != nil {
			return Outcome{Kind: Ignore}, fmt.Errorf("%s: %w", event.Name, err)
		}
		return Outcome{Kind: ObjectTotal, Total: total, Duration: duration}, nil
	}

	return Outcome{Kind: Ignore}, nil
}

func convertDuration(dur uint64) (int64, error) {
	v, err := safecast.Conv[int64](dur)
	if err != nil {
		return 0, fmt.Errorf("%w: %d", model.ErrDurationRange, dur)
	}
	return v, nil
}
