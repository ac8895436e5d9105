// Package report turns store queries and store comparisons into formatter tables.
package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/store"
	"github.com/penwyp/go-clang-timetrace/internal/diff"
	"github.com/penwyp/go-clang-timetrace/internal/presentation/formatter"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// Options selects what a report shows.
type Options struct {
	// Table is a cost category or model.ObjectsTable.
	Table  string
	Global bool
	Object string
	SortBy store.SortField
	Limit  int
}

// Validate rejects option combinations that have no meaning.
func (o Options) Validate() error {
	switch o.SortBy {
	case "", store.SortByDuration, store.SortByCount:
	default:
		return fmt.Errorf("unknown sort field %q (duration, count)", o.SortBy)
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if o.Table == model.ObjectsTable {
		if o.Global {
			return fmt.Errorf("--global does not apply to %s", model.ObjectsTable)
		}
		if o.SortBy == store.SortByCount {
			return fmt.Errorf("%s can only be sorted by duration", model.ObjectsTable)
		}
		return nil
	}
	if _, ok := model.ParseCategory(o.Table); !ok {
		return fmt.Errorf("unknown table %q (source, instantiate_class, instantiate_function, parse_class, parse_template, objects)", o.Table)
	}
	return nil
}

// Build runs the query described by opts.
func Build(ctx context.Context, st *store.Store, opts Options) (*formatter.Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Table == model.ObjectsTable {
		return objects(ctx, st, opts)
	}
	return metrics(ctx, st, opts)
}

func metrics(ctx context.Context, st *store.Store, opts Options) (*formatter.Table, error) {
	category, _ := model.ParseCategory(opts.Table)
	records, err := st.Metrics(ctx, store.MetricQuery{
		Category: category,
		Global:   opts.Global,
		Object:   opts.Object,
		SortBy:   opts.SortBy,
		Limit:    opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	t := &formatter.Table{
		Title:   metricTitle(category, opts),
		Payload: records,
	}
	t.Columns = append(t.Columns, formatter.Column{Header: "Name"})
	if !opts.Global {
		t.Columns = append(t.Columns, formatter.Column{Header: "Object"})
	}
	t.Columns = append(t.Columns,
		formatter.Column{Header: "Duration", Numeric: true},
		formatter.Column{Header: "Count", Numeric: true},
		formatter.Column{Header: "Average", Numeric: true},
	)

	var totalDuration, totalCount int64
	for _, r := range records {
		avg := int64(0)
		if r.Count > 0 {
			avg = r.Duration / r.Count
		}
		row := []string{r.Name}
		raw := []string{r.Name}
		if !opts.Global {
			row = append(row, r.Object)
			raw = append(raw, r.Object)
		}
		row = append(row, util.FormatMicros(r.Duration), util.FormatCount(r.Count), util.FormatMicros(avg))
		raw = append(raw, itoa(r.Duration), itoa(r.Count), itoa(avg))
		t.Rows = append(t.Rows, row)
		t.Raw = append(t.Raw, raw)

		totalDuration += r.Duration
		totalCount += r.Count
	}

	if len(records) > 0 {
		footer := []string{"Total"}
		if !opts.Global {
			footer = append(footer, "")
		}
		t.Footer = append(footer, util.FormatMicros(totalDuration), util.FormatCount(totalCount), "")
	}
	return t, nil
}

func metricTitle(category model.Category, opts Options) string {
	title := fmt.Sprintf("%s by %s", category, sortLabel(opts.SortBy))
	if opts.Global {
		title += " (all objects)"
	}
	if opts.Object != "" {
		title += " in " + opts.Object
	}
	return title
}

func sortLabel(field store.SortField) string {
	if field == "" {
		return string(store.SortByDuration)
	}
	return string(field)
}

func objects(ctx context.Context, st *store.Store, opts Options) (*formatter.Table, error) {
	var list []model.CompiledObject
	if opts.Object != "" {
		obj, found, err := st.Object(ctx, opts.Object)
		if err != nil {
			return nil, err
		}
		if found {
			list = append(list, obj)
		}
	} else {
		var err error
		if list, err = st.Objects(ctx, opts.Limit); err != nil {
			return nil, err
		}
	}
	if list == nil {
		list = []model.CompiledObject{}
	}

	t := &formatter.Table{
		Title: "objects by total time",
		Columns: []formatter.Column{
			{Header: "Object"},
			{Header: "Total", Numeric: true},
			{Header: "Frontend", Numeric: true},
			{Header: "Backend", Numeric: true},
		},
		Payload: list,
	}

	var total, frontend, backend int64
	for _, obj := range list {
		t.Rows = append(t.Rows, []string{
			obj.Path,
			util.FormatMicros(obj.TotalTime),
			util.FormatMicros(obj.Frontend),
			util.FormatMicros(obj.Backend),
		})
		t.Raw = append(t.Raw, []string{obj.Path, itoa(obj.TotalTime), itoa(obj.Frontend), itoa(obj.Backend)})
		total += obj.TotalTime
		frontend += obj.Frontend
		backend += obj.Backend
	}
	if len(list) > 1 {
		t.Footer = []string{
			fmt.Sprintf("Total (%d)", len(list)),
			util.FormatMicros(total),
			util.FormatMicros(frontend),
			util.FormatMicros(backend),
		}
	}
	return t, nil
}

// Comparison renders a store comparison as one table per section.
func Comparison(r *diff.Result) []*formatter.Table {
	return []*formatter.Table{
		presence("Objects", r.Objects.OnlyInFirst, r.Objects.OnlyInSecond),
		objectDeltas(r),
		presence("Sources", r.Sources.OnlyInFirst, r.Sources.OnlyInSecond),
		valueDeltas("Source differences", r.Sources.Differences),
		presence("Instantiated classes", r.InstantiateClasses.OnlyInFirst, r.InstantiateClasses.OnlyInSecond),
		valueDeltas("Instantiated class differences", r.InstantiateClasses.Differences),
	}
}

func presence(title string, onlyFirst, onlySecond []string) *formatter.Table {
	t := &formatter.Table{
		Title:   title + " in one database only",
		Columns: []formatter.Column{{Header: "Database"}, {Header: "Key"}},
		Payload: map[string][]string{"db1": nonNil(onlyFirst), "db2": nonNil(onlySecond)},
	}
	for _, key := range onlyFirst {
		t.Rows = append(t.Rows, []string{"db1", key})
	}
	for _, key := range onlySecond {
		t.Rows = append(t.Rows, []string{"db2", key})
	}
	return t
}

func objectDeltas(r *diff.Result) *formatter.Table {
	t := &formatter.Table{
		Title: fmt.Sprintf("Object differences above %s", util.FormatMicros(r.Threshold)),
		Columns: []formatter.Column{
			{Header: "Object"},
			{Header: "Total", Numeric: true},
			{Header: "Frontend", Numeric: true},
			{Header: "Backend", Numeric: true},
		},
		Payload: nonNil(r.Objects.Differences),
	}
	for _, d := range r.Objects.Differences {
		t.Rows = append(t.Rows, []string{d.Key, signedMicros(d.TotalTime), signedMicros(d.Frontend), signedMicros(d.Backend)})
		t.Raw = append(t.Raw, []string{d.Key, itoa(d.TotalTime), itoa(d.Frontend), itoa(d.Backend)})
	}
	return t
}

func valueDeltas(title string, deltas []diff.ValueDelta) *formatter.Table {
	t := &formatter.Table{
		Title: title,
		Columns: []formatter.Column{
			{Header: "Name"},
			{Header: "Duration", Numeric: true},
			{Header: "Count", Numeric: true},
		},
		Payload: nonNil(deltas),
	}
	for _, d := range deltas {
		t.Rows = append(t.Rows, []string{d.Key, signedMicros(d.Duration), fmt.Sprintf("%+d", d.Count)})
		t.Raw = append(t.Raw, []string{d.Key, itoa(d.Duration), itoa(d.Count)})
	}
	return t
}

func signedMicros(us int64) string {
	if us > 0 {
		return "+" + util.FormatMicros(us)
	}
	return util.FormatMicros(us)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
