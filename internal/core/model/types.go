package model

import (
	"fmt"
	"math"
)

// CompiledObject is one translation unit whose trace has been ingested.
// All durations are microseconds.
type CompiledObject struct {
	Path      string `json:"path"`
	TotalTime int64  `json:"totalTime"`
	Frontend  int64  `json:"frontend"`
	Backend   int64  `json:"backend"`
}

// MetricKey identifies one aggregate row of a cost category.
type MetricKey struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Object   string   `json:"object"`
}

// MetricRecord is one aggregate row: cumulative duration and occurrence count.
type MetricRecord struct {
	MetricKey
	Duration int64 `json:"duration"`
	Count    int64 `json:"count"`
}

// Partial is a per-file sum for a single key, before it is merged into the store.
type Partial struct {
	Duration int64 `json:"duration"`
	Count    int64 `json:"count"`
}

// Add folds one more occurrence into the partial sum. On overflow p is left unchanged.
func (p *Partial) Add(duration int64) error {
	sum, err := SumDurations(p.Duration, duration)
	if err != nil {
		return err
	}
	p.Duration = sum
	p.Count++
	return nil
}

// SumDurations adds two non-negative durations, failing with ErrDurationRange
// when the result does not fit an int64.
func SumDurations(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, fmt.Errorf("%w: %d + %d", ErrDurationRange, a, b)
	}
	return a + b, nil
}
