package analyzer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/aggregator"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// Translate skip kind to English string for logging
func skipReasonString(k model.ErrorKind) string {
	switch k {
	case model.KindIO:
		return "Unreadable file"
	case model.KindMalformed:
		return "Malformed trace"
	case model.KindDuplicateObject:
		return "Duplicate object"
	case model.KindStore:
		return "Store error"
	case model.KindStoreFatal:
		return "Store unavailable"
	case model.KindDiscovery:
		return "Discovery error"
	case model.KindNone:
		return "none"
	default:
		return "Unknown reason"
	}
}

// RunStats holds the counters of one ingestion run
type RunStats struct {
	mu sync.Mutex

	discovered   int
	ingested     int
	skipped      int
	events       int
	ignored      int
	outOfRange   int
	keysMerged   int
	reasonCounts map[model.ErrorKind]int
	errs         *multierror.Error

	started time.Time
	elapsed time.Duration
}

// SkipDetail records why one file was not ingested
type SkipDetail struct {
	FilePath string          `json:"path"`
	Kind     model.ErrorKind `json:"kind"`
}

// Summary is a point-in-time copy of the counters.
type Summary struct {
	Discovered int                     `json:"discovered"`
	Ingested   int                     `json:"ingested"`
	Skipped    int                     `json:"skipped"`
	Events     int                     `json:"events"`
	Ignored    int                     `json:"ignored"`
	OutOfRange int                     `json:"outOfRange"`
	KeysMerged int                     `json:"keysMerged"`
	Reasons    map[model.ErrorKind]int `json:"reasons,omitempty"`
	Skips      []SkipDetail            `json:"skips,omitempty"`
	Elapsed    time.Duration           `json:"elapsed"`
}

// NewRunStats creates a new RunStats instance
func NewRunStats() *RunStats {
	return &RunStats{
		reasonCounts: make(map[model.ErrorKind]int),
		started:      time.Now(),
	}
}

func (rs *RunStats) AddDiscovered(n int) {
	rs.mu.Lock()
	rs.discovered += n
	rs.mu.Unlock()
}

// RecordIngested counts a merged file and its event statistics
func (rs *RunStats) RecordIngested(agg *aggregator.FileAggregate) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.ingested++
	rs.events += agg.Events
	rs.ignored += agg.Ignored
	rs.outOfRange += agg.OutOfRange
	rs.keysMerged += agg.KeyCount()
}

// RecordSkipped counts a skipped file and logs the reason at warn level
func (rs *RunStats) RecordSkipped(path string, err error) {
	kind := model.KindOf(err)
	logger := util.WithFields(
		util.Field{Key: "path", Value: path},
		util.Field{Key: "reason", Value: string(kind)})
	if logger != nil {
		logger.Warnf("Skipping %s: %v", path, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.skipped++
	rs.reasonCounts[kind]++
	rs.errs = multierror.Append(rs.errs, &model.FileError{Path: path, Err: err})
}

// Finish freezes the elapsed time.
func (rs *RunStats) Finish() {
	rs.mu.Lock()
	rs.elapsed = time.Since(rs.started)
	rs.mu.Unlock()
}

// Err returns every per-file failure of the run, or nil.
func (rs *RunStats) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.errs.ErrorOrNil()
}

// Skips lists the skipped files and their kind, ordered by path.
func (rs *RunStats) Skips() []SkipDetail {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.skipsLocked()
}

func (rs *RunStats) skipsLocked() []SkipDetail {
	if rs.errs == nil {
		return nil
	}
	details := make([]SkipDetail, 0, len(rs.errs.Errors))
	for _, err := range rs.errs.Errors {
		if fe, ok := err.(*model.FileError); ok {
			details = append(details, SkipDetail{FilePath: fe.Path, Kind: model.KindOf(fe.Err)})
		}
	}
	sort.Slice(details, func(i, j int) bool { return details[i].FilePath < details[j].FilePath })
	return details
}

// Summary returns the current counters.
func (rs *RunStats) Summary() Summary {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	reasons := make(map[model.ErrorKind]int, len(rs.reasonCounts))
	for k, v := range rs.reasonCounts {
		reasons[k] = v
	}
	elapsed := rs.elapsed
	if elapsed == 0 {
		elapsed = time.Since(rs.started)
	}
	return Summary{
		Discovered: rs.discovered,
		Ingested:   rs.ingested,
		Skipped:    rs.skipped,
		Events:     rs.events,
		Ignored:    rs.ignored,
		OutOfRange: rs.outOfRange,
		KeysMerged: rs.keysMerged,
		Reasons:    reasons,
		Skips:      rs.skipsLocked(),
		Elapsed:    elapsed,
	}
}

// PrintFinalStats logs the run totals and a summary of skip reasons
func (rs *RunStats) PrintFinalStats() {
	s := rs.Summary()

	util.LogInfo(fmt.Sprintf("Ingestion complete: %d files ingested, %d skipped, %d events (%d ignored), %d keys merged in %v",
		s.Ingested, s.Skipped, s.Events, s.Ignored, s.KeysMerged, s.Elapsed.Round(time.Millisecond)))
	if s.OutOfRange > 0 {
		util.LogWarn(fmt.Sprintf("%d events had durations out of range", s.OutOfRange))
	}

	if s.Skipped > 0 {
		kinds := make([]model.ErrorKind, 0, len(s.Reasons))
		for kind := range s.Reasons {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		util.LogInfo("Skip reason summary:")
		for _, kind := range kinds {
			util.LogInfo(fmt.Sprintf("  %s: %d files", skipReasonString(kind), s.Reasons[kind]))
		}
		if err := rs.Err(); err != nil {
			util.LogDebugf("Skipped files: %v", err)
		}
	}
}
