// Package trace models the Chrome trace event format written by clang -ftime-trace.
package trace

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-clang-timetrace/internal/core/model"
)

// TraceEvent is one instrumentation record.
type TraceEvent struct {
	Name      string
	Category  string
	Phase     Phase
	Timestamp uint64
	PID       uint64
	TID       uint64
	Duration  *uint64
	args      map[string]any
}

// TraceEvents is the content of one capture file.
type TraceEvents struct {
	Events            []TraceEvent
	DisplayTimeUnit   string
	SystemTraceEvents string
}

// Detail returns args.detail when it is present and a string.
func (e *TraceEvent) Detail() (string, bool) {
	if e.args == nil {
		return "", false
	}
	detail, ok := e.args["detail"].(string)
	return detail, ok
}

// HasDuration reports whether the event carries a `dur` field.
func (e *TraceEvent) HasDuration() bool {
	return e.Duration != nil
}

// wireEvent mirrors the JSON layout; pointers tell absent from zero.
type wireEvent struct {
	Name     *string        `json:"name"`
	Category *string        `json:"cat"`
	Phase    *Phase         `json:"ph"`
	TS       *uint64        `json:"ts"`
	PID      *uint64        `json:"pid"`
	TID      *uint64        `json:"tid"`
	Duration *uint64        `json:"dur"`
	Args     map[string]any `json:"args"`
}

type wireEvents struct {
	TraceEvents       *[]wireEvent `json:"traceEvents"`
	DisplayTimeUnit   *string      `json:"displayTimeUnit"`
	SystemTraceEvents *string      `json:"systemTraceEvents"`
}

// Parse decodes a trace capture. Any structural problem, including a single event
// with an unknown phase tag, fails the whole document with model.ErrMalformedTrace.
func Parse(data []byte) (*TraceEvents, error) {
	var wire wireEvents
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedTrace, err)
	}
	if wire.TraceEvents == nil {
		return nil, fmt.Errorf("%w: missing traceEvents", model.ErrMalformedTrace)
	}

	out := &TraceEvents{
		Events: make([]TraceEvent, 0, len(*wire.TraceEvents)),
	}
	if wire.DisplayTimeUnit != nil {
		out.DisplayTimeUnit = *wire.DisplayTimeUnit
	}
	if wire.SystemTraceEvents != nil {
		out.SystemTraceEvents = *wire.SystemTraceEvents
	}

	for i, w := range *wire.TraceEvents {
		event, err := w.toEvent()
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", model.ErrMalformedTrace, i, err)
		}
		out.Events = append(out.Events, event)
	}
	return out, nil
}

func (w *wireEvent) toEvent() (TraceEvent, error) {
	switch {
	case w.Name == nil:
		return TraceEvent{}, fmt.Errorf("missing name")
	case w.Phase == nil:
		return TraceEvent{}, fmt.Errorf("missing ph")
	case w.TS == nil:
		return TraceEvent{}, fmt.Errorf("missing ts")
	case w.PID == nil:
		return TraceEvent{}, fmt.Errorf("missing pid")
	case w.TID == nil:
		return TraceEvent{}, fmt.Errorf("missing tid")
	}

	event := TraceEvent{
		Name:      *w.Name,
		Phase:     *w.Phase,
		Timestamp: *w.TS,
		PID:       *w.PID,
		TID:       *w.TID,
		Duration:  w.Duration,
		args:      w.Args,
	}
	if w.Category != nil {
		event.Category = *w.Category
	}
	return event, nil
}

// NewCompleteEvent builds an "X" event. An empty detail leaves args unset.
func NewCompleteEvent(name, detail string, duration uint64) TraceEvent {
	event := TraceEvent{
		Name:     name,
		Phase:    PhaseComplete,
		Duration: &duration,
	}
	if detail != "" {
		event.args = map[string]any{"detail": detail}
	}
	return event
}
