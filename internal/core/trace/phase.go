package trace

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Phase is the `ph` tag of a trace event.
type Phase string

// Duration events
const (
	PhaseBegin    Phase = "B"
	PhaseEnd      Phase = "E"
	PhaseComplete Phase = "X"
)

// Instant and counter events
const (
	PhaseInstant           Phase = "i"
	PhaseInstantDeprecated Phase = "I"
	PhaseCounter           Phase = "C"
)

// Async events
const (
	PhaseNestableStart   Phase = "b"
	PhaseNestableInstant Phase = "n"
	PhaseNestableEnd     Phase = "e"
	PhaseAsyncStart      Phase = "S"
	PhaseAsyncStepInto   Phase = "T"
	PhaseAsyncStepPast   Phase = "p"
	PhaseAsyncEnd        Phase = "F"
)

// Flow events
const (
	PhaseFlowStart Phase = "s"
	PhaseFlowStep  Phase = "t"
	PhaseFlowEnd   Phase = "f"
)

// Sample, object, metadata, memory dump, mark, clock sync and context events
const (
	PhaseSample            Phase = "P"
	PhaseObjectCreated     Phase = "N"
	PhaseObjectSnapshot    Phase = "O"
	PhaseObjectDestroyed   Phase = "D"
	PhaseMetadata          Phase = "M"
	PhaseMemoryDumpGlobal  Phase = "V"
	PhaseMemoryDumpProcess Phase = "v"
	PhaseMark              Phase = "R"
	PhaseClockSync         Phase = "c"
	PhaseContextEnter      Phase = "("
	PhaseContextLeave      Phase = ")"
)

var knownPhases = map[Phase]struct{}{
	PhaseBegin: {}, PhaseEnd: {}, PhaseComplete: {},
	PhaseInstant: {}, PhaseInstantDeprecated: {}, PhaseCounter: {},
	PhaseNestableStart: {}, PhaseNestableInstant: {}, PhaseNestableEnd: {},
	PhaseAsyncStart: {}, PhaseAsyncStepInto: {}, PhaseAsyncStepPast: {}, PhaseAsyncEnd: {},
	PhaseFlowStart: {}, PhaseFlowStep: {}, PhaseFlowEnd: {},
	PhaseSample: {},
	PhaseObjectCreated: {}, PhaseObjectSnapshot: {}, PhaseObjectDestroyed: {},
	PhaseMetadata: {},
	PhaseMemoryDumpGlobal: {}, PhaseMemoryDumpProcess: {},
	PhaseMark: {}, PhaseClockSync: {},
	PhaseContextEnter: {}, PhaseContextLeave: {},
}

// Valid reports whether p is one of the tags defined by the trace event format.
func (p Phase) Valid() bool {
	_, ok := knownPhases[p]
	return ok
}

// UnmarshalJSON accepts only the closed set of phase tags.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var tag string
	if err := sonic.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("phase must be a string: %w", err)
	}
	if !Phase(tag).Valid() {
		return fmt.Errorf("unknown phase %q", tag)
	}
	*p = Phase(tag)
	return nil
}
