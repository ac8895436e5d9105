package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// Event is one entry of a trace file in Chrome trace event format.
type Event struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat,omitempty"`
	Ph   string         `json:"ph"`
	Ts   uint64         `json:"ts"`
	Pid  uint64         `json:"pid"`
	Tid  uint64         `json:"tid"`
	Dur  *uint64        `json:"dur,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// Document is the top-level object of a trace file.
type Document struct {
	TraceEvents     []Event `json:"traceEvents"`
	DisplayTimeUnit string  `json:"displayTimeUnit,omitempty"`
}

// Complete builds a complete ("X") event with an args.detail string.
func Complete(name, detail string, dur uint64) Event {
	ev := Event{Name: name, Ph: "X", Ts: 0, Pid: 1, Tid: 1, Dur: &dur}
	if detail != "" {
		ev.Args = map[string]any{"detail": detail}
	}
	return ev
}

// Source is a "Source" event for an included header.
func Source(header string, dur uint64) Event {
	return Complete("Source", header, dur)
}

// InstantiateClass is an "InstantiateClass" event.
func InstantiateClass(class string, dur uint64) Event {
	return Complete("InstantiateClass", class, dur)
}

// InstantiateFunction is an "InstantiateFunction" event.
func InstantiateFunction(fn string, dur uint64) Event {
	return Complete("InstantiateFunction", fn, dur)
}

// ParseClass is a "ParseClass" event.
func ParseClass(class string, dur uint64) Event {
	return Complete("ParseClass", class, dur)
}

// ParseTemplate is a "ParseTemplate" event.
func ParseTemplate(tmpl string, dur uint64) Event {
	return Complete("ParseTemplate", tmpl, dur)
}

// Frontend is the "Total Frontend" summary event.
func Frontend(dur uint64) Event {
	return Complete("Total Frontend", "", dur)
}

// Backend is the "Total Backend" summary event.
func Backend(dur uint64) Event {
	return Complete("Total Backend", "", dur)
}

// Metadata is a process-name metadata event, which carries no cost.
func Metadata(name string) Event {
	return Event{Name: "process_name", Ph: "M", Pid: 1, Tid: 1, Args: map[string]any{"name": name}}
}

// TraceGenerator writes trace files below a base directory.
type TraceGenerator struct {
	baseDir string
}

// NewTraceGenerator creates a new trace generator
func NewTraceGenerator(baseDir string) *TraceGenerator {
	return &TraceGenerator{
		baseDir: baseDir,
	}
}

// GetBaseDir returns the base directory
func (g *TraceGenerator) GetBaseDir() string {
	return g.baseDir
}

// WriteTrace writes events as a trace document to relPath and returns the full path.
func (g *TraceGenerator) WriteTrace(relPath string, events ...Event) (string, error) {
	if events == nil {
		events = []Event{}
	}
	data, err := sonic.Marshal(Document{TraceEvents: events, DisplayTimeUnit: "ns"})
	if err != nil {
		return "", err
	}
	return g.WriteRaw(relPath, data)
}

// WriteRaw writes data verbatim, for malformed inputs.
func (g *TraceGenerator) WriteRaw(relPath string, data []byte) (string, error) {
	path := filepath.Join(g.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// GenerateScenarioA writes a.json: two x.h sources, frontend 100, backend 50.
func (g *TraceGenerator) GenerateScenarioA() (string, error) {
	return g.WriteTrace("a.json",
		Source("x.h", 100),
		Source("x.h", 50),
		Frontend(100),
		Backend(50),
	)
}

// GenerateProject writes numObjects traces under project, each including the
// same headers so metric keys collide across objects.
func (g *TraceGenerator) GenerateProject(project string, numObjects int) ([]string, error) {
	paths := make([]string, 0, numObjects)
	for i := 0; i < numObjects; i++ {
		path, err := g.WriteTrace(
			filepath.Join(project, fmt.Sprintf("unit%03d.cpp.json", i)),
			Metadata("clang"),
			Source("common.h", 1000),
			Source(fmt.Sprintf("unit%03d.h", i), uint64(100+i)),
			InstantiateClass("std::vector<int>", 300),
			InstantiateFunction("std::sort<int*>", 200),
			ParseClass("Widget", 40),
			ParseTemplate("Widget::make<T>", 20),
			Frontend(5000),
			Backend(2000),
		)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
