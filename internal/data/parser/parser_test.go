package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/data/aggregator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTrace = `{"traceEvents":[
	{"pid":1,"tid":1,"ph":"X","ts":0,"dur":100,"name":"Source","args":{"detail":"x.h"}},
	{"pid":1,"tid":1,"ph":"X","ts":0,"dur":100,"name":"Total Frontend"},
	{"pid":1,"tid":1,"ph":"X","ts":0,"dur":50,"name":"Total Backend"}
],"displayTimeUnit":"ns"}`

func writeTrace(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewParser(t *testing.T) {
	parser := NewParser(4, aggregator.NewAggregator())

	assert.NotNil(t, parser)
	assert.Equal(t, 4, parser.concurrency)

	assert.Equal(t, 1, NewParser(0, aggregator.NewAggregator()).concurrency)
}

func TestParserParseFileValid(t *testing.T) {
	parser := NewParser(1, aggregator.NewAggregator())
	path := writeTrace(t, t.TempDir(), "main.cpp.json", validTrace)

	events, err := parser.ParseFile(path)

	require.NoError(t, err)
	assert.Len(t, events.Events, 3)
	assert.Equal(t, "ns", events.DisplayTimeUnit)
}

func TestParserParseFileMissing(t *testing.T) {
	parser := NewParser(1, aggregator.NewAggregator())

	_, err := parser.ParseFile(filepath.Join(t.TempDir(), "missing.json"))

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestParserParseFileMalformed(t *testing.T) {
	parser := NewParser(1, aggregator.NewAggregator())
	path := writeTrace(t, t.TempDir(), "compile_commands.json", `[{"directory":"/b","file":"a.cpp"}]`)

	_, err := parser.ParseFile(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedTrace)
}

func TestProcessFileFolds(t *testing.T) {
	parser := NewParser(1, aggregator.NewAggregator())
	dir := t.TempDir()
	path := writeTrace(t, dir, "a.json", validTrace)

	result := parser.ProcessFile(path)

	require.NoError(t, result.Error)
	require.NotNil(t, result.Aggregate)
	assert.Equal(t, filepath.Join(dir, "a"), result.Aggregate.Object)
	assert.Equal(t, int64(150), result.Aggregate.CompiledObject().TotalTime)
	assert.Equal(t, 1, result.Aggregate.KeyCount())
}

func TestParseFilesConcurrent(t *testing.T) {
	parser := NewParser(3, aggregator.NewAggregator())
	dir := t.TempDir()

	var files []string
	for i := 0; i < 10; i++ {
		files = append(files, writeTrace(t, dir, fmt.Sprintf("obj%d.json", i), validTrace))
	}
	files = append(files, writeTrace(t, dir, "broken.json", `{"traceEvents":[{"ph":"?"}]}`))
	files = append(files, filepath.Join(dir, "vanished.json"))

	seen := make(map[string]ParseResult)
	for result := range parser.ParseFiles(context.Background(), files) {
		seen[result.File] = result
	}

	require.Len(t, seen, len(files))
	for i := 0; i < 10; i++ {
		result := seen[filepath.Join(dir, fmt.Sprintf("obj%d.json", i))]
		assert.NoError(t, result.Error)
		assert.NotNil(t, result.Aggregate)
	}
	assert.ErrorIs(t, seen[filepath.Join(dir, "broken.json")].Error, model.ErrMalformedTrace)
	assert.ErrorIs(t, seen[filepath.Join(dir, "vanished.json")].Error, model.ErrIO)
}

func TestParseFilesCancelled(t *testing.T) {
	parser := NewParser(2, aggregator.NewAggregator())
	dir := t.TempDir()

	var files []string
	for i := 0; i < 20; i++ {
		files = append(files, writeTrace(t, dir, fmt.Sprintf("obj%d.json", i), validTrace))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range parser.ParseFiles(ctx, files) {
		count++
	}
	assert.Less(t, count, len(files))
}

func TestParseFilesEmpty(t *testing.T) {
	parser := NewParser(2, aggregator.NewAggregator())

	count := 0
	for range parser.ParseFiles(context.Background(), nil) {
		count++
	}
	assert.Zero(t, count)
}
