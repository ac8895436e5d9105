package parser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/core/trace"
	"github.com/penwyp/go-clang-timetrace/internal/data/aggregator"
	"github.com/penwyp/go-clang-timetrace/internal/util"
	"golang.org/x/sync/errgroup"
)

// Parser reads trace files and folds them into per-file aggregates.
type Parser struct {
	concurrency int
	aggregator  *aggregator.Aggregator
}

// ParseResult represents the result of parsing and folding a single file.
type ParseResult struct {
	File      string
	Aggregate *aggregator.FileAggregate
	Error     error
	Elapsed   time.Duration
}

// NewParser creates a new Parser instance.
func NewParser(concurrency int, agg *aggregator.Aggregator) *Parser {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Parser{
		concurrency: concurrency,
		aggregator:  agg,
	}
}

// ParseFile reads and decodes the trace file at path.
func (p *Parser) ParseFile(path string) (*trace.TraceEvents, error) {
	util.LogDebug(fmt.Sprintf("Start parsing file: %s", path))

	data, err := os.ReadFile(path)
	if err != nil {
		util.LogDebug(fmt.Sprintf("Failed to read file: %s - %v", path, err))
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}

	events, err := trace.Parse(data)
	if err != nil {
		return nil, err
	}
	util.LogDebug(fmt.Sprintf("Parsed %s: %d events, %s", path, len(events.Events), util.FormatBytes(int64(len(data)))))
	return events, nil
}

// ProcessFile parses path and folds its events. It does not touch the store.
func (p *Parser) ProcessFile(path string) ParseResult {
	start := time.Now()
	events, err := p.ParseFile(path)
	if err != nil {
		return ParseResult{File: path, Error: err, Elapsed: time.Since(start)}
	}
	return ParseResult{
		File:      path,
		Aggregate: p.aggregator.Fold(path, events),
		Elapsed:   time.Since(start),
	}
}

// ParseFiles parses and folds files with bounded concurrency. Results arrive in
// completion order; the channel is closed once every file is done or ctx is cancelled.
func (p *Parser) ParseFiles(ctx context.Context, files []string) <-chan ParseResult {
	start := time.Now()
	results := make(chan ParseResult, p.concurrency)

	util.LogDebug(fmt.Sprintf("Start concurrent parsing of %d files, concurrency: %d", len(files), p.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	go func() {
		defer close(results)

		for _, file := range files {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				result := p.ProcessFile(file)
				if result.Error != nil {
					util.LogDebug(fmt.Sprintf("File parsing failed: %s, duration %v - %v", file, result.Elapsed, result.Error))
				}
				select {
				case results <- result:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}

		if err := g.Wait(); err != nil {
			util.LogDebug(fmt.Sprintf("Concurrent parsing stopped: %v", err))
		}
		util.LogDebug(fmt.Sprintf("Concurrent parsing finished, total duration: %v", time.Since(start)))
	}()

	return results
}
