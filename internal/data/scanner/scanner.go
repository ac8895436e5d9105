package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/penwyp/go-clang-timetrace/internal/core/model"
	"github.com/penwyp/go-clang-timetrace/internal/util"
)

// FileScanner scans files in the specified directory
type FileScanner struct {
	baseDir        string
	pattern        string
	followSymlinks bool
}

// Option configures a FileScanner.
type Option func(*FileScanner)

// WithPattern sets the base-name glob trace files must match (case-insensitive).
func WithPattern(pattern string) Option {
	return func(s *FileScanner) {
		if pattern != "" {
			s.pattern = pattern
		}
	}
}

// WithFollowSymlinks makes the scanner descend into symlinked directories.
func WithFollowSymlinks(follow bool) Option {
	return func(s *FileScanner) {
		s.followSymlinks = follow
	}
}

// NewFileScanner creates a new FileScanner instance
func NewFileScanner(baseDir string, opts ...Option) *FileScanner {
	s := &FileScanner{
		baseDir: baseDir,
		pattern: model.DefaultTracePattern,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matches reports whether path's base name matches the trace pattern.
func (s *FileScanner) Matches(path string) bool {
	ok, err := filepath.Match(strings.ToLower(s.pattern), strings.ToLower(filepath.Base(path)))
	return err == nil && ok
}

type scanState struct {
	files    []string
	dirCount int
	total    int
	visited  map[util.FileID]struct{}
}

// Scan returns a point-in-time list of every trace file under the base directory.
// A root that cannot be read fails with model.ErrDiscovery; unreadable entries below
// the root are skipped.
func (s *FileScanner) Scan() ([]string, error) {
	start := time.Now()

	// Log: Start scanning directory
	util.LogDebug(fmt.Sprintf("Start scanning directory: %s (pattern %s)", s.baseDir, s.pattern))

	if _, err := filepath.Match(s.pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", model.ErrDiscovery, s.pattern, err)
	}

	info, err := os.Stat(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDiscovery, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", model.ErrDiscovery, s.baseDir)
	}

	state := &scanState{visited: make(map[util.FileID]struct{})}
	if err := s.walkDir(s.baseDir, state, true); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDiscovery, err)
	}

	duration := time.Since(start)
	// Log: File scan completed
	util.LogDebug(fmt.Sprintf("File scan completed: duration %v, scanned %d directories, %d files, found %d trace files",
		duration, state.dirCount, state.total, len(state.files)))

	return state.files, nil
}

func (s *FileScanner) walkDir(dir string, state *scanState, root bool) error {
	if s.followSymlinks {
		fi, err := util.GetFileInfo(dir)
		if err != nil {
			if root {
				return err
			}
			util.LogDebug(fmt.Sprintf("Skip directory (error): %s - %v", dir, err))
			return nil
		}
		if _, seen := state.visited[fi.ID()]; seen {
			util.LogDebug(fmt.Sprintf("Skip directory (already visited): %s", dir))
			return nil
		}
		state.visited[fi.ID()] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if root {
			return err
		}
		// Log: Skip directory due to error
		util.LogDebug(fmt.Sprintf("Skip directory (error): %s - %v", dir, err))
		return nil
	}
	state.dirCount++

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			if !s.followSymlinks {
				// Symlinked directories are not descended into; symlinked files still count.
				target, err := os.Stat(path)
				if err != nil || target.IsDir() {
					continue
				}
			} else {
				target, err := os.Stat(path)
				if err != nil {
					util.LogDebug(fmt.Sprintf("Skip dangling symlink: %s - %v", path, err))
					continue
				}
				isDir = target.IsDir()
			}
		}

		if isDir {
			if err := s.walkDir(path, state, false); err != nil {
				return err
			}
			continue
		}

		state.total++
		if s.Matches(path) {
			state.files = append(state.files, path)
		}
	}
	return nil
}
