package locator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"deodexer/internal/job"
	"deodexer/internal/logging"
)

// ErrCycle marks a symbolic link that leads back into an already visited
// directory.
var ErrCycle = errors.New("symlink cycle")

// ErrDepth marks a directory beyond the configured maximum depth.
var ErrDepth = errors.New("maximum depth exceeded")

// Sequence is a single-use iterator over discovered files. It is safe for
// concurrent use, although entries are produced one at a time.
type Sequence struct {
	mu          sync.Mutex
	loc         *Locator
	root        string
	stack       []*frame
	visited     map[dirID]struct{}
	seen        map[string]struct{}
	diagnostics []error
	done        bool
}

type frame struct {
	dir     string
	rel     string
	depth   int
	entries []entry
	next    int
}

type entry struct {
	name string
	key  string
	info os.FileInfo
	err  error
}

// Root returns the normalized input root.
func (s *Sequence) Root() string {
	return s.root
}

// Next advances the sequence. It returns ok=false once the tree is
// exhausted; err is non-nil only when ctx is done.
func (s *Sequence) Next(ctx context.Context) (job.SourceFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.done {
		if err := ctx.Err(); err != nil {
			return job.SourceFile{}, false, err
		}
		if len(s.stack) == 0 {
			s.done = true
			break
		}
		top := s.stack[len(s.stack)-1]
		if top.next >= len(top.entries) {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}
		e := top.entries[top.next]
		top.next++

		path := filepath.Join(top.dir, e.name)
		rel := e.name
		if top.rel != "" {
			rel = filepath.Join(top.rel, e.name)
		}
		if e.err != nil {
			s.record(&job.AccessError{Path: path, Err: e.err})
			continue
		}
		if e.info.IsDir() {
			s.descend(path, rel, top.depth+1)
			continue
		}
		if !e.info.Mode().IsRegular() || !s.loc.eligible(e.name) {
			continue
		}
		normalized, err := job.NormalizePath(path)
		if err != nil {
			s.record(&job.AccessError{Path: path, Err: err})
			continue
		}
		if _, dup := s.seen[normalized]; dup {
			continue
		}
		s.seen[normalized] = struct{}{}
		return s.loc.describe(normalized, rel, e.info), true, nil
	}
	return job.SourceFile{}, false, nil
}

// Diagnostics returns the access problems recorded so far.
func (s *Sequence) Diagnostics() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.diagnostics...)
}

func (s *Sequence) descend(path, rel string, depth int) {
	if depth > s.loc.maxDepth {
		s.loc.logger.Debug("skipping directory beyond max depth",
			logging.String("path", path),
			logging.Int("max_depth", s.loc.maxDepth),
		)
		s.record(&job.AccessError{Path: path, Err: ErrDepth})
		return
	}
	id, err := identify(path)
	if err != nil {
		s.record(&job.AccessError{Path: path, Err: err})
		return
	}
	if _, loop := s.visited[id]; loop {
		s.loc.logger.Debug("skipping already visited directory", logging.String("path", path))
		s.diagnostics = append(s.diagnostics, fmt.Errorf("%s: %w", path, ErrCycle))
		return
	}
	s.visited[id] = struct{}{}
	frame, err := s.open(path, rel, depth)
	if err != nil {
		s.record(&job.AccessError{Path: path, Err: err})
		return
	}
	s.stack = append(s.stack, frame)
}

func (s *Sequence) record(err *job.AccessError) {
	s.diagnostics = append(s.diagnostics, err)
	logging.WarnWithContext(s.loc.logger, "skipping unreadable path", "discovery_access_error",
		logging.String("path", err.Path),
		logging.Error(err.Err),
		logging.String(logging.FieldErrorHint, "check permissions on the input tree"),
		logging.String(logging.FieldImpact, "files below this path are not processed"),
	)
}

// open lists dir and sorts its entries so that a depth-first walk visits
// paths in lexical order: directories sort as "name/" so "a.odex" precedes
// "a/x.odex".
func (s *Sequence) open(dir, rel string, depth int) (*frame, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		info, statErr := os.Stat(filepath.Join(dir, name))
		e := entry{name: name, key: name, info: info, err: statErr}
		if statErr == nil && info.IsDir() {
			e.key = name + "/"
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return &frame{dir: dir, rel: rel, depth: depth, entries: entries}, nil
}
