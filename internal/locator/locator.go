package locator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"deodexer/internal/fileutil"
	"deodexer/internal/job"
	"deodexer/internal/logging"
)

// DefaultMaxDepth bounds recursion when Options.MaxDepth is unset.
const DefaultMaxDepth = 64

// Options controls discovery.
type Options struct {
	// Extensions are matched case-insensitively against file names, with the
	// leading dot (".odex").
	Extensions []string
	// MaxDepth is the deepest directory level descended into below the root.
	MaxDepth int
	// Inspect computes each file's SHA-256 and sniffs its header.
	Inspect bool
	// Now stamps DiscoveredAt; defaults to time.Now.
	Now func() time.Time
}

// Locator scans input roots for eligible files.
type Locator struct {
	exts     []string
	maxDepth int
	inspect  bool
	now      func() time.Time
	logger   *slog.Logger
}

// New constructs a Locator.
func New(opts Options, logger *slog.Logger) *Locator {
	exts := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = []string{".odex"}
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Locator{
		exts:     exts,
		maxDepth: maxDepth,
		inspect:  opts.Inspect,
		now:      now,
		logger:   logging.NewComponentLogger(logger, "locator"),
	}
}

// Scan opens root for traversal. It fails with *job.NotFoundError when root
// does not exist or is not a directory, and with *job.AccessError when root
// itself cannot be listed.
func (l *Locator) Scan(root string) (*Sequence, error) {
	normalized, err := job.NormalizePath(root)
	if err != nil {
		return nil, &job.NotFoundError{Path: root, Err: err}
	}
	info, err := os.Stat(normalized)
	if err != nil {
		return nil, &job.NotFoundError{Path: normalized, Err: err}
	}
	if !info.IsDir() {
		return nil, &job.NotFoundError{Path: normalized, Err: errors.New("not a directory")}
	}
	seq := &Sequence{
		loc:     l,
		root:    normalized,
		visited: make(map[dirID]struct{}),
		seen:    make(map[string]struct{}),
	}
	if id, err := identify(normalized); err == nil {
		seq.visited[id] = struct{}{}
	}
	frame, err := seq.open(normalized, "", 0)
	if err != nil {
		return nil, &job.AccessError{Path: normalized, Err: err}
	}
	seq.stack = append(seq.stack, frame)
	return seq, nil
}

// Collect drains a fresh scan of root into a slice, returning the files with
// any access diagnostics recorded along the way.
func (l *Locator) Collect(ctx context.Context, root string) ([]job.SourceFile, []error, error) {
	seq, err := l.Scan(root)
	if err != nil {
		return nil, nil, err
	}
	files, err := Drain(ctx, seq)
	return files, seq.Diagnostics(), err
}

// Drain reads every remaining entry of seq.
func Drain(ctx context.Context, seq *Sequence) ([]job.SourceFile, error) {
	var files []job.SourceFile
	for {
		file, ok, err := seq.Next(ctx)
		if err != nil {
			return files, err
		}
		if !ok {
			return files, nil
		}
		files = append(files, file)
	}
}

func (l *Locator) eligible(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range l.exts {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return true
		}
	}
	return false
}

var odexMagic = [][]byte{[]byte("dey\n"), []byte("dex\n")}

func (l *Locator) describe(path, rel string, info fs.FileInfo) job.SourceFile {
	file := job.SourceFile{
		Path:         path,
		RelPath:      rel,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		DiscoveredAt: l.now(),
	}
	if !l.inspect {
		return file
	}
	if sum, err := fileutil.SHA256File(path); err == nil {
		file.SHA256 = sum
	} else {
		l.logger.Debug("checksum failed", logging.SourceFile(path), logging.Error(err))
	}
	header, err := fileutil.ReadHeader(path, 4)
	if err == nil && !slices.ContainsFunc(odexMagic, func(m []byte) bool { return bytes.Equal(header, m) }) {
		l.logger.Debug("unrecognized odex header; scheduling anyway",
			logging.SourceFile(path),
			logging.String("header", fmt.Sprintf("%q", header)),
		)
	}
	return file
}
