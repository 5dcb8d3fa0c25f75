package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// DefaultPollInterval is how often Follow checks for appended lines.
const DefaultPollInterval = 250 * time.Millisecond

// Chunk is a batch of complete lines and the offset just past them.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit trailing lines. A non-positive limit returns no
// lines but still reports the end offset so callers can follow from there.
func Last(path string, limit int) (Chunk, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	next := 0
	end, err := scanLines(file, func(line string) {
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return Chunk{}, err
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)
	return Chunk{Lines: lines, Offset: end}, nil
}

// ReadFrom returns every complete line after offset. An offset past the end
// of the file, as after truncation, restarts from the beginning.
func ReadFrom(path string, offset int64) (Chunk, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Chunk{Offset: offset}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Chunk{Offset: offset}, err
	}
	return Chunk{Lines: lines, Offset: offset + read}, nil
}

// Follow emits lines appended after offset until ctx is done. It returns nil
// when the context ends and the last offset it reached.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) (int64, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunk, err := ReadFrom(path, offset)
		if err != nil {
			return offset, err
		}
		for _, line := range chunk.Lines {
			emit(line)
		}
		offset = chunk.Offset

		select {
		case <-ctx.Done():
			return offset, nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines feeds complete lines to fn and returns the bytes consumed. A
// trailing line without a newline is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			line = trimEOL(line)
			if len(line) > maxLineBytes {
				line = line[:maxLineBytes]
			}
			fn(line)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func trimEOL(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
