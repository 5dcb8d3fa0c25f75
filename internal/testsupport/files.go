package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// OdexHeader is the magic prefix written by WriteOdex.
var OdexHeader = []byte("dey\n036\x00")

// WriteFile creates path with size bytes of filler, creating parent
// directories. Sizes below one are written as a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeBytes(t, path, bytes.Repeat([]byte{'x'}, int(max(size, 1))))
}

// WriteOdex creates root/rel with an odex header followed by a short payload
// and returns the absolute path.
func WriteOdex(t testing.TB, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	writeBytes(t, path, append(bytes.Clone(OdexHeader), "payload"...))
	return path
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
