package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSHA256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.odex")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
	if _, err := SHA256File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadHeaderShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	if err := os.WriteFile(path, []byte("de"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadHeader(path, 8)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if string(got) != "de" {
		t.Fatalf("header = %q", got)
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	emptyDir := filepath.Join(dir, "emptydir")
	fullDir := filepath.Join(dir, "fulldir")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(fullDir, "smali"), 0o755); err != nil {
		t.Fatal(err)
	}

	cases := map[string]bool{
		empty:                         false,
		full:                          true,
		emptyDir:                      false,
		fullDir:                       true,
		filepath.Join(dir, "missing"): false,
	}
	for path, want := range cases {
		got, err := NonEmpty(path)
		if err != nil {
			t.Fatalf("NonEmpty(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("NonEmpty(%s) = %v, want %v", filepath.Base(path), got, want)
		}
	}
}

func TestPromoteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out", "services")
	staging := final + ".partial-1"
	if err := os.MkdirAll(final, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(final, "old.smali"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "new.smali"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Promote(staging, final); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if _, err := os.Stat(filepath.Join(final, "new.smali")); err != nil {
		t.Fatalf("expected promoted content: %v", err)
	}
	if _, err := os.Stat(filepath.Join(final, "old.smali")); !os.IsNotExist(err) {
		t.Fatalf("expected old content replaced, stat err=%v", err)
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Fatalf("expected staging path gone, stat err=%v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(final))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only final artifact left, got %d entries", len(entries))
	}
}

func TestPromoteMissingStagingKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "services")
	if err := os.WriteFile(final, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Promote(filepath.Join(dir, "missing.partial"), final); err == nil {
		t.Fatal("expected error for missing staging artifact")
	}
	data, err := os.ReadFile(final)
	if err != nil || string(data) != "keep" {
		t.Fatalf("expected existing output restored, got %q err=%v", data, err)
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	if err := WriteFileAtomic(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{}" {
		t.Fatalf("unexpected contents %q err=%v", data, err)
	}

	boom := errors.New("boom")
	err = WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "{}" {
		t.Fatalf("failed write must not touch target, got %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleaned up, got %d entries", len(entries))
	}
}

func TestPromoteKeepsNewArtifactWhenBackupRemovalFails(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "services")
	staging := final + ".partial-1"
	if err := os.WriteFile(final, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(staging, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	removeAll = func(string) error { return errors.New("device busy") }
	t.Cleanup(func() { removeAll = os.RemoveAll })

	err := Promote(staging, final)
	if !errors.Is(err, ErrPreviousOutputLeft) {
		t.Fatalf("expected ErrPreviousOutputLeft, got %v", err)
	}
	data, err := os.ReadFile(final)
	if err != nil || string(data) != "new" {
		t.Fatalf("expected promoted content, got %q err=%v", data, err)
	}
	if _, err := os.Stat(staging + ".old"); err != nil {
		t.Fatalf("expected backup left for the sweep: %v", err)
	}
}
