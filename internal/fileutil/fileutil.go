package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SHA256File returns the hex SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, in); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ReadHeader returns up to n leading bytes of the file at path.
func ReadHeader(path string, n int) ([]byte, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(in, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// NonEmpty reports whether path holds a usable artifact: a regular file with
// at least one byte, or a directory with at least one entry. A missing path
// is not an error.
func NonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return info.Mode().IsRegular() && info.Size() > 0, nil
	}
	dir, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer dir.Close()
	names, err := dir.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return len(names) > 0, nil
}

// ErrPreviousOutputLeft is returned by Promote when the new artifact is in
// place but the replaced one could not be removed.
var ErrPreviousOutputLeft = errors.New("previous output left behind")

var removeAll = os.RemoveAll

// Promote moves a fully written staging artifact (file or directory) to its
// final path. An existing artifact at final is moved aside first and removed
// only after the rename succeeds, so final never holds a partial result. An
// error wrapping ErrPreviousOutputLeft means final is already promoted.
func Promote(staging, final string) error {
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}
	backup := ""
	if _, err := os.Lstat(final); err == nil {
		backup = staging + ".old"
		if err := os.Rename(final, backup); err != nil {
			return fmt.Errorf("move existing output aside: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat output: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		if backup != "" {
			_ = os.Rename(backup, final)
		}
		return fmt.Errorf("promote output: %w", err)
	}
	if backup != "" {
		if err := removeAll(backup); err != nil {
			return fmt.Errorf("%w at %s: %w", ErrPreviousOutputLeft, backup, err)
		}
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return WriteAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams content produced by write into a temp file next to
// path, then renames it into place. The temp file is removed on failure.
func WriteAtomic(path string, mode os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
