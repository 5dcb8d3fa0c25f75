package job

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath turns p into the canonical identity form used for
// SourceFile paths: absolute, cleaned, and NFC-normalized.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return norm.NFC.String(filepath.Clean(abs)), nil
}

// OutputFor returns the final artifact path for file under spec. The input's
// directory layout relative to the input root is mirrored and the extension
// is dropped: <output>/<rel dir>/<base name>.
func OutputFor(spec Spec, file SourceFile) string {
	rel := file.RelPath
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file.Path)
	}
	dir := filepath.Dir(rel)
	base := filepath.Base(rel)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(spec.OutputDir, dir, base)
}
