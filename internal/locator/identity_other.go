//go:build !unix

package locator

import "path/filepath"

type dirID struct {
	path string
}

// identify resolves symlinks and uses the resulting path as identity.
func identify(path string) (dirID, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return dirID{}, err
	}
	return dirID{path: resolved}, nil
}
