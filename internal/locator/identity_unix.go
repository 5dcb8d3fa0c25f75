//go:build unix

package locator

import "golang.org/x/sys/unix"

type dirID struct {
	dev uint64
	ino uint64
}

// identify follows symlinks and returns the device/inode pair of path.
func identify(path string) (dirID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return dirID{}, err
	}
	return dirID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, nil
}
