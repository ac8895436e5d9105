package util

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FileInfo contains extended file information, including device and inode numbers.
type FileInfo struct {
	Size   int64  // File size in bytes
	Device uint64 // Device holding the file
	Inode  uint64 // Inode number (unique file identifier on Unix-like systems)
	IsDir  bool
}

// FileID identifies a file independently of the path used to reach it.
type FileID struct {
	Device uint64
	Inode  uint64
}

// ID returns the device/inode pair of the file.
func (f *FileInfo) ID() FileID {
	return FileID{Device: f.Device, Inode: f.Inode}
}

// GetFileInfo retrieves detailed file information, following symlinks.
// Supported on Linux and macOS.
func GetFileInfo(filepath string) (*FileInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(filepath, &st); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filepath, err)
	}

	return &FileInfo{
		Size:   st.Size,
		Device: uint64(st.Dev),
		Inode:  uint64(st.Ino),
		IsDir:  st.Mode&unix.S_IFMT == unix.S_IFDIR,
	}, nil
}
