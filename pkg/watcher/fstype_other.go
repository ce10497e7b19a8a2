//go:build !linux

package watcher

import "os"

// DetectFilesystemType reports FSTypeLocal for any inspectable path.
// Remote mounts are only recognized on Linux.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	if _, err := os.Stat(path); err != nil {
		return FSTypeUnknown
	}
	return FSTypeLocal
}
