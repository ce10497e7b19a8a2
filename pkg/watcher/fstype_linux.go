//go:build linux

package watcher

import "golang.org/x/sys/unix"

// statfs magic numbers from linux/magic.h.
const (
	nfsMagic  = 0x6969
	smbMagic  = 0x517B
	cifsMagic = 0xFF534D42
	smb2Magic = 0xFE534D42
	fuseMagic = 0x65735546
	v9fsMagic = 0x01021997
)

// DetectFilesystemType classifies the filesystem holding path. It returns
// FSTypeUnknown when path cannot be inspected.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsMagic:
		return FSTypeNFS
	case smbMagic, cifsMagic, smb2Magic:
		return FSTypeSMB
	case fuseMagic:
		return FSTypeFUSE
	case v9fsMagic:
		return FSType9P
	default:
		return FSTypeLocal
	}
}
