package watcher

// FilesystemType is a coarse classification of the filesystem holding the
// watched tree. Remote filesystems do not deliver inotify events reliably,
// so the watcher polls them.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeFUSE
	FSType9P
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeFUSE:
		return "fuse"
	case FSType9P:
		return "9p"
	default:
		return "unknown"
	}
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeFUSE, FSType9P:
		return true
	default:
		return false
	}
}
