//go:build unix

package zipfile

import (
	"io/fs"
	"os"
	"syscall"
)

// fileOwner extracts UID and GID from file info on Unix systems.
func fileOwner(info fs.FileInfo) (uid, gid uint32, ok bool) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Uid, stat.Gid, true
	}
	return 0, 0, false
}

func restoreOwner(path string, uid, gid uint32) error {
	return os.Lchown(path, int(uid), int(gid))
}
