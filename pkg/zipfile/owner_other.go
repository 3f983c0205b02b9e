//go:build !unix

package zipfile

import "io/fs"

// fileOwner reports no ownership on non-Unix systems.
func fileOwner(info fs.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}

func restoreOwner(string, uint32, uint32) error {
	return nil
}
