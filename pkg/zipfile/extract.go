package zipfile

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// NameSafe reports whether the entry stays inside the destination directory
// when extracted: its name is relative and does not climb above it.
func (e *Entry) NameSafe() bool {
	name := strings.ReplaceAll(e.Name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.VolumeName(e.Name) != "" {
		return false
	}
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	clean := path.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// Extract writes the named entry below destDir. Names that would escape
// destDir are refused with ErrUnsafeName.
func (a *Archive) Extract(name, destDir string) error {
	e, err := a.Entry(name)
	if err != nil {
		return err
	}
	if !e.NameSafe() {
		return errors.Wrapf(ErrUnsafeName, "%q", e.Name)
	}
	return a.extract(e, filepath.Join(destDir, filepath.FromSlash(e.Name)))
}

// ExtractTo writes the named entry to destPath exactly. The caller chose the
// path, so the name is not checked.
func (a *Archive) ExtractTo(name, destPath string) error {
	e, err := a.Entry(name)
	if err != nil {
		return err
	}
	return a.extract(e, destPath)
}

func (a *Archive) extract(e *Entry, dest string) error {
	if info, err := os.Lstat(dest); err == nil {
		switch {
		case e.IsDirectory() && info.IsDir():
			return a.restore(e, dest)
		case !a.cfg.Overwrite:
			return errors.Wrapf(ErrDestinationExists, "%s", dest)
		}
		if err := os.Remove(dest); err != nil {
			return errors.Wrapf(err, "replace %s", dest)
		}
	}

	switch e.FType {
	case TypeDirectory:
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return errors.Wrapf(err, "create directory %s", dest)
		}
	case TypeSymlink:
		if !a.cfg.Symlinks {
			a.logger.Warn("skipping symbolic link", "entry", e.Name, "dest", dest)
			return nil
		}
		if err := a.extractSymlink(e, dest); err != nil {
			return err
		}
		a.logger.Debug("extracted", "entry", e.Name, "dest", dest)
		return nil
	default:
		if err := a.extractFile(e, dest); err != nil {
			return err
		}
	}
	a.logger.Debug("extracted", "entry", e.Name, "dest", dest)
	return a.restore(e, dest)
}

func (a *Archive) extractFile(e *Entry, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", dest)
	}
	rc, err := a.Open(e.Name)
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", dest)
	}
	if err != nil {
		if errors.Is(err, ErrChecksum) || errors.Is(err, ErrEntrySize) {
			a.logger.Warn("entry content does not match its header",
				"entry", e.Name, "written", n, "size", e.UncompressedSize64, "err", err)
		}
		os.Remove(dest)
		return err
	}
	return nil
}

func (a *Archive) extractSymlink(e *Entry, dest string) error {
	rc, err := a.Open(e.Name)
	if err != nil {
		return err
	}
	defer rc.Close()
	target, err := io.ReadAll(rc)
	if err != nil {
		return errors.Wrapf(err, "read link target of %q", e.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", dest)
	}
	if err := os.Symlink(string(target), dest); err != nil {
		return errors.Wrapf(err, "create symbolic link %s", dest)
	}
	if a.cfg.RestoreOwnership {
		if err := restoreOwner(dest, e.UnixUID, e.UnixGID); err != nil {
			return errors.Wrapf(err, "chown %s", dest)
		}
	}
	return nil
}

// restore applies the recorded permissions, ownership and time as
// configured.
func (a *Archive) restore(e *Entry, dest string) error {
	if a.cfg.RestorePermissions && e.UnixPerms != 0 {
		if err := os.Chmod(dest, e.UnixPerms); err != nil {
			return errors.Wrapf(err, "chmod %s", dest)
		}
	}
	if a.cfg.RestoreOwnership {
		if err := restoreOwner(dest, e.UnixUID, e.UnixGID); err != nil {
			return errors.Wrapf(err, "chown %s", dest)
		}
	}
	if a.cfg.RestoreTimes {
		t := e.Time()
		if err := os.Chtimes(dest, t, t); err != nil {
			return errors.Wrapf(err, "set time on %s", dest)
		}
	}
	return nil
}
