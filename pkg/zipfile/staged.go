package zipfile

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// stagedEntry holds the content of an entry added or replaced since the
// last commit: either a path on disk or a temporary file written through
// Archive.Create.
type stagedEntry struct {
	entry   *Entry
	srcPath string
	tmp     string
}

func stageFile(e *Entry, srcPath string) *stagedEntry {
	return &stagedEntry{entry: e, srcPath: srcPath}
}

func stageStream(e *Entry) (*stagedEntry, error) {
	f, err := os.CreateTemp("", "zipstream-*")
	if err != nil {
		return nil, errors.Wrap(err, "create staging file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "create staging file")
	}
	return &stagedEntry{entry: e, tmp: f.Name()}, nil
}

// outputStream truncates the staging file and returns a writer to it.
func (s *stagedEntry) outputStream() (io.WriteCloser, error) {
	f, err := os.OpenFile(s.tmp, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "open staging file for %q", s.entry.Name)
	}
	return &stagingWriter{f: f, e: s.entry}, nil
}

type stagingWriter struct {
	f *os.File
	e *Entry
	n uint64
}

func (w *stagingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.n += uint64(n)
	return n, err
}

func (w *stagingWriter) Close() error {
	w.e.UncompressedSize64 = w.n
	w.e.dirty = true
	return w.f.Close()
}

// inputStream returns the staged content. Symbolic links yield their target.
func (s *stagedEntry) inputStream() (io.ReadCloser, error) {
	switch {
	case s.tmp != "":
		f, err := os.Open(s.tmp)
		if err != nil {
			return nil, errors.Wrapf(err, "open staging file for %q", s.entry.Name)
		}
		return f, nil
	case s.entry.IsDirectory():
		return io.NopCloser(bytes.NewReader(nil)), nil
	case s.entry.IsSymlink():
		target, err := os.Readlink(s.srcPath)
		if err != nil {
			return nil, errors.Wrapf(err, "read link %s", s.srcPath)
		}
		return io.NopCloser(strings.NewReader(target)), nil
	}
	f, err := os.Open(s.srcPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.srcPath)
	}
	return f, nil
}

// gather copies time, permissions and ownership of the source path into the
// entry. It runs at commit so the latest state of the file is recorded.
func (s *stagedEntry) gather() error {
	if s.srcPath == "" {
		return nil
	}
	info, err := os.Lstat(s.srcPath)
	if err != nil {
		return errors.Wrapf(err, "stat %s", s.srcPath)
	}
	e := s.entry
	e.SetTime(info.ModTime())
	e.SetUnixPerms(info.Mode().Perm())
	if uid, gid, ok := fileOwner(info); ok {
		e.SetOwner(uid, gid)
	}
	return nil
}

// writeTo compresses the staged content into zos as a new entry.
func (s *stagedEntry) writeTo(zos *OutputStream) error {
	if err := s.gather(); err != nil {
		return err
	}
	if err := zos.PutNextEntry(s.entry.Clone()); err != nil {
		return err
	}
	src, err := s.inputStream()
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(zos, src); err != nil {
		return errors.Wrapf(err, "write entry %q", s.entry.Name)
	}
	return nil
}

// cleanup removes the staging file, if any.
func (s *stagedEntry) cleanup() {
	if s.tmp != "" {
		os.Remove(s.tmp)
		s.tmp = ""
	}
}
