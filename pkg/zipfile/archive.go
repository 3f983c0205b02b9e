package zipfile

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Archive is a ZIP file on disk opened for reading and modification.
// Changes are kept in memory and staging files until Commit or Close
// rewrites the archive. An Archive is not safe for concurrent use.
type Archive struct {
	path   string
	cfg    Config
	logger *slog.Logger

	entries *EntrySet
	comment string

	// state as last read or committed
	stored        *EntrySet
	storedComment string

	staged map[*Entry]*stagedEntry
}

// Open opens the archive at path. With WithCreate a missing or empty file
// yields an empty archive that is written on the first Commit.
func Open(path string, opts ...Option) (*Archive, error) {
	o := buildOptions(opts)
	a := &Archive{
		path:   path,
		cfg:    o.cfg,
		logger: o.cfg.logger(),
		staged: make(map[*Entry]*stagedEntry),
	}
	if err := a.load(o.create); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) load(create bool) error {
	cd := NewCentralDirectory(a.cfg.CaseInsensitive, a.cfg.SortEntries)
	f, err := os.Open(a.path)
	switch {
	case err == nil:
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return errors.Wrapf(err, "stat %s", a.path)
		}
		if info.Size() > 0 || !create {
			if err := cd.ReadFrom(f, info.Size()); err != nil {
				return errors.Wrapf(err, "read %s", a.path)
			}
		}
	case os.IsNotExist(err) && create:
		a.logger.Debug("creating archive", "path", a.path)
	default:
		return errors.Wrapf(err, "open %s", a.path)
	}
	for _, e := range cd.Entries.Entries() {
		if !validDosDate(e.ModifiedDate) {
			a.logger.Warn("invalid DOS date", "entry", e.Name, "date", e.ModifiedDate)
		}
	}
	a.entries, a.comment = cd.Entries, cd.Comment
	a.stored, a.storedComment = a.entries.Clone(), a.comment
	return nil
}

// Name returns the path of the archive.
func (a *Archive) Name() string {
	return a.path
}

// Entries returns the current entries.
func (a *Archive) Entries() []*Entry {
	return a.entries.Entries()
}

// Find looks up an entry by name. Directories match with or without their
// trailing slash.
func (a *Archive) Find(name string) (*Entry, bool) {
	return a.entries.Find(name)
}

// Entry is like Find but returns ErrEntryNotFound for a missing entry.
func (a *Archive) Entry(name string) (*Entry, error) {
	e, ok := a.entries.Find(name)
	if !ok {
		return nil, errors.Wrapf(ErrEntryNotFound, "%q in %s", name, a.path)
	}
	return e, nil
}

// Glob returns the entries whose names match pattern.
func (a *Archive) Glob(pattern string, flags GlobFlags) ([]*Entry, error) {
	return a.entries.Glob(pattern, flags)
}

// Comment returns the archive comment.
func (a *Archive) Comment() string {
	return a.comment
}

// SetComment replaces the archive comment.
func (a *Archive) SetComment(comment string) {
	a.comment = comment
}

// Open returns the decoded content of the named entry, staged or stored.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	e, err := a.Entry(name)
	if err != nil {
		return nil, err
	}
	if st, ok := a.staged[e]; ok {
		return st.inputStream()
	}
	if e.IsDirectory() {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	f, err := os.Open(a.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", a.path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", a.path)
	}
	z := &Reader{r: f, size: info.Size(), password: a.cfg.Password, logger: a.logger}
	rc, err := z.OpenEntry(e)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileReadCloser{ReadCloser: rc, f: f}, nil
}

type fileReadCloser struct {
	io.ReadCloser
	f *os.File
}

func (r *fileReadCloser) Close() error {
	err := r.ReadCloser.Close()
	if ferr := r.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// Create adds or replaces the file entry name and returns a writer for its
// content. The content is staged until Commit.
func (a *Archive) Create(name string) (io.WriteCloser, error) {
	e, err := NewEntry(name)
	if err != nil {
		return nil, err
	}
	if e.IsDirectory() {
		return nil, errors.Wrapf(ErrEntryName, "%q is a directory", name)
	}
	st, err := stageStream(e)
	if err != nil {
		return nil, err
	}
	a.put(e, st)
	return st.outputStream()
}

// Add adds the file, directory or symbolic link at srcPath as name,
// compressed with deflate. Its time, permissions and ownership are recorded
// at Commit.
func (a *Archive) Add(name, srcPath string) error {
	return a.add(name, srcPath, Deflate)
}

// AddStored is like Add but stores the content uncompressed.
func (a *Archive) AddStored(name, srcPath string) error {
	return a.add(name, srcPath, Store)
}

func (a *Archive) add(name, srcPath string, method uint16) error {
	info, err := os.Lstat(srcPath)
	if err != nil {
		return errors.Wrapf(err, "add %q", name)
	}
	if info.IsDir() && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if err := a.checkExists(name); err != nil {
		return err
	}
	e, err := NewEntry(name)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		e.FType = TypeSymlink
		e.setMode()
	}
	if !e.IsDirectory() {
		e.Method = method
	}
	a.put(e, stageFile(e, srcPath))
	a.logger.Debug("staged entry", "name", name, "src", srcPath)
	return nil
}

// Mkdir adds a directory entry.
func (a *Archive) Mkdir(name string, perm os.FileMode) error {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if a.entries.Include(name) {
		return errors.Wrapf(ErrEntryExists, "%q", name)
	}
	e, err := NewEntry(name)
	if err != nil {
		return err
	}
	if perm != 0 {
		e.SetUnixPerms(perm)
	}
	a.entries.Put(e)
	return nil
}

// Remove deletes the named entry.
func (a *Archive) Remove(name string) error {
	e, err := a.Entry(name)
	if err != nil {
		return err
	}
	a.drop(e)
	return nil
}

// Rename gives the named entry a new name. Directory entries keep their
// trailing slash. Entries below a renamed directory are not renamed.
func (a *Archive) Rename(name, newName string) error {
	e, err := a.Entry(name)
	if err != nil {
		return err
	}
	if e.IsDirectory() && !strings.HasSuffix(newName, "/") {
		newName += "/"
	}
	if err := checkName(newName); err != nil {
		return err
	}
	if other, ok := a.entries.Find(newName); ok && other != e {
		if !a.cfg.Overwrite {
			return errors.Wrapf(ErrEntryExists, "%q", newName)
		}
		a.drop(other)
	}
	a.entries.Delete(e.Name)
	e.Name = newName
	e.dirty = true
	a.entries.Put(e)
	return nil
}

// Replace swaps the content of the named entry for the file at srcPath.
func (a *Archive) Replace(name, srcPath string) error {
	e, err := a.Entry(name)
	if err != nil {
		return err
	}
	method := e.Method
	a.drop(e)
	return a.add(e.Name, srcPath, method)
}

func (a *Archive) checkExists(name string) error {
	e, ok := a.entries.Find(name)
	if !ok {
		return nil
	}
	if !a.cfg.Overwrite {
		return errors.Wrapf(ErrEntryExists, "%q", name)
	}
	a.drop(e)
	return nil
}

// put inserts e, replacing any entry of the same name.
func (a *Archive) put(e *Entry, st *stagedEntry) {
	if old, ok := a.entries.Find(e.Name); ok {
		a.drop(old)
	}
	a.entries.Put(e)
	if st != nil {
		a.staged[e] = st
	}
}

func (a *Archive) drop(e *Entry) {
	a.entries.Delete(e.Name)
	if st, ok := a.staged[e]; ok {
		st.cleanup()
		delete(a.staged, e)
	}
}

// CommitRequired reports whether the archive differs from its state on disk.
func (a *Archive) CommitRequired() bool {
	if len(a.staged) > 0 || a.comment != a.storedComment {
		return true
	}
	for _, e := range a.entries.Entries() {
		if e.dirty {
			return true
		}
	}
	return !a.entries.Equal(a.stored)
}

// Commit writes the archive to a temporary file in the same directory and
// renames it over the original. The file keeps its permissions. Nothing is
// written when CommitRequired is false.
func (a *Archive) Commit() error {
	if !a.CommitRequired() {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(a.path), filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary archive")
	}
	if err := a.commitTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	a.clearStaged()
	a.logger.Info("committed archive", "path", a.path, "entries", a.entries.Len())
	return a.load(false)
}

func (a *Archive) commitTo(tmp *os.File) error {
	if err := a.write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary archive")
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(a.path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return errors.Wrap(err, "chmod temporary archive")
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		return errors.Wrapf(err, "replace %s", a.path)
	}
	return nil
}

// WriteTo writes the current state of the archive to w without touching the
// file on disk.
func (a *Archive) WriteTo(w io.WriteSeeker) error {
	return a.write(w)
}

func (a *Archive) write(w io.WriteSeeker) error {
	zos, err := NewOutputStream(w, WithOutputConfig(a.cfg))
	if err != nil {
		return err
	}
	zos.SetComment(a.comment)

	var src *os.File
	defer func() {
		if src != nil {
			src.Close()
		}
	}()
	for _, e := range a.entries.Entries() {
		if st, ok := a.staged[e]; ok {
			if err := st.writeTo(zos); err != nil {
				return err
			}
			continue
		}
		if e.IsDirectory() {
			if err := zos.PutNextEntry(e.Clone()); err != nil {
				return err
			}
			continue
		}
		if src == nil {
			if src, err = os.Open(a.path); err != nil {
				return errors.Wrapf(err, "open %s", a.path)
			}
		}
		if err := zos.CopyRawEntry(e, src); err != nil {
			return err
		}
	}
	return zos.Close()
}

// Close commits pending changes and removes staging files.
func (a *Archive) Close() error {
	err := a.Commit()
	a.clearStaged()
	return err
}

// Discard drops every change made since the last commit.
func (a *Archive) Discard() {
	a.clearStaged()
	a.entries, a.comment = a.stored.Clone(), a.storedComment
}

func (a *Archive) clearStaged() {
	for e, st := range a.staged {
		st.cleanup()
		delete(a.staged, e)
	}
}
