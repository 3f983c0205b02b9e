package zipfile

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// InputStream reads an archive front to back through its local headers
// without consulting the central directory.
type InputStream struct {
	src      io.ReadSeeker
	closer   io.Closer
	password string
	dir      *CentralDirectory

	next    int64 // offset of the next local header
	current *Entry
	dec     io.ReadCloser
}

// InputOption configures an InputStream.
type InputOption func(*InputStream)

// WithStreamPassword sets the password for encrypted entries.
func WithStreamPassword(password string) InputOption {
	return func(s *InputStream) {
		s.password = password
	}
}

// WithStreamOffset starts reading at off instead of the current position.
func WithStreamOffset(off int64) InputOption {
	return func(s *InputStream) {
		s.next = off
	}
}

// WithStreamDirectory supplies a central directory from which sizes and
// CRCs of entries that defer them to a data descriptor are taken.
func WithStreamDirectory(cd *CentralDirectory) InputOption {
	return func(s *InputStream) {
		s.dir = cd
	}
}

// NewInputStream reads entries from r, starting at its current position.
func NewInputStream(r io.ReadSeeker, opts ...InputOption) (*InputStream, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "input stream position")
	}
	s := &InputStream{src: r, next: pos, dec: nullDecompressor{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenInputStream opens the file at path. Close releases it.
func OpenInputStream(path string, opts ...InputOption) (*InputStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input stream")
	}
	s, err := NewInputStream(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NextEntry closes the current entry, reads the next local header and opens
// the entry's data for Read. It returns io.EOF after the last entry.
func (s *InputStream) NextEntry() (*Entry, error) {
	if err := s.closeEntry(); err != nil {
		return nil, err
	}
	offset := s.next
	if _, err := s.src.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek to local header at %d", offset)
	}
	e := new(Entry)
	if err := e.readLocal(s.src); err != nil {
		return nil, err
	}
	e.HeaderOffset = offset
	if e.HasDataDescriptor() {
		// Sizes rewritten into the local header after the fact are trusted;
		// zeros mean they only exist in the trailing descriptor.
		known, ok := s.known(e.Name)
		switch {
		case ok:
			e.CRC32 = known.CRC32
			e.CompressedSize64 = known.CompressedSize64
			e.UncompressedSize64 = known.UncompressedSize64
		case e.CompressedSize64 == 0:
			return nil, errors.Wrapf(ErrStreamingEntry, "entry %q", e.Name)
		}
	}
	dataStart := offset + int64(e.localHeaderSize)
	s.next = dataStart + int64(e.CompressedSize64) + e.dataDescriptorSize()

	raw := io.LimitReader(s.src, int64(e.CompressedSize64))
	dec, err := NewEntryReader(e, raw, s.password)
	if err != nil {
		return nil, err
	}
	s.current, s.dec = e, dec
	return e, nil
}

func (s *InputStream) known(name string) (*Entry, bool) {
	if s.dir == nil || s.dir.Entries == nil {
		return nil, false
	}
	return s.dir.Entries.Find(name)
}

// Read reads decoded content of the current entry. Before the first
// NextEntry and after the last one it returns io.EOF.
func (s *InputStream) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}

// Entry returns the current entry, nil when none is open.
func (s *InputStream) Entry() *Entry {
	return s.current
}

// Rewind restarts reading the current entry from its first byte.
func (s *InputStream) Rewind() error {
	if s.current == nil {
		return nil
	}
	s.next = s.current.HeaderOffset
	_, err := s.NextEntry()
	return err
}

func (s *InputStream) closeEntry() error {
	err := s.dec.Close()
	s.current, s.dec = nil, nullDecompressor{}
	return err
}

// Close closes the current entry and the file opened by OpenInputStream.
func (s *InputStream) Close() error {
	err := s.closeEntry()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
