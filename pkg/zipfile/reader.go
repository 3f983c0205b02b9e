package zipfile

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

// Reader gives random access to the entries of an archive held by an
// io.ReaderAt, a local file or a remote object alike.
type Reader struct {
	r        io.ReaderAt
	size     int64
	cd       *CentralDirectory
	password string
	logger   *slog.Logger
}

// NewReader reads the central directory of the size-byte archive in r.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	o := buildOptions(opts)
	z := &Reader{
		r:        r,
		size:     size,
		cd:       NewCentralDirectory(o.cfg.CaseInsensitive, o.cfg.SortEntries),
		password: o.cfg.Password,
		logger:   o.cfg.logger(),
	}
	if err := z.cd.ReadFrom(r, size); err != nil {
		return nil, err
	}
	z.logger.Debug("read central directory", "entries", z.cd.Entries.Len(), "size", size)
	return z, nil
}

// Entries returns the entries in directory order.
func (z *Reader) Entries() []*Entry {
	return z.cd.Entries.Entries()
}

// Find looks up an entry by name.
func (z *Reader) Find(name string) (*Entry, bool) {
	return z.cd.Entries.Find(name)
}

// Comment returns the archive comment.
func (z *Reader) Comment() string {
	return z.cd.Comment
}

// Directory returns the parsed central directory.
func (z *Reader) Directory() *CentralDirectory {
	return z.cd
}

// Open opens the named entry for reading its decoded content.
func (z *Reader) Open(name string) (io.ReadCloser, error) {
	e, ok := z.Find(name)
	if !ok {
		return nil, errors.Wrapf(ErrEntryNotFound, "%q", name)
	}
	return z.OpenEntry(e)
}

// OpenEntry opens e for reading its decoded content. The CRC-32 and size are
// checked when the content has been read to EOF.
func (z *Reader) OpenEntry(e *Entry) (io.ReadCloser, error) {
	if e.IsDirectory() {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	raw, err := z.OpenRaw(e)
	if err != nil {
		return nil, err
	}
	return NewEntryReader(e, raw, z.password)
}

// OpenRaw returns the stored bytes of e: the encryption header, if any,
// followed by the compressed data.
func (z *Reader) OpenRaw(e *Entry) (*io.SectionReader, error) {
	off, err := z.DataOffset(e)
	if err != nil {
		return nil, err
	}
	if end := off + int64(e.CompressedSize64); end > z.size || end < off {
		return nil, errors.Wrapf(ErrFormat, "entry %q: data ends at %d past %d byte zip", e.Name, end, z.size)
	}
	return io.NewSectionReader(z.r, off, int64(e.CompressedSize64)), nil
}

// DataOffset verifies that e has a local header and returns the offset of
// its data within the archive.
func (z *Reader) DataOffset(e *Entry) (int64, error) {
	return dataOffset(z.r, e)
}

func dataOffset(r io.ReaderAt, e *Entry) (int64, error) {
	var buf [fileHeaderLen]byte
	if _, err := r.ReadAt(buf[:], e.HeaderOffset); err != nil {
		return 0, errors.Wrapf(ErrFormat, "entry %q: local header at %d: %v", e.Name, e.HeaderOffset, err)
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != fileHeaderSignature {
		return 0, errors.Wrapf(ErrFormat, "entry %q: local header signature %#08x", e.Name, sig)
	}
	b = b[22:] // skip over most of the header
	filenameLen := int(b.uint16())
	extraLen := int(b.uint16())
	return e.HeaderOffset + int64(fileHeaderLen+filenameLen+extraLen), nil
}

// NewEntryReader decodes raw, the stored bytes of e, and verifies them at
// EOF. password is required when e is encrypted.
func NewEntryReader(e *Entry, raw io.Reader, password string) (io.ReadCloser, error) {
	dec, err := newDecrypter(e, password)
	if err != nil {
		return nil, err
	}
	src := raw
	if n := dec.headerSize(); n > 0 {
		header := make([]byte, n)
		if _, err := io.ReadFull(raw, header); err != nil {
			return nil, errors.Wrapf(ErrFormat, "entry %q: encryption header: %v", e.Name, err)
		}
		dec.reset(header)
		src = decryptReader{r: raw, dec: dec}
	}
	return newEntryReader(e, src)
}
