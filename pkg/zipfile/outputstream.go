package zipfile

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

// OutputStream writes an archive sequentially. Each local header is written
// provisionally when its entry starts and rewritten in place, with the final
// CRC-32 and sizes, when the stream is closed.
type OutputStream struct {
	w      io.WriteSeeker
	closer io.Closer
	pos    int64
	cd     *CentralDirectory
	logger *slog.Logger

	level    int
	zip64    bool
	password string

	current   *Entry
	comp      compressor
	enc       encrypter
	dataStart int64
	closed    bool
}

// OutputOption configures an OutputStream.
type OutputOption func(*OutputStream)

// WithOutputConfig applies the level, Zip64, password, ordering and logger
// settings of cfg.
func WithOutputConfig(cfg Config) OutputOption {
	return func(s *OutputStream) {
		s.level = cfg.CompressionLevel
		s.zip64 = cfg.Zip64
		s.password = cfg.Password
		s.cd = NewCentralDirectory(cfg.CaseInsensitive, cfg.SortEntries)
		s.logger = cfg.logger()
	}
}

// WithOutputPassword encrypts every entry with the traditional cipher.
func WithOutputPassword(password string) OutputOption {
	return func(s *OutputStream) {
		s.password = password
	}
}

// WithoutZip64 disables the room reserved for Zip64 records in local headers.
func WithoutZip64() OutputOption {
	return func(s *OutputStream) {
		s.zip64 = false
	}
}

// NewOutputStream writes an archive to w starting at its current position.
func NewOutputStream(w io.WriteSeeker, opts ...OutputOption) (*OutputStream, error) {
	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "output stream position")
	}
	s := &OutputStream{
		w:      w,
		pos:    pos,
		cd:     NewCentralDirectory(false, false),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  DefaultCompressionLevel,
		zip64:  true,
		comp:   nullCompressor{},
		enc:    nullEncrypter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateOutputStream creates or truncates the file at path. Close releases it.
func CreateOutputStream(path string, opts ...OutputOption) (*OutputStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create output stream")
	}
	s, err := NewOutputStream(f, opts...)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	s.closer = f
	return s, nil
}

func (s *OutputStream) Write(p []byte) (int, error) {
	return s.comp.Write(p)
}

// write is the sink every byte of the archive passes through.
func (s *OutputStream) write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.pos += int64(n)
	return n, err
}

type sinkWriter struct{ s *OutputStream }

func (w sinkWriter) Write(p []byte) (int, error) { return w.s.write(p) }

// SetComment sets the archive comment.
func (s *OutputStream) SetComment(comment string) {
	s.cd.Comment = comment
}

// Create starts a new entry called name with default settings.
func (s *OutputStream) Create(name string) (io.Writer, error) {
	e, err := NewEntry(name)
	if err != nil {
		return nil, err
	}
	if err := s.PutNextEntry(e); err != nil {
		return nil, err
	}
	return s, nil
}

// PutNextEntry finishes the current entry and starts e. Data written next
// is compressed with e.Method and, when a password is set, encrypted.
func (s *OutputStream) PutNextEntry(e *Entry) error {
	if s.closed {
		return errors.New("zip: output stream closed")
	}
	if err := e.checkFieldLengths(nil, true); err != nil {
		return err
	}
	if err := s.finishEntry(); err != nil {
		return err
	}
	if e.Extra == nil {
		e.Extra = NewExtraField()
	}
	if e.IsDirectory() {
		e.Method = Store
	}
	e.Flags &^= FlagEncrypted | FlagDataDescriptor
	enc := encrypter(nullEncrypter{})
	if s.password != "" && !e.IsDirectory() {
		enc = newTraditionalEncrypter(s.password)
		e.Flags |= FlagEncrypted | FlagDataDescriptor
	}
	e.utf8Flags()
	e.CRC32, e.CompressedSize64, e.UncompressedSize64 = 0, 0, 0
	e.HeaderOffset = s.pos
	e.prepareLocalZip64(s.zip64, true)
	if err := e.writeLocal(sinkWriter{s}); err != nil {
		return err
	}
	s.dataStart = s.pos

	level := e.Level
	if level == 0 {
		level = s.level
	}
	header, err := enc.header(e.ModifiedTime)
	if err != nil {
		return err
	}
	if _, err := s.write(header); err != nil {
		return errors.Wrapf(err, "write encryption header for %q", e.Name)
	}
	comp, err := newCompressor(e.Method, level, &encryptWriter{w: sinkWriter{s}, enc: enc})
	if err != nil {
		return errors.Wrapf(err, "entry %q", e.Name)
	}
	s.cd.Entries.Put(e)
	s.current, s.comp, s.enc = e, comp, enc
	s.logger.Debug("put entry", "name", e.Name, "method", e.Method, "offset", e.HeaderOffset)
	return nil
}

// finishEntry flushes the current entry and records its CRC-32 and sizes.
func (s *OutputStream) finishEntry() error {
	e := s.current
	if e == nil {
		return nil
	}
	s.current = nil
	if err := s.comp.finish(); err != nil {
		return errors.Wrapf(ErrCompression, "entry %q: %v", e.Name, err)
	}
	sum := s.comp.sum()
	e.CRC32 = sum.crc
	e.UncompressedSize64 = sum.n
	e.CompressedSize64 = uint64(s.pos - s.dataStart)
	if _, err := s.write(s.enc.dataDescriptor(e)); err != nil {
		return errors.Wrapf(err, "write data descriptor for %q", e.Name)
	}
	s.comp, s.enc = nullCompressor{}, nullEncrypter{}
	return nil
}

// CopyRawEntry writes e with its stored bytes taken verbatim from src, the
// archive e was read from. Nothing is decompressed or re-encrypted.
func (s *OutputStream) CopyRawEntry(e *Entry, src io.ReaderAt) error {
	if s.closed {
		return errors.New("zip: output stream closed")
	}
	if err := s.finishEntry(); err != nil {
		return err
	}
	off, err := dataOffset(src, e)
	if err != nil {
		return err
	}
	c := e.Clone()
	c.HeaderOffset = s.pos
	c.utf8Flags()
	c.prepareLocalZip64(s.zip64, false)
	if err := c.writeLocal(sinkWriter{s}); err != nil {
		return err
	}
	n, err := io.Copy(sinkWriter{s}, io.NewSectionReader(src, off, int64(c.CompressedSize64)))
	if err != nil {
		return errors.Wrapf(err, "copy entry %q", c.Name)
	}
	if n != int64(c.CompressedSize64) {
		return errors.Wrapf(ErrFormat, "entry %q: copied %d of %d bytes", c.Name, n, c.CompressedSize64)
	}
	if c.HasDataDescriptor() {
		if _, err := s.write(c.dataDescriptor()); err != nil {
			return errors.Wrapf(err, "write data descriptor for %q", c.Name)
		}
	}
	s.cd.Entries.Put(c)
	s.logger.Debug("copy entry", "name", c.Name, "offset", c.HeaderOffset)
	return nil
}

// Close finishes the current entry, rewrites every local header with its
// final values and writes the central directory.
func (s *OutputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.finish()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close output stream")
		}
	}
	return err
}

func (s *OutputStream) finish() error {
	if err := s.finishEntry(); err != nil {
		return err
	}
	end := s.pos
	for _, e := range s.cd.Entries.Entries() {
		if _, err := s.w.Seek(e.HeaderOffset, io.SeekStart); err != nil {
			return errors.Wrapf(err, "seek to local header of %q", e.Name)
		}
		e.prepareLocalZip64(s.zip64, false)
		if err := e.rewriteLocal(s.w); err != nil {
			return err
		}
	}
	if _, err := s.w.Seek(end, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek to central directory")
	}
	if _, err := s.cd.WriteTo(sinkWriter{s}, end); err != nil {
		return err
	}
	s.logger.Debug("wrote central directory", "entries", s.cd.Entries.Len(), "offset", end)
	return nil
}
