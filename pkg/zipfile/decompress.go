package zipfile

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// maxInflateRetries bounds how often an empty read from the compressed
// source is retried before the stream is declared broken.
const maxInflateRetries = 5

// decompressor is the read-side strategy held for one entry. The set is
// closed: stored, inflate, zstd and null.
type decompressor interface {
	io.ReadCloser
}

func newDecompressor(method uint16, src io.Reader) (decompressor, error) {
	switch method {
	case Store:
		return io.NopCloser(src), nil
	case Deflate:
		return flate.NewReader(patientReader{src}), nil
	case Zstd:
		zr, err := zstd.NewReader(patientReader{src}, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		return zr.IOReadCloser(), nil
	}
	return nil, errors.Wrapf(ErrCompressionMethod, "method %d", method)
}

// nullDecompressor is used while no entry is open.
type nullDecompressor struct{}

func (nullDecompressor) Read(p []byte) (int, error) { return 0, io.EOF }

func (nullDecompressor) Close() error { return nil }

// patientReader retries reads that return neither data nor an error, the
// "needs more input" condition, and gives up with io.ErrNoProgress.
type patientReader struct {
	r io.Reader
}

func (p patientReader) Read(b []byte) (int, error) {
	for i := 0; i <= maxInflateRetries; i++ {
		n, err := p.r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// entryReader decodes one entry and verifies its size and CRC-32 at EOF.
type entryReader struct {
	name string
	dec  decompressor
	want uint64
	crc  uint32
	sum  checksum
	err  error
}

func newEntryReader(e *Entry, src io.Reader) (*entryReader, error) {
	dec, err := newDecompressor(e.Method, src)
	if err != nil {
		return nil, errors.Wrapf(err, "entry %q", e.Name)
	}
	return &entryReader{
		name: e.Name,
		dec:  dec,
		want: e.UncompressedSize64,
		crc:  e.CRC32,
	}, nil
}

func (r *entryReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.dec.Read(p)
	r.sum.update(p[:n])
	if r.sum.n > r.want {
		r.err = errors.Wrapf(ErrEntrySize, "entry %q: more than %d bytes", r.name, r.want)
		return n, r.err
	}
	switch {
	case err == io.EOF:
		if r.sum.n != r.want {
			err = errors.Wrapf(ErrChecksum, "entry %q: %d bytes, want %d", r.name, r.sum.n, r.want)
		} else if r.sum.crc != r.crc {
			err = errors.Wrapf(ErrChecksum, "entry %q: crc %#08x, want %#08x", r.name, r.sum.crc, r.crc)
		}
	case err != nil:
		err = errors.Wrapf(ErrCompression, "entry %q: %v", r.name, err)
	}
	r.err = err
	return n, err
}

func (r *entryReader) Close() error {
	return r.dec.Close()
}
