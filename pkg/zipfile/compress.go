package zipfile

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// DefaultCompressionLevel selects the codec's own default.
const DefaultCompressionLevel = flate.DefaultCompression

// checksum accumulates the CRC-32 and length of uncompressed data.
type checksum struct {
	crc uint32
	n   uint64
}

func (c *checksum) update(p []byte) {
	c.crc = crcUpdate(c.crc, p)
	c.n += uint64(len(p))
}

// compressor is the write-side strategy held for one entry. The set is
// closed: stored, deflate, zstd and null.
type compressor interface {
	io.Writer
	// finish flushes buffered output; the compressor is unusable afterwards.
	finish() error
	sum() checksum
}

func newCompressor(method uint16, level int, w io.Writer) (compressor, error) {
	switch method {
	case Store:
		return &storedCompressor{w: w}, nil
	case Deflate:
		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil, errors.Wrapf(err, "deflate level %d", level)
		}
		return &deflateCompressor{fw: fw}, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, "zstd encoder")
		}
		return &zstdCompressor{zw: zw}, nil
	}
	return nil, errors.Wrapf(ErrCompressionMethod, "method %d", method)
}

func zstdLevel(level int) zstd.EncoderLevel {
	if level <= 0 {
		return zstd.SpeedDefault
	}
	return zstd.EncoderLevelFromZstd(level)
}

type storedCompressor struct {
	w io.Writer
	checksum
}

func (c *storedCompressor) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.update(p[:n])
	return n, err
}

func (c *storedCompressor) finish() error { return nil }

func (c *storedCompressor) sum() checksum { return c.checksum }

type deflateCompressor struct {
	fw *flate.Writer
	checksum
}

func (c *deflateCompressor) Write(p []byte) (int, error) {
	c.update(p)
	return c.fw.Write(p)
}

func (c *deflateCompressor) finish() error { return c.fw.Close() }

func (c *deflateCompressor) sum() checksum { return c.checksum }

type zstdCompressor struct {
	zw *zstd.Encoder
	checksum
}

func (c *zstdCompressor) Write(p []byte) (int, error) {
	c.update(p)
	return c.zw.Write(p)
}

func (c *zstdCompressor) finish() error { return c.zw.Close() }

func (c *zstdCompressor) sum() checksum { return c.checksum }

// nullCompressor stands in while no entry is open.
type nullCompressor struct{}

func (nullCompressor) Write(p []byte) (int, error) {
	return 0, errors.New("zip: write with no open entry")
}

func (nullCompressor) finish() error { return nil }

func (nullCompressor) sum() checksum { return checksum{} }
