package zipfile

import (
	"github.com/pkg/errors"
)

// Zip64Extra carries the 64-bit values whose base header fields hold the
// 0xFFFFFFFF (or 0xFFFF for the disk number) sentinel.
//
// The record alone does not say which fields it contains; after merging raw
// bytes call Parse with the base header values.
type Zip64Extra struct {
	Size           uint64
	CompressedSize uint64
	HeaderOffset   uint64
	DiskStart      uint32

	hasSize       bool
	hasCompressed bool
	hasOffset     bool
	hasDisk       bool

	raw []byte
}

// Tag implements ExtraRecord.
func (z *Zip64Extra) Tag() uint16 { return zip64ExtraID }

func (z *Zip64Extra) merge(data []byte, local bool) error {
	z.raw = cloneBytes(data)
	return nil
}

// Parse fills the fields whose base values are sentinels, in the fixed order
// size, compressed size, header offset, disk start.
func (z *Zip64Extra) Parse(size, compressedSize, offset uint32, disk uint16) error {
	b := readBuf(z.raw)
	take := func(field string) (uint64, error) {
		if len(b) < 8 {
			return 0, errors.Wrapf(ErrFormat, "zip64 extra: missing %s", field)
		}
		return b.uint64(), nil
	}
	var err error
	if size == uint32max {
		if z.Size, err = take("size"); err != nil {
			return err
		}
		z.hasSize = true
	}
	if compressedSize == uint32max {
		if z.CompressedSize, err = take("compressed size"); err != nil {
			return err
		}
		z.hasCompressed = true
	}
	if offset == uint32max {
		if z.HeaderOffset, err = take("header offset"); err != nil {
			return err
		}
		z.hasOffset = true
	}
	if disk == uint16max {
		if len(b) < 4 {
			return errors.Wrap(ErrFormat, "zip64 extra: missing disk start")
		}
		z.DiskStart = b.uint32()
		z.hasDisk = true
	}
	return nil
}

// SetSize records the uncompressed size.
func (z *Zip64Extra) SetSize(v uint64) {
	z.Size, z.hasSize = v, true
}

// SetCompressedSize records the compressed size.
func (z *Zip64Extra) SetCompressedSize(v uint64) {
	z.CompressedSize, z.hasCompressed = v, true
}

// SetHeaderOffset records the local header offset.
func (z *Zip64Extra) SetHeaderOffset(v uint64) {
	z.HeaderOffset, z.hasOffset = v, true
}

// The local form always carries both sizes.
func (z *Zip64Extra) localBytes() []byte {
	buf := make([]byte, 16)
	b := writeBuf(buf)
	b.uint64(z.Size)
	b.uint64(z.CompressedSize)
	return buf
}

func (z *Zip64Extra) centralBytes() []byte {
	if !z.hasSize && !z.hasCompressed && !z.hasOffset && !z.hasDisk {
		return nil
	}
	buf := make([]byte, 0, 28)
	var tmp [8]byte
	put := func(v uint64) {
		b := writeBuf(tmp[:])
		b.uint64(v)
		buf = append(buf, tmp[:]...)
	}
	if z.hasSize {
		put(z.Size)
	}
	if z.hasCompressed {
		put(z.CompressedSize)
	}
	if z.hasOffset {
		put(z.HeaderOffset)
	}
	if z.hasDisk {
		b := writeBuf(tmp[:4])
		b.uint32(z.DiskStart)
		buf = append(buf, tmp[:4]...)
	}
	return buf
}

func (z *Zip64Extra) clone() ExtraRecord {
	c := *z
	c.raw = cloneBytes(z.raw)
	return &c
}

// Zip64Placeholder reserves the space of a local Zip64 record in a header
// that is written before the entry's sizes are known. It never appears in the
// central directory.
type Zip64Placeholder struct{}

// Tag implements ExtraRecord.
func (p *Zip64Placeholder) Tag() uint16 { return zip64PlaceholderExtraID }

func (p *Zip64Placeholder) merge(data []byte, local bool) error { return nil }

func (p *Zip64Placeholder) localBytes() []byte { return make([]byte, 16) }

func (p *Zip64Placeholder) centralBytes() []byte { return nil }

func (p *Zip64Placeholder) clone() ExtraRecord { return &Zip64Placeholder{} }
