package zipfile

import (
	"io"

	"github.com/pkg/errors"
)

// readCentral reads one central directory header from r.
func (e *Entry) readCentral(r io.Reader) error {
	var buf [directoryHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.Wrapf(ErrFormat, "central directory header: %v", err)
	}
	b := readBuf(buf[:])
	if sig := b.uint32(); sig != directoryHeaderSignature {
		return errors.Wrapf(ErrFormat, "central directory header: signature %#08x, want %#08x", sig, directoryHeaderSignature)
	}
	e.CreatorVersion = b.uint16()
	e.ReaderVersion = b.uint16()
	e.Flags = b.uint16()
	e.Method = b.uint16()
	e.ModifiedTime = b.uint16()
	e.ModifiedDate = b.uint16()
	e.CRC32 = b.uint32()
	compressedSize := b.uint32()
	size := b.uint32()
	filenameLen := int(b.uint16())
	extraLen := int(b.uint16())
	commentLen := int(b.uint16())
	diskStart := b.uint16()
	e.InternalAttrs = b.uint16()
	e.ExternalAttrs = b.uint32()
	offset := b.uint32()

	d := make([]byte, filenameLen+extraLen+commentLen)
	if _, err := io.ReadFull(r, d); err != nil {
		return errors.Wrapf(ErrFormat, "central directory header: name, extra and comment: %v", err)
	}
	e.Name = string(d[:filenameLen])
	e.Comment = string(d[filenameLen+extraLen:])
	if err := checkName(e.Name); err != nil {
		return err
	}

	extra, err := ParseExtraField(d[filenameLen:filenameLen+extraLen], false)
	if err != nil {
		return errors.Wrapf(err, "entry %q", e.Name)
	}
	e.Extra = extra
	e.CompressedSize64 = uint64(compressedSize)
	e.UncompressedSize64 = uint64(size)
	e.HeaderOffset = int64(offset)
	e.DiskStart = uint32(diskStart)
	if z, ok := extra.Get(zip64ExtraID).(*Zip64Extra); ok {
		if err := z.Parse(size, compressedSize, offset, diskStart); err != nil {
			return errors.Wrapf(err, "entry %q", e.Name)
		}
		if z.hasSize {
			e.UncompressedSize64 = z.Size
		}
		if z.hasCompressed {
			e.CompressedSize64 = z.CompressedSize
		}
		if z.hasOffset {
			e.HeaderOffset = int64(z.HeaderOffset)
		}
		if z.hasDisk {
			e.DiskStart = z.DiskStart
		}
	}

	e.detectEncoding()
	e.applyAttrs()
	e.dirty = false
	return nil
}

// readLocal reads one local file header from r. It returns io.EOF when r is
// positioned at a central directory header or the end of the data.
func (e *Entry) readLocal(r io.Reader) error {
	var buf [fileHeaderLen]byte
	n, err := io.ReadFull(r, buf[:])
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return errors.Wrapf(ErrFormat, "local header: read %d of %d bytes: %v", n, fileHeaderLen, err)
	}
	b := readBuf(buf[:])
	switch sig := b.uint32(); sig {
	case fileHeaderSignature:
	case directoryHeaderSignature, directoryEndSignature, directory64EndSignature:
		return io.EOF
	default:
		return errors.Wrapf(ErrFormat, "local header: signature %#08x, want %#08x", sig, fileHeaderSignature)
	}
	e.ReaderVersion = b.uint16()
	e.Flags = b.uint16()
	e.Method = b.uint16()
	e.ModifiedTime = b.uint16()
	e.ModifiedDate = b.uint16()
	e.CRC32 = b.uint32()
	compressedSize := b.uint32()
	size := b.uint32()
	filenameLen := int(b.uint16())
	extraLen := int(b.uint16())

	d := make([]byte, filenameLen+extraLen)
	if _, err := io.ReadFull(r, d); err != nil {
		return errors.Wrapf(ErrFormat, "local header: name and extra: %v", err)
	}
	e.Name = string(d[:filenameLen])
	if err := checkName(e.Name); err != nil {
		return err
	}
	extra, err := ParseExtraField(d[filenameLen:], true)
	if err != nil {
		return errors.Wrapf(err, "entry %q", e.Name)
	}
	e.Extra = extra
	e.CompressedSize64 = uint64(compressedSize)
	e.UncompressedSize64 = uint64(size)
	if z, ok := extra.Get(zip64ExtraID).(*Zip64Extra); ok {
		if err := z.Parse(size, compressedSize, 0, 0); err != nil {
			return errors.Wrapf(err, "entry %q", e.Name)
		}
		if z.hasSize {
			e.UncompressedSize64 = z.Size
		}
		if z.hasCompressed {
			e.CompressedSize64 = z.CompressedSize
		}
	}
	e.localHeaderSize = fileHeaderLen + filenameLen + extraLen
	e.detectEncoding()
	e.applyAttrs()
	e.dirty = false
	return nil
}

func (e *Entry) detectEncoding() {
	// Determine the character encoding.
	utf8Valid1, utf8Require1 := detectUTF8(e.Name)
	utf8Valid2, utf8Require2 := detectUTF8(e.Comment)
	switch {
	case !utf8Valid1 || !utf8Valid2:
		// Name and Comment definitely not UTF-8.
		e.NonUTF8 = true
	case !utf8Require1 && !utf8Require2:
		// Name and Comment use only single-byte runes that overlap with UTF-8.
		e.NonUTF8 = false
	default:
		// Might be UTF-8, might be some other encoding; preserve existing flag.
		// Some ZIP writers use UTF-8 encoding without setting the UTF-8 flag.
		// Since it is impossible to always distinguish valid UTF-8 from some
		// other encoding (e.g., GBK or Shift-JIS), we trust the flag.
		e.NonUTF8 = e.Flags&FlagUTF8 == 0
	}
}

// localHeader encodes the local file header. Callers prepare the Zip64
// records first.
func (e *Entry) localHeader() ([]byte, error) {
	extra := e.Extra.Local()
	if err := e.checkFieldLengths(extra, false); err != nil {
		return nil, err
	}
	buf := make([]byte, fileHeaderLen+len(e.Name)+len(extra))
	b := writeBuf(buf)
	b.uint32(fileHeaderSignature)
	b.uint16(e.ReaderVersion)
	b.uint16(e.Flags)
	b.uint16(e.Method)
	b.uint16(e.ModifiedTime)
	b.uint16(e.ModifiedDate)
	b.uint32(e.CRC32)
	if e.Extra.Has(zip64ExtraID) {
		b.uint32(uint32max)
		b.uint32(uint32max)
	} else {
		b.uint32(uint32(e.CompressedSize64))
		b.uint32(uint32(e.UncompressedSize64))
	}
	b.uint16(uint16(len(e.Name)))
	b.uint16(uint16(len(extra)))
	b.bytes([]byte(e.Name))
	b.bytes(extra)
	return buf, nil
}

// writeLocal writes the local header and remembers its size.
func (e *Entry) writeLocal(w io.Writer) error {
	hdr, err := e.localHeader()
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return errors.Wrapf(err, "write local header for %q", e.Name)
	}
	e.localHeaderSize = len(hdr)
	return nil
}

// rewriteLocal writes the final local header over the provisional one. The
// header must keep its size or the data that follows would be corrupted.
func (e *Entry) rewriteLocal(w io.Writer) error {
	hdr, err := e.localHeader()
	if err != nil {
		return err
	}
	if len(hdr) != e.localHeaderSize {
		return errors.Wrapf(ErrHeaderSizeMismatch, "entry %q: %d bytes, was %d", e.Name, len(hdr), e.localHeaderSize)
	}
	if _, err := w.Write(hdr); err != nil {
		return errors.Wrapf(err, "rewrite local header for %q", e.Name)
	}
	return nil
}

// LocalHeaderSize returns the size of the local header as last written or
// read, or as it would be encoded now.
func (e *Entry) LocalHeaderSize() int {
	if e.localHeaderSize > 0 {
		return e.localHeaderSize
	}
	return fileHeaderLen + len(e.Name) + len(e.Extra.Local())
}

// centralHeader encodes the central directory header. Callers prepare the
// Zip64 record first.
func (e *Entry) centralHeader() ([]byte, error) {
	extra := e.Extra.Central()
	if err := e.checkFieldLengths(extra, true); err != nil {
		return nil, err
	}
	buf := make([]byte, directoryHeaderLen+len(e.Name)+len(extra)+len(e.Comment))
	b := writeBuf(buf)
	b.uint32(directoryHeaderSignature)
	b.uint16(e.CreatorVersion)
	b.uint16(e.ReaderVersion)
	b.uint16(e.Flags)
	b.uint16(e.Method)
	b.uint16(e.ModifiedTime)
	b.uint16(e.ModifiedDate)
	b.uint32(e.CRC32)
	b.uint32(clamp32(e.CompressedSize64))
	b.uint32(clamp32(e.UncompressedSize64))
	b.uint16(uint16(len(e.Name)))
	b.uint16(uint16(len(extra)))
	b.uint16(uint16(len(e.Comment)))
	b.uint16(uint16(e.DiskStart))
	b.uint16(e.InternalAttrs)
	b.uint32(e.ExternalAttrs)
	b.uint32(clamp32(uint64(e.HeaderOffset)))
	b.bytes([]byte(e.Name))
	b.bytes(extra)
	b.bytes([]byte(e.Comment))
	return buf, nil
}

// checkFieldLengths rejects a name, extra field or comment that does not fit
// its 16-bit length field.
func (e *Entry) checkFieldLengths(extra []byte, central bool) error {
	switch {
	case len(e.Name) > uint16max:
		return errors.Wrapf(ErrFieldTooLong, "entry name of %d bytes", len(e.Name))
	case len(extra) > uint16max:
		return errors.Wrapf(ErrFieldTooLong, "entry %q: extra field of %d bytes", e.Name, len(extra))
	case central && len(e.Comment) > uint16max:
		return errors.Wrapf(ErrFieldTooLong, "entry %q: comment of %d bytes", e.Name, len(e.Comment))
	}
	return nil
}

// writeCentral writes the central directory header.
func (e *Entry) writeCentral(w io.Writer) (int, error) {
	e.prepareCentralZip64()
	hdr, err := e.centralHeader()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(hdr)
	if err != nil {
		return n, errors.Wrapf(err, "write central header for %q", e.Name)
	}
	return n, nil
}

// dataDescriptor encodes the trailing crc and sizes record.
func (e *Entry) dataDescriptor() []byte {
	if e.descriptor64() {
		buf := make([]byte, dataDescriptor64Len)
		b := writeBuf(buf)
		b.uint32(dataDescriptorSignature)
		b.uint32(e.CRC32)
		b.uint64(e.CompressedSize64)
		b.uint64(e.UncompressedSize64)
		return buf
	}
	buf := make([]byte, dataDescriptorLen)
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(e.CRC32)
	b.uint32(uint32(e.CompressedSize64))
	b.uint32(uint32(e.UncompressedSize64))
	return buf
}

// dataDescriptorSize returns the length of the descriptor following the
// data, zero when bit 3 is clear.
func (e *Entry) dataDescriptorSize() int64 {
	if !e.HasDataDescriptor() {
		return 0
	}
	if e.descriptor64() {
		return dataDescriptor64Len
	}
	return dataDescriptorLen
}

func (e *Entry) descriptor64() bool {
	return e.Extra.Has(zip64ExtraID) ||
		e.UncompressedSize64 >= uint32max ||
		e.CompressedSize64 >= uint32max
}
