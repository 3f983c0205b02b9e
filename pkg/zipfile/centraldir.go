package zipfile

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// CentralDirectory is the trailing index of an archive: its entries and the
// archive comment.
type CentralDirectory struct {
	Entries *EntrySet
	Comment string
}

// NewCentralDirectory returns an empty directory whose entry set uses the
// given key folding and ordering.
func NewCentralDirectory(caseInsensitive, sorted bool) *CentralDirectory {
	return &CentralDirectory{Entries: NewEntrySet(caseInsensitive, sorted)}
}

// ReadFrom locates the end of central directory record in the last bytes of
// r, follows the Zip64 locator when present and reads every entry header.
func (cd *CentralDirectory) ReadFrom(r io.ReaderAt, size int64) error {
	var end *directoryEnd
	var endOffset int64
	var err error
	for i, bLen := range []int64{1024, 65 * 1024} {
		if bLen > size {
			bLen = size
		}
		buf := make([]byte, int(bLen))
		if _, err := r.ReadAt(buf, size-bLen); err != nil && err != io.EOF {
			return errors.Wrap(err, "read end of central directory")
		}
		if p := findSignatureInBlock(buf); p >= 0 {
			end, err = readDirectoryEnd(buf[p:])
			if err != nil {
				return err
			}
			endOffset = size - bLen + int64(p)
			break
		}
		if i == 1 || bLen == size {
			return errors.Wrapf(ErrFormat, "end of central directory signature not found in %d bytes", size)
		}
	}

	if p, err := findDirectory64End(r, endOffset); err == nil && p >= 0 {
		if err := readDirectory64End(r, p, end); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if end.directoryRecords > uint64(size)/directoryHeaderLen {
		return errors.Wrapf(ErrFormat, "TOC declares impossible %d files in %d byte zip", end.directoryRecords, size)
	}
	if o := int64(end.directoryOffset); o < 0 || o >= size {
		return errors.Wrapf(ErrFormat, "central directory offset %d outside %d byte zip", o, size)
	}

	cd.Comment = end.comment
	if cd.Entries == nil {
		cd.Entries = NewEntrySet(false, false)
	}
	rs := bufio.NewReader(io.NewSectionReader(r, int64(end.directoryOffset), size-int64(end.directoryOffset)))
	for i := uint64(0); i < end.directoryRecords; i++ {
		e := new(Entry)
		if err := e.readCentral(rs); err != nil {
			return errors.Wrapf(err, "central directory record %d of %d", i+1, end.directoryRecords)
		}
		cd.Entries.Put(e)
	}
	return nil
}

func readDirectoryEnd(buf []byte) (dir *directoryEnd, err error) {
	if len(buf) < directoryEndLen {
		return nil, errors.Wrapf(ErrFormat, "end of central directory: %d bytes", len(buf))
	}
	// read header into struct
	b := readBuf(buf[4:]) // skip signature
	d := &directoryEnd{
		diskNbr:            uint32(b.uint16()),
		dirDiskNbr:         uint32(b.uint16()),
		dirRecordsThisDisk: uint64(b.uint16()),
		directoryRecords:   uint64(b.uint16()),
		directorySize:      uint64(b.uint32()),
		directoryOffset:    uint64(b.uint32()),
		commentLen:         b.uint16(),
	}
	l := int(d.commentLen)
	if l > len(b) {
		return nil, errors.Wrap(ErrFormat, "invalid comment length")
	}
	d.comment = string(b[:l])

	return d, nil
}

func findDirectory64End(r io.ReaderAt, directoryEndOffset int64) (int64, error) {
	locOffset := directoryEndOffset - directory64LocLen
	if locOffset < 0 {
		return -1, nil // no need to look for a header outside the file
	}
	buf := make([]byte, directory64LocLen)
	if _, err := r.ReadAt(buf, locOffset); err != nil {
		return -1, errors.Wrap(err, "read zip64 locator")
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != directory64LocSignature {
		return -1, nil
	}
	if b.uint32() != 0 { // number of the disk with the start of the zip64 end of central directory
		return -1, nil // the file is not a valid zip64-file
	}
	p := b.uint64()      // relative offset of the zip64 end of central directory record
	if b.uint32() != 1 { // total number of disks
		return -1, nil // the file is not a valid zip64-file
	}
	return int64(p), nil
}

func readDirectory64End(r io.ReaderAt, offset int64, d *directoryEnd) (err error) {
	buf := make([]byte, directory64EndLen)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return errors.Wrapf(ErrFormat, "zip64 end of central directory at %d: %v", offset, err)
	}

	b := readBuf(buf)
	if sig := b.uint32(); sig != directory64EndSignature {
		return errors.Wrapf(ErrFormat, "zip64 end of central directory: signature %#08x, want %#08x", sig, directory64EndSignature)
	}

	b = b[12:]                        // skip dir size, version and version needed (uint64 + 2x uint16)
	d.diskNbr = b.uint32()            // number of this disk
	d.dirDiskNbr = b.uint32()         // number of the disk with the start of the central directory
	d.dirRecordsThisDisk = b.uint64() // total number of entries in the central directory on this disk
	d.directoryRecords = b.uint64()   // total number of entries in the central directory
	d.directorySize = b.uint64()      // size of the central directory
	d.directoryOffset = b.uint64()    // offset of start of central directory with respect to the starting disk number

	return nil
}

func findSignatureInBlock(b []byte) int {
	for i := len(b) - directoryEndLen; i >= 0; i-- {
		// defined from directoryEndSignature in struct.go
		if b[i] == 'P' && b[i+1] == 'K' && b[i+2] == 0x05 && b[i+3] == 0x06 {
			// n is length of comment
			n := int(b[i+directoryEndLen-2]) | int(b[i+directoryEndLen-1])<<8
			if n+directoryEndLen+i <= len(b) {
				return i
			}
		}
	}
	return -1
}

// WriteTo writes every entry's central header followed by the end records.
// start is the offset of the directory within the archive; entries must
// already carry their final header offsets.
func (cd *CentralDirectory) WriteTo(w io.Writer, start int64) (int64, error) {
	var written int64
	zip64 := false
	entries := cd.Entries.Entries()
	for _, e := range entries {
		n, err := e.writeCentral(w)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if e.needsZip64() {
			zip64 = true
		}
	}

	records := uint64(len(entries))
	size := uint64(written)
	offset := uint64(start)
	if records >= uint16max || size >= uint32max || offset >= uint32max {
		zip64 = true
	}

	comment := cd.Comment
	if len(comment) > uint16max {
		return written, errors.Wrapf(ErrFieldTooLong, "archive comment of %d bytes", len(comment))
	}

	var buf []byte
	if zip64 {
		buf = make([]byte, directory64EndLen+directory64LocLen+directoryEndLen+len(comment))
	} else {
		buf = make([]byte, directoryEndLen+len(comment))
	}
	b := writeBuf(buf)
	if zip64 {
		// zip64 end of central directory record
		b.uint32(directory64EndSignature)
		b.uint64(directory64EndLen - 12)        // length minus signature (uint32) and length fields (uint64)
		b.uint16(creatorUnix<<8 | zipVersion45) // version made by
		b.uint16(zipVersion45)                  // version needed to extract
		b.uint32(0)                             // number of this disk
		b.uint32(0)                             // number of the disk with the start of the central directory
		b.uint64(records)                       // total number of entries in the central directory on this disk
		b.uint64(records)                       // total number of entries in the central directory
		b.uint64(size)                          // size of the central directory
		b.uint64(offset)                        // offset of start of central directory with respect to the starting disk number

		// zip64 end of central directory locator
		b.uint32(directory64LocSignature)
		b.uint32(0)                    // number of the disk with the start of the zip64 end of central directory
		b.uint64(uint64(start) + size) // relative offset of the zip64 end of central directory record
		b.uint32(1)                    // total number of disks

		b.uint32(directoryEndSignature)
		b.uint16(0)
		b.uint16(0)
		b.uint16(uint16max)
		b.uint16(uint16max)
		b.uint32(uint32max)
		b.uint32(uint32max)
	} else {
		b.uint32(directoryEndSignature)
		b.uint16(0)
		b.uint16(0)
		b.uint16(uint16(records))
		b.uint16(uint16(records))
		b.uint32(uint32(size))
		b.uint32(uint32(offset))
	}
	b.uint16(uint16(len(comment)))
	b.bytes([]byte(comment))

	n, err := w.Write(buf)
	written += int64(n)
	if err != nil {
		return written, errors.Wrap(err, "write end of central directory")
	}
	return written, nil
}
