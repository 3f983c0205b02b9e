package zipfile

import (
	"github.com/pkg/errors"
)

var (
	// ErrFormat is returned when a record signature does not match or a
	// fixed-size record is cut short.
	ErrFormat = errors.New("zip: not a valid zip file")

	// ErrChecksum is returned when decoded data does not match the CRC-32 or
	// size recorded for the entry.
	ErrChecksum = errors.New("zip: checksum error")

	// ErrCompression is returned when a compressed stream is malformed.
	ErrCompression = errors.New("zip: compression error")

	// ErrCompressionMethod is returned for unsupported compression method codes.
	ErrCompressionMethod = errors.New("zip: unsupported compression algorithm")

	// ErrPasswordRequired is returned when an encrypted entry is opened without a password.
	ErrPasswordRequired = errors.New("zip: password required")

	// ErrHeaderSizeMismatch is returned when a local header changes size
	// between its provisional and final write.
	ErrHeaderSizeMismatch = errors.New("zip: local header size changed")

	// ErrEntryNotFound is returned when a named entry does not exist.
	ErrEntryNotFound = errors.New("zip: entry not found")

	// ErrEntryExists is returned when an entry with the same name already exists.
	ErrEntryExists = errors.New("zip: entry already exists")

	// ErrEntryName is returned for names that begin with "/".
	ErrEntryName = errors.New("zip: illegal entry name")

	// ErrFieldTooLong is returned when a name, extra field or comment does
	// not fit its 16-bit length field.
	ErrFieldTooLong = errors.New("zip: header field too long")

	// ErrUnsafeName is returned when an entry would be extracted outside the
	// destination directory.
	ErrUnsafeName = errors.New("zip: unsafe entry name")

	// ErrDestinationExists is returned when an extraction target already exists.
	ErrDestinationExists = errors.New("zip: destination exists")

	// ErrStreamingEntry is returned when a sequential reader meets an entry
	// whose sizes live only in a trailing data descriptor.
	ErrStreamingEntry = errors.New("zip: entry sizes unknown, use the archive reader")

	// ErrSplitArgument is returned for invalid split parameters.
	ErrSplitArgument = errors.New("zip: invalid split argument")

	// ErrEntrySize is returned when an entry's declared size does not match its data.
	ErrEntrySize = errors.New("zip: entry size mismatch")
)
