package zipfile

// Compression methods.
const (
	Store   uint16 = 0  // no compression
	Deflate uint16 = 8  // DEFLATE compressed
	Zstd    uint16 = 93 // Zstandard compressed
)

// General purpose flag bits.
const (
	FlagEncrypted      uint16 = 0x0001
	FlagDataDescriptor uint16 = 0x0008
	FlagUTF8           uint16 = 0x0800
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50
	dataDescriptorSignature  = 0x08074b50 // de-facto standard; required by OS X Finder
	splitSignature           = 0x08074b50 // first four bytes of a split archive
	fileHeaderLen            = 30         // + filename + extra
	directoryHeaderLen       = 46         // + filename + extra + comment
	directoryEndLen          = 22         // + comment
	dataDescriptorLen        = 16         // four uint32: descriptor signature, crc32, compressed size, size
	dataDescriptor64Len      = 24         // descriptor with 8 byte sizes
	directory64LocLen        = 20         //
	directory64EndLen        = 56         // + extra

	// Constants for the first byte in CreatorVersion.
	creatorFAT    = 0
	creatorUnix   = 3
	creatorNTFS   = 11
	creatorVFAT   = 14
	creatorMacOSX = 19

	// Version numbers.
	zipVersion10 = 10 // 1.0
	zipVersion20 = 20 // 2.0
	zipVersion45 = 45 // 4.5 (reads and writes zip64 archives)
	zipVersion63 = 63 // 6.3 (zstd)

	// Limits for non zip64 files.
	uint16max = (1 << 16) - 1
	uint32max = (1 << 32) - 1

	// Extra header IDs.
	//
	// IDs 0..31 are reserved for official use by PKWARE.
	// IDs above that range are defined by third-party vendors.
	// ZIP has no high precision timestamps and no defined timezone for the
	// date fields, so several competing extra records carry times instead.
	//
	// See http://mdfs.net/Docs/Comp/Archiving/Zip/ExtraField
	zip64ExtraID            = 0x0001 // Zip64 extended information
	ntfsExtraID             = 0x000a // NTFS
	extTimeExtraID          = 0x5455 // Extended timestamp
	infoZipUnixExtraID      = 0x5855 // Info-ZIP Unix extension (UX)
	infoZipNewUnixExtraID   = 0x7875 // Info-ZIP new Unix extension (ux)
	zip64PlaceholderExtraID = 0x9999 // room reserved for a later Zip64 record

	// Unix file type bits in the high half of ExternalAttrs.
	unixTypeMask = 0xf000
	unixDir      = 0x4000
	unixRegular  = 0x8000
	unixSymlink  = 0xa000

	msdosDir = 0x10
)

// FileType is the kind of filesystem object an entry describes.
type FileType uint8

const (
	TypeFile FileType = iota
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "file"
	}
}

type directoryEnd struct {
	diskNbr            uint32 // unused
	dirDiskNbr         uint32 // unused
	dirRecordsThisDisk uint64 // unused
	directoryRecords   uint64
	directorySize      uint64
	directoryOffset    uint64 // relative to file
	commentLen         uint16
	comment            string
}
