package zipfile

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Entry describes one member of an archive.
type Entry struct {
	Name    string
	Comment string
	NonUTF8 bool
	FType   FileType

	CreatorVersion uint16
	ReaderVersion  uint16
	Flags          uint16
	Method         uint16

	ModifiedTime uint16 // MS-DOS time; see Time
	ModifiedDate uint16 // MS-DOS date; see Time

	CRC32              uint32
	CompressedSize64   uint64
	UncompressedSize64 uint64
	HeaderOffset       int64
	DiskStart          uint32
	InternalAttrs      uint16
	ExternalAttrs      uint32
	Extra              *ExtraField

	UnixUID   uint32
	UnixGID   uint32
	UnixPerms os.FileMode // zero when the archive does not record permissions

	// Level is the compression level used when the entry is (re)compressed.
	// Zero selects the archive default.
	Level int

	localHeaderSize int
	dirty           bool
}

// NewEntry creates an entry for name. A trailing "/" makes it a directory.
func NewEntry(name string) (*Entry, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	e := &Entry{
		Name:           name,
		CreatorVersion: creatorUnix<<8 | zipVersion63,
		ReaderVersion:  zipVersion20,
		Method:         Deflate,
		Extra:          NewExtraField(),
		dirty:          true,
	}
	if strings.HasSuffix(name, "/") {
		e.FType = TypeDirectory
		e.Method = Store
	}
	e.SetTime(time.Now())
	e.setMode()
	return e, nil
}

func checkName(name string) error {
	if strings.HasPrefix(name, "/") {
		return errors.Wrapf(ErrEntryName, "%q is absolute", name)
	}
	if name == "" {
		return errors.Wrap(ErrEntryName, "empty name")
	}
	if len(name) > uint16max {
		return errors.Wrapf(ErrFieldTooLong, "name of %d bytes", len(name))
	}
	return nil
}

// IsDirectory reports whether e is a directory.
func (e *Entry) IsDirectory() bool { return e.FType == TypeDirectory }

// IsFile reports whether e is a regular file.
func (e *Entry) IsFile() bool { return e.FType == TypeFile }

// IsSymlink reports whether e is a symbolic link.
func (e *Entry) IsSymlink() bool { return e.FType == TypeSymlink }

// Encrypted reports whether the entry's data is encrypted.
func (e *Entry) Encrypted() bool { return e.Flags&FlagEncrypted != 0 }

// HasDataDescriptor reports whether crc and sizes follow the data.
func (e *Entry) HasDataDescriptor() bool { return e.Flags&FlagDataDescriptor != 0 }

// Dirty reports whether the entry changed since it was read.
func (e *Entry) Dirty() bool { return e.dirty }

// Time returns the modification time, preferring the extended timestamp and
// NTFS records over the 2-second DOS fields. It is zero when only an invalid
// DOS date is recorded.
func (e *Entry) Time() time.Time {
	if ut, ok := e.Extra.Get(extTimeExtraID).(*ExtTimeExtra); ok && ut.Flags&extTimeMod != 0 {
		return ut.MTime
	}
	if nt, ok := e.Extra.Get(ntfsExtraID).(*NTFSExtra); ok && !nt.MTime.IsZero() {
		return nt.MTime
	}
	if !validDosDate(e.ModifiedDate) {
		return time.Time{}
	}
	return msDosTimeToTime(e.ModifiedDate, e.ModifiedTime)
}

// SetTime sets the DOS fields and the timestamp record. An NTFS record is
// updated when present; otherwise an extended timestamp record is kept.
func (e *Entry) SetTime(t time.Time) {
	e.ModifiedDate, e.ModifiedTime = timeToMsDosTime(t)
	e.dirty = true
	if e.Extra == nil {
		e.Extra = NewExtraField()
	}
	if nt, ok := e.Extra.Get(ntfsExtraID).(*NTFSExtra); ok {
		nt.MTime = t
		return
	}
	ut, ok := e.Extra.Get(extTimeExtraID).(*ExtTimeExtra)
	if !ok {
		ut = new(ExtTimeExtra)
		e.Extra.Put(ut)
	}
	ut.SetMTime(t.Truncate(time.Second))
}

// Mode returns the entry's permission and type bits.
func (e *Entry) Mode() os.FileMode {
	perm := e.UnixPerms
	if perm == 0 {
		perm = 0o644
		if e.IsDirectory() {
			perm = 0o755
		}
	}
	switch e.FType {
	case TypeDirectory:
		return perm | os.ModeDir
	case TypeSymlink:
		return perm | os.ModeSymlink
	}
	return perm
}

// SetUnixPerms records permission bits and refreshes the external attributes.
func (e *Entry) SetUnixPerms(perm os.FileMode) {
	e.UnixPerms = perm.Perm()
	e.setMode()
	e.dirty = true
}

func (e *Entry) setMode() {
	var typ uint32 = unixRegular
	switch e.FType {
	case TypeDirectory:
		typ = unixDir
	case TypeSymlink:
		typ = unixSymlink
	}
	e.CreatorVersion = creatorUnix<<8 | e.CreatorVersion&0xff
	e.ExternalAttrs = (typ | uint32(e.Mode().Perm())) << 16
	if e.IsDirectory() {
		e.ExternalAttrs |= msdosDir
	}
}

// fsType is the host system recorded in the version-made-by field.
func (e *Entry) fsType() uint16 {
	return e.CreatorVersion >> 8
}

// applyAttrs derives type, permissions and ownership from the external
// attributes and extra records after a header was read.
func (e *Entry) applyAttrs() {
	e.FType = TypeFile
	if strings.HasSuffix(e.Name, "/") {
		e.FType = TypeDirectory
	}
	switch e.fsType() {
	case creatorUnix, creatorMacOSX:
		mode := e.ExternalAttrs >> 16
		switch mode & unixTypeMask {
		case unixDir:
			e.FType = TypeDirectory
		case unixSymlink:
			e.FType = TypeSymlink
		}
		e.UnixPerms = os.FileMode(mode & 0o7777)
	case creatorFAT, creatorNTFS, creatorVFAT:
		if e.ExternalAttrs&msdosDir != 0 {
			e.FType = TypeDirectory
		}
	}
	if ux, ok := e.Extra.Get(infoZipNewUnixExtraID).(*NewUnixExtra); ok {
		e.UnixUID, e.UnixGID = ux.UID, ux.GID
	} else if ux, ok := e.Extra.Get(infoZipUnixExtraID).(*UnixExtra); ok {
		e.UnixUID, e.UnixGID = uint32(ux.UID), uint32(ux.GID)
	}
}

// SetOwner records uid and gid in an Info-ZIP "ux" record.
func (e *Entry) SetOwner(uid, gid uint32) {
	e.UnixUID, e.UnixGID = uid, gid
	e.Extra.Put(&NewUnixExtra{UID: uid, GID: gid})
	e.dirty = true
}

// SetComment replaces the entry comment.
func (e *Entry) SetComment(comment string) {
	e.Comment = comment
	e.dirty = true
}

// Equal compares the attributes that decide whether an archive must be
// rewritten: name, sizes, crc, method, time and type.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Name == o.Name &&
		e.CompressedSize64 == o.CompressedSize64 &&
		e.CRC32 == o.CRC32 &&
		e.Method == o.Method &&
		e.UncompressedSize64 == o.UncompressedSize64 &&
		e.ModifiedDate == o.ModifiedDate &&
		e.ModifiedTime == o.ModifiedTime &&
		e.FType == o.FType
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Extra = e.Extra.Clone()
	return &c
}

// versionNeeded derives the version-needed-to-extract field.
func (e *Entry) versionNeeded() uint16 {
	switch {
	case e.Method == Zstd:
		return zipVersion63
	case e.Extra.Has(zip64ExtraID):
		return zipVersion45
	case e.Method == Deflate, e.IsDirectory(), e.Encrypted():
		return zipVersion20
	}
	return zipVersion10
}

// prepareLocalZip64 arranges the extra field for a local header. Sizes that
// overflow 32 bits move into a Zip64 record. When provisional is set and
// zip64 support is on, a placeholder of the same size reserves room so the
// final rewrite can add the record without shifting data.
func (e *Entry) prepareLocalZip64(zip64 bool, provisional bool) {
	need := e.UncompressedSize64 >= uint32max || e.CompressedSize64 >= uint32max
	switch {
	case need:
		e.Extra.Delete(zip64PlaceholderExtraID)
		z := new(Zip64Extra)
		z.SetSize(e.UncompressedSize64)
		z.SetCompressedSize(e.CompressedSize64)
		e.Extra.Put(z)
	case provisional:
		e.Extra.Delete(zip64ExtraID)
		if zip64 {
			e.Extra.Put(new(Zip64Placeholder))
		}
	default:
		e.Extra.Delete(zip64ExtraID)
	}
	e.ReaderVersion = e.versionNeeded()
}

// prepareCentralZip64 keeps a Zip64 record holding exactly the values that
// overflow their 32-bit central directory fields.
func (e *Entry) prepareCentralZip64() {
	z := new(Zip64Extra)
	if e.UncompressedSize64 >= uint32max {
		z.SetSize(e.UncompressedSize64)
	}
	if e.CompressedSize64 >= uint32max {
		z.SetCompressedSize(e.CompressedSize64)
	}
	if uint64(e.HeaderOffset) >= uint32max {
		z.SetHeaderOffset(uint64(e.HeaderOffset))
	}
	if z.centralBytes() == nil {
		e.Extra.Delete(zip64ExtraID)
	} else {
		e.Extra.Put(z)
	}
	e.ReaderVersion = e.versionNeeded()
}

// needsZip64 reports whether the entry forces the Zip64 end record.
func (e *Entry) needsZip64() bool {
	return e.Extra.Has(zip64ExtraID) ||
		e.UncompressedSize64 >= uint32max ||
		e.CompressedSize64 >= uint32max ||
		uint64(e.HeaderOffset) >= uint32max
}

// utf8Flags sets bit 11 when the name or comment needs UTF-8.
func (e *Entry) utf8Flags() {
	_, req1 := detectUTF8(e.Name)
	_, req2 := detectUTF8(e.Comment)
	if (req1 || req2) && !e.NonUTF8 {
		e.Flags |= FlagUTF8
	}
}
