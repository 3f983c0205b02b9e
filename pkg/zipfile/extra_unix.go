package zipfile

import (
	"time"

	"github.com/pkg/errors"
)

// UnixExtra is the legacy Info-ZIP Unix record ("UX"). The local form holds
// access and modification times plus 16-bit ownership; the central form only
// the times.
type UnixExtra struct {
	ATime time.Time
	MTime time.Time
	UID   uint16
	GID   uint16
}

// Tag implements ExtraRecord.
func (u *UnixExtra) Tag() uint16 { return infoZipUnixExtraID }

func (u *UnixExtra) merge(data []byte, local bool) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 8 {
		return errors.Wrapf(ErrFormat, "unix extra: %d bytes", len(data))
	}
	b := readBuf(data)
	u.ATime = time.Unix(int64(int32(b.uint32())), 0)
	u.MTime = time.Unix(int64(int32(b.uint32())), 0)
	if len(b) >= 4 {
		u.UID = b.uint16()
		u.GID = b.uint16()
	}
	return nil
}

func (u *UnixExtra) localBytes() []byte {
	buf := make([]byte, 12)
	b := writeBuf(buf)
	b.uint32(uint32(u.ATime.Unix()))
	b.uint32(uint32(u.MTime.Unix()))
	b.uint16(u.UID)
	b.uint16(u.GID)
	return buf
}

func (u *UnixExtra) centralBytes() []byte {
	return u.localBytes()[:8]
}

func (u *UnixExtra) clone() ExtraRecord {
	c := *u
	return &c
}

// NewUnixExtra is the Info-ZIP "ux" record carrying variable-width uid/gid.
type NewUnixExtra struct {
	UID uint32
	GID uint32
}

// Tag implements ExtraRecord.
func (u *NewUnixExtra) Tag() uint16 { return infoZipNewUnixExtraID }

func (u *NewUnixExtra) merge(data []byte, local bool) error {
	if len(data) == 0 {
		return nil
	}
	b := readBuf(data)
	if v := b.uint8(); v != 1 {
		return errors.Wrapf(ErrFormat, "ux extra: version %d", v)
	}
	var err error
	if u.UID, err = readVarID(&b); err != nil {
		return err
	}
	if u.GID, err = readVarID(&b); err != nil {
		return err
	}
	return nil
}

func readVarID(b *readBuf) (uint32, error) {
	if len(*b) < 1 {
		return 0, errors.Wrap(ErrFormat, "ux extra: truncated")
	}
	n := int(b.uint8())
	if n > len(*b) {
		return 0, errors.Wrapf(ErrFormat, "ux extra: id of %d bytes, %d left", n, len(*b))
	}
	var v uint32
	for i, c := range b.sub(n) {
		if i < 4 {
			v |= uint32(c) << (8 * i)
		}
	}
	return v, nil
}

func (u *NewUnixExtra) localBytes() []byte {
	buf := make([]byte, 11)
	b := writeBuf(buf)
	b.uint8(1)
	b.uint8(4)
	b.uint32(u.UID)
	b.uint8(4)
	b.uint32(u.GID)
	return buf
}

func (u *NewUnixExtra) centralBytes() []byte {
	return u.localBytes()
}

func (u *NewUnixExtra) clone() ExtraRecord {
	c := *u
	return &c
}
