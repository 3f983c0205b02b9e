package zipfile

import (
	"time"

	"github.com/pkg/errors"
)

const (
	extTimeMod    = 1 << 0
	extTimeAccess = 1 << 1
	extTimeCreate = 1 << 2
)

// ExtTimeExtra is the extended timestamp record ("UT"). Times are whole
// seconds. The central form carries the flags and the modification time only.
type ExtTimeExtra struct {
	Flags uint8
	MTime time.Time
	ATime time.Time
	CTime time.Time
}

// Tag implements ExtraRecord.
func (e *ExtTimeExtra) Tag() uint16 { return extTimeExtraID }

// SetMTime records the modification time and raises its flag.
func (e *ExtTimeExtra) SetMTime(t time.Time) {
	e.MTime = t
	e.Flags |= extTimeMod
}

func (e *ExtTimeExtra) merge(data []byte, local bool) error {
	if len(data) == 0 {
		return nil
	}
	b := readBuf(data)
	e.Flags = b.uint8()
	next := func(t *time.Time) {
		if len(b) >= 4 {
			*t = time.Unix(int64(int32(b.uint32())), 0)
		}
	}
	if e.Flags&extTimeMod != 0 {
		next(&e.MTime)
	}
	if !local {
		return nil
	}
	if e.Flags&extTimeAccess != 0 {
		next(&e.ATime)
	}
	if e.Flags&extTimeCreate != 0 {
		next(&e.CTime)
	}
	return nil
}

func (e *ExtTimeExtra) localBytes() []byte {
	buf := []byte{e.Flags}
	for _, f := range []struct {
		bit uint8
		t   time.Time
	}{{extTimeMod, e.MTime}, {extTimeAccess, e.ATime}, {extTimeCreate, e.CTime}} {
		if e.Flags&f.bit != 0 {
			buf = appendUnix32(buf, f.t)
		}
	}
	return buf
}

func (e *ExtTimeExtra) centralBytes() []byte {
	buf := []byte{e.Flags}
	if e.Flags&extTimeMod != 0 {
		buf = appendUnix32(buf, e.MTime)
	}
	return buf
}

func (e *ExtTimeExtra) clone() ExtraRecord {
	c := *e
	return &c
}

func appendUnix32(buf []byte, t time.Time) []byte {
	var tmp [4]byte
	b := writeBuf(tmp[:])
	b.uint32(uint32(t.Unix()))
	return append(buf, tmp[:]...)
}

// Windows FILETIME counts 100ns ticks since 1601-01-01.
const ntfsEpochOffset = 116444736000000000

// NTFSExtra is the NTFS record (tag 0x000a) carrying 100ns-resolution
// modification, access and creation times. Other NTFS attributes are dropped.
type NTFSExtra struct {
	MTime time.Time
	ATime time.Time
	CTime time.Time
}

// Tag implements ExtraRecord.
func (n *NTFSExtra) Tag() uint16 { return ntfsExtraID }

func (n *NTFSExtra) merge(data []byte, local bool) error {
	if len(data) < 4 {
		return errors.Wrapf(ErrFormat, "ntfs extra: %d bytes", len(data))
	}
	b := readBuf(data[4:]) // reserved
	for len(b) >= 4 {
		attr := b.uint16()
		size := int(b.uint16())
		if size > len(b) {
			return errors.Wrapf(ErrFormat, "ntfs extra: attribute %d overruns record", attr)
		}
		body := b.sub(size)
		if attr != 1 || size != 24 {
			continue
		}
		n.MTime = fromFiletime(body.uint64())
		n.ATime = fromFiletime(body.uint64())
		n.CTime = fromFiletime(body.uint64())
	}
	return nil
}

func (n *NTFSExtra) localBytes() []byte {
	buf := make([]byte, 32)
	b := writeBuf(buf)
	b.uint32(0)
	b.uint16(1)
	b.uint16(24)
	b.uint64(toFiletime(n.MTime))
	b.uint64(toFiletime(n.ATime))
	b.uint64(toFiletime(n.CTime))
	return buf
}

func (n *NTFSExtra) centralBytes() []byte {
	return n.localBytes()
}

func (n *NTFSExtra) clone() ExtraRecord {
	c := *n
	return &c
}

func fromFiletime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (int64(ft)-ntfsEpochOffset)*100)
}

func toFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + ntfsEpochOffset)
}
