package zipfile

import (
	"github.com/pkg/errors"
)

// ExtraRecord is one tagged sub-record of an extra field. Each record decides
// its own local-header and central-directory shapes; a nil body means the
// record is omitted from that header.
type ExtraRecord interface {
	Tag() uint16
	merge(data []byte, local bool) error
	localBytes() []byte
	centralBytes() []byte
	clone() ExtraRecord
}

var extraRegistry = map[uint16]func() ExtraRecord{
	zip64ExtraID:            func() ExtraRecord { return new(Zip64Extra) },
	zip64PlaceholderExtraID: func() ExtraRecord { return new(Zip64Placeholder) },
	ntfsExtraID:             func() ExtraRecord { return new(NTFSExtra) },
	extTimeExtraID:          func() ExtraRecord { return new(ExtTimeExtra) },
	infoZipUnixExtraID:      func() ExtraRecord { return new(UnixExtra) },
	infoZipNewUnixExtraID:   func() ExtraRecord { return new(NewUnixExtra) },
}

// ExtraField is the ordered collection of sub-records attached to an entry.
// Records with unrecognized tags are kept verbatim and written after the
// recognized ones.
type ExtraField struct {
	records map[uint16]ExtraRecord
	order   []uint16
}

// NewExtraField returns an empty extra field.
func NewExtraField() *ExtraField {
	return &ExtraField{records: make(map[uint16]ExtraRecord)}
}

// ParseExtraField decodes raw extra bytes taken from a local (local=true) or
// central directory header.
func ParseExtraField(data []byte, local bool) (*ExtraField, error) {
	x := NewExtraField()
	if err := x.Merge(data, local); err != nil {
		return nil, err
	}
	return x, nil
}

// Merge decodes data and folds each sub-record into the collection. A record
// already present is updated in place.
func (x *ExtraField) Merge(data []byte, local bool) error {
	b := readBuf(data)
	for len(b) >= 4 {
		tag := b.uint16()
		size := int(b.uint16())
		if size > len(b) {
			return errors.Wrapf(ErrFormat, "extra field %#04x declares %d bytes, %d left", tag, size, len(b))
		}
		body := b.sub(size)
		rec, ok := x.records[tag]
		if !ok {
			rec = newExtraRecord(tag)
			x.add(rec)
		}
		if err := rec.merge(body, local); err != nil {
			return errors.Wrapf(err, "extra field %#04x", tag)
		}
	}
	return nil
}

func newExtraRecord(tag uint16) ExtraRecord {
	if fn, ok := extraRegistry[tag]; ok {
		return fn()
	}
	return &UnknownExtra{tag: tag}
}

func (x *ExtraField) add(rec ExtraRecord) {
	if x.records == nil {
		x.records = make(map[uint16]ExtraRecord)
	}
	tag := rec.Tag()
	if _, ok := x.records[tag]; !ok {
		x.order = append(x.order, tag)
	}
	x.records[tag] = rec
}

// Put adds rec, replacing any record with the same tag.
func (x *ExtraField) Put(rec ExtraRecord) {
	x.add(rec)
}

// Get returns the record for tag, or nil.
func (x *ExtraField) Get(tag uint16) ExtraRecord {
	if x == nil {
		return nil
	}
	return x.records[tag]
}

// Has reports whether a record with tag is present.
func (x *ExtraField) Has(tag uint16) bool {
	return x.Get(tag) != nil
}

// Delete removes the record for tag.
func (x *ExtraField) Delete(tag uint16) {
	if _, ok := x.records[tag]; !ok {
		return
	}
	delete(x.records, tag)
	for i, t := range x.order {
		if t == tag {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
}

// Tags lists the tags present, recognized records first.
func (x *ExtraField) Tags() []uint16 {
	if x == nil {
		return nil
	}
	known := make([]uint16, 0, len(x.order))
	var unknown []uint16
	for _, tag := range x.order {
		if _, ok := x.records[tag].(*UnknownExtra); ok {
			unknown = append(unknown, tag)
			continue
		}
		known = append(known, tag)
	}
	return append(known, unknown...)
}

// Local encodes the collection for a local file header.
func (x *ExtraField) Local() []byte {
	return x.encode(true)
}

// Central encodes the collection for a central directory header.
func (x *ExtraField) Central() []byte {
	return x.encode(false)
}

func (x *ExtraField) encode(local bool) []byte {
	var out []byte
	for _, tag := range x.Tags() {
		rec := x.records[tag]
		var body []byte
		if local {
			body = rec.localBytes()
		} else {
			body = rec.centralBytes()
		}
		if body == nil {
			continue
		}
		hdr := make([]byte, 4)
		b := writeBuf(hdr)
		b.uint16(tag)
		b.uint16(uint16(len(body)))
		out = append(out, hdr...)
		out = append(out, body...)
	}
	return out
}

// Clone returns a deep copy.
func (x *ExtraField) Clone() *ExtraField {
	c := NewExtraField()
	if x == nil {
		return c
	}
	for _, tag := range x.order {
		c.add(x.records[tag].clone())
	}
	return c
}

// UnknownExtra preserves a record whose tag is not interpreted.
type UnknownExtra struct {
	tag     uint16
	local   []byte
	central []byte
}

func (u *UnknownExtra) Tag() uint16 { return u.tag }

func (u *UnknownExtra) merge(data []byte, local bool) error {
	if local {
		u.local = cloneBytes(data)
	} else {
		u.central = cloneBytes(data)
	}
	return nil
}

func (u *UnknownExtra) localBytes() []byte {
	if u.local != nil {
		return u.local
	}
	return u.central
}

func (u *UnknownExtra) centralBytes() []byte {
	if u.central != nil {
		return u.central
	}
	return u.local
}

func (u *UnknownExtra) clone() ExtraRecord {
	return &UnknownExtra{tag: u.tag, local: cloneBytes(u.local), central: cloneBytes(u.central)}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
