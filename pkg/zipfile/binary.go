package zipfile

import (
	"encoding/binary"
	"hash/crc32"
	"unicode/utf8"
)

type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	b2 := (*b)[:n]
	*b = (*b)[n:]
	return b2
}

type writeBuf []byte

func (b *writeBuf) uint8(v uint8) {
	(*b)[0] = v
	*b = (*b)[1:]
}

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}

func (b *writeBuf) bytes(p []byte) {
	n := copy(*b, p)
	*b = (*b)[n:]
}

// crcUpdate folds p into a running CRC-32 (IEEE), matching zlib's crc32(prior, p).
func crcUpdate(prior uint32, p []byte) uint32 {
	return crc32.Update(prior, crc32.IEEETable, p)
}

// crcStep is the single-byte table step used by the traditional cipher's key
// schedule. Unlike crcUpdate it does not invert the register.
func crcStep(crc uint32, c byte) uint32 {
	return crc32.IEEETable[byte(crc)^c] ^ (crc >> 8)
}

// clamp32 returns v, or the Zip64 sentinel when v does not fit in 32 bits.
func clamp32(v uint64) uint32 {
	if v >= uint32max {
		return uint32max
	}
	return uint32(v)
}

func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		// Officially, ZIP uses CP-437, but many readers use the system's
		// local character encoding. Most encoding are compatible with a large
		// subset of CP-437, which itself is ASCII-like.
		//
		// Forbid 0x7e and 0x5c since EUC-KR and Shift-JIS replace those
		// characters with localized currency and overline characters.
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}
