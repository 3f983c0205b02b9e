package zipfile

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
)

// traditionalHeaderLen is the size of the encryption header that precedes
// the data of an entry protected with the traditional cipher.
const traditionalHeaderLen = 12

// encrypter is the write-side cipher strategy for one entry: null or
// traditional.
type encrypter interface {
	// header returns the already encrypted per-entry header.
	header(dosTime uint16) ([]byte, error)
	encrypt(p []byte)
	dataDescriptor(e *Entry) []byte
}

// decrypter is the read-side cipher strategy for one entry.
type decrypter interface {
	headerSize() int
	reset(header []byte)
	decrypt(p []byte)
}

type nullEncrypter struct{}

func (nullEncrypter) header(uint16) ([]byte, error) { return nil, nil }
func (nullEncrypter) encrypt([]byte)                {}
func (nullEncrypter) dataDescriptor(*Entry) []byte  { return nil }

type nullDecrypter struct{}

func (nullDecrypter) headerSize() int { return 0 }
func (nullDecrypter) reset([]byte)    {}
func (nullDecrypter) decrypt([]byte)  {}

// newDecrypter selects the read-side cipher for e.
func newDecrypter(e *Entry, password string) (decrypter, error) {
	if !e.Encrypted() {
		return nullDecrypter{}, nil
	}
	if password == "" {
		return nil, errors.Wrapf(ErrPasswordRequired, "entry %q", e.Name)
	}
	return newTraditionalDecrypter(password), nil
}

// traditionalKeys is the key state of the legacy PKWARE stream cipher.
type traditionalKeys [3]uint32

func newTraditionalKeys(password string) traditionalKeys {
	k := traditionalKeys{0x12345678, 0x23456789, 0x34567890}
	for i := 0; i < len(password); i++ {
		k.update(password[i])
	}
	return k
}

func (k *traditionalKeys) update(c byte) {
	k[0] = crcStep(k[0], c)
	k[1] = (k[1]+k[0]&0xff)*134775813 + 1
	k[2] = crcStep(k[2], byte(k[1]>>24))
}

func (k *traditionalKeys) streamByte() byte {
	t := k[2]&0xffff | 2
	return byte((t * (t ^ 1)) >> 8)
}

func (k *traditionalKeys) encryptByte(c byte) byte {
	out := c ^ k.streamByte()
	k.update(c)
	return out
}

func (k *traditionalKeys) decryptByte(c byte) byte {
	out := c ^ k.streamByte()
	k.update(out)
	return out
}

type traditionalEncrypter struct {
	password string
	rand     io.Reader
	keys     traditionalKeys
}

func newTraditionalEncrypter(password string) *traditionalEncrypter {
	t := &traditionalEncrypter{password: password, rand: rand.Reader}
	t.reset()
	return t
}

// header is ten random bytes followed by the DOS time; the last byte doubles
// as the password check value since bit 3 is always set for these entries.
func (t *traditionalEncrypter) header(dosTime uint16) ([]byte, error) {
	buf := make([]byte, traditionalHeaderLen)
	if _, err := io.ReadFull(t.rand, buf[:traditionalHeaderLen-2]); err != nil {
		return nil, errors.Wrap(err, "encryption header")
	}
	buf[10] = byte(dosTime)
	buf[11] = byte(dosTime >> 8)
	t.encrypt(buf)
	return buf, nil
}

func (t *traditionalEncrypter) encrypt(p []byte) {
	for i, c := range p {
		p[i] = t.keys.encryptByte(c)
	}
}

func (t *traditionalEncrypter) reset() {
	t.keys = newTraditionalKeys(t.password)
}

func (t *traditionalEncrypter) dataDescriptor(e *Entry) []byte {
	return e.dataDescriptor()
}

type traditionalDecrypter struct {
	password string
	keys     traditionalKeys
}

func newTraditionalDecrypter(password string) *traditionalDecrypter {
	return &traditionalDecrypter{password: password}
}

func (t *traditionalDecrypter) headerSize() int { return traditionalHeaderLen }

// reset consumes the encryption header. A wrong password is not detected
// here; it surfaces as a checksum failure on the decoded data.
func (t *traditionalDecrypter) reset(header []byte) {
	t.keys = newTraditionalKeys(t.password)
	t.decrypt(header)
}

func (t *traditionalDecrypter) decrypt(p []byte) {
	for i, c := range p {
		p[i] = t.keys.decryptByte(c)
	}
}

// encryptWriter applies an encrypter to everything written through it.
type encryptWriter struct {
	w   io.Writer
	enc encrypter
	buf []byte
}

func (ew *encryptWriter) Write(p []byte) (int, error) {
	if _, ok := ew.enc.(nullEncrypter); ok {
		return ew.w.Write(p)
	}
	ew.buf = append(ew.buf[:0], p...)
	ew.enc.encrypt(ew.buf)
	if _, err := ew.w.Write(ew.buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// decryptReader applies a decrypter to everything read through it.
type decryptReader struct {
	r   io.Reader
	dec decrypter
}

func (dr decryptReader) Read(p []byte) (int, error) {
	n, err := dr.r.Read(p)
	dr.dec.decrypt(p[:n])
	return n, err
}
