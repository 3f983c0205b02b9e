package zipfile

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraditionalCipher(t *testing.T) {
	t.Parallel()

	enc := newTraditionalEncrypter("secret")
	header, err := enc.header(0x1234)
	require.NoError(t, err)
	require.Len(t, header, traditionalHeaderLen)

	plain := []byte("attack at dawn")
	data := append([]byte(nil), plain...)
	enc.encrypt(data)
	assert.NotEqual(t, plain, data)

	dec := newTraditionalDecrypter("secret")
	dec.reset(header)
	assert.Equal(t, []byte{0x34, 0x12}, header[10:])
	dec.decrypt(data)
	assert.Equal(t, plain, data)
}

func TestDecrypterSelection(t *testing.T) {
	t.Parallel()

	e, err := NewEntry("a.txt")
	require.NoError(t, err)
	dec, err := newDecrypter(e, "secret")
	require.NoError(t, err)
	assert.Equal(t, 0, dec.headerSize())

	e.Flags |= FlagEncrypted
	_, err = newDecrypter(e, "")
	require.ErrorIs(t, err, ErrPasswordRequired)
	dec, err = newDecrypter(e, "secret")
	require.NoError(t, err)
	assert.Equal(t, traditionalHeaderLen, dec.headerSize())

	rc, err := NewEntryReader(e, bytes.NewReader(make([]byte, 4)), "secret")
	assert.Nil(t, rc)
	require.ErrorIs(t, err, ErrFormat)
}

func TestEncryptedStream(t *testing.T) {
	t.Parallel()

	files := []testFile{
		{name: "stored.txt", method: Store, data: []byte("stored secret")},
		{name: "dir/"},
		{name: "deflated.txt", method: Deflate, data: bytes.Repeat([]byte("deflated secret "), 64)},
	}
	path := filepath.Join(t.TempDir(), "secret.zip")
	writeStream(t, path, files, WithOutputPassword("secret"))

	z := openReader(t, path, WithPassword("secret"))
	for _, f := range files {
		e, ok := z.Find(f.name)
		require.True(t, ok)
		assert.Equal(t, !e.IsDirectory(), e.Encrypted(), f.name)
		assert.Equal(t, f.data, bytesOrNil(readEntry(t, z, f.name)), f.name)
	}

	s, err := OpenInputStream(path, WithStreamPassword("secret"))
	require.NoError(t, err)
	defer s.Close()
	for _, f := range files {
		_, err := s.NextEntry()
		require.NoError(t, err)
		data, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, f.data, bytesOrNil(data), f.name)
	}
}

func TestEncryptedWrongPassword(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret.zip")
	writeStream(t, path, []testFile{
		{name: "stored.txt", method: Store, data: []byte("stored secret")},
	}, WithOutputPassword("secret"))

	z := openReader(t, path)
	_, err := z.Open("stored.txt")
	require.ErrorIs(t, err, ErrPasswordRequired)

	z = openReader(t, path, WithPassword("wrong"))
	rc, err := z.Open("stored.txt")
	require.NoError(t, err)
	defer rc.Close()
	_, err = io.ReadAll(rc)
	require.ErrorIs(t, err, ErrChecksum)
}
