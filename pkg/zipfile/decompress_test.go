package zipfile

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallReader returns no data and no error for its first stalls reads.
type stallReader struct {
	stalls int
	data   []byte
}

func (r *stallReader) Read(p []byte) (int, error) {
	if r.stalls > 0 {
		r.stalls--
		return 0, nil
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestPatientReader(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 8)
	n, err := patientReader{&stallReader{stalls: maxInflateRetries, data: []byte("data")}}.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))

	_, err = patientReader{&stallReader{stalls: maxInflateRetries + 1, data: []byte("data")}}.Read(buf)
	require.ErrorIs(t, err, io.ErrNoProgress)
}

func compressed(t *testing.T, method uint16, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	c, err := newCompressor(method, DefaultCompressionLevel, &buf)
	require.NoError(t, err)
	_, err = c.Write(data)
	require.NoError(t, err)
	require.NoError(t, c.finish())
	assert.Equal(t, crcUpdate(0, data), c.sum().crc)
	assert.Equal(t, uint64(len(data)), c.sum().n)
	return buf.Bytes()
}

func TestEntryReaderVerifies(t *testing.T) {
	t.Parallel()

	data := []byte("verify me, verify me, verify me")
	tests := []struct {
		name string
		edit func(e *Entry)
		want error
	}{
		{name: "ok", edit: func(*Entry) {}},
		{name: "crc", edit: func(e *Entry) { e.CRC32++ }, want: ErrChecksum},
		{name: "short", edit: func(e *Entry) { e.UncompressedSize64++ }, want: ErrChecksum},
		{name: "long", edit: func(e *Entry) { e.UncompressedSize64 -= 3 }, want: ErrEntrySize},
	}
	for _, method := range []uint16{Store, Deflate, Zstd} {
		method := method
		raw := compressed(t, method, data)
		for _, tt := range tests {
			tt := tt
			t.Run(fmt.Sprintf("method %d %s", method, tt.name), func(t *testing.T) {
				t.Parallel()

				e := &Entry{Name: "v.txt", Method: method, CRC32: crcUpdate(0, data), UncompressedSize64: uint64(len(data))}
				tt.edit(e)
				r, err := newEntryReader(e, bytes.NewReader(raw))
				require.NoError(t, err)
				defer r.Close()
				got, err := io.ReadAll(r)
				if tt.want != nil {
					require.ErrorIs(t, err, tt.want)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, data, got)
			})
		}
	}
}

func TestEntryReaderCorruptDeflate(t *testing.T) {
	t.Parallel()

	e := &Entry{Name: "bad.txt", Method: Deflate, UncompressedSize64: 10}
	r, err := newEntryReader(e, bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, ErrCompression)
}

func TestUnsupportedMethod(t *testing.T) {
	t.Parallel()

	_, err := newEntryReader(&Entry{Name: "x", Method: 99}, bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrCompressionMethod)
	_, err = newCompressor(99, DefaultCompressionLevel, io.Discard)
	require.ErrorIs(t, err, ErrCompressionMethod)
}
