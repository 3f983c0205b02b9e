package zipfile

import (
	"bytes"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sparseReaderAt presents data at base within a file of zeros.
type sparseReaderAt struct {
	base int64
	data []byte
}

func (r sparseReaderAt) size() int64 { return r.base + int64(len(r.data)) }

func (r sparseReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size() {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && off+int64(n) < r.size() {
		pos := off + int64(n)
		if pos >= r.base {
			n += copy(p[n:], r.data[pos-r.base:])
			continue
		}
		p[n] = 0
		n++
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestCentralDirectoryRoundTrip(t *testing.T) {
	t.Parallel()

	cd := NewCentralDirectory(false, false)
	cd.Comment = "archive comment"
	for i, name := range []string{"a.txt", "dir/", "dir/b.txt"} {
		e, err := NewEntry(name)
		require.NoError(t, err)
		e.HeaderOffset = int64(i * 100)
		cd.Entries.Put(e)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 300))
	_, err := cd.WriteTo(&buf, 300)
	require.NoError(t, err)

	got := NewCentralDirectory(false, false)
	require.NoError(t, got.ReadFrom(bytes.NewReader(buf.Bytes()), int64(buf.Len())))
	assert.Equal(t, "archive comment", got.Comment)
	assert.True(t, cd.Entries.Equal(got.Entries))
	e, ok := got.Entries.Find("dir/b.txt")
	require.True(t, ok)
	assert.Equal(t, int64(200), e.HeaderOffset)
}

func TestCentralDirectoryZip64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		start  int64
		offset int64
		zip64  bool
	}{
		{name: "small", start: 1000, offset: 0, zip64: false},
		{name: "directory past 4 GiB", start: 5 << 30, offset: 0, zip64: true},
		{name: "entry past 4 GiB", start: 6 << 30, offset: 5 << 30, zip64: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cd := NewCentralDirectory(false, false)
			e, err := NewEntry("big.bin")
			require.NoError(t, err)
			e.HeaderOffset = tt.offset
			cd.Entries.Put(e)

			var buf bytes.Buffer
			_, err = cd.WriteTo(&buf, tt.start)
			require.NoError(t, err)

			data := buf.Bytes()
			endLen := directoryEndLen
			if tt.zip64 {
				endLen += directory64EndLen + directory64LocLen
			}
			dirLen := len(data) - endLen
			if tt.zip64 {
				loc := readBuf(data[dirLen+directory64EndLen:])
				assert.Equal(t, uint32(directory64LocSignature), loc.uint32())
				loc.uint32()
				assert.Equal(t, uint64(tt.start)+uint64(dirLen), loc.uint64())
			}

			got := NewCentralDirectory(false, false)
			r := sparseReaderAt{base: tt.start, data: data}
			require.NoError(t, got.ReadFrom(r, r.size()))
			g, ok := got.Entries.Find("big.bin")
			require.True(t, ok)
			assert.Equal(t, tt.offset, g.HeaderOffset)
		})
	}
}

func TestCentralDirectoryRecordCountForcesZip64(t *testing.T) {
	t.Parallel()

	cd := NewCentralDirectory(false, false)
	for i := 0; i < uint16max; i++ {
		cd.Entries.Put(&Entry{Name: "f" + strconv.Itoa(i), Extra: NewExtraField()})
	}
	var buf bytes.Buffer
	_, err := cd.WriteTo(&buf, 0)
	require.NoError(t, err)

	end := readBuf(buf.Bytes()[buf.Len()-directoryEndLen:])
	assert.Equal(t, uint32(directoryEndSignature), end.uint32())
	end = end[4:]
	assert.Equal(t, uint16(uint16max), end.uint16())

	got := NewCentralDirectory(false, false)
	require.NoError(t, got.ReadFrom(bytes.NewReader(buf.Bytes()), int64(buf.Len())))
	assert.Equal(t, uint16max, got.Entries.Len())
}

func TestCentralDirectoryNotAZip(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("not a zip "), 200)
	err := NewCentralDirectory(false, false).ReadFrom(bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, ErrFormat)

	err = NewCentralDirectory(false, false).ReadFrom(bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, ErrFormat)
}
