package zipfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	t.Parallel()

	e, err := NewEntry("dir/")
	require.NoError(t, err)
	assert.True(t, e.IsDirectory())
	assert.Equal(t, Store, e.Method)
	assert.Equal(t, os.ModeDir|0o755, e.Mode())
	assert.NotZero(t, e.ExternalAttrs&msdosDir)

	e, err = NewEntry("a.txt")
	require.NoError(t, err)
	assert.True(t, e.IsFile())
	assert.Equal(t, Deflate, e.Method)
	assert.True(t, e.Dirty())

	_, err = NewEntry("/etc/passwd")
	require.ErrorIs(t, err, ErrEntryName)
	_, err = NewEntry("")
	require.ErrorIs(t, err, ErrEntryName)
}

func TestEntryTime(t *testing.T) {
	t.Parallel()

	e, err := NewEntry("a.txt")
	require.NoError(t, err)
	ts := time.Date(2023, 7, 4, 10, 11, 13, 0, time.UTC)
	e.SetTime(ts)
	assert.True(t, ts.Equal(e.Time()), "extended timestamp keeps odd seconds")

	e.Extra.Delete(extTimeExtraID)
	assert.Equal(t, time.Date(2023, 7, 4, 10, 11, 12, 0, time.UTC), e.Time())

	nt := &NTFSExtra{MTime: ts.Add(time.Minute)}
	e.Extra.Put(nt)
	assert.True(t, ts.Add(time.Minute).Equal(e.Time()))
	e.SetTime(ts)
	assert.True(t, ts.Equal(nt.MTime))
	assert.False(t, e.Extra.Has(extTimeExtraID))
}

func TestEntryCentralHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	e, err := NewEntry("docs/read me.txt")
	require.NoError(t, err)
	e.SetComment("a comment")
	e.SetUnixPerms(0o640)
	e.SetOwner(1000, 100)
	e.CRC32 = 0xdeadbeef
	e.CompressedSize64 = 10
	e.UncompressedSize64 = 20
	e.HeaderOffset = 1234

	var buf bytes.Buffer
	_, err = e.writeCentral(&buf)
	require.NoError(t, err)

	got := new(Entry)
	require.NoError(t, got.readCentral(&buf))
	assert.True(t, e.Equal(got))
	assert.Equal(t, e.Comment, got.Comment)
	assert.Equal(t, int64(1234), got.HeaderOffset)
	assert.Equal(t, os.FileMode(0o640), got.UnixPerms)
	assert.Equal(t, uint32(1000), got.UnixUID)
	assert.Equal(t, uint32(100), got.UnixGID)
	assert.False(t, got.Dirty())
}

func TestEntryZip64Threshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		size   uint64
		offset int64
		zip64  bool
	}{
		{name: "below", size: uint32max - 1, offset: uint32max - 1, zip64: false},
		{name: "size at sentinel", size: uint32max, offset: 0, zip64: true},
		{name: "offset at sentinel", size: 1, offset: uint32max, zip64: true},
		{name: "large", size: 6 << 30, offset: 5 << 30, zip64: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := NewEntry("big.bin")
			require.NoError(t, err)
			e.Method = Store
			e.UncompressedSize64 = tt.size
			e.CompressedSize64 = tt.size
			e.HeaderOffset = tt.offset

			var buf bytes.Buffer
			_, err = e.writeCentral(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.zip64, e.Extra.Has(zip64ExtraID))

			got := new(Entry)
			require.NoError(t, got.readCentral(&buf))
			assert.Equal(t, tt.size, got.UncompressedSize64)
			assert.Equal(t, tt.size, got.CompressedSize64)
			assert.Equal(t, tt.offset, got.HeaderOffset)
		})
	}
}

func TestEntryLocalHeaderRewrite(t *testing.T) {
	t.Parallel()

	t.Run("placeholder keeps the size", func(t *testing.T) {
		t.Parallel()

		e, err := NewEntry("big.bin")
		require.NoError(t, err)
		e.prepareLocalZip64(true, true)
		var buf bytes.Buffer
		require.NoError(t, e.writeLocal(&buf))

		e.UncompressedSize64 = 5 << 30
		e.CompressedSize64 = 5 << 30
		e.prepareLocalZip64(true, false)
		var out bytes.Buffer
		require.NoError(t, e.rewriteLocal(&out))
		assert.Equal(t, buf.Len(), out.Len())

		got := new(Entry)
		require.NoError(t, got.readLocal(&out))
		assert.Equal(t, uint64(5<<30), got.UncompressedSize64)
		assert.Equal(t, buf.Len(), got.LocalHeaderSize())
	})

	t.Run("no room without zip64 support", func(t *testing.T) {
		t.Parallel()

		e, err := NewEntry("big.bin")
		require.NoError(t, err)
		e.prepareLocalZip64(false, true)
		require.NoError(t, e.writeLocal(io.Discard))

		e.UncompressedSize64 = 5 << 30
		e.prepareLocalZip64(false, false)
		require.ErrorIs(t, e.rewriteLocal(io.Discard), ErrHeaderSizeMismatch)
	})
}

func TestEntryReadLocalStopsAtDirectory(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e, err := NewEntry("a.txt")
	require.NoError(t, err)
	_, err = e.writeCentral(&buf)
	require.NoError(t, err)

	require.ErrorIs(t, new(Entry).readLocal(&buf), io.EOF)
	require.ErrorIs(t, new(Entry).readLocal(bytes.NewReader(nil)), io.EOF)

	require.ErrorIs(t, new(Entry).readCentral(bytes.NewReader(make([]byte, directoryHeaderLen))), ErrFormat)
}

func TestEntryNameSafe(t *testing.T) {
	t.Parallel()

	for name, safe := range map[string]bool{
		"a.txt":          true,
		"dir/":           true,
		"a/../b.txt":     true,
		"../evil.txt":    false,
		"a/../../b.txt":  false,
		"..":             false,
		`..\evil.txt`:    false,
		"C:/windows.txt": false,
	} {
		e := &Entry{Name: name}
		assert.Equal(t, safe, e.NameSafe(), name)
	}
}

func TestEntryFieldLimits(t *testing.T) {
	t.Parallel()

	_, err := NewEntry(strings.Repeat("n", uint16max))
	require.NoError(t, err)
	_, err = NewEntry(strings.Repeat("n", uint16max+1))
	require.ErrorIs(t, err, ErrFieldTooLong)

	t.Run("name", func(t *testing.T) {
		t.Parallel()

		e, err := NewEntry("a.txt")
		require.NoError(t, err)
		e.Name = strings.Repeat("n", uint16max+1)
		require.ErrorIs(t, e.writeLocal(io.Discard), ErrFieldTooLong)
		_, err = e.writeCentral(io.Discard)
		require.ErrorIs(t, err, ErrFieldTooLong)
	})

	t.Run("extra", func(t *testing.T) {
		t.Parallel()

		e, err := NewEntry("a.txt")
		require.NoError(t, err)
		require.NoError(t, e.Extra.Merge(extraRecord(0xcafe, make([]byte, 40000)), true))
		require.NoError(t, e.Extra.Merge(extraRecord(0xcaff, make([]byte, 40000)), true))
		require.ErrorIs(t, e.writeLocal(io.Discard), ErrFieldTooLong)
		_, err = e.writeCentral(io.Discard)
		require.ErrorIs(t, err, ErrFieldTooLong)
	})

	t.Run("comment", func(t *testing.T) {
		t.Parallel()

		e, err := NewEntry("a.txt")
		require.NoError(t, err)
		e.Comment = strings.Repeat("c", uint16max+1)
		require.NoError(t, e.writeLocal(io.Discard))
		_, err = e.writeCentral(io.Discard)
		require.ErrorIs(t, err, ErrFieldTooLong)

		zos, err := CreateOutputStream(filepath.Join(t.TempDir(), "comment.zip"))
		require.NoError(t, err)
		require.ErrorIs(t, zos.PutNextEntry(e), ErrFieldTooLong)
		require.NoError(t, zos.Close())
	})

	t.Run("archive comment", func(t *testing.T) {
		t.Parallel()

		zos, err := CreateOutputStream(filepath.Join(t.TempDir(), "comment.zip"))
		require.NoError(t, err)
		w, err := zos.Create("a.txt")
		require.NoError(t, err)
		_, err = io.WriteString(w, "a")
		require.NoError(t, err)
		zos.SetComment(strings.Repeat("c", uint16max+1))
		require.ErrorIs(t, zos.Close(), ErrFieldTooLong)

		var buf bytes.Buffer
		cd := &CentralDirectory{Entries: NewEntrySet(false, false), Comment: strings.Repeat("c", uint16max)}
		_, err = cd.WriteTo(&buf, 0)
		require.NoError(t, err)
	})
}
