package zipfile

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	name   string
	method uint16
	data   []byte
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func testFiles(t *testing.T) []testFile {
	t.Helper()

	return []testFile{
		{name: "a.txt", method: Deflate, data: bytes.Repeat([]byte("hello zip "), 1000)},
		{name: "dir/"},
		{name: "dir/b.bin", method: Store, data: randomBytes(t, 100*1024)},
		{name: "dir/c.txt", method: Zstd, data: bytes.Repeat([]byte("zstandard "), 500)},
		{name: "empty.txt", method: Deflate},
	}
}

func writeStream(t *testing.T, path string, files []testFile, opts ...OutputOption) {
	t.Helper()

	zos, err := CreateOutputStream(path, opts...)
	require.NoError(t, err)
	for _, f := range files {
		e, err := NewEntry(f.name)
		require.NoError(t, err)
		if !e.IsDirectory() {
			e.Method = f.method
		}
		require.NoError(t, zos.PutNextEntry(e))
		if len(f.data) > 0 {
			_, err = zos.Write(f.data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zos.Close())
}

func openReader(t *testing.T, path string, opts ...Option) *Reader {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	info, err := f.Stat()
	require.NoError(t, err)
	z, err := NewReader(f, info.Size(), opts...)
	require.NoError(t, err)
	return z
}

func readEntry(t *testing.T, z *Reader, name string) []byte {
	t.Helper()

	rc, err := z.Open(name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestStreamSmallArchive(t *testing.T) {
	t.Parallel()

	content := []byte("content")
	b := bytes.Repeat(content, 100000)
	path := filepath.Join(t.TempDir(), "small.zip")
	writeStream(t, path, []testFile{
		{name: "a.txt", method: Store, data: []byte("hello")},
		{name: "dir/"},
		{name: "dir/b.txt", method: Deflate, data: b},
	})

	z := openReader(t, path)
	require.Len(t, z.Entries(), 3)
	assert.Equal(t, []string{"a.txt", "dir/", "dir/b.txt"}, entryNames(z.Entries()))

	a, ok := z.Find("a.txt")
	require.True(t, ok)
	assert.Equal(t, Store, a.Method)
	assert.Equal(t, uint64(5), a.UncompressedSize64)
	assert.Equal(t, uint64(5), a.CompressedSize64)
	assert.Equal(t, []byte("hello"), readEntry(t, z, "a.txt"))

	d, ok := z.Find("dir/")
	require.True(t, ok)
	assert.True(t, d.IsDirectory())
	assert.Zero(t, d.UncompressedSize64)

	e, ok := z.Find("dir/b.txt")
	require.True(t, ok)
	assert.Equal(t, Deflate, e.Method)
	assert.Equal(t, uint64(len(b)), e.UncompressedSize64)
	assert.Less(t, e.CompressedSize64, e.UncompressedSize64)
	assert.Equal(t, b, readEntry(t, z, "dir/b.txt"))
}

func TestStreamRoundTrip(t *testing.T) {
	t.Parallel()

	files := testFiles(t)
	path := filepath.Join(t.TempDir(), "out.zip")
	writeStream(t, path, files)

	z := openReader(t, path)
	require.Len(t, z.Entries(), len(files))
	for i, f := range files {
		e := z.Entries()[i]
		assert.Equal(t, f.name, e.Name)
		assert.Equal(t, uint64(len(f.data)), e.UncompressedSize64)
		assert.Equal(t, crcUpdate(0, f.data), e.CRC32)
		assert.Equal(t, f.data, bytesOrNil(readEntry(t, z, f.name)), f.name)
	}

	s, err := OpenInputStream(path)
	require.NoError(t, err)
	defer s.Close()
	for _, f := range files {
		e, err := s.NextEntry()
		require.NoError(t, err)
		assert.Equal(t, f.name, e.Name)
		assert.Same(t, e, s.Entry())
		data, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, f.data, bytesOrNil(data), f.name)

		central, ok := z.Find(f.name)
		require.True(t, ok)
		assert.Equal(t, central.HeaderOffset, e.HeaderOffset)
		assert.True(t, e.Extra.Has(zip64PlaceholderExtraID))
	}
	_, err = s.NextEntry()
	require.ErrorIs(t, err, io.EOF)
	assert.Nil(t, s.Entry())
}

func bytesOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func TestOutputStreamArchiveComment(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	zos, err := CreateOutputStream(path, WithoutZip64())
	require.NoError(t, err)
	zos.SetComment("built by a test")
	w, err := zos.Create("note.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "note")
	require.NoError(t, err)
	require.NoError(t, zos.Close())
	require.NoError(t, zos.Close())

	_, err = zos.Create("late.txt")
	require.Error(t, err)

	z := openReader(t, path)
	assert.Equal(t, "built by a test", z.Comment())
	assert.Equal(t, []byte("note"), readEntry(t, z, "note.txt"))

	s, err := OpenInputStream(path)
	require.NoError(t, err)
	defer s.Close()
	e, err := s.NextEntry()
	require.NoError(t, err)
	assert.False(t, e.Extra.Has(zip64PlaceholderExtraID))
}

func TestOutputStreamWriteWithoutEntry(t *testing.T) {
	t.Parallel()

	zos, err := CreateOutputStream(filepath.Join(t.TempDir(), "out.zip"))
	require.NoError(t, err)
	defer zos.Close()
	_, err = zos.Write([]byte("x"))
	require.Error(t, err)
}

func TestCopyRawEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := testFiles(t)
	src := filepath.Join(dir, "src.zip")
	writeStream(t, src, files)

	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()
	z := openReader(t, src)

	dst := filepath.Join(dir, "dst.zip")
	zos, err := CreateOutputStream(dst)
	require.NoError(t, err)
	// Reverse the order so every header offset moves.
	entries := z.Entries()
	lastOffset := entries[len(entries)-1].HeaderOffset
	for i := len(entries) - 1; i >= 0; i-- {
		require.NoError(t, zos.CopyRawEntry(entries[i], f))
	}
	require.NoError(t, zos.Close())

	out := openReader(t, dst)
	require.Len(t, out.Entries(), len(files))
	assert.Equal(t, "empty.txt", out.Entries()[0].Name)
	for _, tf := range files {
		e, ok := out.Find(tf.name)
		require.True(t, ok)
		orig, _ := z.Find(tf.name)
		assert.Equal(t, orig.CompressedSize64, e.CompressedSize64)
		assert.Equal(t, orig.Method, e.Method)
		assert.Equal(t, tf.data, bytesOrNil(readEntry(t, out, tf.name)), tf.name)
	}
	assert.Equal(t, lastOffset, entries[len(entries)-1].HeaderOffset, "source entries are not modified")
	assert.Zero(t, out.Entries()[0].HeaderOffset)
}

// streamingArchive builds an archive whose only entry defers its CRC and
// sizes to a data descriptor.
func streamingArchive(t *testing.T, data []byte) ([]byte, *CentralDirectory) {
	t.Helper()

	e, err := NewEntry("s.txt")
	require.NoError(t, err)
	e.Method = Store
	e.Flags |= FlagDataDescriptor

	var buf bytes.Buffer
	require.NoError(t, e.writeLocal(&buf))
	buf.Write(data)
	e.CRC32 = crcUpdate(0, data)
	e.CompressedSize64 = uint64(len(data))
	e.UncompressedSize64 = uint64(len(data))
	buf.Write(e.dataDescriptor())

	cd := NewCentralDirectory(false, false)
	cd.Entries.Put(e)
	start := int64(buf.Len())
	_, err = cd.WriteTo(&buf, start)
	require.NoError(t, err)
	return buf.Bytes(), cd
}

func TestInputStreamDataDescriptor(t *testing.T) {
	t.Parallel()

	data := []byte("streamed without sizes")
	archive, cd := streamingArchive(t, data)

	s, err := NewInputStream(bytes.NewReader(archive))
	require.NoError(t, err)
	_, err = s.NextEntry()
	require.ErrorIs(t, err, ErrStreamingEntry)

	z, err := NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Equal(t, data, readEntry(t, z, "s.txt"))

	s, err = NewInputStream(bytes.NewReader(archive), WithStreamDirectory(cd))
	require.NoError(t, err)
	e, err := s.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), e.UncompressedSize64)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	_, err = s.NextEntry()
	require.ErrorIs(t, err, io.EOF)
}

func TestInputStreamRewindAndOffset(t *testing.T) {
	t.Parallel()

	files := testFiles(t)
	path := filepath.Join(t.TempDir(), "out.zip")
	writeStream(t, path, files)
	z := openReader(t, path)

	s, err := OpenInputStream(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.NextEntry()
	require.NoError(t, err)
	head := make([]byte, 5)
	_, err = io.ReadFull(s, head)
	require.NoError(t, err)
	require.NoError(t, s.Rewind())
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, files[0].data, data)

	e, ok := z.Find("dir/c.txt")
	require.True(t, ok)
	s2, err := OpenInputStream(path, WithStreamOffset(e.HeaderOffset))
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, "dir/c.txt", got.Name)
	data, err = io.ReadAll(s2)
	require.NoError(t, err)
	assert.Equal(t, files[3].data, data)
}

func TestReaderErrors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	writeStream(t, path, testFiles(t))
	z := openReader(t, path)

	_, err := z.Open("missing.txt")
	require.ErrorIs(t, err, ErrEntryNotFound)

	e, ok := z.Find("a.txt")
	require.True(t, ok)
	bad := e.Clone()
	bad.HeaderOffset++
	_, err = z.OpenEntry(bad)
	require.ErrorIs(t, err, ErrFormat)

	off, err := z.DataOffset(e)
	require.NoError(t, err)
	raw, err := z.OpenRaw(e)
	require.NoError(t, err)
	assert.Equal(t, int64(e.CompressedSize64), raw.Size())
	assert.Greater(t, off, e.HeaderOffset)
}
