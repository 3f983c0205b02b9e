package zipfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.zip")
	writeStream(t, path, []testFile{
		{name: "random.bin", method: Store, data: randomBytes(t, 10<<20)},
	})
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	partial := filepath.Join(dir, "parts")
	names, err := Split(path, SplitOptions{SegmentSize: 4 << 20, PartialName: partial})
	require.NoError(t, err)
	require.Equal(t, []string{partial + ".z01", partial + ".z02", partial + ".zip"}, names)

	var joined []byte
	for i, name := range names {
		data, err := os.ReadFile(name)
		require.NoError(t, err)
		if i < len(names)-1 {
			assert.Len(t, data, 4<<20, name)
		}
		joined = append(joined, data...)
	}
	assert.Equal(t, []byte{'P', 'K', 0x07, 0x08}, joined[:4])
	assert.True(t, bytes.Equal(original, joined[4:]))

	_, err = os.Stat(path)
	require.NoError(t, err, "the archive is kept")
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSplitReplacesSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.zip")
	writeStream(t, path, []testFile{
		{name: "random.bin", method: Store, data: randomBytes(t, 200<<10)},
	})

	_, err := Split(path, SplitOptions{SegmentSize: MinSegmentSize})
	require.ErrorIs(t, err, ErrSplitArgument)

	names, err := Split(path, SplitOptions{SegmentSize: MinSegmentSize, DeleteOriginal: true})
	require.NoError(t, err)
	require.Len(t, names, 4)
	assert.Equal(t, filepath.Join(dir, "big.z01"), names[0])
	assert.Equal(t, path, names[3])
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSplitNotNeeded(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "small.zip")
	writeStream(t, path, []testFile{
		{name: "small.txt", method: Deflate, data: []byte("small")},
	})
	names, err := Split(path, SplitOptions{SegmentSize: MinSegmentSize})
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestSplitArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "small.zip")
	writeStream(t, path, []testFile{
		{name: "small.txt", method: Deflate, data: []byte("small")},
	})

	_, err := Split(path, SplitOptions{SegmentSize: 1000})
	require.ErrorIs(t, err, ErrSplitArgument)
	_, err = Split(path, SplitOptions{SegmentSize: MaxSegmentSize + 1})
	require.ErrorIs(t, err, ErrSplitArgument)

	notZip := filepath.Join(dir, "plain.zip")
	require.NoError(t, os.WriteFile(notZip, bytes.Repeat([]byte("x"), 4096), 0o644))
	_, err = Split(notZip, SplitOptions{})
	require.ErrorIs(t, err, ErrFormat)
}
