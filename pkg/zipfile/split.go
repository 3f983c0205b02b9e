package zipfile

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MinSegmentSize is the smallest accepted split segment.
	MinSegmentSize = 64 * 1024
	// MaxSegmentSize is the largest accepted split segment.
	MaxSegmentSize = 3 << 30
	// MaxSegmentCount bounds the number of segments, ".z01" to ".z99".
	MaxSegmentCount = 99
)

// SplitOptions controls Split.
type SplitOptions struct {
	// SegmentSize is the size of every segment but the last. Zero selects
	// MaxSegmentSize.
	SegmentSize int64
	// PartialName is the path of the segments without extension. It
	// defaults to the archive path without its extension.
	PartialName string
	// DeleteOriginal removes the archive once it has been split.
	DeleteOriginal bool
	Logger         *slog.Logger
}

// Split cuts the archive at path into segments named PartialName.z01,
// PartialName.z02 and so on, the last one PartialName.zip. The first segment
// starts with the split archive signature. Archives that fit in one segment
// are left alone and Split returns nil. It returns the segment paths in
// order.
func Split(path string, opts SplitOptions) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	size := opts.SegmentSize
	if size == 0 {
		size = MaxSegmentSize
	}
	if size < MinSegmentSize || size > MaxSegmentSize {
		return nil, errors.Wrapf(ErrSplitArgument, "segment size %d outside [%d, %d]", size, MinSegmentSize, MaxSegmentSize)
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if err := NewCentralDirectory(false, false).ReadFrom(src, info.Size()); err != nil {
		return nil, errors.Wrapf(err, "split %s", path)
	}

	total := info.Size() + 4 // the signature counts against the first segment
	if total <= size {
		logger.Info("archive fits in one segment", "path", path, "size", info.Size())
		return nil, nil
	}
	count := int((total + size - 1) / size)
	if count > MaxSegmentCount {
		return nil, errors.Wrapf(ErrSplitArgument, "%d segments of %d bytes, at most %d allowed", count, size, MaxSegmentCount)
	}

	partial := opts.PartialName
	if partial == "" {
		partial = strings.TrimSuffix(path, filepath.Ext(path))
	}
	names := segmentNames(partial, count)
	if !opts.DeleteOriginal && sameFile(names[count-1], path) {
		return nil, errors.Wrapf(ErrSplitArgument, "last segment %s would replace the archive", names[count-1])
	}

	// Segments are written under temporary names and renamed at the end,
	// since the last one may take the place of the source.
	var tmps []string
	defer func() {
		for _, t := range tmps {
			os.Remove(t)
		}
	}()
	for i := range names {
		n := size
		if i == 0 {
			n -= 4
		}
		tmp, err := writeSegment(names[i], src, n, i == 0)
		if tmp != "" {
			tmps = append(tmps, tmp)
		}
		if err != nil {
			return nil, err
		}
	}
	src.Close()

	if opts.DeleteOriginal {
		if err := os.Remove(path); err != nil {
			return nil, errors.Wrapf(err, "remove %s", path)
		}
	}
	for i, tmp := range tmps {
		if err := os.Rename(tmp, names[i]); err != nil {
			return nil, errors.Wrapf(err, "rename segment %s", names[i])
		}
	}
	tmps = nil
	logger.Info("split archive", "path", path, "segments", count, "segment_size", size)
	return names, nil
}

func segmentNames(partial string, count int) []string {
	names := make([]string, count)
	for i := 0; i < count-1; i++ {
		names[i] = fmt.Sprintf("%s.z%02d", partial, i+1)
	}
	names[count-1] = partial + ".zip"
	return names
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

// writeSegment copies up to n bytes of src into a temporary file next to
// name and returns its path.
func writeSegment(name string, src io.Reader, n int64, first bool) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*.tmp")
	if err != nil {
		return "", errors.Wrapf(err, "create segment %s", name)
	}
	if first {
		var sig [4]byte
		b := writeBuf(sig[:])
		b.uint32(splitSignature)
		if _, err := f.Write(sig[:]); err != nil {
			f.Close()
			return f.Name(), errors.Wrapf(err, "write segment %s", name)
		}
	}
	if _, err := io.CopyN(f, src, n); err != nil && err != io.EOF {
		f.Close()
		return f.Name(), errors.Wrapf(err, "write segment %s", name)
	}
	if err := f.Close(); err != nil {
		return f.Name(), errors.Wrapf(err, "close segment %s", name)
	}
	return f.Name(), nil
}
