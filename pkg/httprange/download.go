package httprange

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultParts is the number of concurrent range requests Download uses.
const DefaultParts = 5

// Download copies length bytes at off into w, split into parts ranges
// fetched concurrently. Each part is written at its position relative to off.
func (s *Source) Download(ctx context.Context, w io.WriterAt, off, length int64, parts int) error {
	if parts <= 0 {
		parts = DefaultParts
	}
	if length <= 0 {
		return nil
	}
	per := length / int64(parts)
	if per == 0 {
		per, parts = length, 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < parts; i++ {
		i := i
		from := int64(i) * per
		n := per
		if i == parts-1 {
			n = length - from
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			body, err := s.ReadRange(off+from, n)
			if err != nil {
				return err
			}
			defer body.Close()
			got, err := io.Copy(io.NewOffsetWriter(w, from), body)
			if err != nil {
				return errors.Wrapf(err, "httprange: part %d", i)
			}
			if got != n {
				return errors.Errorf("httprange: part %d: %d of %d bytes", i, got, n)
			}
			return nil
		})
	}
	return g.Wait()
}
