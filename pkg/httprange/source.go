// Package httprange reads remote objects through HTTP range requests so a
// ZIP archive can be listed and extracted without downloading all of it.
package httprange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrRangeUnsupported is returned when the server ignores the Range header.
var ErrRangeUnsupported = errors.New("httprange: range requests not supported")

// Source implements io.ReaderAt over a URL.
type Source struct {
	ctx     context.Context
	url     string
	client  *http.Client
	headers http.Header
	size    int64
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewSource probes url for its size and range support.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{ctx: ctx, url: url, client: http.DefaultClient}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	size, err := s.probe()
	if err != nil {
		return nil, err
	}
	s.size = size
	return s, nil
}

// Size returns the size of the remote object.
func (s *Source) Size() int64 {
	return s.size
}

// URL returns the remote location.
func (s *Source) URL() string {
	return s.url
}

// ReadAt reads len(p) bytes at off with one range request. Fewer bytes are
// returned with io.EOF at the end of the object.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, errors.Errorf("httprange: read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	expected := len(p)
	if end >= s.size {
		end = s.size - 1
		expected = int(end - off + 1)
	}

	body, err := s.rangeBody(off, end)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	n, err := io.ReadFull(body, p[:expected])
	if err != nil {
		return n, errors.Wrapf(err, "httprange: read bytes %d-%d", off, end)
	}
	if expected < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns a reader for length bytes at off. The caller closes it.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	if length <= 0 || off >= s.size {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if length > s.size-off {
		length = s.size - off
	}
	body, err := s.rangeBody(off, off+length-1)
	if err != nil {
		return nil, err
	}
	return &rangeReadCloser{body: body, r: io.LimitReader(body, length)}, nil
}

func (s *Source) rangeBody(off, end int64) (io.ReadCloser, error) {
	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "httprange: GET %s bytes %d-%d", s.url, off, end)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		drain(resp.Body)
		return nil, ErrRangeUnsupported
	}
	drain(resp.Body)
	return nil, errors.Errorf("httprange: range request failed: %s", resp.Status)
}

// probe learns the size from a one-byte range request, the way that also
// proves range support.
func (s *Source) probe() (int64, error) {
	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "httprange: probe %s", s.url)
	}
	defer drain(resp.Body)
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		return 0, errors.Errorf("httprange: probe failed: %s", resp.Status)
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

func (s *Source) newRequest(method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrapf(err, "httprange: request %s", s.url)
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

type rangeReadCloser struct {
	body io.ReadCloser
	r    io.Reader
}

func (r *rangeReadCloser) Read(p []byte) (int, error) { return r.r.Read(p) }

func (r *rangeReadCloser) Close() error {
	drain(r.body)
	return nil
}

// drain reads the rest of body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// parseContentRange extracts the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, errors.Errorf("httprange: invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, errors.Errorf("httprange: invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, errors.Errorf("httprange: invalid Content-Range %q", value)
	}
	return size, nil
}
