// Package resumable provides an http.RoundTripper that transparently resumes
// interrupted GET responses from servers that support byte ranges.
//
// For GET responses with status 200 and "Accept-Ranges: bytes", the transport
// replaces the response body with a reader that, on a mid-stream failure,
// issues a follow-up request with a Range header continuing from the last
// delivered byte. A strong ETag (preferred) or Last-Modified validator is sent
// via If-Range so a changed resource restarts from scratch instead of being
// stitched together inconsistently. Requests that already carry a Range
// header, and responses that were transparently decompressed, are passed
// through unmodified.
package resumable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Option configures a Transport.
type Option func(*Transport)

// WithMaxRetries sets the maximum number of resume attempts after an error.
// Default: 3.
func WithMaxRetries(n int) Option {
	return func(t *Transport) { t.maxRetries = n }
}

// BackoffFunc computes the sleep duration before a given resume attempt
// (0-based).
type BackoffFunc func(attempt int) time.Duration

// WithBackoff sets the backoff strategy for resume attempts. Default:
// jittered exponential starting at 200ms, capped at 5s.
func WithBackoff(f BackoffFunc) Option {
	return func(t *Transport) { t.backoff = f }
}

// Transport wraps another http.RoundTripper and transparently retries
// mid-stream failures for GET requests against range-capable servers.
type Transport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    BackoffFunc
}

// New returns a Transport wrapping base. If base is nil,
// http.DefaultTransport is used.
func New(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:       base,
		maxRetries: 3,
		backoff: func(i int) time.Duration {
			d := time.Duration(float64(200*time.Millisecond) * math.Pow(2, float64(i)))
			if d > 5*time.Second {
				d = 5 * time.Second
			}
			// ±20% jitter.
			return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
		},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp == nil || err != nil {
		return resp, err
	}
	if !isResumable(req, resp) {
		return resp, nil
	}
	resp.Body = newBody(req, resp, t)
	return resp, nil
}

// isResumable checks whether the request/response pair is eligible for
// transparent resumption.
func isResumable(req *http.Request, resp *http.Response) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if strings.TrimSpace(req.Header.Get("Range")) != "" {
		return false
	}
	// Offsets will not line up if the body was auto-decompressed.
	if resp.Uncompressed || resp.Header.Get("Content-Encoding") != "" {
		return false
	}
	return supportsRange(resp.Header)
}

func supportsRange(h http.Header) bool {
	for _, v := range h.Values("Accept-Ranges") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "bytes") {
				return true
			}
		}
	}
	return false
}

// body wraps a response body and re-issues Range requests from the last
// delivered offset when a read fails mid-stream.
type body struct {
	ctx     context.Context
	t       *Transport
	origReq *http.Request
	rc      io.ReadCloser
	// delivered is the number of bytes successfully handed to the caller.
	delivered int64
	// total is the resource length from the initial Content-Length, or -1.
	total int64
	// validator headers captured from the initial response for If-Range.
	etag         string
	lastModified string
	retries      int
	done         bool
}

func newBody(req *http.Request, resp *http.Response, t *Transport) *body {
	b := &body{
		ctx:     req.Context(),
		t:       t,
		origReq: req,
		rc:      resp.Body,
		total:   resp.ContentLength,
	}
	if et := resp.Header.Get("ETag"); et != "" && !strings.HasPrefix(et, "W/") {
		b.etag = et
	} else if lm := resp.Header.Get("Last-Modified"); lm != "" {
		b.lastModified = lm
	}
	return b
}

func (b *body) Read(p []byte) (int, error) {
	for {
		if b.done {
			return 0, io.EOF
		}
		if b.rc == nil {
			if err := b.resume(); err != nil {
				return 0, err
			}
		}

		n, err := b.rc.Read(p)
		b.delivered += int64(n)

		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, io.EOF):
			if b.total >= 0 && b.delivered < b.total {
				// Short stream: the server closed early. Treat as a
				// mid-stream failure and resume.
				b.rc.Close()
				b.rc = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			b.done = true
			return n, io.EOF
		default:
			b.rc.Close()
			b.rc = nil
			if n > 0 {
				// Surface the bytes now; the next Read resumes.
				return n, nil
			}
			if b.retries >= b.t.maxRetries {
				return 0, err
			}
			continue
		}
	}
}

func (b *body) Close() error {
	rc := b.rc
	b.rc = nil
	b.done = true
	if rc != nil {
		return rc.Close()
	}
	return nil
}

// resume issues Range requests from the current offset until one succeeds or
// the retry budget is exhausted.
func (b *body) resume() error {
	if b.etag == "" && b.lastModified == "" {
		return fmt.Errorf("resumable: cannot resume without a validator")
	}
	for b.retries < b.t.maxRetries {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		attempt := b.retries
		b.retries++
		if err := sleepCtx(b.ctx, b.t.backoff(attempt)); err != nil {
			return err
		}

		req := b.origReq.Clone(b.ctx)
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", b.delivered))
		if b.etag != "" {
			req.Header.Set("If-Range", b.etag)
		} else {
			req.Header.Set("If-Range", b.lastModified)
		}

		resp, err := b.t.base.RoundTrip(req)
		if err != nil {
			continue
		}
		switch resp.StatusCode {
		case http.StatusPartialContent:
			if start, ok := parseContentRangeStart(resp.Header.Get("Content-Range")); !ok || start != b.delivered {
				resp.Body.Close()
				continue
			}
			b.rc = resp.Body
			return nil
		case http.StatusOK:
			// Resource changed (If-Range mismatch) or server ignored the
			// Range header: the full stream restarts at offset zero, so drop
			// the bytes already delivered and continue from there.
			if b.delivered > 0 {
				if _, err := io.CopyN(io.Discard, resp.Body, b.delivered); err != nil {
					resp.Body.Close()
					continue
				}
			}
			b.total = resp.ContentLength
			b.rc = resp.Body
			return nil
		default:
			resp.Body.Close()
			continue
		}
	}
	return fmt.Errorf("resumable: retry budget exhausted after %d attempts", b.t.maxRetries)
}

// parseContentRangeStart extracts the start offset from a
// "bytes start-end/total" Content-Range header.
func parseContentRangeStart(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0, false
	}
	var start, end int64
	var total string
	if _, err := fmt.Sscanf(strings.TrimPrefix(v, "bytes "), "%d-%d/%s", &start, &end, &total); err != nil {
		return 0, false
	}
	return start, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
