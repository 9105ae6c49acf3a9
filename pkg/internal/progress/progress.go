// Package progress provides a counting reader used to report transfer
// progress without flooding the log.
package progress

import (
	"io"
	"time"
)

const (
	// updateInterval is the minimum time between two progress reports.
	updateInterval = 500 * time.Millisecond
	// minBytesForUpdate is the minimum number of bytes transferred between
	// two progress reports.
	minBytesForUpdate = 1024 * 1024
)

// ReportFunc receives the total number of bytes transferred so far.
type ReportFunc func(transferred int64)

// Reader wraps an io.Reader and reports cumulative progress through a
// rate-limited callback. The final total is always reported when the
// underlying reader is exhausted.
type Reader struct {
	r            io.Reader
	report       ReportFunc
	transferred  int64
	lastReported int64
	lastUpdate   time.Time
}

// NewReader returns a Reader wrapping r. report may be nil, in which case the
// Reader only counts.
func NewReader(r io.Reader, report ReportFunc) *Reader {
	return &Reader{r: r, report: report}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
	}
	if pr.report != nil {
		final := err != nil && pr.transferred != pr.lastReported
		throttled := pr.transferred-pr.lastReported >= minBytesForUpdate &&
			time.Since(pr.lastUpdate) >= updateInterval
		if final || throttled {
			pr.report(pr.transferred)
			pr.lastReported = pr.transferred
			pr.lastUpdate = time.Now()
		}
	}
	return n, err
}

// Transferred returns the total number of bytes read so far.
func (pr *Reader) Transferred() int64 {
	return pr.transferred
}
