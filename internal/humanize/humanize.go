// Package humanize wraps github.com/dustin/go-humanize's byte and
// time formatting, so diagnostic output reads "1.2 GB" / "3 days ago"
// instead of raw integers. Its one caller in this module is
// cacheindex.Statistics.HumanTotalSize.
package humanize

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes renders n as a human-readable size, e.g. "1.2 GB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Age renders the duration since t in relative form, e.g. "3 days ago".
func Age(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// RelTime renders d as a plain relative duration, e.g. "2h3m" rounded
// to something log-readable, for ages not anchored to a wall-clock
// timestamp (TTL windows, GC intervals).
func RelTime(d time.Duration) string {
	return d.Round(time.Second).String()
}
