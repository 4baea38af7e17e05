package fetcher

import "sync/atomic"

// Stats counts fetch outcomes for one engine instance. Counters are atomic
// because asset fan-out increments them from concurrent goroutines.
type Stats struct {
	downloaded atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
}

// Downloaded returns the number of successful downloads.
func (s *Stats) Downloaded() int64 { return s.downloaded.Load() }

// Failed returns the number of fetches that exhausted retries or hit a
// permanent error.
func (s *Stats) Failed() int64 { return s.failed.Load() }

// Skipped returns the number of fetches satisfied by an existing local file.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }
