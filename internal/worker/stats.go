package worker

import "sync/atomic"

// Stats aggregates outcomes across all workers of a run.
type Stats struct {
	listingsDone   atomic.Int64
	listingsFailed atomic.Int64
	postsWritten   atomic.Int64
	postsFailed    atomic.Int64
	bytes          atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	ListingsDone   int64 `json:"listings_done"`
	ListingsFailed int64 `json:"listings_failed"`
	PostsWritten   int64 `json:"posts_written"`
	PostsFailed    int64 `json:"posts_failed"`
	Bytes          int64 `json:"bytes"`
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		ListingsDone:   s.listingsDone.Load(),
		ListingsFailed: s.listingsFailed.Load(),
		PostsWritten:   s.postsWritten.Load(),
		PostsFailed:    s.postsFailed.Load(),
		Bytes:          s.bytes.Load(),
	}
}
