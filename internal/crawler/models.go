package crawler

import "time"

// Task is one page pending breadth-first traversal. Tasks are created by the
// orchestrator (the seed at level 1, links at level N+1), consumed exactly
// once, and never mutated.
type Task struct {
	ArchivedURL string
	OriginalURL string
	Level       int
}

// PageRecord is the journal entry for one processed page.
type PageRecord struct {
	ArchivedURL string
	OriginalURL string
	Level       int
	Outcome     string // downloaded, skipped or failed
	LocalPath   string
	AssetCount  int
	FetchedAt   time.Time
}
