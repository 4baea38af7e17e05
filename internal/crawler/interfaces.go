package crawler

import (
	"context"

	"wbmirror/internal/fetcher"
)

// Transport fetches archived URLs. The HTTP engine in internal/fetcher is the
// default implementation; a browser-engine transport with its own pacing and
// evasion strategy can replace it without orchestrator changes.
type Transport interface {
	Fetch(ctx context.Context, archivedURL, originalURL string, opts fetcher.Options) (*fetcher.Result, error)
	FetchMany(ctx context.Context, reqs []fetcher.Request, sequential bool)
	Stats() *fetcher.Stats
}

// Journal records crawl outcomes for reporting. It is append-only and never
// consulted during the run: the mirrored files themselves are the only resume
// signal.
type Journal interface {
	RecordPage(page *PageRecord) error
	RecordError(url, errorType, message string) error
	Close() error
}
