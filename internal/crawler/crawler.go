// Package crawler drives the breadth-first traversal of an archived site:
// one level at a time, pages fetched through a Transport, assets and links
// discovered by the parser, everything de-duplicated by archived URL. The
// frontier and visited set are owned by the Crawler instance with a single
// writer; no state is shared or global.
package crawler

import (
	"context"
	"log/slog"
	"time"

	"wbmirror/internal/config"
	"wbmirror/internal/fetcher"
	"wbmirror/internal/parser"
	"wbmirror/internal/wayback"
)

// Crawler is the traversal orchestrator.
type Crawler struct {
	cfg       *config.Config
	transport Transport
	journal   Journal

	// Single-writer state, owned by Run.
	frontier []Task
	visited  map[string]struct{}
}

// New creates a crawler. journal may be nil to disable journaling.
func New(cfg *config.Config, transport Transport, journal Journal) *Crawler {
	return &Crawler{
		cfg:       cfg,
		transport: transport,
		journal:   journal,
		visited:   make(map[string]struct{}),
	}
}

// Run performs the crawl: seed at level 1, then one full level per
// iteration until the frontier empties or the depth limit is reached. Depth
// is the only bound; per-page failures never abort the run.
func (c *Crawler) Run(ctx context.Context) error {
	seedArchived, err := wayback.ConstructURL(c.cfg.TargetURL, c.cfg.Timestamp)
	if err != nil {
		return err
	}

	slog.Info("Starting mirror", "url", seedArchived, "depth", c.cfg.Depth)
	c.frontier = append(c.frontier, Task{
		ArchivedURL: seedArchived,
		OriginalURL: c.cfg.TargetURL,
		Level:       1,
	})

	for level := 1; len(c.frontier) > 0 && level <= c.cfg.Depth; level++ {
		batch := c.drainLevel(level)
		if len(batch) == 0 {
			continue
		}
		slog.Info("Processing level", "level", level, "pages", len(batch))

		for _, task := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, seen := c.visited[task.ArchivedURL]; seen {
				slog.Debug("Skipping already processed", "url", task.OriginalURL)
				continue
			}
			// Mark before fetching so a link discovered later in this batch
			// cannot re-enqueue the same page.
			c.visited[task.ArchivedURL] = struct{}{}

			c.processTask(ctx, task)
		}
	}

	stats := c.transport.Stats()
	slog.Info("Mirror complete",
		"pages", len(c.visited),
		"downloaded", stats.Downloaded(),
		"skipped", stats.Skipped(),
		"failed", stats.Failed())
	return nil
}

// drainLevel removes and returns all frontier tasks at the given level,
// preserving insertion order. Tasks are appended in non-decreasing level
// order, so the level's tasks form the frontier's prefix.
func (c *Crawler) drainLevel(level int) []Task {
	n := 0
	for n < len(c.frontier) && c.frontier[n].Level == level {
		n++
	}
	batch := c.frontier[:n]
	c.frontier = c.frontier[n:]
	return batch
}

// processTask fetches one page, mirrors its assets, and enqueues its links.
// Any failure is confined to this task.
func (c *Crawler) processTask(ctx context.Context, task Task) {
	slog.Info("Processing page", "url", task.OriginalURL, "level", task.Level)

	res, err := c.transport.Fetch(ctx, task.ArchivedURL, task.OriginalURL, fetcher.Options{
		MainPage: task.Level == 1,
	})
	if err != nil {
		slog.Warn("Failed to get content", "url", task.OriginalURL, "error", err)
		c.recordError(task, err)
		return
	}
	if res == nil || len(res.Content) == 0 {
		slog.Warn("Empty content", "url", task.OriginalURL)
		c.recordError(task, nil)
		return
	}

	assetCount := 0
	if !c.cfg.NoAssets {
		assetCount = c.mirrorAssets(ctx, res.Content, task.ArchivedURL)
	}

	if task.Level < c.cfg.Depth {
		c.enqueueLinks(res.Content, task)
	}

	c.recordPage(task, res, assetCount)
}

// mirrorAssets extracts a page's resource references, mines fetched
// stylesheets one level deep for nested url(...) references, and fetches the
// de-duplicated set. Returns the number of assets fetched.
func (c *Crawler) mirrorAssets(ctx context.Context, content []byte, baseArchivedURL string) int {
	assets := parser.ExtractAssets(content, baseArchivedURL)

	var stylesheets []parser.Reference
	for _, a := range assets {
		if a.Kind == parser.KindCSS {
			stylesheets = append(stylesheets, a)
		}
	}
	for _, css := range stylesheets {
		slog.Debug("Fetching CSS for mining", "url", css.ArchivedURL)
		res, err := c.transport.Fetch(ctx, css.ArchivedURL, css.OriginalURL, fetcher.Options{NoSave: true})
		if err != nil {
			slog.Debug("CSS fetch failed", "url", css.ArchivedURL, "error", err)
			continue
		}
		assets = append(assets, parser.ExtractCSSAssets(res.Content, css.ArchivedURL)...)
	}

	seen := make(map[string]struct{}, len(assets))
	reqs := make([]fetcher.Request, 0, len(assets))
	for _, a := range assets {
		if _, dup := seen[a.ArchivedURL]; dup {
			continue
		}
		seen[a.ArchivedURL] = struct{}{}
		reqs = append(reqs, fetcher.Request{ArchivedURL: a.ArchivedURL, OriginalURL: a.OriginalURL})
	}
	if len(reqs) == 0 {
		return 0
	}

	slog.Info("Downloading assets", "count", len(reqs))
	c.transport.FetchMany(ctx, reqs, c.cfg.SequentialAssets)
	return len(reqs)
}

// enqueueLinks extracts the page's hyperlinks and queues the ones that pass
// the same-domain and visited filters for the next level.
func (c *Crawler) enqueueLinks(content []byte, task Task) {
	links := parser.ExtractLinks(content, task.ArchivedURL)

	queued := 0
	for _, link := range links {
		if !ShouldFollow(link.OriginalURL, c.cfg.TargetURL) {
			continue
		}
		if _, seen := c.visited[link.ArchivedURL]; seen {
			continue
		}
		c.frontier = append(c.frontier, Task{
			ArchivedURL: link.ArchivedURL,
			OriginalURL: link.OriginalURL,
			Level:       task.Level + 1,
		})
		queued++
	}

	slog.Debug("Extracted links", "url", task.OriginalURL, "found", len(links), "queued", queued)
}

func (c *Crawler) recordPage(task Task, res *fetcher.Result, assetCount int) {
	if c.journal == nil {
		return
	}
	err := c.journal.RecordPage(&PageRecord{
		ArchivedURL: task.ArchivedURL,
		OriginalURL: task.OriginalURL,
		Level:       task.Level,
		Outcome:     string(res.Outcome),
		LocalPath:   res.Path,
		AssetCount:  assetCount,
		FetchedAt:   time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to record page", "url", task.OriginalURL, "error", err)
	}
}

func (c *Crawler) recordError(task Task, err error) {
	if c.journal == nil {
		return
	}
	msg := "empty content"
	if err != nil {
		msg = err.Error()
	}
	if jerr := c.journal.RecordError(task.ArchivedURL, "fetch_error", msg); jerr != nil {
		slog.Error("Failed to record error", "url", task.OriginalURL, "error", jerr)
	}
}
