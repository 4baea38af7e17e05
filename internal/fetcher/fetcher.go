// Package fetcher retrieves archived URLs over HTTP and persists them under a
// deterministic local path. It bounds concurrency with a semaphore, paces
// requests, retries rate-limited and transient failures with exponential
// backoff, and skips anything already present on disk. Per-fetch failures are
// counted, never escalated: a run keeps going no matter how many individual
// resources fail.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Outcome is the terminal state of one fetch.
type Outcome string

// Fetch outcomes.
const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Options adjusts a single fetch.
type Options struct {
	MainPage bool // the seed page of the crawl
	NoSave   bool // return content without persisting (CSS mining)
	Force    bool // re-download even when the local file exists
}

// Result is what a completed fetch hands back. Content is owned by the
// caller; the engine keeps no reference to it.
type Result struct {
	Content []byte
	Path    string
	Outcome Outcome
}

// Request names one archived resource for batch fetching.
type Request struct {
	ArchivedURL string
	OriginalURL string
}

// Config holds the engine's settings.
type Config struct {
	OutputDir      string
	Concurrency    int           // bounded pool size; 1 keeps traffic least detectable
	Timeout        time.Duration // per-request timeout
	ProxyURL       string        // optional http/https proxy
	MaxRetries     int           // retries after the first attempt
	RetryBaseDelay time.Duration // backoff base, doubled per attempt
	Pacing         PacingConfig
}

// DefaultConfig returns settings matching the tool's defaults.
func DefaultConfig(outputDir string) Config {
	return Config{
		OutputDir:      outputDir,
		Concurrency:    1,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		Pacing:         DefaultPacing(),
	}
}

// userAgents is rotated per request so repeated fetches do not present one
// static client signature.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

const refererURL = "https://web.archive.org/"

// Fetcher is the HTTP fetch engine.
type Fetcher struct {
	cfg    Config
	client *http.Client
	sem    chan struct{}
	pacer  *pacer
	stats  Stats
}

// New builds a fetch engine. The proxy URL, when set, must already have been
// validated by the caller.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		slog.Info("Using proxy", "proxy", proxyURL.Redacted())
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		sem:   make(chan struct{}, cfg.Concurrency),
		pacer: newPacer(cfg.Pacing),
	}, nil
}

// Stats returns the engine's outcome counters.
func (f *Fetcher) Stats() *Stats {
	return &f.stats
}

// Close releases idle network connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// Fetch retrieves one archived URL. The local path is derived from the
// original URL; when that path already exists and Force is unset, the file is
// read back without any network call. Failures increment the failure counter
// and come back as an error with Outcome Failed.
func (f *Fetcher) Fetch(ctx context.Context, archivedURL, originalURL string, opts Options) (*Result, error) {
	var localPath string
	if !opts.NoSave {
		// The pre-request derivation has no content type yet; extensionless
		// paths default to .html here and on save below.
		p, err := LocalPath(f.cfg.OutputDir, originalURL, "")
		if err != nil {
			f.stats.failed.Add(1)
			return &Result{Outcome: OutcomeFailed}, fmt.Errorf("derive path for %s: %w", originalURL, err)
		}
		localPath = p

		if !opts.Force {
			if content, ok := readExisting(localPath); ok {
				f.stats.skipped.Add(1)
				slog.Debug("File exists, skipping download", "path", localPath)
				return &Result{Content: content, Path: localPath, Outcome: OutcomeSkipped}, nil
			}
		}
	}

	// Concurrency admission.
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		f.stats.failed.Add(1)
		return &Result{Outcome: OutcomeFailed}, ctx.Err()
	}
	defer func() { <-f.sem }()

	if err := f.pacer.Wait(ctx); err != nil {
		f.stats.failed.Add(1)
		return &Result{Outcome: OutcomeFailed}, err
	}

	body, contentType, err := f.get(ctx, archivedURL)
	if err != nil {
		f.stats.failed.Add(1)
		return &Result{Outcome: OutcomeFailed}, err
	}

	if strings.Contains(contentType, "text") {
		body = decodeText(body)
	}

	if opts.NoSave {
		return &Result{Content: body, Outcome: OutcomeDownloaded}, nil
	}

	if p, err := LocalPath(f.cfg.OutputDir, originalURL, contentType); err == nil {
		localPath = p
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0750); err != nil {
		f.stats.failed.Add(1)
		return &Result{Outcome: OutcomeFailed}, fmt.Errorf("create directory for %s: %w", localPath, err)
	}
	if err := os.WriteFile(localPath, body, 0644); err != nil {
		f.stats.failed.Add(1)
		return &Result{Outcome: OutcomeFailed}, fmt.Errorf("write %s: %w", localPath, err)
	}

	f.stats.downloaded.Add(1)
	slog.Debug("Downloaded", "url", archivedURL, "path", localPath)
	return &Result{Content: body, Path: localPath, Outcome: OutcomeDownloaded}, nil
}

// FetchMany fans out over a batch of references, either pool-bounded
// concurrently or strictly serially, and logs the cumulative statistics.
func (f *Fetcher) FetchMany(ctx context.Context, reqs []Request, sequential bool) {
	if sequential {
		for _, r := range reqs {
			if _, err := f.Fetch(ctx, r.ArchivedURL, r.OriginalURL, Options{}); err != nil {
				slog.Debug("Asset fetch failed", "url", r.ArchivedURL, "error", err)
			}
		}
	} else {
		var wg sync.WaitGroup
		for _, r := range reqs {
			wg.Add(1)
			go func(r Request) {
				defer wg.Done()
				if _, err := f.Fetch(ctx, r.ArchivedURL, r.OriginalURL, Options{}); err != nil {
					slog.Debug("Asset fetch failed", "url", r.ArchivedURL, "error", err)
				}
			}(r)
		}
		wg.Wait()
	}

	slog.Info("Fetch statistics",
		"downloaded", f.stats.Downloaded(),
		"failed", f.stats.Failed(),
		"skipped", f.stats.Skipped())
}

// get issues the request with retry. HTTP 429 and transport errors back off
// exponentially with jitter up to MaxRetries; any other non-200 status fails
// immediately.
func (f *Fetcher) get(ctx context.Context, archivedURL string) (body []byte, contentType string, err error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, archivedURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
		req.Header.Set("Referer", refererURL)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			if attempt < f.cfg.MaxRetries {
				delay := f.backoff(attempt)
				if isProxyError(err) {
					slog.Warn("Proxy error, retrying", "url", archivedURL, "delay", delay, "error", err)
				} else {
					slog.Warn("Network error, retrying", "url", archivedURL, "delay", delay, "error", err)
				}
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, "", serr
				}
				continue
			}
			if isProxyError(err) {
				return nil, "", fmt.Errorf("proxy connection failed after %d retries: %w", f.cfg.MaxRetries, err)
			}
			return nil, "", fmt.Errorf("request failed after %d retries: %w", f.cfg.MaxRetries, err)
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < f.cfg.MaxRetries {
				delay := f.backoff(attempt)
				slog.Warn("Rate limited (429), retrying", "url", archivedURL, "delay", delay)
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, "", serr
				}
				continue
			}
			return nil, "", fmt.Errorf("rate limited after %d retries: %s", f.cfg.MaxRetries, archivedURL)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, archivedURL)
		}
		if readErr != nil {
			return nil, "", fmt.Errorf("read response body: %w", readErr)
		}

		return data, resp.Header.Get("Content-Type"), nil
	}
}

// backoff returns the delay before retry number attempt+1: exponential with
// up to one second of jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.cfg.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base*(1<<attempt) + jitter
}

// isProxyError distinguishes proxy failures from generic network errors so
// they can be reported separately.
func isProxyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "proxy") || strings.Contains(msg, "tunnel")
}

// decodeText normalizes text content to UTF-8, falling back to Latin-1 for
// legacy pages. Content that decodes under neither stays as raw bytes.
func decodeText(body []byte) []byte {
	if utf8.Valid(body) {
		return body
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(body); err == nil {
		return decoded
	}
	return body
}

// readExisting loads a previously mirrored file. The file's existence is the
// run's only resume signal; there is no separate manifest.
func readExisting(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}
