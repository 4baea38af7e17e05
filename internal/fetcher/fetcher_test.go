package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// testConfig disables pacing and shrinks backoff so tests run fast.
func testConfig(outputDir string) Config {
	return Config{
		OutputDir:      outputDir,
		Concurrency:    2,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
}

func newTestFetcher(t *testing.T, outputDir string) *Fetcher {
	t.Helper()
	f, err := New(testConfig(outputDir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestFetchDownloadsAndSaves(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f := newTestFetcher(t, dir)

	res, err := f.Fetch(context.Background(), server.URL, "http://example.com", Options{MainPage: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != OutcomeDownloaded {
		t.Errorf("outcome %s, want %s", res.Outcome, OutcomeDownloaded)
	}
	if want := filepath.Join(dir, "index.html"); res.Path != want {
		t.Errorf("path %q, want %q", res.Path, want)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "<html><body>hello</body></html>" {
		t.Errorf("saved content mismatch: %q", data)
	}
	if f.Stats().Downloaded() != 1 {
		t.Errorf("downloaded counter = %d, want 1", f.Stats().Downloaded())
	}
}

func TestFetchSkipsExistingWithoutNetwork(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	f := newTestFetcher(t, dir)
	res, err := f.Fetch(context.Background(), server.URL, "http://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Errorf("outcome %s, want %s", res.Outcome, OutcomeSkipped)
	}
	if string(res.Content) != "cached" {
		t.Errorf("content %q, want cached file content", res.Content)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
	if f.Stats().Skipped() != 1 {
		t.Errorf("skipped counter = %d, want 1", f.Stats().Skipped())
	}
}

func TestFetchForceRedownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	f := newTestFetcher(t, dir)
	res, err := f.Fetch(context.Background(), server.URL, "http://example.com", Options{Force: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != OutcomeDownloaded {
		t.Errorf("outcome %s, want %s", res.Outcome, OutcomeDownloaded)
	}
	if string(res.Content) != "fresh" {
		t.Errorf("content %q, want fresh", res.Content)
	}
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("eventually"))
	}))
	defer server.Close()

	f := newTestFetcher(t, t.TempDir())
	res, err := f.Fetch(context.Background(), server.URL, "http://example.com/retry", Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Outcome != OutcomeDownloaded {
		t.Errorf("outcome %s, want %s", res.Outcome, OutcomeDownloaded)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("server saw %d requests, want 3", n)
	}
}

func TestFetchFailsOnPermanentStatus(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t, t.TempDir())
	res, err := f.Fetch(context.Background(), server.URL, "http://example.com/missing", Options{})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome %s, want %s", res.Outcome, OutcomeFailed)
	}
	// No retry on a permanent status.
	if n := requests.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
	if f.Stats().Failed() != 1 {
		t.Errorf("failed counter = %d, want 1", f.Stats().Failed())
	}
}

func TestFetchNoSaveLeavesDiskUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{}"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f := newTestFetcher(t, dir)
	res, err := f.Fetch(context.Background(), server.URL, "http://example.com/css/site.css", Options{NoSave: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(res.Content) != "body{}" {
		t.Errorf("content %q", res.Content)
	}
	if res.Path != "" {
		t.Errorf("expected empty path, got %q", res.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "css", "site.css")); !os.IsNotExist(err) {
		t.Error("NoSave fetch wrote a file")
	}
}

func TestFetchMany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	dir := t.TempDir()
	f := newTestFetcher(t, dir)

	reqs := []Request{
		{ArchivedURL: server.URL + "/a.png", OriginalURL: "http://example.com/a.png"},
		{ArchivedURL: server.URL + "/b.png", OriginalURL: "http://example.com/b.png"},
		{ArchivedURL: server.URL + "/c.png", OriginalURL: "http://example.com/c.png"},
	}

	f.FetchMany(context.Background(), reqs, false)
	if got := f.Stats().Downloaded(); got != 3 {
		t.Errorf("downloaded = %d, want 3", got)
	}
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestFetchManySequential(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	f := newTestFetcher(t, t.TempDir())
	reqs := []Request{
		{ArchivedURL: server.URL + "/a.png", OriginalURL: "http://example.com/a.png"},
		{ArchivedURL: server.URL + "/b.png", OriginalURL: "http://example.com/b.png"},
	}
	f.FetchMany(context.Background(), reqs, true)

	if maxInFlight.Load() > 1 {
		t.Errorf("sequential mode had %d requests in flight", maxInFlight.Load())
	}
}

func TestFetchCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	f := newTestFetcher(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, server.URL, "http://example.com/x", Options{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
