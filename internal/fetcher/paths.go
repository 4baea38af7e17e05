package fetcher

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// queryReplacer flattens a query string into a filename-safe fragment. Both
// separators collapse to underscore, so distinct queries can collide on the
// same local file; that trade-off is deliberate.
var queryReplacer = strings.NewReplacer("&", "_", "=", "_")

// contentTypeExts maps response content types to local file extensions. The
// fixed table keeps path derivation deterministic.
var contentTypeExts = map[string]string{
	"text/html":              ".html",
	"application/xhtml+xml":  ".html",
	"text/css":               ".css",
	"text/javascript":        ".js",
	"application/javascript": ".js",
	"application/json":       ".json",
	"text/plain":             ".txt",
	"text/xml":               ".xml",
	"application/xml":        ".xml",
	"image/png":              ".png",
	"image/jpeg":             ".jpg",
	"image/gif":              ".gif",
	"image/svg+xml":          ".svg",
	"image/webp":             ".webp",
	"image/x-icon":           ".ico",
	"application/pdf":        ".pdf",
	"font/woff":              ".woff",
	"font/woff2":             ".woff2",
}

// LocalPath derives the mirror path for an original URL. The same
// (originalURL, contentType) pair always yields the same path:
//
//	http://example.com           -> index.html
//	http://example.com/blog/     -> blog/index.html
//	http://example.com/p?page=2  -> p_page_2.html
//
// A query string is folded into the filename stem so distinct query variants
// of one path land in distinct files.
func LocalPath(outputDir, originalURL, contentType string) (string, error) {
	u, err := url.Parse(originalURL)
	if err != nil {
		return "", err
	}

	p := u.Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}

	switch {
	case p == "" || p == "/":
		p = "index.html"
	case strings.HasSuffix(p, "/"):
		p += "index.html"
	}
	p = strings.TrimPrefix(p, "/")

	if u.RawQuery != "" {
		ext := path.Ext(p)
		stem := strings.TrimSuffix(p, ext)
		p = stem + "_" + queryReplacer.Replace(u.RawQuery) + ext
	}

	if path.Ext(p) == "" {
		p += extensionFor(contentType)
	}

	return filepath.Join(outputDir, filepath.FromSlash(p)), nil
}

// extensionFor picks a file extension for an extensionless path. Without a
// content type (the pre-request case) it defaults to .html.
func extensionFor(contentType string) string {
	ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ct == "" {
		return ".html"
	}
	if ext, ok := contentTypeExts[strings.ToLower(ct)]; ok {
		return ext
	}
	if strings.HasPrefix(ct, "text/") {
		return ".html"
	}
	return ""
}
