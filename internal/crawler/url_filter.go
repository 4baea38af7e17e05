package crawler

import (
	"net/url"
	"strings"

	"wbmirror/internal/wayback"
)

// skipExtensions lists resources that are mirrored as assets, never
// traversed as pages.
var skipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".json", ".xml",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".tar", ".gz", ".7z",
	".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".mp3", ".wav", ".ogg", ".m4a", ".flac",
	".ttf", ".otf", ".woff", ".woff2", ".eot",
}

// ShouldFollow reports whether a discovered link is eligible for traversal:
// same original domain as the seed and not a known non-document resource.
func ShouldFollow(originalURL, seedURL string) bool {
	if !SameDomain(originalURL, seedURL) {
		return false
	}

	u, err := url.Parse(originalURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(p, ext) {
			return false
		}
	}
	return true
}

// SameDomain compares the original hosts of two URLs, unwrapping archived
// URLs first. Hosts match after stripping a www. prefix and any port. IDN
// forms and trailing dots are compared byte-wise; normalizing them is out of
// scope.
func SameDomain(a, b string) bool {
	if strings.Contains(a, "web.archive.org") {
		a = wayback.ExtractOriginalURL(a)
	}
	if strings.Contains(b, "web.archive.org") {
		b = wayback.ExtractOriginalURL(b)
	}

	ha, hb := normalizeHost(a), normalizeHost(b)
	return ha != "" && ha == hb
}

// normalizeHost extracts the comparable host part of a URL. Scheme-less
// input like "example.com/page" takes its first path segment as the host.
func normalizeHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := u.Host
	if host == "" {
		host = strings.Split(u.Path, "/")[0]
	}
	host = strings.ToLower(host)
	host = strings.Split(host, ":")[0]
	return strings.TrimPrefix(host, "www.")
}
