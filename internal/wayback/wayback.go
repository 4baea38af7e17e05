// Package wayback implements the URL scheme of the Wayback Machine's replay
// path. It converts between original (live-web) URLs and archived URLs of the
// form <base>/<14-digit-timestamp><modifier>/<original-url>.
package wayback

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// BaseURL is the root of the Wayback Machine replay path.
const BaseURL = "https://web.archive.org/web"

// ErrEmptyURL is returned when an empty original URL is given to ConstructURL.
var ErrEmptyURL = errors.New("original URL cannot be empty")

var (
	timestampRe = regexp.MustCompile(`/web/(\d{14})`)
	// Modifier tokens appear directly after the timestamp and request a
	// transformed rendition (image-only, unframed, etc.). The canonical
	// timestamp-only form is preferred so the same logical resource always
	// maps to the same archived URL.
	modifierRe = regexp.MustCompile(`(/web/\d{14})(im_|js_|cs_|if_|id_|oe_|_)(/)`)
)

// ConstructURL builds an archived URL from an original URL and a snapshot
// timestamp. The timestamp is not validated here; callers validate it before
// any network activity.
func ConstructURL(originalURL, timestamp string) (string, error) {
	if originalURL == "" {
		return "", ErrEmptyURL
	}
	return BaseURL + "/" + timestamp + "/" + ensureScheme(originalURL), nil
}

// ExtractOriginalURL returns the original URL embedded in an archived URL.
// Input that does not look like an archived URL is returned unchanged.
func ExtractOriginalURL(archivedURL string) string {
	if !strings.HasPrefix(archivedURL, BaseURL) {
		return archivedURL
	}
	parts := strings.Split(archivedURL, "/")
	for i, part := range parts {
		if part == "web" && i+2 < len(parts) {
			// Skip "web" and the timestamp segment.
			original := strings.Join(parts[i+2:], "/")
			return ensureScheme(original)
		}
	}
	return archivedURL
}

// ExtractTimestamp returns the 14-digit snapshot timestamp of an archived
// URL, tolerating a trailing modifier token. It returns "" when the URL does
// not carry one; callers treat that as "not an archived URL", not an error.
func ExtractTimestamp(archivedURL string) string {
	if !strings.Contains(archivedURL, BaseURL) {
		return ""
	}
	m := timestampRe.FindStringSubmatch(archivedURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ConvertToArchivedURL re-bases a URL onto the timestamp carried by
// refArchivedURL. A URL that is already archived is cleaned instead of being
// wrapped a second time. Protocol-relative URLs are normalized to https.
func ConvertToArchivedURL(rawURL, refArchivedURL string) string {
	timestamp := ExtractTimestamp(refArchivedURL)
	if timestamp == "" {
		return rawURL
	}

	if strings.HasPrefix(rawURL, BaseURL) {
		return CleanURL(rawURL)
	}

	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	archived, err := ConstructURL(rawURL, timestamp)
	if err != nil {
		return rawURL
	}
	return archived
}

// CleanURL strips replay modifier tokens from an archived URL, including the
// bare toolbar-suppressed form <timestamp>_/. Applying it to an already-clean
// URL is a no-op.
func CleanURL(rawURL string) string {
	return modifierRe.ReplaceAllString(rawURL, "$1$3")
}

// ValidateTimestamp reports whether ts is a well-formed snapshot timestamp
// (14 digits, parseable as YYYYMMDDHHMMSS).
func ValidateTimestamp(ts string) bool {
	if len(ts) != 14 {
		return false
	}
	for _, r := range ts {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := time.Parse("20060102150405", ts)
	return err == nil
}

// ensureScheme prefixes a default scheme when the URL lacks one.
func ensureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "http://" + rawURL
}
