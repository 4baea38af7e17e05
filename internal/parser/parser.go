// Package parser extracts resource references and hyperlinks from fetched
// HTML and CSS documents. Every discovered URL is resolved against the
// original site URL and rewritten into archived form, so callers only ever
// see fetchable archive URLs. Parsing is best-effort: malformed markup yields
// whatever could be extracted, never an error.
package parser

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"wbmirror/internal/wayback"
)

// Kind classifies a discovered reference by the role it plays on the page.
type Kind string

// Reference kinds.
const (
	KindImage    Kind = "image"
	KindCSS      Kind = "css"
	KindJS       Kind = "js"
	KindFont     Kind = "font"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindLink     Kind = "link"
	KindOther    Kind = "other"
)

// Reference is a single discovered resource or hyperlink. OriginalURL is
// always absolute; ArchivedURL carries the same snapshot timestamp as the
// page that referenced it.
type Reference struct {
	OriginalURL string
	ArchivedURL string
	Kind        Kind
}

// kindExtensions maps reference kinds to the extensions that identify them.
// Order matters: the first matching kind wins.
var kindExtensions = []struct {
	kind Kind
	exts []string
}{
	{KindImage, []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp"}},
	{KindCSS, []string{".css"}},
	{KindJS, []string{".js"}},
	{KindFont, []string{".woff", ".woff2", ".ttf", ".otf", ".eot"}},
	{KindVideo, []string{".mp4", ".webm", ".ogg", ".avi", ".mov"}},
	{KindAudio, []string{".mp3", ".wav", ".m4a"}},
	{KindDocument, []string{".pdf", ".doc", ".docx", ".xls", ".xlsx"}},
}

var cssURLRe = regexp.MustCompile(`(?i)url\s*\(\s*["']?([^"'()]+)["']?\s*\)`)

// archiveHost is the scheme+host part of the replay base, used to absolutize
// archive-relative references like /web/<ts>/http://...
var archiveHost = strings.TrimSuffix(wayback.BaseURL, "/web")

// ExtractAssets scans an HTML document for resource-bearing attributes and
// returns the typed references it finds. baseArchivedURL is the archived URL
// the document was fetched from; its timestamp is stamped onto every result.
func ExtractAssets(htmlContent []byte, baseArchivedURL string) []Reference {
	doc, err := html.Parse(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil
	}

	var refs []Reference
	walk(doc, func(n *html.Node) {
		switch n.Data {
		case "link":
			rel := strings.ToLower(attr(n, "rel"))
			href := attr(n, "href")
			if href == "" {
				return
			}
			switch {
			case strings.Contains(rel, "stylesheet"):
				refs = appendRef(refs, href, baseArchivedURL, KindCSS)
			case strings.Contains(rel, "icon"):
				refs = appendRef(refs, href, baseArchivedURL, KindImage)
			}

		case "script":
			if src := attr(n, "src"); src != "" {
				refs = appendRef(refs, src, baseArchivedURL, KindJS)
			}

		case "img":
			if src := attr(n, "src"); src != "" {
				refs = appendRef(refs, src, baseArchivedURL, KindImage)
			}
			for _, candidate := range strings.Split(attr(n, "srcset"), ",") {
				fields := strings.Fields(candidate)
				if len(fields) > 0 {
					refs = appendRef(refs, fields[0], baseArchivedURL, KindImage)
				}
			}

		case "video":
			if src := attr(n, "src"); src != "" {
				refs = appendRef(refs, src, baseArchivedURL, KindVideo)
			}

		case "audio":
			if src := attr(n, "src"); src != "" {
				refs = appendRef(refs, src, baseArchivedURL, KindAudio)
			}

		case "source":
			// Nested under video, audio or picture; classify by extension.
			if src := attr(n, "src"); src != "" {
				refs = appendRef(refs, src, baseArchivedURL, classifyURL(src))
			}

		case "meta":
			prop := attr(n, "property")
			if prop == "og:image" || prop == "twitter:image" {
				if content := attr(n, "content"); content != "" {
					refs = appendRef(refs, content, baseArchivedURL, KindImage)
				}
			}
		}

		if style := attr(n, "style"); style != "" {
			refs = append(refs, ExtractCSSAssets([]byte(style), baseArchivedURL)...)
		}
	})

	return refs
}

// ExtractCSSAssets scans CSS text for url(...) declarations. It serves both
// inline style attributes and fetched stylesheet bodies.
func ExtractCSSAssets(cssContent []byte, baseArchivedURL string) []Reference {
	var refs []Reference
	for _, m := range cssURLRe.FindAllSubmatch(cssContent, -1) {
		rawURL := strings.TrimSpace(string(m[1]))
		if rawURL == "" || strings.HasPrefix(rawURL, "data:") {
			continue
		}
		refs = appendRef(refs, rawURL, baseArchivedURL, classifyURL(rawURL))
	}
	return refs
}

// ExtractLinks returns the document's hyperlinks as references of KindLink,
// de-duplicated by archived URL in first-seen order. Fragment-only and
// non-HTTP schemes are skipped.
func ExtractLinks(htmlContent []byte, baseArchivedURL string) []Reference {
	doc, err := html.Parse(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil
	}

	var links []Reference
	seen := make(map[string]struct{})
	walk(doc, func(n *html.Node) {
		if n.Data != "a" {
			return
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || hasSkippedScheme(href) {
			return
		}
		ref, ok := newReference(href, baseArchivedURL, KindLink)
		if !ok {
			return
		}
		if _, dup := seen[ref.ArchivedURL]; dup {
			return
		}
		seen[ref.ArchivedURL] = struct{}{}
		links = append(links, ref)
	})

	return links
}

// hasSkippedScheme reports whether a href is a fragment or a scheme that is
// never traversed.
func hasSkippedScheme(href string) bool {
	for _, prefix := range []string{"#", "javascript:", "mailto:", "tel:", "ftp:", "data:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// appendRef resolves rawURL and appends the resulting reference; unusable
// references are dropped, not surfaced as errors.
func appendRef(refs []Reference, rawURL, baseArchivedURL string, kind Kind) []Reference {
	if ref, ok := newReference(rawURL, baseArchivedURL, kind); ok {
		refs = append(refs, ref)
	}
	return refs
}

// newReference builds a Reference from a raw attribute value. Relative URLs
// resolve against the page's original URL, not its archived URL: that mirrors
// how a browser would have resolved them against the live site.
func newReference(rawURL, baseArchivedURL string, kind Kind) (Reference, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.HasPrefix(rawURL, "data:") {
		return Reference{}, false
	}

	// Archive-relative replay paths: /web/<ts>/http://...
	if strings.HasPrefix(rawURL, "/web/") && strings.Contains(rawURL, "http") {
		rawURL = archiveHost + rawURL
	}

	resolved := rawURL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") && !strings.HasPrefix(rawURL, "//") {
		base, err := url.Parse(wayback.ExtractOriginalURL(baseArchivedURL))
		if err != nil {
			return Reference{}, false
		}
		rel, err := url.Parse(rawURL)
		if err != nil {
			return Reference{}, false
		}
		resolved = base.ResolveReference(rel).String()
	}

	if strings.HasPrefix(resolved, "//") {
		resolved = "https:" + resolved
	}

	archived := wayback.CleanURL(wayback.ConvertToArchivedURL(resolved, baseArchivedURL))
	return Reference{
		OriginalURL: resolved,
		ArchivedURL: archived,
		Kind:        kind,
	}, true
}

// classifyURL maps a URL to a reference kind by extension. Unmatched URLs are
// KindOther.
func classifyURL(rawURL string) Kind {
	lower := strings.ToLower(rawURL)
	for _, entry := range kindExtensions {
		for _, ext := range entry.exts {
			if strings.Contains(lower, ext) {
				return entry.kind
			}
		}
	}
	return KindOther
}

// walk applies fn to every element node in the tree.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
