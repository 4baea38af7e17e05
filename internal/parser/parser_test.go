package parser

import (
	"testing"
)

const baseArchived = "https://web.archive.org/web/20240417160532/http://example.com"

func archivedURL(original string) string {
	return "https://web.archive.org/web/20240417160532/" + original
}

func findRef(refs []Reference, originalURL string) *Reference {
	for i := range refs {
		if refs[i].OriginalURL == originalURL {
			return &refs[i]
		}
	}
	return nil
}

func TestExtractAssets(t *testing.T) {
	htmlContent := `
<!DOCTYPE html>
<html>
<head>
	<link rel="stylesheet" href="/css/site.css">
	<link rel="icon" href="/favicon.ico">
	<script src="/js/app.js"></script>
	<meta property="og:image" content="http://example.com/social.png">
</head>
<body>
	<img src="/img/logo.png" srcset="/img/logo.png 1x, /img/logo@2x.png 2x">
	<video src="/media/intro.mp4"></video>
	<audio src="/media/jingle.mp3"></audio>
	<div style="background: url('/img/bg.jpg')">content</div>
	<img src="data:image/png;base64,AAAA">
</body>
</html>`

	refs := ExtractAssets([]byte(htmlContent), baseArchived)

	tests := []struct {
		original string
		kind     Kind
	}{
		{"http://example.com/css/site.css", KindCSS},
		{"http://example.com/favicon.ico", KindImage},
		{"http://example.com/js/app.js", KindJS},
		{"http://example.com/social.png", KindImage},
		{"http://example.com/img/logo.png", KindImage},
		{"http://example.com/img/logo@2x.png", KindImage},
		{"http://example.com/media/intro.mp4", KindVideo},
		{"http://example.com/media/jingle.mp3", KindAudio},
		{"http://example.com/img/bg.jpg", KindImage},
	}

	for _, tt := range tests {
		ref := findRef(refs, tt.original)
		if ref == nil {
			t.Errorf("missing reference for %s", tt.original)
			continue
		}
		if ref.Kind != tt.kind {
			t.Errorf("%s: kind %s, want %s", tt.original, ref.Kind, tt.kind)
		}
		if want := archivedURL(tt.original); ref.ArchivedURL != want {
			t.Errorf("%s: archived URL %s, want %s", tt.original, ref.ArchivedURL, want)
		}
	}

	if ref := findRef(refs, "data:image/png;base64,AAAA"); ref != nil {
		t.Error("data URL should have been dropped")
	}
}

func TestExtractAssetsMalformed(t *testing.T) {
	// Unclosed tags and garbage must not panic or error, just best-effort.
	refs := ExtractAssets([]byte(`<html><body><img src="/a.png"><div><span`), baseArchived)
	if findRef(refs, "http://example.com/a.png") == nil {
		t.Error("expected asset from malformed document")
	}
}

func TestExtractCSSAssets(t *testing.T) {
	css := `
body { background: url(/img/a.png); }
.hero { background-image: url("../img/b.jpg"); }
@font-face { src: url('/fonts/site.woff2'); }
.skip { background: url(data:image/gif;base64,AAAA); }
`
	cssBase := archivedURL("http://example.com/css/site.css")
	refs := ExtractCSSAssets([]byte(css), cssBase)

	tests := []struct {
		original string
		kind     Kind
	}{
		{"http://example.com/img/a.png", KindImage},
		{"http://example.com/img/b.jpg", KindImage},
		{"http://example.com/fonts/site.woff2", KindFont},
	}
	for _, tt := range tests {
		ref := findRef(refs, tt.original)
		if ref == nil {
			t.Errorf("missing reference for %s", tt.original)
			continue
		}
		if ref.Kind != tt.kind {
			t.Errorf("%s: kind %s, want %s", tt.original, ref.Kind, tt.kind)
		}
	}
	if len(refs) != len(tests) {
		t.Errorf("expected %d references, got %d", len(tests), len(refs))
	}
}

func TestExtractCSSAssetsRebasing(t *testing.T) {
	// url(/img/a.png) in a stylesheet keeps the referencing page's timestamp.
	refs := ExtractCSSAssets([]byte(`div { background: url(/img/a.png); }`), baseArchived)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	want := "https://web.archive.org/web/20240417160532/http://example.com/img/a.png"
	if refs[0].ArchivedURL != want {
		t.Errorf("got %s, want %s", refs[0].ArchivedURL, want)
	}
}

func TestExtractLinks(t *testing.T) {
	htmlContent := `
<html><body>
	<a href="/blog?page=2">Blog</a>
	<a href="/blog?page=2">Blog again</a>
	<a href="http://example.com/about">About</a>
	<a href="#section">Anchor</a>
	<a href="javascript:void(0)">JS</a>
	<a href="mailto:x@example.com">Mail</a>
	<a href="tel:+123">Call</a>
	<a href="http://other-domain.com/page">Elsewhere</a>
</body></html>`

	links := ExtractLinks([]byte(htmlContent), baseArchived)

	want := []string{
		"http://example.com/blog?page=2",
		"http://example.com/about",
		"http://other-domain.com/page",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %+v", len(want), len(links), links)
	}
	for i, w := range want {
		if links[i].OriginalURL != w {
			t.Errorf("link %d: got %s, want %s", i, links[i].OriginalURL, w)
		}
		if links[i].Kind != KindLink {
			t.Errorf("link %d: kind %s", i, links[i].Kind)
		}
	}
}

func TestExtractLinksArchiveRelative(t *testing.T) {
	htmlContent := `<a href="/web/20240417160532/http://example.com/contact">Contact</a>`
	links := ExtractLinks([]byte(htmlContent), baseArchived)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if want := archivedURL("http://example.com/contact"); links[0].ArchivedURL != want {
		t.Errorf("got %s, want %s", links[0].ArchivedURL, want)
	}
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url  string
		kind Kind
	}{
		{"/a/b.png", KindImage},
		{"/style.css?v=3", KindCSS},
		{"/app.js", KindJS},
		{"/f.woff2", KindFont},
		{"/v.mp4", KindVideo},
		{"/a.mp3", KindAudio},
		{"/doc.pdf", KindDocument},
		{"/page", KindOther},
	}
	for _, tt := range tests {
		if got := classifyURL(tt.url); got != tt.kind {
			t.Errorf("classifyURL(%q) = %s, want %s", tt.url, got, tt.kind)
		}
	}
}
