package wayback

import "testing"

func TestConstructURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		timestamp string
		want      string
		wantErr   bool
	}{
		{
			name:      "with scheme",
			url:       "http://example.com",
			timestamp: "20240417160532",
			want:      "https://web.archive.org/web/20240417160532/http://example.com",
		},
		{
			name:      "without scheme",
			url:       "example.com/page",
			timestamp: "20240417160532",
			want:      "https://web.archive.org/web/20240417160532/http://example.com/page",
		},
		{
			name:      "https preserved",
			url:       "https://example.com",
			timestamp: "20200101000000",
			want:      "https://web.archive.org/web/20200101000000/https://example.com",
		},
		{
			name:      "empty URL",
			url:       "",
			timestamp: "20240417160532",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConstructURL(tt.url, tt.timestamp)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	urls := []string{
		"http://example.com",
		"http://example.com/blog/post?page=2",
		"https://example.com/deep/path/",
	}

	for _, u := range urls {
		archived, err := ConstructURL(u, "20240417160532")
		if err != nil {
			t.Fatalf("ConstructURL(%q): %v", u, err)
		}
		if got := ExtractOriginalURL(archived); got != u {
			t.Errorf("round trip of %q: got %q", u, got)
		}
	}
}

func TestExtractOriginalURLPassthrough(t *testing.T) {
	// Non-archived input comes back unchanged.
	if got := ExtractOriginalURL("http://example.com/page"); got != "http://example.com/page" {
		t.Errorf("got %q", got)
	}
}

func TestExtractTimestampWithModifiers(t *testing.T) {
	for _, mod := range []string{"", "im_", "js_", "cs_", "if_", "id_", "oe_"} {
		url := "https://web.archive.org/web/20240417160532" + mod + "/http://example.com/a.png"
		if got := ExtractTimestamp(url); got != "20240417160532" {
			t.Errorf("modifier %q: got %q, want 20240417160532", mod, got)
		}
	}
}

func TestExtractTimestampMissing(t *testing.T) {
	if got := ExtractTimestamp("http://example.com"); got != "" {
		t.Errorf("expected empty timestamp, got %q", got)
	}
	if got := ExtractTimestamp("https://web.archive.org/web/short/http://example.com"); got != "" {
		t.Errorf("expected empty timestamp, got %q", got)
	}
}

func TestConvertToArchivedURL(t *testing.T) {
	ref := "https://web.archive.org/web/20240417160532/http://example.com"

	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "plain URL",
			url:  "http://example.com/img/a.png",
			want: "https://web.archive.org/web/20240417160532/http://example.com/img/a.png",
		},
		{
			name: "protocol relative",
			url:  "//cdn.example.com/lib.js",
			want: "https://web.archive.org/web/20240417160532/https://cdn.example.com/lib.js",
		},
		{
			name: "already archived is not double-wrapped",
			url:  "https://web.archive.org/web/20240417160532im_/http://example.com/a.png",
			want: "https://web.archive.org/web/20240417160532/http://example.com/a.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertToArchivedURL(tt.url, ref); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertToArchivedURLNoTimestamp(t *testing.T) {
	// Reference without a timestamp leaves the URL untouched.
	if got := ConvertToArchivedURL("http://example.com/a.png", "http://example.com"); got != "http://example.com/a.png" {
		t.Errorf("got %q", got)
	}
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "im_ modifier",
			url:  "https://web.archive.org/web/20240417160532im_/http://example.com/a.png",
			want: "https://web.archive.org/web/20240417160532/http://example.com/a.png",
		},
		{
			name: "bare underscore",
			url:  "https://web.archive.org/web/20240417160532_/http://example.com",
			want: "https://web.archive.org/web/20240417160532/http://example.com",
		},
		{
			name: "already clean",
			url:  "https://web.archive.org/web/20240417160532/http://example.com",
			want: "https://web.archive.org/web/20240417160532/http://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanURL(tt.url)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			// Idempotent.
			if again := CleanURL(got); again != got {
				t.Errorf("not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestValidateTimestamp(t *testing.T) {
	valid := []string{"20240417160532", "19990101000000"}
	invalid := []string{"", "2024", "2024041716053a", "20241317160532", "202404171605320"}

	for _, ts := range valid {
		if !ValidateTimestamp(ts) {
			t.Errorf("expected %q to be valid", ts)
		}
	}
	for _, ts := range invalid {
		if ValidateTimestamp(ts) {
			t.Errorf("expected %q to be invalid", ts)
		}
	}
}
