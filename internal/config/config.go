// Package config defines the mirroring configuration and its validation.
// Validation runs before any network activity: a bad timestamp or proxy URL
// is fatal up front, never mid-crawl.
package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"wbmirror/internal/wayback"
)

// TransportHTTP and TransportBrowser name the available fetch strategies.
const (
	TransportHTTP    = "http"
	TransportBrowser = "browser"
)

// Config holds the full mirroring configuration.
type Config struct {
	TargetURL string `mapstructure:"target_url" yaml:"target_url"` // original site URL to mirror
	Timestamp string `mapstructure:"timestamp" yaml:"timestamp"`   // snapshot timestamp (YYYYMMDDHHMMSS)

	OutputDir        string        `mapstructure:"output_dir" yaml:"output_dir"`               // mirror root; defaults to the target host
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`             // bounded fetch pool size
	Depth            int           `mapstructure:"depth" yaml:"depth"`                         // link-follow depth; 1 = seed page only
	Proxy            string        `mapstructure:"proxy" yaml:"proxy"`                         // optional http/https proxy URL
	NoAssets         bool          `mapstructure:"no_assets" yaml:"no_assets"`                 // pages only, skip asset mirroring
	SequentialAssets bool          `mapstructure:"sequential_assets" yaml:"sequential_assets"` // fetch assets one at a time
	Transport        string        `mapstructure:"transport" yaml:"transport"`                 // http or browser
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`     // per-request timeout

	JournalPath string `mapstructure:"journal_path" yaml:"journal_path"` // SQLite journal; empty disables it

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultConfig returns the defaults: single-connection fetching, seed page
// only, HTTP transport.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    1,
		Depth:          1,
		Transport:      TransportHTTP,
		RequestTimeout: 30 * time.Second,
		JournalPath:    "./wbmirror.db",
		LogLevel:       "info",
	}
}

// Validate checks the configuration, filling in the derived output directory
// when unset.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return ErrNoTargetURL
	}
	if !wayback.ValidateTimestamp(c.Timestamp) {
		return ErrInvalidTimestamp
	}
	if !ValidProxyURL(c.Proxy) {
		return ErrInvalidProxyURL
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Depth <= 0 {
		return ErrInvalidDepth
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Transport != TransportHTTP && c.Transport != TransportBrowser {
		return ErrUnknownTransport
	}

	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir(c.TargetURL)
	}
	return nil
}

// ValidProxyURL reports whether a proxy URL is usable: http/https scheme, a
// hostname, and a port in range when one is given. Empty means no proxy and
// is valid.
func ValidProxyURL(proxyURL string) bool {
	if proxyURL == "" {
		return true
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Hostname() == "" {
		return false
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return false
		}
	}
	return true
}

// defaultOutputDir derives a directory name from the target host.
func defaultOutputDir(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "mirror"
	}
	host := u.Host
	if host == "" {
		host = strings.Split(u.Path, "/")[0]
	}
	if host == "" {
		return "mirror"
	}
	return host
}
