// Package cmd provides the wbmirror command-line interface: flag parsing,
// configuration loading, and wiring of the fetch engine, journal, and
// crawler.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"wbmirror/internal/config"
	"wbmirror/internal/crawler"
	"wbmirror/internal/fetcher"
	"wbmirror/internal/logging"
	"wbmirror/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "wbmirror URL",
	Short: "Mirror a website snapshot from the Wayback Machine",
	Long: `wbmirror downloads an archived website snapshot from the Wayback Machine
into a local directory tree, following same-domain links breadth-first and
mirroring page assets (images, stylesheets, scripts, fonts, media).

Already-downloaded files are skipped, so an interrupted run can simply be
restarted with the same arguments.`,
	Example: `  wbmirror -s 20240417160532 http://example.com
  wbmirror -s 20240417160532 -l 3 -c 4 -o ./mirror http://example.com
  wbmirror -s 20240417160532 -p http://proxy:8080 --sequential-assets http://example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMirror,

	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx; cancellation propagates to
// every in-flight fetch.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version string shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./wbmirror.yml)")
	rootCmd.Flags().Bool("show-config", false, "Display the effective configuration in YAML format and exit")

	rootCmd.Flags().StringP("snapshot", "s", "", "Snapshot timestamp (YYYYMMDDHHMMSS)")
	rootCmd.Flags().StringP("output", "o", "", "Output directory (default is the target host name)")
	rootCmd.Flags().IntP("concurrency", "c", 1, "Number of concurrent downloads")
	rootCmd.Flags().IntP("level", "l", 1, "Link-follow depth; 1 mirrors the seed page only")
	rootCmd.Flags().StringP("proxy", "p", "", "HTTP/HTTPS proxy URL")
	rootCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Per-request timeout")
	rootCmd.Flags().Bool("no-assets", false, "Skip page assets, mirror pages only")
	rootCmd.Flags().Bool("sequential-assets", false, "Fetch assets one at a time instead of concurrently")
	rootCmd.Flags().String("transport", config.TransportHTTP, "Fetch transport: 'http' or 'browser'")
	rootCmd.Flags().String("journal", "./wbmirror.db", "SQLite journal path; empty disables journaling")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Also write JSON logs to this file")

	bindings := []struct {
		viperKey string
		flagName string
	}{
		{"timestamp", "snapshot"},
		{"output_dir", "output"},
		{"concurrency", "concurrency"},
		{"depth", "level"},
		{"proxy", "proxy"},
		{"request_timeout", "timeout"},
		{"no_assets", "no-assets"},
		{"sequential_assets", "sequential-assets"},
		{"transport", "transport"},
		{"journal_path", "journal"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
	}
	for _, b := range bindings {
		if err := viper.BindPFlag(b.viperKey, rootCmd.Flags().Lookup(b.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", b.flagName, err)
		}
	}
}

// initConfig reads the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("wbmirror")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func runMirror(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(args) > 0 {
		cfg.TargetURL = args[0]
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logOpts := logging.DefaultOptions()
	logOpts.Level = cfg.LogLevel
	logOpts.FilePath = cfg.LogFile
	logCloser, err := logging.Setup(logOpts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	// The interface pair keeps nil-ness explicit: a nil *SQLiteJournal inside
	// a non-nil interface would defeat the crawler's nil checks.
	var j crawler.Journal
	if journal != nil {
		j = journal
	}

	if err := crawler.New(cfg, transport, j).Run(cmd.Context()); err != nil {
		return err
	}

	if journal != nil {
		if summary, err := journal.GetSummary(); err == nil {
			slog.Info("Journal summary",
				"downloaded", summary.Downloaded,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
				"errors", summary.Errors)
		}
	}
	return nil
}

// buildTransport constructs the configured fetch transport.
func buildTransport(cfg *config.Config) (crawler.Transport, error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		fc := fetcher.DefaultConfig(cfg.OutputDir)
		fc.Concurrency = cfg.Concurrency
		fc.Timeout = cfg.RequestTimeout
		fc.ProxyURL = cfg.Proxy
		return fetcher.New(fc)
	case config.TransportBrowser:
		return nil, fmt.Errorf("browser transport is not available in this build")
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// openJournal opens the SQLite journal and records the run parameters.
// An empty path disables journaling.
func openJournal(cfg *config.Config) (*storage.SQLiteJournal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}

	if dir := filepath.Dir(cfg.JournalPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	journal, err := storage.NewSQLiteJournal(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	meta := map[string]string{
		"target_url": cfg.TargetURL,
		"timestamp":  cfg.Timestamp,
		"depth":      strconv.Itoa(cfg.Depth),
		"output_dir": cfg.OutputDir,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := journal.SetMeta(k, v); err != nil {
			_ = journal.Close()
			return nil, fmt.Errorf("failed to record run metadata: %w", err)
		}
	}
	return journal, nil
}

func showCurrentConfig(cfg *config.Config) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Effective wbmirror configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Config file search path: ./wbmirror.yml\n")
	fmt.Printf("# Environment variable prefix: WM_\n\n")
	fmt.Print(string(yamlData))
	return nil
}
