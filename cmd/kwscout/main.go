package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kwscout/internal/analysis"
	"github.com/TobiSchelling/kwscout/internal/config"
	"github.com/TobiSchelling/kwscout/internal/database"
	"github.com/TobiSchelling/kwscout/internal/metrics"
	"github.com/TobiSchelling/kwscout/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kwscout",
	Short:   "SEO keyword opportunities from search results",
	Long:    "kwscout extracts keywords from your page and the top search results for a query, and reports where competitors use them more than you do.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(slog.LevelInfo)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err == nil:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		case configPath != "":
			return err
		default:
			slog.Debug("no config file found, using defaults")
			cfg = config.Default()
		}

		setupLogging(cfg.LogLevel())
		return nil
	},
}

func setupLogging(level slog.Level) {
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kwscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kwscout/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose the extractor, search provider and API key variables.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and saved run statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Providers:")
		fmt.Printf("  Extraction: %s (language %s, top %d)\n", cfg.Extraction.Provider, cfg.Extraction.Language, cfg.Extraction.TopK)
		fmt.Printf("  Content: %s%s\n", cfg.Content.Provider, keyState(cfg.Content.Provider == "textrazor", cfg.Content.APIKeyEnv))
		fmt.Printf("  Search: %s%s\n", cfg.SERP.Provider, keyState(cfg.SERP.Provider == "serpapi", cfg.SERP.APIKeyEnv))
		fmt.Println("\nSaved runs:")
		fmt.Printf("  Total: %d (text %d, url %d, serp %d)\n", stats.Runs,
			stats.RunsByMode[database.ModeText], stats.RunsByMode[database.ModeURL], stats.RunsByMode[database.ModeSERP])
		fmt.Printf("  Sources: %d (%d failed)\n", stats.Sources, stats.FailedSources)
		fmt.Printf("  Keywords: %d (%d distinct)\n", stats.Keywords, stats.DistinctPhrase)
		fmt.Printf("\nDatabase: %s\n", db.Path())
		return nil
	},
}

func keyState(needsKey bool, envName string) string {
	if !needsKey {
		return ""
	}
	if config.APIKey(envName) == "" {
		return fmt.Sprintf(" (%s not set)", envName)
	}
	return fmt.Sprintf(" (%s set)", envName)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") {
			port = cfg.Server.Port
		}

		m := metrics.New()
		m.WatchDatabase(db)
		pipe := analysis.New(cfg, m)

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, pipe, m, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "kwscout.db")
	return database.Open(dbPath)
}

// loadRun opens the database and fetches one run.
func loadRun(id string) (*database.Run, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	run, err := db.GetRun(id)
	if errors.Is(err, database.ErrRunNotFound) {
		return nil, fmt.Errorf("run %s not found; list runs with: kwscout runs list", id)
	}
	return run, err
}
