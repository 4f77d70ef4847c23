package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ReviewGuide/internal/backend"
	"github.com/TobiSchelling/ReviewGuide/internal/config"
	"github.com/TobiSchelling/ReviewGuide/internal/database"
	"github.com/TobiSchelling/ReviewGuide/internal/logger"
	"github.com/TobiSchelling/ReviewGuide/internal/render"
	"github.com/TobiSchelling/ReviewGuide/internal/server"
	"github.com/TobiSchelling/ReviewGuide/internal/session"
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
	Use:     "reviewguide",
	Short:   "Smartphone review analysis and purchase guides",
	Long:    "ReviewGuide asks the analysis backend to summarize expert YouTube reviews and community opinions for a product, then waits for its purchase guide.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			if configPath != "" {
				return err
			}
			cfg = config.Default()
		} else {
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		if verbose {
			logger.Log.SetLevel(logrus.DebugLevel)
		}
		if path != "" {
			logger.Log.Debugf("Using config %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("reviewguide", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/reviewguide/",
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
		fmt.Println("Edit it to point at your analysis backend.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend and history status",
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

		fmt.Printf("Backend: %s\n", cfg.GetBaseURL())
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Analyses:")
		fmt.Printf("  Stored: %d\n", stats.Analyses)
		fmt.Println("\nPurchase guides:")
		fmt.Printf("  Completed: %d\n", stats.GuidesCompleted)
		fmt.Printf("  Failed: %d\n", stats.GuidesFailed)
		fmt.Printf("  Timed out: %d\n", stats.GuidesTimedOut)
		fmt.Printf("  Pending: %d\n", stats.GuidesPending)
		return nil
	},
}

// --- analyze command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [product name]",
	Short: "Analyze reviews for a product and wait for its purchase guide",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		productName := strings.Join(args, " ")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := backend.NewClient(cfg.GetBaseURL(), cfg.Backend.RequestTimeout, cfg.Backend.RequestsPerMinute)
		sess := session.New(client, nil, cfg.PollerConfig())
		progress := render.NewProgress(os.Stdout)

		var last session.State
		for st := range sess.Analyze(ctx, productName) {
			progress.Print(st)
			if err := db.RecordState(st); err != nil {
				logger.WithProduct(productName).WithError(err).Warn("saving analysis")
			}
			last = st
		}

		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			return nil
		}
		if last.Status == session.SubmissionFailed {
			return fmt.Errorf("analysis failed: %s", last.Kind)
		}
		return nil
	},
}

// --- history commands ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		analyses, err := db.GetAllAnalyses()
		if err != nil {
			return err
		}
		if len(analyses) == 0 {
			fmt.Println("No analyses yet. Run 'reviewguide analyze <product>' to start.")
			return nil
		}

		for _, a := range analyses {
			analyzedAt := ""
			if a.AnalyzedAt != nil {
				analyzedAt = *a.AnalyzedAt
			}
			fmt.Printf("  %-30s %2d videos  guide: %-10s %s\n", a.ProductName, a.VideoCount, render.GuideLabel(&a), analyzedAt)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [product name]",
	Short: "Show a stored analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		productName := strings.Join(args, " ")
		a, err := db.GetAnalysis(productName)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("no stored analysis for %q", productName)
		}
		render.Stored(os.Stdout, a)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [product name]",
	Short: "Remove a stored analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		productName := strings.Join(args, " ")
		a, err := db.GetAnalysis(productName)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("no stored analysis for %q", productName)
		}
		if err := db.DeleteAnalysis(productName); err != nil {
			return err
		}
		fmt.Printf("Removed analysis: %s\n", productName)
		return nil
	},
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

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg, port)
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
	dbPath := filepath.Join(dataDir, "reviewguide.db")
	return database.Open(dbPath)
}
