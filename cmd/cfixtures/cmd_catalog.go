package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cfcheck-fixtures/internal/catalog/scanner"
	"github.com/cfcheck-fixtures/internal/common/db"
	"github.com/cfcheck-fixtures/internal/common/discord"
	"github.com/cfcheck-fixtures/internal/common/maintenance"
)

var importDir string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the fixture directory into the catalog once",
	Long: `Fingerprints the fixture directory (FIXTURE_DIR or --dir) and, when it
differs from the active catalog version, imports it as a new version and
activates it.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the fixture directory and keep the catalog current",
	Long: `Runs the fixture scanner and the version cleanup scheduler until
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "", "fixture directory (default: FIXTURE_DIR)")
	serveCmd.Flags().StringVar(&importDir, "dir", "", "fixture directory (default: FIXTURE_DIR)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

func connect(ctx context.Context) (*db.DB, error) {
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	database, err := db.New(ctx, cfg.Database.ConnectionString(), log)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func scannerConfig() scanner.Config {
	dir := cfg.Fixtures.Dir
	if importDir != "" {
		dir = importDir
	}
	return scanner.Config{
		Dir:           dir,
		URLs:          cfg.Fixtures.URLs,
		CIDescriptor:  cfg.Fixtures.CIDescriptor,
		CheckInterval: cfg.Fixtures.ScanInterval,
		DebounceDelay: cfg.Fixtures.DebounceDelay,
	}
}

func scannerOptions() []scanner.Option {
	var opts []scanner.Option
	if client := discord.NewClient(cfg.Logging.DiscordURL); client.Enabled() {
		opts = append(opts, scanner.WithNotifier(client))
	}
	return opts
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	database, err := connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	s := scanner.NewScheduler(scannerConfig(), database, log, scannerOptions()...)
	res, err := s.CheckNow(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Imported {
		fmt.Fprintf(out, "catalog is current (fingerprint %s)\n", res.Fingerprint)
		return nil
	}
	fmt.Fprintf(out, "imported version %d (%s): %d datasets, %d CI jobs, %d rows\n",
		res.VersionID, res.VersionName, res.Stats.Datasets, res.Stats.Jobs, res.Stats.Total())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	database, err := connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	log.Info("Fixture catalog service starting",
		"log_level", cfg.Logging.Level,
		"fixture_dir", scannerConfig().Dir,
		"fixture_urls", len(cfg.Fixtures.URLs))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var wg sync.WaitGroup

	cleanup := maintenance.NewCleanupScheduler(database, log, maintenance.SchedulerConfig{
		CleanupInterval:      cfg.Maintenance.CleanupInterval,
		InitialDelay:         maintenance.DefaultSchedulerConfig().InitialDelay,
		KeepInactiveVersions: cfg.Maintenance.KeepInactiveVersions,
	})
	if err := cleanup.Start(ctx); err != nil {
		return err
	}
	defer cleanup.Stop()

	opts := append(scannerOptions(), scanner.WithImportLocker(cleanup))
	s := scanner.NewScheduler(scannerConfig(), database, log, opts...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Start(ctx); err != nil {
			log.Error("Fixture scanner error", "error", err)
		}
	}()

	select {
	case <-sigChan:
		log.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	log.Info("Fixture catalog service stopped")
	return nil
}
