package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"rankedin.shikanime.studio/cmd/rankedin/app"
	"rankedin.shikanime.studio/internal/config"
	"rankedin.shikanime.studio/internal/database"
	"rankedin.shikanime.studio/internal/rankedin"
	rankedinhttp "rankedin.shikanime.studio/internal/rankedin/http"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var (
	cfg               = config.New()
	shutdownTelemetry = func() {}

	rootCmd = &cobra.Command{
		Use:               "rankedin",
		Short:             "GitHub rankings server and utilities",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { shutdownTelemetry() },
	}
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Run the API server",
		RunE:  runServer,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrate(true),
	}
	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Revert all applied migrations",
		RunE:  runMigrate(false),
	}
	maintenanceCmd = &cobra.Command{
		Use:   "maintenance",
		Short: "Repair and check ranking data",
	}
	dedupeCmd = &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate users, repositories and topics",
		RunE:  runDedupe,
	}
	clampCmd = &cobra.Command{
		Use:   "clamp",
		Short: "Reset negative counts to zero",
		RunE:  runClamp,
	}
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Report duplicates, negative counts and incomplete rows",
		RunE:  runValidate,
	}
	contributeCmd = &cobra.Command{
		Use:   "contribute <user|repo|topic> <identifier>",
		Short: "Add an entity to the rankings",
		Args:  cobra.ExactArgs(2),
		RunE:  runContribute,
	}

	// Flags
	addr string
	dsn  string
)

func init() {
	serverCmd.Flags().StringVar(&addr, "addr", "", "Address to run the server on (host:port). If empty, uses HOST and PORT environment variables")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database source name in the format driver://dataSourceName. Falls back to DSN environment variable")
	migrateCmd.AddCommand(upCmd, downCmd)
	maintenanceCmd.AddCommand(dedupeCmd, clampCmd, validateCmd)
	rootCmd.AddCommand(serverCmd, migrateCmd, maintenanceCmd, contributeCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env failed: %w", err)
	}
	if err := cfg.Load(); err != nil {
		return err
	}
	if dsn != "" {
		cfg.Set("DSN", dsn)
	}
	config.SetupLog(cfg)
	cfg.Watch()

	shutdown, err := config.SetupTelemetry(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("setup telemetry failed: %w", err)
	}
	shutdownTelemetry = shutdown
	return nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := rankedinhttp.NewServerForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	finalAddr := addr
	if finalAddr == "" {
		finalAddr = cfg.GetAddr()
	}
	if err := srv.ListenAndServe(ctx, finalAddr); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runMigrate(up bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, err := database.NewForConfig(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		mg, err := database.NewMigrator(db, rankedin.Models()...)
		if err != nil {
			return err
		}
		if up {
			return mg.Up(ctx)
		}
		return mg.Down(ctx)
	}
}

// withRankedIn opens the application clients for the duration of fn.
func withRankedIn(ctx context.Context, fn func(*rankedin.RankedIn) error) error {
	ri, err := rankedin.NewForConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer ri.Close()
	return fn(ri)
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	return withRankedIn(cmd.Context(), func(ri *rankedin.RankedIn) error {
		report, err := ri.Maintenance().Dedupe(cmd.Context())
		if err != nil {
			return err
		}
		app.PrintDedupe(cmd.OutOrStdout(), report)
		return nil
	})
}

func runClamp(cmd *cobra.Command, _ []string) error {
	return withRankedIn(cmd.Context(), func(ri *rankedin.RankedIn) error {
		report, err := ri.Maintenance().Clamp(cmd.Context())
		if err != nil {
			return err
		}
		app.PrintClamp(cmd.OutOrStdout(), report)
		return nil
	})
}

func runValidate(cmd *cobra.Command, _ []string) error {
	return withRankedIn(cmd.Context(), func(ri *rankedin.RankedIn) error {
		report, err := ri.Maintenance().Validate(cmd.Context())
		if err != nil {
			return err
		}
		if !app.PrintValidation(cmd.OutOrStdout(), report) {
			return errors.New("validation found issues")
		}
		return nil
	})
}

func runContribute(cmd *cobra.Command, args []string) error {
	return withRankedIn(cmd.Context(), func(ri *rankedin.RankedIn) error {
		res, err := ri.Contributor().Contribute(cmd.Context(), rankedin.Kind(args[0]), args[1])
		if err != nil {
			if msg := rankedin.Message(err); msg != "" {
				return errors.New(msg)
			}
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	})
}
