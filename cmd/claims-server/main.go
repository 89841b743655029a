package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/livestock/claims/internal/config"
	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/domain/export"
	"github.com/livestock/claims/internal/domain/importer"
	"github.com/livestock/claims/internal/platform/auth"
	"github.com/livestock/claims/internal/platform/db"
	"github.com/livestock/claims/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "claims-server",
		Short:        "Livestock mortality claims API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the claims API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")

			migrator, closePool, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.UpTo(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Apply migrations up to this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closePool, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import policy rows from an .xlsx or .csv file as draft claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Storage = config.StorageMemory
			}
			a, closeApp, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeApp()

			res, err := runImport(cmd.Context(), a.mapper, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().Bool("dry-run", false, "Validate the file against in-memory storage without saving")
	return cmd
}

func runImport(ctx context.Context, mapper *importer.Mapper, path string) (importer.Result, error) {
	src, err := importer.SourceFor(path)
	if err != nil {
		return importer.Result{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return importer.Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := src.Rows(f)
	if err != nil {
		return importer.Result{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return mapper.Run(ctx, rows), nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored claims to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawIDs, _ := cmd.Flags().GetStringSlice("id")
			all, _ := cmd.Flags().GetBool("all")
			out, _ := cmd.Flags().GetString("output")

			ids, err := parseIDs(rawIDs)
			if err != nil {
				return err
			}
			mode := export.ModeSingle
			if all || len(ids) > 1 {
				mode = export.ModeAll
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, closeApp, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeApp()

			doc, err := a.exporter.Export(cmd.Context(), ids, mode)
			if err != nil {
				return err
			}
			if out == "" {
				out = doc.Filename
			}
			if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d claim(s) to %s\n", len(ids), out)
			return nil
		},
	}
	cmd.Flags().StringSlice("id", nil, "Claim id to export (repeatable)")
	cmd.Flags().Bool("all", false, "Write one sheet per claim even for a single claim")
	cmd.Flags().StringP("output", "o", "", "Output file (defaults to the dated export name)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid claim id %q", s)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, claim.Invalid("at least one claim id is required")
	}
	return ids, nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, r := range roles {
				if r != auth.RoleClerk && r != auth.RoleAdmin {
					return fmt.Errorf("unknown role %q", r)
				}
			}
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "User the token is issued to")
	cmd.Flags().StringSlice("roles", []string{auth.RoleClerk}, "Roles granted by the token")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// openApp wires the services for a one-shot command.
func openApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	logger := newLogger(cfg)
	repo, pool, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if pool != nil {
			pool.Close()
		}
	}
	a, err := newApp(cfg, logger, repo, pool, nil)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, closeApp, err := openApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer closeApp()
	logger.Info().Str("storage", cfg.Storage).Msg("storage ready")

	e := a.newServer()

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting claims server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
		return err
	}
	return nil
}
