package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"catalog-importer/config"
	"catalog-importer/handlers"
	"catalog-importer/models"
	"catalog-importer/services"
	"catalog-importer/storage"
	"catalog-importer/utils"
)

// openStore connects the configured backend. The memory backend starts with
// a home page so imports against it can run.
func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.CatalogStore, error) {
	switch cfg.Store {
	case "memory":
		store := storage.NewMemoryStore()
		if _, _, err := services.EnsureHome(ctx, store, cfg.HomeTitle); err != nil {
			return nil, err
		}
		logger.Warn("[store] Using in-memory store, nothing will be persisted")
		return store, nil
	case "postgres":
		retry := &utils.RetryConfig{
			MaxAttempts: cfg.DBMaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		}
		store, err := storage.NewPostgresStore(cfg.DSN(), retry, logger)
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want postgres or memory)", cfg.Store)
	}
}

func newImportCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var (
		dryRun     bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import products from a CSV or XLSX file with columns: product_category, product, price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rows, err := storage.ReadSource(args[0])
			if err != nil {
				return err
			}
			logger.Info("[import] Read %d rows from %s", len(rows), args[0])

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := services.NewImporter(store, logger, cfg.ListingRootTitle).Import(ctx, rows, dryRun)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := writeReport(reportPath, res.Outcomes); err != nil {
					logger.Error("Report write failed: %v", err)
				} else {
					logger.Info("[import] Row report saved to %s", reportPath)
				}
			}

			services.NewReporter(cfg.MaxErrorsShown).Print(cmd.OutOrStdout(), res)
			if res.HasErrors() {
				return errRowErrors
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be imported without actually importing")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a per-row CSV report to this path")
	return cmd
}

func writeReport(path string, outcomes []models.RowOutcome) error {
	w, err := storage.NewCSVReportWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteOutcomes(outcomes); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func newInitSiteCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init-site",
		Short: "Create the home page if the site has none",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			home, created, err := services.EnsureHome(cmd.Context(), store, cfg.HomeTitle)
			if err != nil {
				return err
			}
			if created {
				logger.Info("[site] Created home page %q (id=%d)", home.Title, home.ID)
			} else {
				logger.Info("[site] Home page %q already exists (id=%d)", home.Title, home.ID)
			}
			return nil
		},
	}
}

func newServeCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin product upload endpoint and the product feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			controller := handlers.NewImportController(
				services.NewImporter(store, logger, cfg.ListingRootTitle),
				services.NewReporter(cfg.MaxErrorsShown),
				logger,
			)
			r := mux.NewRouter()
			controller.Register(r)
			handlers.NewCatalogController(services.NewCatalogService(store), logger).Register(r)

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("[http] Listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
