package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/log"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/imagestore"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
)

type Config struct {
	Log        config.Log
	Postgres   config.Postgres
	ImageStore config.ImageStore
	HTTP       config.HTTP
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sl-csv",
		Short:         "Export and import the product catalog as CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newExportCommand(), newImportCommand())

	return root
}

func newExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every product as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCSVService(cmd.Context(), func(svc service.CSVService) error {
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}

				return svc.ExportProducts(cmd.Context(), w)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "file to write, - for stdout")

	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create or update products from a CSV file",
		Long: `Create or update products from a CSV file.

Rows are matched to existing products by title, ignoring case and
surrounding spaces. Invalid rows are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			return withCSVService(cmd.Context(), func(svc service.CSVService) error {
				result, err := svc.ImportProducts(cmd.Context(), r)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	return cmd
}

func withCSVService(ctx context.Context, fn func(service.CSVService) error) error {
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Log)

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	svc, err := newCSVService(logger, pgxPool, cfg)
	if err != nil {
		return err
	}

	return fn(svc)
}

func newCSVService(logger *slog.Logger, pool *pgxpool.Pool, cfg Config) (service.CSVService, error) {
	imageStore, err := imagestore.New(cfg.ImageStore)
	if err != nil {
		return nil, fmt.Errorf("error creating image store: %w", err)
	}

	v, err := validator.NewDefaultValidator()
	if err != nil {
		return nil, fmt.Errorf("error creating validator: %w", err)
	}

	dbClient := db.NewClient(pool)
	productRepository := repository.NewProductRepository(dbClient)
	saleRepository := repository.NewSaleRepository(dbClient)
	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)

	imageService := service.NewImageService(logger, imageStore, cfg.ImageStore.PlaceholderPrefixes, cfg.HTTP.MaxUploadBytes, nil)
	productService := service.NewProductService(logger, dbClient, v, productRepository, saleRepository, outboxMsgRepository, imageService)

	return service.NewCSVService(productService), nil
}
