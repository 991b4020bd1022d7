package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"beatwatch/internal/app"
	"beatwatch/internal/config"
	"beatwatch/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "beatwatch",
		Short: "Police newsroom ingestion, enrichment, and query surface",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newRefreshCmd())
	root.AddCommand(newReenrichCmd())

	return root
}

func newApplication() (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	return app.New(cfg, logger)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, serving refresh, query, and debug endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := application.Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			application.StartRegionTicker(ctx, app.DefaultRegionTickInterval)
			return application.Serve(ctx)
		},
	}
}

func newRefreshCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one synchronous refresh(region) and print the resulting counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := cmd.Context()
			if err := application.Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			newArticles, totalIncidents, err := application.Refresh(ctx, region)
			if err != nil {
				return err
			}
			fmt.Printf("region=%s new_articles=%d total_incidents=%d\n", region, newArticles, totalIncidents)
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region label to refresh (required)")
	cmd.MarkFlagRequired("region")
	return cmd
}

func newReenrichCmd() *cobra.Command {
	var articleID int64

	cmd := &cobra.Command{
		Use:   "reenrich",
		Short: "Replay enrichment for one article under the current model and prompt version",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := cmd.Context()
			if err := application.Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}

			if err := application.Reenrich(ctx, articleID); err != nil {
				return err
			}
			fmt.Printf("article_id=%d reenriched\n", articleID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&articleID, "article-id", 0, "article id to re-enrich (required)")
	cmd.MarkFlagRequired("article-id")
	return cmd
}
