package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/quotedoc/cmd/quotedoc/cli"
	"github.com/odyssey-erp/quotedoc/internal/app"
	docgenhttp "github.com/odyssey-erp/quotedoc/internal/docgen/http"
	"github.com/odyssey-erp/quotedoc/internal/exports"
	"github.com/odyssey-erp/quotedoc/internal/observability"
	"github.com/odyssey-erp/quotedoc/internal/platform/cache"
	"github.com/odyssey-erp/quotedoc/jobs"
	"github.com/odyssey-erp/quotedoc/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	root := newRootCommand(&code)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Default().Error("quotedoc", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

func newRootCommand(code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "quotedoc",
		Short:         "Quotation document service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		newRenderCommand(code),
		newJobsCommand(),
	)
	return root
}

func serve(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg, "server")
	metrics := observability.NewMetrics()

	pipeline, err := app.NewPipeline(ctx, cfg, logger, metrics, app.CallerTokensOnly)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	defer pipeline.Close()

	var (
		exportService *exports.Service
		jobHandler    *jobs.Handler
	)
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, background exports disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		opts, err := cache.AsynqOptions(cfg.RedisAddr)
		if err != nil {
			return err
		}
		jobsClient, err := jobs.NewClient(opts)
		if err != nil {
			return fmt.Errorf("init jobs client: %w", err)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(opts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		exportService = exports.NewService(exports.NewStore(redisClient, cfg.ExportTTL), jobsClient, logger)
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	params := app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: report.NewHandler(pipeline.Converter, logger),
		JobHandler:    jobHandler,
		Metrics:       metrics,
	}
	// A nil *exports.Service must not reach the handler as a non-nil interface.
	if exportService != nil {
		params.DocumentHandler = docgenhttp.NewHandler(logger, pipeline.Source, pipeline.Generator, exportService)
	} else {
		params.DocumentHandler = docgenhttp.NewHandler(logger, pipeline.Source, pipeline.Generator, nil)
	}
	router := app.NewRouter(params)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func newRenderCommand(code *int) *cobra.Command {
	var (
		opts  cli.RenderOptions
		notes string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a quotation document to a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := cli.ParseNotes(notes)
			if err != nil {
				return err
			}
			opts.SelectedNotes = selected
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg, "cli")
			pipeline, err := app.NewPipeline(cmd.Context(), cfg, logger, nil, app.ServiceTokens)
			if err != nil {
				return fmt.Errorf("init pipeline: %w", err)
			}
			defer pipeline.Close()
			*code = cli.NewRenderCLI(pipeline.Source, pipeline.Generator).RenderCommand(cmd.Context(), opts)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.QuotationID, "quotation", "", "quotation id")
	flags.StringVar(&opts.OfferID, "offer", "", "offer or revision id (defaults to the winning or first offer)")
	flags.StringVar(&notes, "notes", "", "comma separated boilerplate note indices")
	flags.StringVar(&opts.Format, "format", "docx", "output format: docx or pdf")
	flags.StringVar(&opts.OutDir, "out", ".", "output directory")
	flags.BoolVar(&opts.JSONOutput, "json", false, "print a JSON summary")
	return cmd
}

func newJobsCommand() *cobra.Command {
	jobsCmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	withCLI := func(fn func(cmd *cobra.Command, c *cli.JobsCLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts, err := cache.AsynqOptions(cfg.RedisAddr)
			if err != nil {
				return err
			}
			c, err := cli.NewJobsCLI(opts)
			if err != nil {
				return err
			}
			defer func() {
				_ = c.Close()
			}()
			return fn(cmd, c, args)
		}
	}

	var trigger cli.TriggerOptions
	triggerCmd := &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job (" + jobs.TaskExportsPurge + ", " + jobs.TaskQuotationDocumentGenerate + ")",
		Args:  cobra.ExactArgs(1),
		RunE: withCLI(func(cmd *cobra.Command, c *cli.JobsCLI, args []string) error {
			info, err := c.Trigger(cmd.Context(), args[0], trigger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		}),
	}
	triggerCmd.Flags().StringVar(&trigger.ExportID, "export-id", "", "export record id")
	triggerCmd.Flags().DurationVar(&trigger.Retention, "retention", 0, "purge files older than this")

	var inspectQueue string
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue depth",
		RunE: withCLI(func(cmd *cobra.Command, c *cli.JobsCLI, _ []string) error {
			stats, err := c.InspectQueue(cmd.Context(), inspectQueue)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
			return nil
		}),
	}
	inspectCmd.Flags().StringVar(&inspectQueue, "queue", jobs.QueueDocuments, "queue name")

	var (
		scheduledQueue string
		size           int
	)
	scheduledCmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		RunE: withCLI(func(cmd *cobra.Command, c *cli.JobsCLI, _ []string) error {
			infos, err := c.ListScheduled(cmd.Context(), scheduledQueue, size)
			if err != nil {
				return err
			}
			for _, info := range infos {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s next=%s\n", info.ID, info.Type, info.NextProcessAt.Format(time.RFC3339))
			}
			return nil
		}),
	}
	scheduledCmd.Flags().StringVar(&scheduledQueue, "queue", jobs.QueueDefault, "queue name")
	scheduledCmd.Flags().IntVar(&size, "size", 10, "page size")

	jobsCmd.AddCommand(triggerCmd, inspectCmd, scheduledCmd)
	return jobsCmd
}
