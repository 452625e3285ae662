package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/event-content-agent/internal/agent/generator"
	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/storage"
	"github.com/event-content-agent/internal/storage/sqlite"
	"github.com/event-content-agent/internal/tracker"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
)

const (
	// jobTimeout bounds a single scheduled generation pass
	jobTimeout        = 30 * time.Minute
	webhookJobTimeout = 5 * time.Minute
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "event-content-scheduler",
		Short: "Background scheduler for the event content agent",
		Long: `Runs the daily generation pass and the optional webhook push on cron
schedules. This daemon should be run as a service for unattended operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	base := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	log = base.WithComponent("scheduler")

	log.Info().Msg("Starting event content scheduler")

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Start health check server
	go startHealthServer(m)

	ctx := context.Background()

	wh, err := warehouse.Open(ctx, cfg.Warehouse, base)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer wh.Close()

	limiter := ratelimit.NewLimiter(ratelimit.Limits{
		LLMRequestsPerMinute:     cfg.RateLimit.LLMRequestsPerMinute,
		WebhookRequestsPerMinute: cfg.RateLimit.WebhookRequestsPerMinute,
		BatchDelay:               cfg.Batch.RateLimitDelay,
	})

	gen, err := ai.NewGenerator(cfg.LLM, limiter, base)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}
	model := ai.NewContentGenerator(gen, base, ai.WithGeneratorMetrics(m))

	opts := []generator.Option{
		generator.WithRepository(repo),
		generator.WithMetrics(m),
	}
	webhookEnabled := cfg.Webhook.Enabled && cfg.Webhook.URL != ""
	if webhookEnabled {
		opts = append(opts, generator.WithWebhook(export.NewWebhookSender(cfg.Webhook, limiter, m, base)))
	}
	if cfg.Tracker.Enabled {
		t, err := tracker.NewSheetsTracker(ctx, cfg.Tracker, base)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create tracker")
		} else {
			opts = append(opts, generator.WithTracker(t))
		}
	}

	agent := generator.NewAgent(wh, model, export.NewWriter(cfg.Export.OutputDir, base), cfg, base, opts...)

	// Create cron scheduler; a pass still running when the next one is due is skipped
	cl := cronLogger{log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	// Schedule generation job
	_, err = c.AddFunc(cfg.Scheduler.GenerateCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		log.Info().Msg("Running scheduled generation")

		overrides, err := loadOverrides()
		if err != nil {
			log.Error().Err(err).Msg("Failed to load prompt overrides")
			return
		}

		result, err := agent.Run(ctx, generator.RunOptions{
			Mode:      models.RunModeScheduled,
			Overrides: overrides,
			Webhook:   webhookEnabled,
		})
		if err != nil {
			log.Error().Err(err).Msg("Scheduled generation failed")
			return
		}

		log.Info().
			Str("run_id", result.Run.RunID).
			Int("generated", result.Run.ContentGenerated).
			Int("errors", result.Run.ContentErrors).
			Strs("files", result.Files).
			Msg("Scheduled generation completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule generation job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.GenerateCron).Msg("Generation job scheduled")

	// Schedule webhook push job
	if cfg.Scheduler.WebhookCron != "" {
		if !webhookEnabled {
			log.Warn().Msg("scheduler.webhook_cron is set but the webhook is disabled; skipping push job")
		} else {
			_, err = c.AddFunc(cfg.Scheduler.WebhookCron, func() {
				ctx, cancel := context.WithTimeout(context.Background(), webhookJobTimeout)
				defer cancel()
				log.Info().Msg("Running scheduled webhook push")

				payload, err := agent.SendWebhook(ctx, "", 0)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled webhook push failed")
					return
				}

				log.Info().
					Int("posts", payload.WebhookData.ContentCount).
					Msg("Scheduled webhook push completed")
			})
			if err != nil {
				return fmt.Errorf("failed to schedule webhook job: %w", err)
			}
			log.Info().Str("cron", cfg.Scheduler.WebhookCron).Msg("Webhook job scheduled")
		}
	}

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	<-c.Stop().Done()

	return nil
}

func loadOverrides() (*ai.PromptOverrides, error) {
	if cfg.Generation.PromptsFile == "" {
		return nil, nil
	}
	o, err := ai.LoadOverrides(cfg.Generation.PromptsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return o, err
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// startHealthServer serves /health and, when enabled, Prometheus metrics
func startHealthServer(m *metrics.Metrics) {
	port := cfg.Scheduler.HealthPort
	if port == "" {
		port = "10000"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if m != nil && cfg.Metrics.Path != "" {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Event Content Scheduler"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
