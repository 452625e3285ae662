package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/event-content-agent/internal/agent/generator"
	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/dashboard"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/session"
	"github.com/event-content-agent/internal/storage"
	"github.com/event-content-agent/internal/storage/sqlite"
	"github.com/event-content-agent/internal/tracker"
	"github.com/event-content-agent/internal/warehouse"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
	limiter *ratelimit.MultiLimiter
	m       *metrics.Metrics
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen).SprintFunc()
	bad     = color.New(color.FgRed).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "event-content-agent",
		Short: "Social content generator for top-selling live events",
		Long: `Pulls the week's top-selling events from the analytics warehouse,
enriches and classifies them into story angles, and generates short-form
social posts with an LLM.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(dryRunCmd())
	rootCmd.AddCommand(testConnectionCmd())
	rootCmd.AddCommand(qualityCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(webhookCmd())
	rootCmd.AddCommand(trackerCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, bad("Error:"), err)
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	limiter = ratelimit.NewLimiter(ratelimit.Limits{
		LLMRequestsPerMinute:     cfg.RateLimit.LLMRequestsPerMinute,
		WebhookRequestsPerMinute: cfg.RateLimit.WebhookRequestsPerMinute,
		BatchDelay:               cfg.Batch.RateLimitDelay,
	})

	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Run history lives in SQLite
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if repo != nil {
		return repo.Close()
	}
	return nil
}

// ============ WIRING ============

// agentParts selects which external systems a command needs
type agentParts struct {
	warehouse bool
	// dial skips the connect-time ping so reachability is reported, not fatal
	dial  bool
	model bool
	// modelOptional keeps going without a model when the LLM config is invalid
	modelOptional bool
}

// newAgent wires a generator agent. The returned cleanup closes the
// warehouse connection.
func newAgent(ctx context.Context, parts agentParts) (*generator.Agent, func(), error) {
	cleanup := func() {}

	var wh generator.Warehouse
	if parts.warehouse {
		if cfg.Warehouse.DSN == "" {
			return nil, cleanup, fmt.Errorf("warehouse.dsn is required")
		}
		var client *warehouse.Client
		var err error
		if parts.dial {
			client, err = warehouse.Dial(cfg.Warehouse, log)
		} else {
			client, err = warehouse.Open(ctx, cfg.Warehouse, log)
		}
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect to warehouse: %w", err)
		}
		wh = client
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close warehouse connection")
			}
		}
	}

	var model generator.ContentModel
	if parts.model || parts.modelOptional {
		cm, err := newContentModel()
		switch {
		case err == nil:
			model = cm
		case parts.modelOptional:
			log.Warn().Err(err).Msg("Text generation model not configured")
		default:
			cleanup()
			return nil, func() {}, err
		}
	}

	opts := []generator.Option{
		generator.WithRepository(repo),
		generator.WithMetrics(m),
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		opts = append(opts, generator.WithWebhook(export.NewWebhookSender(cfg.Webhook, limiter, m, log)))
	}
	if cfg.Tracker.Enabled {
		t, err := newTracker(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create tracker")
		} else {
			opts = append(opts, generator.WithTracker(t))
		}
	}

	writer := export.NewWriter(cfg.Export.OutputDir, log)
	return generator.NewAgent(wh, model, writer, cfg, log, opts...), cleanup, nil
}

func newContentModel() (generator.ContentModel, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}
	gen, err := ai.NewGenerator(cfg.LLM, limiter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}
	return ai.NewContentGenerator(gen, log, ai.WithGeneratorMetrics(m)), nil
}

func newTracker(ctx context.Context) (*tracker.SheetsTracker, error) {
	return tracker.NewSheetsTracker(ctx, cfg.Tracker, log)
}

// loadOverrides reads the configured prompt overrides file. A missing file
// means no overrides.
func loadOverrides() (*ai.PromptOverrides, error) {
	if cfg.Generation.PromptsFile == "" {
		return nil, nil
	}
	o, err := ai.LoadOverrides(cfg.Generation.PromptsFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", cfg.Generation.PromptsFile).Msg("No prompt overrides file")
		return nil, nil
	}
	return o, err
}

func parseFormats(raw string) ([]export.Format, error) {
	if raw == "" {
		return export.ParseFormats(cfg.Export.Formats)
	}
	return export.ParseFormats(strings.Split(raw, ","))
}

// ============ GENERATION COMMANDS ============

func runCmd() *cobra.Command {
	var maxEvents, maxAngles int
	var outputDir, platform, formats string
	var webhook bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Query, enrich, classify, generate and export content",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if outputDir != "" {
				cfg.Export.OutputDir = outputDir
			}
			fmts, err := parseFormats(formats)
			if err != nil {
				return err
			}
			overrides, err := loadOverrides()
			if err != nil {
				return err
			}

			agent, cleanup, err := newAgent(ctx, agentParts{warehouse: true, model: true})
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := agent.Run(ctx, generator.RunOptions{
				Mode:              models.RunModeRun,
				MaxEvents:         maxEvents,
				MaxAnglesPerEvent: maxAngles,
				Platform:          platform,
				Formats:           fmts,
				Overrides:         overrides,
				Webhook:           webhook,
			})
			if err != nil {
				return err
			}

			run := result.Run
			heading.Printf("\n=== Generation Results ===\n")
			fmt.Printf("Run ID:            %s\n", run.RunID)
			fmt.Printf("Events Loaded:     %d\n", run.EventsLoaded)
			fmt.Printf("Events Skipped:    %d\n", run.EventsSkipped)
			fmt.Printf("Events Processed:  %d\n", run.EventsProcessed)
			fmt.Printf("Content Generated: %s\n", good(run.ContentGenerated))
			if run.ContentErrors > 0 {
				fmt.Printf("Content Errors:    %s\n", bad(run.ContentErrors))
			} else {
				fmt.Printf("Content Errors:    0\n")
			}
			fmt.Printf("Duration:          %s\n", time.Duration(run.DurationMS)*time.Millisecond)

			qm := result.Metadata.QualityMetrics
			fmt.Printf("\nAverage Priority:  %.2f\n", qm.AverageContentPriority)
			fmt.Printf("High Priority:     %d (%.1f%%)\n", qm.HighPriorityItems, qm.HighPriorityPercentage)

			if len(result.Files) > 0 {
				fmt.Printf("\nFiles:\n")
				for _, f := range result.Files {
					fmt.Printf("  - %s\n", f)
				}
			}
			if webhook {
				if result.WebhookErr != nil {
					fmt.Printf("\nWebhook: %s (%v)\n", bad("failed"), result.WebhookErr)
				} else if cfg.Webhook.Enabled {
					fmt.Printf("\nWebhook: %s\n", good("delivered"))
				} else {
					fmt.Printf("\nWebhook: %s\n", warn("not enabled in config"))
				}
			}
			if result.Tracked > 0 {
				fmt.Printf("Tracker rows:      %d\n", result.Tracked)
			}

			printTopItems(result.Items, 5)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Number of top events to generate for (default from config)")
	cmd.Flags().IntVar(&maxAngles, "max-angles", 0, "Maximum angles per event (default from config)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for exported files")
	cmd.Flags().StringVar(&platform, "platform", "", "Target platform: tiktok, instagram or twitter")
	cmd.Flags().StringVar(&formats, "formats", "", "Comma-separated export formats: json, csv, txt")
	cmd.Flags().BoolVar(&webhook, "webhook", false, "Post the best content to the automation webhook")

	return cmd
}

func dryRunCmd() *cobra.Command {
	var maxEvents, maxAngles int

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Query, enrich and classify events without calling the LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			agent, cleanup, err := newAgent(ctx, agentParts{warehouse: true})
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := agent.DryRun(ctx, maxEvents, maxAngles)
			if err != nil {
				return err
			}

			heading.Printf("\n=== Dry Run ===\n")
			fmt.Printf("Events Loaded:  %d\n", result.EventsLoaded)
			fmt.Printf("Events Skipped: %d\n", result.EventsSkipped)
			fmt.Printf("Events Used:    %d\n\n", result.EventsUsed)

			for _, p := range result.Preview {
				fmt.Printf("#%d %s (%s)\n", p.Rank, p.Artist, p.EventID)
				fmt.Printf("    Angles: %d %v\n", len(p.Angles), p.Angles)
			}

			fmt.Printf("\nAngle totals:\n")
			for _, angle := range sortedAngles(result.AngleTotals) {
				fmt.Printf("  %-26s %d\n", angle, result.AngleTotals[angle])
			}
			fmt.Printf("\nContent pieces a full run would generate: %s\n", good(result.TotalContent))

			return nil
		},
	}

	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Number of top events to classify (default from config)")
	cmd.Flags().IntVar(&maxAngles, "max-angles", 0, "Maximum angles per event (default from config)")

	return cmd
}

func testConnectionCmd() *cobra.Command {
	var sample int

	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check warehouse and LLM reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			agent, cleanup, err := newAgent(ctx, agentParts{warehouse: true, dial: true, modelOptional: true})
			if err != nil {
				return err
			}
			defer cleanup()

			report := agent.TestConnection(ctx, sample)

			heading.Printf("\n=== Warehouse ===\n")
			if report.WarehouseErr != "" {
				fmt.Printf("Status: %s\n", bad("unreachable"))
				fmt.Printf("Error:  %s\n", report.WarehouseErr)
			} else {
				fmt.Printf("Status: %s\n", good("connected"))
				fmt.Printf("Server time: %s\n", report.WarehouseTime.Format(time.RFC1123))
				for _, v := range report.Views {
					if v.Accessible {
						fmt.Printf("  %s %s (%d rows)\n", good("ok"), v.View, v.RowCount)
					} else {
						fmt.Printf("  %s %s: %s\n", bad("!!"), v.View, v.Err)
					}
				}
				if report.SampleView != "" {
					fmt.Printf("Sampled %d rows from %s\n", len(report.SampleRows), report.SampleView)
				}
			}

			heading.Printf("\n=== LLM ===\n")
			switch {
			case report.Provider == "":
				fmt.Printf("Status: %s\n", warn("not configured"))
			case report.LLMErr != "":
				fmt.Printf("Provider: %s (%s)\n", report.Provider, report.Model)
				fmt.Printf("Status:   %s\n", bad("unreachable"))
				fmt.Printf("Error:    %s\n", report.LLMErr)
			default:
				fmt.Printf("Provider: %s (%s)\n", report.Provider, report.Model)
				fmt.Printf("Status:   %s\n", good("connected"))
				fmt.Printf("Response: %s\n", truncateStr(report.LLMResponse, 80))
			}

			if !report.OK() {
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sample, "sample", 3, "Rows to sample from the base events view")
	return cmd
}

func qualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Report data completeness of the enriched events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			agent, cleanup, err := newAgent(ctx, agentParts{warehouse: true})
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := agent.Quality(ctx)
			if err != nil {
				return err
			}

			heading.Printf("\n=== Data Quality ===\n")
			if report.Status != "success" {
				fmt.Printf("Status: %s\n", warn(report.Status))
				fmt.Printf("%s\n", report.Message)
				return nil
			}
			fmt.Printf("Total Events:             %d\n", report.TotalEvents)
			fmt.Printf("Complete Data Events:     %d\n", report.CompleteDataEvents)
			fmt.Printf("Average Completeness:     %.2f\n", report.AverageCompletenessScore)
			fmt.Printf("Missing Required Fields:  %d\n", report.EventsMissingRequiredFields)
			fmt.Printf("Data Quality Score:       %.2f\n", report.DataQualityScore)
			return nil
		},
	}
}

// ============ CONTENT COMMANDS ============

func contentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Browse generated content",
	}

	cmd.AddCommand(contentListCmd())
	return cmd
}

func contentListCmd() *cobra.Command {
	var runID, eventID, artist, angle, orderBy string
	var minPriority, limit int
	var includeErrors, asc bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored content items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := storage.DefaultContentFilter()
			filter.RunID = runID
			filter.EventID = eventID
			filter.Artist = artist
			filter.MinPriority = minPriority
			filter.IncludeErrors = includeErrors
			filter.Limit = limit
			if orderBy != "" {
				filter.OrderBy = orderBy
			}
			filter.OrderDesc = !asc
			if angle != "" {
				a := models.Angle(angle)
				if !a.Valid() {
					return fmt.Errorf("unknown angle %q", angle)
				}
				filter.Angle = &a
			}

			items, err := repo.ListContent(ctx, filter)
			if err != nil {
				return err
			}

			heading.Printf("\n=== Content (%d) ===\n\n", len(items))
			for _, item := range items {
				printItem(item)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Only content from this run")
	cmd.Flags().StringVar(&eventID, "event-id", "", "Only content for this event")
	cmd.Flags().StringVar(&artist, "artist", "", "Only content for this artist")
	cmd.Flags().StringVar(&angle, "angle", "", "Only content with this angle")
	cmd.Flags().IntVar(&minPriority, "min-priority", 0, "Minimum priority")
	cmd.Flags().BoolVar(&includeErrors, "include-errors", false, "Include failed generations")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Sort column: priority, generated_at, artist_name, content_angle, data_quality_score")
	cmd.Flags().BoolVar(&asc, "asc", false, "Sort ascending")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items to show")

	return cmd
}

// ============ RUN HISTORY COMMANDS ============

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Generation run history",
	}

	cmd.AddCommand(runsListCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var status, mode string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := storage.DefaultRunFilter()
			filter.Limit = limit
			if status != "" {
				s := models.RunStatus(status)
				filter.Status = &s
			}
			if mode != "" {
				md := models.RunMode(mode)
				filter.Mode = &md
			}

			runs, err := repo.ListRuns(ctx, filter)
			if err != nil {
				return err
			}

			heading.Printf("\n=== Runs (%d) ===\n\n", len(runs))
			for _, r := range runs {
				fmt.Printf("%s | %s | %s\n", r.RunID, r.Mode, runStatus(r.Status))
				fmt.Printf("    Started: %s", r.StartedAt.Format(time.RFC1123))
				if r.IsFinished() {
					fmt.Printf(" (%s)", time.Duration(r.DurationMS)*time.Millisecond)
				}
				fmt.Println()
				fmt.Printf("    Events: %d loaded, %d skipped, %d processed\n", r.EventsLoaded, r.EventsSkipped, r.EventsProcessed)
				fmt.Printf("    Content: %d generated, %d errors\n", r.ContentGenerated, r.ContentErrors)
				if r.ErrorMessage != "" {
					fmt.Printf("    Error: %s\n", r.ErrorMessage)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running, completed, failed)")
	cmd.Flags().StringVar(&mode, "mode", "", "Filter by mode (run, dry-run, scheduled, dashboard)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")

	return cmd
}

// ============ OUTPUT COMMANDS ============

func exportCmd() *cobra.Command {
	var runID, formats, outputDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored run's content to files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if outputDir != "" {
				cfg.Export.OutputDir = outputDir
			}
			fmts, err := parseFormats(formats)
			if err != nil {
				return err
			}

			agent, cleanup, err := newAgent(ctx, agentParts{})
			if err != nil {
				return err
			}
			defer cleanup()

			files, err := agent.ExportRun(ctx, runID, fmts)
			if err != nil {
				return err
			}

			heading.Printf("\n=== Exported ===\n")
			for _, f := range files {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to export (default: latest completed run)")
	cmd.Flags().StringVar(&formats, "formats", "json,csv,txt", "Comma-separated export formats")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for exported files")

	return cmd
}

func scheduleCmd() *cobra.Command {
	var runID, start string
	var postsPerDay int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Build a posting schedule from a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			startAt := time.Now()
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("invalid --start %q (want YYYY-MM-DD): %w", start, err)
				}
				startAt = t
			}

			agent, cleanup, err := newAgent(ctx, agentParts{})
			if err != nil {
				return err
			}
			defer cleanup()

			stored, err := agent.LoadRun(ctx, runID)
			if err != nil {
				return err
			}

			sched := batch.CreatePostingSchedule(stored.Items, postsPerDay, startAt)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sched)
			}

			heading.Printf("\n=== Posting Schedule (%d posts over %d days) ===\n", sched.TotalPosts, sched.TotalDays)
			days := make([]string, 0, len(sched.Schedule))
			for day := range sched.Schedule {
				days = append(days, day)
			}
			sort.Strings(days)
			for _, day := range days {
				fmt.Printf("\n%s\n", day)
				for _, slot := range sched.Schedule[day] {
					fmt.Printf("  %s [%d] %s | %s\n", slot.PostTime, slot.Priority, slot.Artist, slot.Angle)
					fmt.Printf("        %s\n", slot.ContentPreview)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to schedule (default: latest completed run)")
	cmd.Flags().IntVar(&postsPerDay, "posts-per-day", batch.DefaultPostsPerDay, "Posts per day")
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the schedule as JSON")

	return cmd
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Automation webhook commands",
	}

	cmd.AddCommand(webhookSendCmd())
	return cmd
}

func webhookSendCmd() *cobra.Command {
	var runID string
	var maxItems int

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a stored run's best content to the webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cfg.Webhook.Enabled || cfg.Webhook.URL == "" {
				return fmt.Errorf("webhook is not enabled in config - set webhook.enabled=true and webhook.url")
			}

			agent, cleanup, err := newAgent(ctx, agentParts{})
			if err != nil {
				return err
			}
			defer cleanup()

			payload, err := agent.SendWebhook(ctx, runID, maxItems)
			if err != nil {
				return err
			}

			fmt.Printf("%s %d posts to webhook\n", good("Delivered"), payload.WebhookData.ContentCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to send (default: latest completed run)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Maximum posts to send (default from config)")

	return cmd
}

// ============ TRACKER COMMANDS ============

func trackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Google Sheets review tracker",
	}

	cmd.AddCommand(trackerInitCmd())
	cmd.AddCommand(trackerListCmd())
	cmd.AddCommand(trackerSyncCmd())
	return cmd
}

func trackerInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Google Sheet with headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cfg.Tracker.Enabled {
				return fmt.Errorf("tracker is not enabled in config - set tracker.enabled=true and tracker.spreadsheet_id")
			}

			t, err := newTracker(ctx)
			if err != nil {
				return fmt.Errorf("failed to create tracker: %w", err)
			}

			if err := t.InitializeSheet(ctx); err != nil {
				return fmt.Errorf("failed to initialize sheet: %w", err)
			}

			fmt.Println(good("Google Sheet initialized successfully!"))
			fmt.Printf("Spreadsheet ID: %s\n", cfg.Tracker.SpreadsheetID)
			fmt.Printf("Sheet Name: %s\n", cfg.Tracker.SheetName)
			fmt.Println("\nColumns created:")
			for i, col := range tracker.SheetColumns {
				fmt.Printf("  %d. %s\n", i+1, col)
			}

			return nil
		},
	}
}

func trackerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List content rows from the Google Sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cfg.Tracker.Enabled {
				return fmt.Errorf("tracker is not enabled in config")
			}

			t, err := newTracker(ctx)
			if err != nil {
				return fmt.Errorf("failed to create tracker: %w", err)
			}

			rows, err := t.ListContent(ctx)
			if err != nil {
				return fmt.Errorf("failed to list content: %w", err)
			}

			heading.Printf("\n=== Tracked Content (%d) ===\n\n", len(rows))
			for _, r := range rows {
				fmt.Printf("[%d] %s | %s | %s\n", r.Priority, r.Status, r.Artist, r.Angle)
				fmt.Printf("    %s\n", r.ContentID)
				if r.Approved != "" || r.Notes != "" {
					fmt.Printf("    Approved: %s  Notes: %s\n", r.Approved, r.Notes)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func trackerSyncCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror a stored run's content into the Google Sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cfg.Tracker.Enabled {
				return fmt.Errorf("tracker is not enabled in config")
			}

			agent, cleanup, err := newAgent(ctx, agentParts{})
			if err != nil {
				return err
			}
			defer cleanup()

			added, updated, err := agent.SyncTracker(ctx, runID)
			if err != nil {
				return err
			}

			fmt.Printf("Synced: %s added, %d updated\n", good(added), updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run to sync (default: latest completed run)")
	return cmd
}

// ============ DASHBOARD ============

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the operator HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if addr != "" {
				cfg.Server.Addr = addr
			}

			agent, cleanup, err := newAgent(ctx, agentParts{warehouse: true, model: true})
			if err != nil {
				return err
			}
			defer cleanup()

			opts := []dashboard.Option{dashboard.WithRepository(repo)}
			if m != nil {
				opts = append(opts, dashboard.WithMetrics(m, cfg.Metrics.Path))
			}
			srv := dashboard.NewServer(agent, session.New(), export.NewWriter(cfg.Export.OutputDir, log), log, opts...)

			httpServer := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Msg("Dashboard API listening")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down dashboard API...")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// ============ HELPERS ============

func printItem(item *models.ContentItem) {
	if item.IsError {
		fmt.Printf("%s %s | %s | %s\n", bad("[error]"), item.ArtistName, item.ContentAngle, item.ErrorKind)
		fmt.Printf("    %s\n\n", truncateStr(item.Caption, 120))
		return
	}
	fmt.Printf("[%d] %s | %s | %s\n", item.Priority, item.ArtistName, item.ContentAngle, item.Platform)
	fmt.Printf("    ID: %s\n", item.ContentID())
	fmt.Printf("    Visual: %s\n", item.VisualText)
	fmt.Printf("    Caption: %s\n\n", truncateStr(item.Caption, 120))
}

func printTopItems(items []*models.ContentItem, n int) {
	top := batch.FilterByCriteria(items, batch.Criteria{MaxItems: n})
	if len(top) == 0 {
		return
	}
	heading.Printf("\n=== Top Content ===\n\n")
	for _, item := range top {
		printItem(item)
	}
}

func runStatus(s models.RunStatus) string {
	switch s {
	case models.RunStatusCompleted:
		return good(s)
	case models.RunStatusFailed:
		return bad(s)
	default:
		return warn(s)
	}
}

func sortedAngles(totals map[models.Angle]int) []models.Angle {
	out := make([]models.Angle, 0, len(totals))
	for a := range totals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if totals[out[i]] != totals[out[j]] {
			return totals[out[i]] > totals[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
