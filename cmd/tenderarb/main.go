package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/tenderarb/internal/config"
	"github.com/rewired-gh/tenderarb/internal/extract"
	"github.com/rewired-gh/tenderarb/internal/logger"
	"github.com/rewired-gh/tenderarb/internal/models"
	"github.com/rewired-gh/tenderarb/internal/notify"
	"github.com/rewired-gh/tenderarb/internal/pipeline"
	"github.com/rewired-gh/tenderarb/internal/ranker"
	"github.com/rewired-gh/tenderarb/internal/reconcile"
	"github.com/rewired-gh/tenderarb/internal/report"
	"github.com/rewired-gh/tenderarb/internal/sources"
	"github.com/rewired-gh/tenderarb/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dryRun     = flag.Bool("dry-run", false, "Run on the built-in sample batch without network access or notifications")
	inputPath  = flag.String("input", "", "Run on a batch JSON file instead of fetching")
	replayID   = flag.String("replay", "", "Re-run the archived batch of a previous run")
	daemon     = flag.Bool("daemon", false, "Run on the configured cron schedule until interrupted")
	noNotify   = flag.Bool("no-notify", false, "Skip notifications")
	todayFlag  = flag.String("today", "", "Override the run date (YYYY-MM-DD) of a live run")
)

// app holds the long-lived components shared by every run.
type app struct {
	cfg       *config.Config
	location  *time.Location
	engine    *pipeline.Engine
	collector *pipeline.Collector
	archive   *storage.Archive
	artifacts *storage.Artifacts
	notifiers []notify.Notifier
	telegram  *notify.Telegram
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal("Invalid timezone: %v", err)
	}

	archive, err := storage.Open(cfg.Storage.DBPath, os.FileMode(cfg.Storage.DirPermissions))
	if err != nil {
		logger.Fatal("Failed to open run archive: %v", err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Error("Failed to close run archive: %v", err)
		}
	}()

	a := &app{
		cfg:       cfg,
		location:  location,
		engine:    newEngine(cfg),
		collector: newCollector(cfg),
		archive:   archive,
		artifacts: storage.NewArtifacts(cfg.Storage.ResultsDir, os.FileMode(cfg.Storage.FilePermissions), os.FileMode(cfg.Storage.DirPermissions)),
	}
	if !*noNotify && !*dryRun {
		if err := a.initNotifiers(); err != nil {
			logger.Fatal("Failed to initialize notifications: %v", err)
		}
		defer a.closeNotifiers()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *daemon {
		if err := a.runDaemon(ctx); err != nil {
			logger.Fatal("Scheduler failed: %v", err)
		}
		return
	}

	if err := a.runOnce(ctx); err != nil {
		logger.Error("Run failed: %v", err)
		os.Exit(1)
	}
}

func newEngine(cfg *config.Config) *pipeline.Engine {
	c := cfg.Ranking.TierCutoffs
	return pipeline.NewEngine(pipeline.Options{
		Workers:         cfg.Engine.Workers,
		Extract:         extract.Options{DutchBasis: extract.DutchBasis(cfg.Engine.DutchBasis)},
		FreshnessWindow: cfg.Engine.PriceStalenessWindow(),
		OddLotPolicy:    reconcile.OddLotPolicy(cfg.Engine.OddLotPolicy),
		Rank: ranker.Options{
			MinSpreadPct:    cfg.Scan.MinSpreadPct,
			MaxDaysToExpiry: cfg.Scan.MaxDaysToExpiry,
			OddLotOnly:      cfg.Scan.IncludeOddLotOnly,
			Weights: ranker.Weights{
				AnnualizedReturn: cfg.Ranking.AnnualizedWeight,
				NormalizationCap: cfg.Ranking.NormalizationCap,
				OddLotBonus:      cfg.Ranking.OddLotBonus,
				StalePenalty:     cfg.Ranking.StalePenalty,
				ConflictPenalty:  cfg.Ranking.ConflictPenalty,
			},
			Cutoffs: ranker.Cutoffs{A: c[0], B: c[1], C: c[2], D: c[3]},
		},
	})
}

func newCollector(cfg *config.Config) *pipeline.Collector {
	client := sources.NewClient(cfg.Fetch.UserAgent, sources.WithRateLimit(cfg.Fetch.RateLimit))

	var drafts pipeline.DraftSource
	if cfg.Sources.InsideArbitrageEnabled {
		drafts = sources.NewInsideArbitrage(client, cfg.Sources.InsideArbitrageURL, extract.DutchBasis(cfg.Engine.DutchBasis))
	}

	return pipeline.NewCollector(
		sources.NewEDGAR(client, cfg.Sources.EDGARSearchURL, cfg.Sources.EDGARArchiveURL, cfg.Sources.EDGARForms),
		drafts,
		sources.NewYahoo(client, cfg.Sources.YahooURL),
		pipeline.CollectorOptions{
			Timeout:        cfg.Fetch.Timeout,
			MaxRetries:     cfg.Fetch.MaxRetries,
			RetryDelayBase: cfg.Fetch.RetryDelayBase,
			LookbackDays:   cfg.Fetch.LookbackDays,
		},
	)
}

func (a *app) initNotifiers() error {
	cfg := a.cfg
	if cfg.Email.Enabled {
		a.notifiers = append(a.notifiers, notify.NewEmailSender(notify.EmailConfig{
			SMTPServer: cfg.Email.SMTPServer,
			SMTPPort:   cfg.Email.SMTPPort,
			SMTPUser:   cfg.Email.SMTPUser,
			SMTPPass:   cfg.Email.SMTPPass,
			FromEmail:  cfg.Email.From,
			ToEmails:   cfg.Email.To,
		}))
		logger.Info("Email notifications enabled (SMTP: %s:%d)", cfg.Email.SMTPServer, cfg.Email.SMTPPort)
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Scan.ReportTopN, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return err
		}
		a.telegram = tg
		a.notifiers = append(a.notifiers, tg)
		logger.Info("Telegram client initialized successfully")
	}
	if cfg.Kafka.Enabled {
		k, err := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID)
		if err != nil {
			return err
		}
		a.notifiers = append(a.notifiers, k)
		logger.Info("Kafka publisher connected (topic: %s)", cfg.Kafka.Topic)
	}
	if len(a.notifiers) == 0 {
		logger.Debug("All notifications disabled")
	}
	return nil
}

func (a *app) closeNotifiers() {
	for _, n := range a.notifiers {
		if k, ok := n.(*notify.KafkaPublisher); ok {
			if err := k.Close(); err != nil {
				logger.Warn("Failed to close Kafka producer: %v", err)
			}
		}
	}
}

// loadBatch picks the batch source selected on the command line.
func (a *app) loadBatch(ctx context.Context) (*models.Batch, *pipeline.Scope, error) {
	switch {
	case *replayID != "":
		batch, err := a.archive.LoadBatch(ctx, *replayID)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Replaying run %s (%s)", *replayID, batch.Today)
		return batch, pipeline.ScopeFor(batch), nil

	case *inputPath != "":
		batch, err := pipeline.LoadBatch(*inputPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded batch of %d candidates from %s", len(batch.Candidates), *inputPath)
		return batch, pipeline.ScopeFor(batch), nil

	case *dryRun:
		batch := pipeline.SampleBatch()
		logger.Info("Dry run on the sample batch (%s)", batch.Today)
		return batch, pipeline.ScopeFor(batch), nil
	}

	now := time.Now().In(a.location)
	today := models.DateOf(now)
	if *todayFlag != "" {
		d, err := models.ParseISODate(*todayFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -today: %w", err)
		}
		today = d
	}

	scope := pipeline.NewScope(today, now)
	batch, err := a.collector.Collect(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	return batch, scope, nil
}

// runOnce gathers a batch, runs the engine and publishes the result.
func (a *app) runOnce(ctx context.Context) error {
	startTime := time.Now()

	batch, scope, err := a.loadBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	result, err := a.engine.Run(ctx, scope, batch)
	switch {
	case errors.Is(err, pipeline.ErrNoCandidates):
		logger.Warn("Run %s: %v", scope.RunID, err)
	case err != nil:
		return fmt.Errorf("engine run failed: %w", err)
	}

	if err := a.publish(ctx, batch, result); err != nil {
		return err
	}

	logger.Info("Run %s completed in %v: %d ranked, %d skipped, %d excluded",
		scope.RunID, time.Since(startTime), len(result.Deals), len(result.Summary.Skipped), len(result.Summary.Excluded))
	return nil
}

// publish archives the run, writes its artifacts and sends notifications.
func (a *app) publish(ctx context.Context, batch *models.Batch, result *models.RunResult) error {
	md, err := report.Render(result)
	if err != nil {
		return err
	}

	if err := a.archive.SaveRun(ctx, batch, result); err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	if a.cfg.Storage.KeepRuns > 0 {
		if n, err := a.archive.Prune(ctx, a.cfg.Storage.KeepRuns); err != nil {
			logger.Warn("Failed to prune run archive: %v", err)
		} else if n > 0 {
			logger.Debug("Pruned %d archived runs", n)
		}
	}

	day := result.Summary.Today
	if _, err := a.artifacts.WriteJSON(day, "batch.json", batch); err != nil {
		return err
	}
	if _, err := a.artifacts.WriteJSON(day, "deals.json", result); err != nil {
		return err
	}
	path, err := a.artifacts.Write(day, "report.md", []byte(md))
	if err != nil {
		return err
	}
	logger.Info("Report written to %s", path)

	if len(a.notifiers) > 0 {
		if err := notify.All(ctx, a.notifiers, result, md); err != nil {
			logger.Warn("Some notifications failed: %v", err)
		}
	}
	return nil
}

// runDaemon runs on the configured schedule until ctx is cancelled.
func (a *app) runDaemon(ctx context.Context) error {
	scheduler := cron.New(
		cron.WithLocation(a.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	consecutiveFailures := 0
	_, err := scheduler.AddFunc(a.cfg.Schedule.Cron, func() {
		logger.Debug("Starting scheduled run")
		err := a.runOnce(ctx)
		if err != nil {
			consecutiveFailures++
			logger.Error("Scheduled run failed: %v", err)
			if consecutiveFailures == 1 && a.telegram != nil {
				if sendErr := a.telegram.SendError(ctx, err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && a.telegram != nil {
			if sendErr := a.telegram.SendRecovery(ctx, consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule.Cron, err)
	}

	scheduler.Start()
	logger.Info("Scheduler started (cron: %s, timezone: %s)", a.cfg.Schedule.Cron, a.location)

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info("Service stopped")
	return nil
}
