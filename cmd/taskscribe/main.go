package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MikeSquared-Agency/taskscribe/internal/api"
	"github.com/MikeSquared-Agency/taskscribe/internal/batch"
	"github.com/MikeSquared-Agency/taskscribe/internal/config"
	"github.com/MikeSquared-Agency/taskscribe/internal/duedate"
	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/hermes"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
	"github.com/MikeSquared-Agency/taskscribe/internal/lexicon"
	"github.com/MikeSquared-Agency/taskscribe/internal/metrics"
	"github.com/MikeSquared-Agency/taskscribe/internal/processor"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
	"github.com/MikeSquared-Agency/taskscribe/internal/slack"
	"github.com/MikeSquared-Agency/taskscribe/internal/store"
	"github.com/MikeSquared-Agency/taskscribe/internal/transcription"
)

const agentID = "taskscribe"

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg)
	case "batch":
		err = runBatch(cfg, args)
	case "version":
		fmt.Println(Version)
	default:
		err = fmt.Errorf("unknown command %q (want serve, batch or version)", cmd)
	}
	if err != nil {
		slog.Error("taskscribe failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// pipeline is the wiring shared by serve and batch.
type pipeline struct {
	lex   *lexicon.Lexicon
	proc  *processor.Processor
	db    *store.Store
	bus   *hermes.Client
	reg   *prometheus.Registry
	stats *metrics.Metrics
}

func (p *pipeline) Close() {
	if p.bus != nil {
		if err := p.bus.Drain(); err != nil {
			slog.Warn("NATS drain failed", "error", err)
		}
		p.bus.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
}

func buildPipeline(ctx context.Context, cfg config.Config) (*pipeline, error) {
	p := &pipeline{reg: prometheus.NewRegistry()}
	p.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p.stats = metrics.New(p.reg)

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}
	p.lex = lex
	slog.Info("lexicon loaded", "version", lex.Version, "languages", lex.Codes())

	deps := processor.Deps{Metrics: p.stats}

	// Database (optional: sessions then live only in memory)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		p.db = db
		deps.Store = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, sessions are kept in memory only")
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		bus, err := hermes.NewClient(ctx, hermes.Options{
			URL:        cfg.NatsURL,
			Token:      cfg.NatsToken,
			Name:       cfg.NatsName,
			QueueGroup: cfg.NatsQueue,
		}, slog.Default())
		if err != nil {
			p.Close()
			return nil, err
		}
		p.bus = bus
		deps.Publisher = bus
		slog.Info("NATS connected", "url", cfg.NatsURL, "queue", cfg.NatsQueue)
	}

	// Speech recognition (optional)
	if cfg.TranscribeURL != "" {
		tr, err := transcription.NewClient(transcription.Config{
			Endpoint: cfg.TranscribeURL,
			APIKey:   cfg.TranscribeAPIKey,
			Model:    cfg.TranscribeModel,
			Timeout:  cfg.TranscribeTimeout,
		}, slog.Default())
		if err != nil {
			p.Close()
			return nil, err
		}
		deps.Transcriber = tr
		slog.Info("transcription ready", "model", cfg.TranscribeModel)
	}

	// Slack poster (optional: no chat notice after submissions)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		deps.Notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	ext := extractor.New(lex, slog.Default())
	p.proc = processor.New(ext, session.NewRegistry(), duedate.NewParser(), deps, slog.Default())
	return p, nil
}

func serve(cfg config.Config) error {
	slog.Info("taskscribe starting", "port", cfg.Port, "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.bus != nil {
		if err := p.bus.Subscribe(hermes.SubjectTranscriptReady, p.proc.HandleTranscriptReady); err != nil {
			return fmt.Errorf("subscribe to transcript events: %w", err)
		}
	}

	srv := api.NewServer(p.proc, api.Options{
		Port:     cfg.Port,
		APIToken: cfg.APIToken,
		JiraDefaults: jira.Credentials{
			BaseURL:    cfg.JiraURL,
			Email:      cfg.JiraEmail,
			APIToken:   cfg.JiraAPIToken,
			ProjectKey: cfg.JiraProject,
		},
		Gatherer: p.reg,
		Metrics:  p.stats,
		Logger:   slog.Default(),
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	p.proc.Register(agentID, p.lex.Version, transcription.Languages)
	slog.Info("taskscribe ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}
	cancel()
	slog.Info("taskscribe stopped")
	return nil
}

func runBatch(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	dir := fs.String("dir", ".", "directory of transcript .txt files")
	statePath := fs.String("state", "", "state file (default <dir>/.taskscribe-batch-state.json)")
	since := fs.String("since", "", "only files modified on or after this date (YYYY-MM-DD)")
	file := fs.String("file", "", "process a single file")
	dryRun := fs.Bool("dry-run", false, "extract and report without writing anything")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bcfg := batch.Config{
		Dir:        *dir,
		StatePath:  *statePath,
		SingleFile: *file,
		DryRun:     *dryRun,
	}
	if *since != "" {
		t, err := time.ParseInLocation("2006-01-02", *since, time.Local)
		if err != nil {
			return fmt.Errorf("invalid -since: %w", err)
		}
		bcfg.Since = t
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	// Only route through sessions when they are persisted or announced.
	var sink batch.SessionSink
	if p.db != nil || p.bus != nil {
		sink = p.proc
	}

	_, err = batch.NewRunner(bcfg, p.proc, sink, slog.Default()).Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("batch interrupted, rerun to resume")
		return nil
	}
	return err
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
