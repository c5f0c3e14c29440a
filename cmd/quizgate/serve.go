package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"quizgate/config"
	"quizgate/internal/api"
	"quizgate/internal/api/handlers"
	"quizgate/internal/clock"
	"quizgate/internal/core"
	"quizgate/internal/dispatch"
	"quizgate/internal/drivers"
	"quizgate/internal/drivers/agent"
	"quizgate/internal/drivers/passive"
	"quizgate/internal/drivers/webhook"
	"quizgate/internal/events"
	"quizgate/internal/gatekeeper"
	"quizgate/internal/generator"
	"quizgate/internal/logging"
	"quizgate/internal/notify"
	"quizgate/internal/quiz"
	"quizgate/internal/scheduler"
	"quizgate/internal/storage/sqlite"
	"quizgate/internal/telemetry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: "quizgate",
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	logger.Info("initializing database", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	questions, err := loadQuestions(cfg, logger)
	if err != nil {
		return err
	}
	bank := quiz.NewBank(questions)
	seeded, err := db.SeedQuestions(ctx, questions)
	if err != nil {
		return fmt.Errorf("failed to seed question bank: %w", err)
	}
	logger.Info("question bank loaded", "questions", bank.Len(), "seeded", seeded, "topics", bank.Topics())

	clk := clock.RealClock{}
	ledger := logging.NewLedgerLogger(core.NewLedger(db, clk, cfg.Location()), logger)

	var gen quiz.Generator
	if cfg.Generator.APIKey != "" {
		g, err := generator.NewOpenAI(generator.OpenAIConfig{
			APIKey:     cfg.Generator.APIKey,
			BaseURL:    cfg.Generator.BaseURL,
			Model:      cfg.Generator.Model,
			MaxRetries: cfg.Generator.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("failed to create question generator: %w", err)
		}
		gen = g
		logger.Info("remote question generation enabled", "model", g.Model())
	} else {
		logger.Info("no generator API key, serving local questions only")
	}
	provider := logging.NewProviderLogger(
		quiz.NewProvider(bank, gen, db, cfg.GeneratorTimeout(), logger),
		logger,
	)

	registry, err := newDriverRegistry(cfg, clk, logger)
	if err != nil {
		return err
	}
	enforcer, err := registry.Get(cfg.Enforcement.Driver)
	if err != nil {
		return fmt.Errorf("enforcement driver %q: %w", cfg.Enforcement.Driver, err)
	}
	logger.Info("enforcement driver selected", "driver", enforcer.Name())

	bus := events.NewBus(logger)
	defer bus.Close()

	engine := gatekeeper.New(db, ledger, provider, enforcer, bus, clk, gatekeeper.Config{
		AnswerTimeout:     cfg.AnswerTimeout(),
		Cooldown:          cfg.Cooldown(),
		CooldownThreshold: cfg.Engine.CooldownThreshold,
	}, logger)
	defer engine.Close()

	dispatcher := dispatch.New(engine, cfg.Engine.OwnAppID, dispatch.DefaultBuffer, logger)
	sched := scheduler.NewScheduler(ledger, clk, cfg.RolloverInterval(), logger)
	sched.AfterSweep(engine.RecheckQuota)

	var agentStatus handlers.AgentStatusReader
	if a, ok := enforcer.(*agent.Driver); ok {
		agentStatus = a
	}

	g, gctx := errgroup.WithContext(ctx)

	router := api.NewRouter(api.RouterConfig{
		Storage:        db,
		Ledger:         ledger,
		Engine:         engine,
		Dispatcher:     dispatcher,
		Bus:            bus,
		DriverRegistry: registry,
		ActiveDriver:   enforcer.Name(),
		Agent:          agentStatus,
		APIKey:         cfg.Security.APIKey,
		ParentPINHash:  cfg.Security.ParentPINHash,
		AgentTokenHash: cfg.Security.AgentTokenHash,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the event stream is long-lived
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error { return dispatcher.Run(gctx) })

	g.Go(func() error {
		sched.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if cfg.Bank.Watch && cfg.Bank.Path != "" {
		watcher := quiz.NewBankWatcher(cfg.Bank.Path, bank, func(qs []*core.Question) {
			if _, err := db.SeedQuestions(context.Background(), qs); err != nil {
				logger.Error("failed to persist reloaded questions", "error", err)
			}
		}, logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("failed to create bot API: %w", err)
		}
		notifier, err := notify.New(botAPI, db, cfg.Telegram.ChatIDs, cfg.Engine.Timezone, logger)
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
		ch, unsubscribe := bus.Subscribe(events.DefaultBuffer)
		g.Go(func() error {
			defer unsubscribe()
			return notifier.Run(gctx, ch)
		})

		commands := notify.NewCommands(botAPI, db, ledger, engine, cfg.Telegram.ChatIDs, logger)
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := botAPI.GetUpdatesChan(u)
		g.Go(func() error {
			defer botAPI.StopReceivingUpdates()
			return commands.Run(gctx, updates)
		})
	}

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("graceful shutdown complete")
	return nil
}

// loadQuestions returns the configured bank file, or the built-in bank when
// none is configured
func loadQuestions(cfg *config.Config, logger *slog.Logger) ([]*core.Question, error) {
	if cfg.Bank.Path == "" {
		questions, err := quiz.DefaultQuestions(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in question bank: %w", err)
		}
		return questions, nil
	}

	questions, skipped, err := quiz.LoadBankFile(cfg.Bank.Path, logger)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("skipped invalid bank entries", "path", cfg.Bank.Path, "skipped", skipped)
	}
	return questions, nil
}

func newDriverRegistry(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*drivers.Registry, error) {
	registry := drivers.NewRegistry()

	candidates := []drivers.Driver{
		passive.NewDriver(logger),
		agent.NewDriver(clk, logger),
	}
	if cfg.Enforcement.WebhookURL != "" {
		candidates = append(candidates, webhook.NewDriver(webhook.Config{
			URL:    cfg.Enforcement.WebhookURL,
			APIKey: cfg.Enforcement.WebhookAPIKey,
		}))
	}

	for _, d := range candidates {
		if err := registry.Register(d); err != nil {
			return nil, fmt.Errorf("failed to register driver %s: %w", d.Name(), err)
		}
	}
	return registry, nil
}
