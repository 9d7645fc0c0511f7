package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/mixelka/smsfirewall/internal/actions"
	"github.com/mixelka/smsfirewall/internal/compose"
	"github.com/mixelka/smsfirewall/internal/config"
	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/formatter"
	"github.com/mixelka/smsfirewall/internal/gateway"
	"github.com/mixelka/smsfirewall/internal/inbox"
	"github.com/mixelka/smsfirewall/internal/intake"
	"github.com/mixelka/smsfirewall/internal/notify"
	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/scheduler"
	"github.com/mixelka/smsfirewall/internal/settings"
	"github.com/mixelka/smsfirewall/internal/telegram"
	"github.com/mixelka/smsfirewall/internal/trash"
	"github.com/mixelka/smsfirewall/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting sms firewall")

	if err := run(cfg, logger); err != nil {
		logger.Error("sms firewall failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sms firewall stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local store
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	// Platform message store
	messages, err := platform.NewSQLStore(ctx, cfg.PlatformDatabasePath, logger)
	if err != nil {
		return err
	}
	defer messages.Close()

	roles := platform.NewStaticRole(cfg.DefaultHandler)
	if !cfg.DefaultHandler {
		logger.Warn("not the default SMS handler, message store writes are disabled")
	}

	prefs := settings.New(settings.Defaults{
		ShowUnreadBadges:           cfg.ShowUnreadBadges,
		NotificationContentVisible: cfg.NotificationContentVisible,
		ChatBackground:             cfg.ChatBackground,
	})

	lifetime := worker.NewLifetime()
	pool := worker.NewPool(lifetime, cfg.QueueSize, logger)

	htmlParser := parser.NewHTMLParser(cfg.GatewayBodySelector)
	codeDetector := parser.NewCodeDetector()

	// Notifications go to Telegram when configured, to the log otherwise
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBot(telegram.BotDeps{
			Token:        cfg.TelegramToken,
			ChatID:       cfg.TelegramChatID,
			DB:           db,
			Messages:     messages,
			Settings:     prefs,
			CodeDetector: codeDetector,
			Formatter:    formatter.NewTelegramFormatter(),
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		notifier = bot
	}

	pipeline := intake.New(db, messages, notifier, prefs, codeDetector, pool,
		intake.Options{NotifySpam: cfg.NotifySpam, TrustedBypass: cfg.TrustedBypass}, logger)
	trashManager := trash.NewManager(db, messages, roles, pool, logger)
	actionHandler := actions.NewHandler(db, messages, roles, notifier, pool, logger)
	sender := compose.NewSender(messages, roles, logger)

	conversations := inbox.NewViewModel(messages, prefs, logger)
	if err := conversations.Start(ctx); err != nil {
		return err
	}
	defer conversations.Stop()

	if bot != nil {
		bot.SetServices(telegram.Services{
			Trash:   trashManager,
			Actions: actionHandler,
			Inbox:   conversations,
			Sender:  sender,
		})
	}

	// Scheduled jobs
	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}

	if cfg.GatewayEnabled() {
		gw, err := newGateway(cfg, db, pipeline, htmlParser, logger)
		if err != nil {
			return err
		}
		err = sched.Every("gateway_poll", cfg.GatewayPollInterval, func(ctx context.Context) error {
			n, err := gw.Poll(ctx)
			if n > 0 {
				logger.Info("gateway events received", "count", n)
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	if cfg.TrashRetention > 0 {
		err := sched.Cron("trash_retention", cfg.TrashSweepCron, func(ctx context.Context) error {
			_, err := trashManager.PurgeOlderThan(ctx, cfg.TrashRetention)
			return err
		})
		if err != nil {
			return err
		}
	}

	// Start everything. The pool outlives the signal so the scheduler can
	// stop before intake closes.
	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()
	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(poolCtx)
	}()
	sched.Start()

	if bot != nil {
		logger.Info("bot is running, press Ctrl+C to stop")
		bot.Start(ctx)
	} else {
		logger.Info("running without telegram, press Ctrl+C to stop")
		<-ctx.Done()
	}

	logger.Info("shutting down...")

	if err := sched.Stop(); err != nil {
		logger.Error("failed to stop scheduler", "error", err)
	}

	pool.Close()
	cancelPool()
	if err := <-poolDone; err != nil {
		logger.Error("worker pool stopped with error", "error", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := lifetime.Wait(waitCtx); err != nil {
		logger.Warn("shutdown timed out with work in flight", "in_flight", lifetime.InFlight())
	}

	return nil
}

// newGateway wires the IMAP gateway client, resolving the server when it is not configured
func newGateway(cfg *config.Config, db *database.DB, pipeline *intake.Pipeline, html *parser.HTMLParser, logger *slog.Logger) (*gateway.Manager, error) {
	server := cfg.GatewayIMAPServer
	if server == "" {
		resolved, err := gateway.NewResolver().Resolve(cfg.GatewayEmail)
		if err != nil {
			return nil, err
		}
		logger.Info("resolved IMAP server", "email", cfg.GatewayEmail, "server", resolved)
		server = resolved
	}

	client := gateway.NewClient(gateway.ClientConfig{
		Email:       cfg.GatewayEmail,
		Password:    cfg.GatewayPassword,
		Server:      server,
		Mailbox:     cfg.GatewayMailbox,
		DialTimeout: cfg.IMAPDialTimeout,
	}, html, logger)

	return gateway.NewManager(client, db, pipeline.Handle, logger), nil
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
