package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/blob"
	"github.com/spec-kit/ticket-bot/internal/bot"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/mq"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/platform/slackbot"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var errPlatformDisconnected = errors.New("platform session disconnected")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logEffectiveConfig(logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redis *persistence.Redis
	if cfg.Counter.Driver == config.CounterDriverRedis {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
	}

	counter, err := persistence.OpenCounterStore(ctx, cfg.Counter, persistence.Connections{Postgres: pg, Redis: redis}, logger)
	if err != nil {
		logger.Fatal("failed to open counter store", zap.Error(err))
	}
	defer counter.Close() //nolint:errcheck

	allocator := service.NewAllocator(ctx, counter, logger.Named("counter"))

	store, err := blob.Open(ctx, cfg.Transcript)
	if err != nil {
		logger.Fatal("failed to open transcript store", zap.Error(err))
	}
	archiver := transcript.NewArchiver(store, logger)

	session, err := newSession(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create platform session", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:   dispatcher,
		Platform:     session,
		Metrics:      metrics,
		Logger:       logger,
		LogChannelID: cfg.Bot.LogChannelID,
	}).RegisterHandlers()

	if cfg.Audit.AMQPURL != "" {
		publisher, err := mq.NewRabbitPublisher(cfg.Audit.AMQPURL, cfg.Audit.AMQPExchange, logger.Named("amqp"))
		if err != nil {
			logger.Warn("rabbitmq unavailable; lifecycle events will not be forwarded", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			mq.NewForwarder(publisher, logger).RegisterHandlers(dispatcher)
		}
	}

	registry := repository.NewTicketRepository()
	scheduler := worker.NewDeletionScheduler(
		session.DeleteChannel,
		func(channelID string) bool {
			_, ok := registry.FindByChannel(channelID)
			return ok
		},
		logger,
		metrics,
	)

	tickets := service.NewTicketService(service.TicketDependencies{
		Registry:    registry,
		Allocator:   allocator,
		Platform:    session,
		Transcripts: archiver,
		Deletions:   scheduler,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Settings: service.TicketSettings{
			SupportRoleID:   cfg.Bot.SupportRoleID,
			CategoryID:      cfg.Bot.TicketCategoryID,
			CloseDelay:      cfg.Bot.CloseDelay,
			TranscriptLimit: cfg.Bot.TranscriptMessageLimit,
		},
	})
	router := bot.NewRouter(cfg.Bot.Prefix, tickets, session, logger)

	if err := session.Open(ctx, router); err != nil {
		logger.Fatal("failed to connect to chat platform", zap.String("platform", session.Name()), zap.Error(err))
	}
	logger.Info("bot online", zap.String("platform", session.Name()))

	var app *fiber.App
	if cfg.HTTP.Addr != "" {
		app = httptransport.NewServer(httptransport.ServerConfig{
			AppName:        cfg.App.Name,
			RequestTimeout: 5 * time.Second,
			Logger:         logger,
			Metrics:        metrics,
			Routes: httptransport.RouteConfig{
				Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessChecks(session, counter)...),
				Tickets:  handlers.NewTicketsHandler(tickets, scheduler),
				Registry: metrics.Registry(),
			},
		})
		go func() {
			if err := app.Listen(cfg.HTTP.Addr); err != nil {
				logger.Error("ops http listener stopped", zap.Error(err))
			}
		}()
	}

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending channel deletions did not finish", zap.Error(err))
	}
	if err := session.Close(); err != nil {
		logger.Warn("error closing platform session", zap.Error(err))
	}
	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("error shutting down ops http", zap.Error(err))
		}
	}
	logger.Info("shutdown complete", zap.Int("next_ticket_id", allocator.Peek()))
}

func newSession(cfg *config.Config, logger *zap.Logger) (platform.Session, error) {
	if cfg.Bot.Platform == config.PlatformSlack {
		s, err := slackbot.New(slackbot.Config{
			BotToken:      cfg.Bot.SlackBotToken,
			AppToken:      cfg.Bot.SlackAppToken,
			Debug:         cfg.Logger.Level == "debug",
			CommandPrefix: cfg.Bot.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := discord.New(cfg.Bot.DiscordToken, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readinessChecks(session platform.Session, counter persistence.CounterStore) []handlers.ReadinessCheck {
	return []handlers.ReadinessCheck{
		{Name: "platform", Check: func(context.Context) error {
			if !session.Connected() {
				return errPlatformDisconnected
			}
			return nil
		}},
		{Name: "counter", Check: counter.Ping},
	}
}

// logEffectiveConfig records identifiers and drivers. Tokens are never logged.
func logEffectiveConfig(logger *zap.Logger, cfg *config.Config) {
	logger.Info("configuration loaded",
		zap.String("platform", cfg.Bot.Platform),
		zap.String("prefix", cfg.Bot.Prefix),
		zap.String("support_role_id", cfg.Bot.SupportRoleID),
		zap.String("ticket_category_id", cfg.Bot.TicketCategoryID),
		zap.String("log_channel_id", cfg.Bot.LogChannelID),
		zap.Duration("close_delay", cfg.Bot.CloseDelay),
		zap.String("counter_driver", cfg.Counter.Driver),
		zap.String("transcript_driver", cfg.Transcript.Driver),
		zap.Bool("amqp_enabled", cfg.Audit.AMQPURL != ""),
		zap.String("ops_http_addr", cfg.HTTP.Addr),
	)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
