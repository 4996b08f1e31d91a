package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/dx-community/modmail/internal/api/http"
	"github.com/dx-community/modmail/internal/api/http/handlers"
	"github.com/dx-community/modmail/internal/auth"
	"github.com/dx-community/modmail/internal/bot"
	"github.com/dx-community/modmail/internal/cache"
	"github.com/dx-community/modmail/internal/commands"
	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/events"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/persistence"
	"github.com/dx-community/modmail/internal/platform/discord"
	"github.com/dx-community/modmail/internal/repository"
	"github.com/dx-community/modmail/internal/scheduler"
	"github.com/dx-community/modmail/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	timerRepo := repository.NewTimerRepository(pool)
	watcherRepo := repository.NewWatcherRepository(pool)
	macroRepo := repository.NewMacroRepository(pool)
	ticketRepo := cache.NewTicketCache(
		repository.NewTicketRepository(pool),
		redis.Client,
		time.Duration(cfg.Redis.TicketCacheTTLSeconds)*time.Second,
		logger,
	)

	adapter, err := discord.New(cfg.Discord, logger)
	if err != nil {
		logger.Fatal("failed to build discord client", zap.Error(err))
	}

	transcripts, err := service.NewTranscriptService(adapter, cfg.Transcript, logger)
	if err != nil {
		logger.Fatal("failed to init transcripts", zap.Error(err))
	}

	// The scheduler fires through the lifecycle service, which itself
	// schedules timers. Bind the fire function late to break the cycle;
	// nothing fires before the gateway opens.
	var lifecycle *service.LifecycleService
	fire := func(ctx context.Context, timer domain.Timer) error {
		return lifecycle.FireTimer(ctx, timer)
	}

	persistentSched := scheduler.NewPersistent(timerRepo)
	volatileSched := scheduler.NewVolatile(fire, logger)
	sched := scheduler.NewComposite(persistentSched, volatileSched, logger)

	lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  ticketRepo,
		WatcherRepo: watcherRepo,
		Scheduler:   sched,
		Client:      adapter,
		Transcripts: transcripts,
		DiscordCfg:  cfg.Discord,
		TicketCfg:   cfg.Tickets,
		Logger:      logger,
		Metrics:     metrics,
	})

	macroService := service.NewMacroService(macroRepo, adapter, lifecycle, logger, metrics)
	checker := auth.NewChecker(cfg.Discord)
	tokens := auth.NewTokenManager(cfg.Web.LinkSecret, cfg.Web.LinkTTLMinutes)

	router := commands.NewRouter(commands.RouterDependencies{
		Prefix:      cfg.Discord.CommandPrefix,
		Client:      adapter,
		Checker:     checker,
		Lifecycle:   lifecycle,
		Macros:      macroService,
		Transcripts: transcripts,
		Tokens:      tokens,
		Logger:      logger,
		Metrics:     metrics,
	})

	dispatcher := events.NewDispatcher(func(ev events.Interaction, err error) {
		logger.Error("interaction handling failed", zap.Error(err))
	})
	dispatcher.Register(lifecycle)

	core := bot.New(router, lifecycle, dispatcher, logger)
	if err := adapter.Start(core); err != nil {
		logger.Fatal("failed to open discord gateway", zap.Error(err))
	}
	defer adapter.Stop() //nolint:errcheck

	poller := scheduler.NewPoller(timerRepo, fire, cfg.Tickets.PollInterval(), logger, metrics)
	go poller.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, time.Duration(cfg.Web.RequestTimeoutS)*time.Second)

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, "1.0.0", pg, redis)
	transcriptsHandler := handlers.NewTranscriptsHandler(transcripts, tokens)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      healthHandler,
		Transcripts: transcriptsHandler,
	})

	go func() {
		if err := app.Listen(net.JoinHostPort(cfg.Web.Host, cfg.Web.Port)); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	openCount := 0
	if open, err := ticketRepo.ListOpen(ctx); err != nil {
		logger.Warn("counting open tickets at startup failed", zap.Error(err))
	} else {
		openCount = len(open)
	}
	logger.Info("modmail bot running",
		zap.String("guild_id", cfg.Discord.GuildID),
		zap.String("prefix", cfg.Discord.CommandPrefix),
		zap.Int("open_tickets", openCount))

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
