package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storefront-bot/autoresponder"
	"storefront-bot/bot"
	"storefront-bot/config"
	"storefront-bot/events"
	"storefront-bot/handlers"
	"storefront-bot/lang"
	"storefront-bot/logging"
	"storefront-bot/metrics"
	"storefront-bot/storage"
	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to config file")
	cleanup := flag.Bool("cleanup", false, "Remove slash commands on shutdown")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if config.Placeholder(cfg.Discord.Token) {
		logger.Fatal("discord token not set (config.json discord.token or DISCORD_TOKEN)")
	}

	if cfg.Lang.Path != "" {
		active, err := lang.Load(cfg.Lang.Path)
		if err != nil {
			logger.Warn("language file not loaded, using built-in messages", zap.Error(err))
		} else {
			logger.Info("language loaded", zap.String("language", active))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.InitDB(&cfg.Database, logger.Named("storage"))
	if err != nil {
		logger.Fatal("database init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	var pub events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, logger.Named("events"))
		if err != nil {
			logger.Warn("event publishing disabled", zap.Error(err))
		} else {
			pub = p
		}
	}
	defer pub.Close()

	go metrics.Serve(ctx, cfg.Metrics.Addr, logger.Named("metrics"))

	responders := autoresponder.Open(cfg.Autoresponder.File, logger.Named("autoresponder"))

	b, err := bot.New(cfg, logger.Named("bot"))
	if err != nil {
		logger.Fatal("session create failed", zap.Error(err))
	}

	scheduler := tickets.NewScheduler()
	defer scheduler.Stop()

	handlers.Cfg = cfg
	handlers.Log = logger.Named("handlers")
	handlers.Responders = responders
	handlers.Tickets = tickets.NewService(tickets.Config{
		StaffRole:       config.ID(cfg.Tickets.StaffRole),
		LogChannel:      config.ID(cfg.Tickets.LogChannel),
		ArchiveCategory: config.ID(cfg.Tickets.ArchiveCategory),
		CloseDelay:      cfg.Tickets.CloseDelay(),
		PageSize:        cfg.Tickets.TranscriptPageSize,
	}, db, handlers.NewPlatform(b.Session, cfg), pub, scheduler, logger.Named("tickets"))
	handlers.Waitlist = waitlist.NewService(db, pub, logger.Named("waitlist"))

	handlers.Register(b.Session)

	if err := b.Start(); err != nil {
		logger.Fatal("session open failed", zap.Error(err))
	}
	defer b.Stop()

	b.RegisterCommands(handlers.Commands(cfg))

	logger.Info("bot is running, press Ctrl+C to exit")
	<-ctx.Done()

	logger.Info("shutting down")
	if *cleanup {
		b.CleanupCommands()
	}
}
