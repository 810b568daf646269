package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"alphagate/bot"
	"alphagate/impl/auth"
	"alphagate/impl/captcha"
	"alphagate/impl/core"
	"alphagate/impl/registry"
	"alphagate/internal/captchastore"
	"alphagate/internal/config"
	"alphagate/internal/database"
	"alphagate/internal/export"
	"alphagate/internal/http-server/api"
	"alphagate/internal/mailer"
	"alphagate/lib/clock"
	"alphagate/lib/logger"
	"alphagate/lib/sl"
)

const (
	logFileName     = "alphagate.log"
	shutdownTimeout = 15 * time.Second
)

type storage interface {
	core.Database
	registry.Repository
	auth.Database
	export.Source
	Close(ctx context.Context) error
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting alphagate", slog.String("config", *configPath), slog.String("env", conf.Env))

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, lg, bot.BotConfig{
			AdminIds:          conf.Telegram.AdminIds,
			DigestIntervalMin: conf.Telegram.DigestIntervalMin,
		})
		if err != nil {
			lg.Error("telegram bot", sl.Err(err))
		} else {
			lg = slog.New(logger.NewTelegramHandler(lg.Handler(), tgBot, slog.LevelWarn))
			lg.Info("telegram bot created")
		}
	}

	ctx := context.Background()
	clk := clock.Real{}

	var db storage
	switch conf.Storage {
	case "memory":
		lg.Warn("using in-memory storage, data is lost on restart")
		db = database.NewMemory()
	default:
		mongo, err := database.NewMongoClient(ctx, conf)
		if err != nil {
			lg.Error("mongo client", sl.Err(err))
			os.Exit(1)
		}
		lg.With(slog.String("database", conf.Mongo.Database)).Info("mongo client created")
		db = mongo
	}

	var store captcha.Store
	switch conf.Captcha.Backend {
	case "redis":
		redisStore, err := captchastore.NewRedis(ctx, conf.Redis)
		if err != nil {
			lg.Error("redis captcha store", sl.Err(err))
			os.Exit(1)
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
	default:
		store = captchastore.NewMemory()
	}

	issuer := captcha.New(store, clk, captcha.Config{
		Length: conf.Captcha.Length,
		TTL:    conf.Captcha.TTL(),
		Grace:  conf.Captcha.Grace(),
	}, lg)
	reg := registry.New(db, clk, conf.Codes.Prefix, lg)

	authService := auth.New(db, conf.Admin.JWTSecret, conf.Admin.TokenTTL(), clk, lg)
	if err := authService.EnsureAdmin(ctx, conf.Admin.BootstrapEmail, conf.Admin.BootstrapPassword, "Administrator"); err != nil {
		lg.Error("bootstrap admin", sl.Err(err))
	}

	mail, err := mailer.New(conf.SMTP)
	if err != nil {
		lg.Error("mailer", sl.Err(err))
		os.Exit(1)
	}
	if _, ok := mail.(mailer.Noop); ok {
		lg.Warn("smtp not configured, emails are disabled")
	}

	handler := core.New(db, issuer, reg, authService, clk, lg)
	handler.SetNotifier(mail)
	handler.SetBookingCode(conf.Booking.Code)

	exporter := export.New(db, conf.Export.Dir, clk, lg)
	handler.SetExporter(exporter)

	var scheduler *export.Scheduler
	if conf.Export.Enabled {
		scheduler, err = export.NewScheduler(exporter, conf.Export.Schedule, conf.Export.Timezone, lg)
		if err != nil {
			lg.Error("export scheduler", sl.Err(err))
			os.Exit(1)
		}
		if conf.Export.RunOnStart {
			go scheduler.Run()
		}
		scheduler.Start()
	}

	if tgBot != nil {
		tgBot.SetCore(handler)
		handler.SetListener(tgBot)
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot", sl.Err(err))
			}
		}()
	}

	server := api.New(conf, lg, handler)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		lg.Info("shutdown signal", slog.String("signal", sig.String()))
	case err = <-serverErr:
		if err != nil {
			lg.Error("api server", sl.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		lg.Error("api server shutdown", sl.Err(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	handler.Drain(shutdownCtx)
	if tgBot != nil {
		tgBot.Stop()
	}
	if err = db.Close(shutdownCtx); err != nil {
		lg.Error("close storage", sl.Err(err))
	}
	lg.Info("alphagate stopped")
}
