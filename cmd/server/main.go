package main

import (
	"flag"
	"log/slog"
	"os"

	"club-treasury/internal/config"
	"club-treasury/internal/handler"
	applog "club-treasury/internal/logger"
	"club-treasury/internal/mail"
	"club-treasury/internal/service"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	if err := config.LoadDotenv(); err != nil {
		slog.Warn("load .env failed", "err", err)
	}

	cfg := config.Load(*configFile)
	applog.Init(cfg.Log)
	if cfg.Auth.JWTSecret == "" {
		slog.Error("auth.jwt_secret (JWT_SECRET) is required")
		os.Exit(1)
	}

	db, err := cfg.OpenGormDB()
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	if err := service.Migrate(db); err != nil {
		slog.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	r := handler.NewRouter(cfg, db, mail.NewSMTPSender(cfg.Mail))

	slog.Info("server starting", "addr", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		slog.Error("server failed", "err", err)
	}
}
