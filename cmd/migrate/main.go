// Command migrate creates the schema and optionally a staff account.
package main

import (
	"context"
	"flag"
	"log"

	"club-treasury/internal/config"
	"club-treasury/internal/logger"
	"club-treasury/internal/service"
)

func main() {
	configFile := flag.String("config", "etc/config-dev.yaml", "config file")
	staffEmail := flag.String("staff-email", "", "create or reset this staff account")
	staffPassword := flag.String("staff-password", "", "password for -staff-email")
	flag.Parse()

	if err := config.LoadDotenv(); err != nil {
		log.Printf("load .env failed: %v", err)
	}
	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)

	db, err := cfg.OpenGormDB()
	if err != nil {
		log.Fatal(err)
	}
	if err := service.Migrate(db); err != nil {
		log.Fatal("migrate failed: ", err)
	}
	logger.Info("schema up to date", "driver", cfg.Database.Driver, "database", cfg.Database.Name)

	if *staffEmail == "" {
		return
	}
	if *staffPassword == "" {
		log.Fatal("-staff-password is required with -staff-email")
	}
	m, created, err := service.NewMemberService(db).EnsureStaff(context.Background(), *staffEmail, *staffPassword)
	if err != nil {
		log.Fatal("staff account: ", err)
	}
	logger.Info("staff account ready", "id", m.ID, "email", m.Email, "created", created)
}
