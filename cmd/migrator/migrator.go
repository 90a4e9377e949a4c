package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/opsmonitor/internal/config/monitor"
	pg "github.com/NordCoder/opsmonitor/internal/repository/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		cfg, err := config.Load(os.Getenv("OPSMONITOR_CONFIG"))
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		dsn = cfg.Store.DSN
	}
	if dsn == "" {
		log.Fatal("DB_DSN is empty")
	}

	if err := pg.Migrate(ctx, dsn); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations: up OK")
}
