// Package main runs migrations for the media-plan store and ensures the
// delivery warehouse schema exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/pacing-engine/internal/config"
	"github.com/pacing-engine/internal/storage"
)

func main() {
	var (
		direction = flag.String("direction", "up", "Migration direction: up or down")
		path      = flag.String("path", "migrations", "Path to migration files")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pg := cfg.Database.Postgres
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pg.User, pg.Password, pg.Host, pg.Port, pg.Database,
	)

	switch *direction {
	case "up":
		if err := storage.RunMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Media-plan store migrations applied")
	case "down":
		if err := storage.RollbackMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rolled back last migration")
		return
	default:
		log.Fatalf("Unknown direction: %s", *direction)
	}

	ch, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storage.EnsureDeliverySchema(ctx, ch); err != nil {
		log.Fatalf("Warehouse schema setup failed: %v", err)
	}
	log.Println("Delivery warehouse schema ensured")
}
