package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"github.com/roadwatch/roadwatch/internal/adapter/persistence"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/migrations"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "roadwatch-migrate",
		Output:      os.Stdout,
	})

	// DATABASE_URL wins over the DB_* settings
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = cfg.GetDatabaseURL()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	var files fs.FS = migrations.FS
	if *dir != "" {
		files = os.DirFS(*dir)
	}
	migrator := persistence.NewMigrator(db, files, appLogger)

	switch strings.ToLower(*mode) {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		appLogger.Info(ctx, "Migration up completed successfully", nil)
	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		appLogger.Info(ctx, "Migration down completed successfully", nil)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}
