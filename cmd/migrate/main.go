package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger("migrate")
	defer log.Close()

	direction := flag.String("direction", "up", "migration direction: up, down or to")
	version := flag.Uint("version", 0, "target version when -direction=to")
	dir := flag.String("dir", "", "migrations directory (overrides POSTGRES_MIGRATIONS_DIR)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	if *dir != "" {
		cfg.MigrationsDir = *dir
	}

	bunDB, err := database.Connect(context.Background(), *cfg, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Error("MIGRATION", err.Error())
		}
	}()

	switch *direction {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*version)
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q\n", *direction)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATION", err.Error())
	}

	current, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATION", err.Error())
	}
	log.Info("MIGRATION", fmt.Sprintf("✅ Migrations applied (%s), schema version %d", *direction, current))
}
