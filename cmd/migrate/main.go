package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/fieldops-backend/pkg/config"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// file-only commands run without config or a database
	switch *cmd {
	case "create":
		path, err := migrate.CreateSQLMigration(*dir, *name)
		exitOn(ctx, logg, "create migration", err)
		fmt.Println(path)
		return
	case "validate":
		versions, err := migrate.Validate(os.DirFS(*dir))
		exitOn(ctx, logg, "validate migrations", err)
		fmt.Printf("%d migrations ok\n", len(versions))
		return
	}

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	if cfg.FeatureFlags.UseSQLite {
		exitOn(ctx, logg, "sqlite mode", fmt.Errorf("goose migrations target postgres; sqlite uses the dev schema"))
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql handle", err)
	runner, err := migrate.NewRunner(sqlDB, logg)
	exitOn(ctx, logg, "migration runner", err)

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		var pending int
		pending, err = runner.Status(ctx)
		if err == nil {
			fmt.Printf("%d pending\n", pending)
		}
	case "version":
		var version int64
		version, err = strconv.ParseInt(*target, 10, 64)
		if err != nil {
			err = fmt.Errorf("-version %q: expected YYYYMMDDHHMMSS", *target)
			break
		}
		err = runner.To(ctx, version)
	default:
		err = fmt.Errorf("unknown -cmd %q", *cmd)
	}
	exitOn(ctx, logg, "migrate "+*cmd, err)
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
