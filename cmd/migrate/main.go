// Command migrate manages the xymail schema.
//
//	migrate [flags] <command> [arg]
//
// Commands: up, down, status, to <version>, create <name>, validate.
// Without -dir, up applies the migrations compiled into the binary.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/migrate"
)

type invocation struct {
	dir    string
	arg    string
	sqlDB  *sql.DB
	driver string
}

type command struct {
	needsDB bool
	needArg string
	run     func(ctx context.Context, inv invocation) (string, error)
}

var commands = map[string]command{
	"up": {needsDB: true, run: func(ctx context.Context, inv invocation) (string, error) {
		if inv.dir == "" {
			return "embedded migrations applied", migrate.UpEmbedded(ctx, inv.sqlDB, inv.driver)
		}
		return "migrations applied", migrate.Run(ctx, inv.sqlDB, inv.driver, inv.dir, "up")
	}},
	"down": {needsDB: true, run: func(ctx context.Context, inv invocation) (string, error) {
		return "rolled back one migration", migrate.Run(ctx, inv.sqlDB, inv.driver, dirOrDefault(inv.dir), "down")
	}},
	"status": {needsDB: true, run: func(ctx context.Context, inv invocation) (string, error) {
		return "", migrate.Run(ctx, inv.sqlDB, inv.driver, dirOrDefault(inv.dir), "status")
	}},
	"to": {needsDB: true, needArg: "version", run: func(ctx context.Context, inv invocation) (string, error) {
		return "schema at version " + inv.arg, migrate.MigrateToVersion(ctx, inv.sqlDB, inv.driver, dirOrDefault(inv.dir), inv.arg)
	}},
	"create": {needArg: "name", run: func(_ context.Context, inv invocation) (string, error) {
		path, err := migrate.CreateSQLMigration(dirOrDefault(inv.dir), inv.arg, time.Now())
		return "created " + path, err
	}},
	"validate": {run: func(_ context.Context, inv invocation) (string, error) {
		return "migrations valid", migrate.ValidateDir(dirOrDefault(inv.dir))
	}},
}

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migrations directory (default: embedded for up, "+migrate.DefaultDir+" otherwise)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dir path] up|down|status|to <version>|create <name>|validate")
		flag.PrintDefaults()
	}
	flag.Parse()

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
	inv := invocation{dir: *dir, arg: flag.Arg(1)}
	if cmd.needArg != "" && inv.arg == "" {
		fmt.Fprintf(os.Stderr, "migrate %s: missing <%s>\n", name, cmd.needArg)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, name, cmd, inv); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", name, err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, name string, cmd command, inv invocation) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": name})

	if cmd.needsDB {
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer client.Close()
		if inv.sqlDB, err = client.DB().DB(); err != nil {
			return fmt.Errorf("database handle: %w", err)
		}
		inv.driver = client.Dialect()
	}

	msg, err := cmd.run(ctx, inv)
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		return err
	}
	if msg != "" {
		logg.Info(logg.WithField(ctx, "dir", inv.dir), msg)
	}
	return nil
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}
