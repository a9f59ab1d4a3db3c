package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	embedded := flag.Bool("embedded", false, "use the migrations compiled into the binary")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	// create and validate only touch files, so they work without a full
	// environment.
	switch *cmd {
	case "create":
		if *name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		validate := func() error { return migrate.ValidateDir(*dir) }
		if *embedded {
			validate = migrate.ValidateEmbedded
		}
		if err := validate(); err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"embedded": *embedded,
	})

	src, err := source(*dir, *embedded)
	if err != nil {
		fail(ctx, logg, "migration source", err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "database", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "sql database", err)
	}

	runner, err := migrate.NewRunner(sqlDB, goose.DialectPostgres, src, logg)
	if err != nil {
		fail(ctx, logg, "migration runner", err)
	}
	logg.Info(logg.WithField(ctx, "source", src.Label), "migrate ready")

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "version":
		if *version == "" {
			exit("missing -version for version command")
		}
		err = runner.To(ctx, *version)
	case "status":
		err = printStatus(ctx, runner)
	default:
		exit("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		fail(ctx, logg, "goose "+*cmd, err)
	}
}

func source(dir string, embedded bool) (migrate.Source, error) {
	if embedded {
		return migrate.EmbeddedSource()
	}
	return migrate.DirSource(dir)
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, applied, s.Path)
	}
	return tw.Flush()
}

func fail(ctx context.Context, logg *logger.Logger, what string, err error) {
	logg.Error(ctx, fmt.Sprintf("%s failed", what), err)
	os.Exit(1)
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
