package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// embeddedDir is the path of the SQL files inside Migrations.
const embeddedDir = "migrations"

//go:embed migrations/*.sql
var Migrations embed.FS

// Source is a set of goose SQL migrations rooted at the top of FS.
type Source struct {
	FS    fs.FS
	Label string
}

// DirSource reads migrations from a directory on disk.
func DirSource(dir string) (Source, error) {
	if dir == "" {
		return Source{}, errors.New("dir is required")
	}
	return Source{FS: os.DirFS(dir), Label: dir}, nil
}

// EmbeddedSource serves the migrations compiled into the binary.
func EmbeddedSource() (Source, error) {
	sub, err := fs.Sub(Migrations, embeddedDir)
	if err != nil {
		return Source{}, fmt.Errorf("embedded migrations: %w", err)
	}
	return Source{FS: sub, Label: "embedded"}, nil
}

// Status is one migration as seen by the database.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies a Source to a database. It never closes the database; the
// pool belongs to the caller.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
	label    string
}

// NewRunner builds a runner for dialect (goose.DialectPostgres in every
// deployed environment).
func NewRunner(db *sql.DB, dialect goose.Dialect, src Source, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if src.FS == nil {
		return nil, errors.New("migration source is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	provider, err := goose.NewProvider(dialect, db, src.FS)
	if err != nil {
		return nil, fmt.Errorf("goose provider for %s: %w", src.Label, err)
	}
	return &Runner{provider: provider, logg: logg, label: src.Label}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.logResults(ctx, []*goose.MigrationResult{result})
	}
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// To moves the schema up or down until version is the latest applied one.
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("goose migrate to %d: %w", target, err)
	}
	return nil
}

// Version returns the latest applied version, 0 on an empty schema.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func (r *Runner) logResults(ctx context.Context, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entry := r.logg.WithFields(ctx, map[string]any{
			"source":      r.label,
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			r.logg.Error(entry, "migration failed", res.Error)
			continue
		}
		r.logg.Info(entry, "migration applied")
	}
}
