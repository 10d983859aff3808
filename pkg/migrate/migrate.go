package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/migrate/migrations"
)

// DefaultDir is where `create` writes new files; at runtime the embedded copy is used.
const DefaultDir = "pkg/migrate/migrations"

// Runner applies the schema history with a goose provider and logs each step.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// NewRunner builds a Postgres runner over the embedded migrations.
func NewRunner(db *sql.DB, logg *logger.Logger) (*Runner, error) {
	return newRunner(goose.DialectPostgres, db, migrations.FS, logg)
}

func newRunner(dialect goose.Dialect, db *sql.DB, fsys fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.report(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// To moves the schema up or down until version is the latest applied.
func (r *Runner) To(ctx context.Context, version int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("current version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case version > current:
		results, err = r.provider.UpTo(ctx, version)
	case version < current:
		results, err = r.provider.DownTo(ctx, version)
	}
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate to %d: %w", version, err)
	}
	return nil
}

// Version returns the latest applied migration version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

// Status logs one line per known migration and returns how many are pending.
func (r *Runner) Status(ctx context.Context) (int, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate status: %w", err)
	}
	pending := 0
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"file":    st.Source.Path,
			"state":   string(st.State),
		}
		if st.State == goose.StatePending {
			pending++
		} else {
			fields["applied_at"] = st.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration")
	}
	return pending, nil
}

func (r *Runner) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entry := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
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
