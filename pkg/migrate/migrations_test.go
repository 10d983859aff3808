package migrate

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/migrate/migrations"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	versions, err := Validate(migrations.FS)
	require.NoError(t, err)
	require.Len(t, versions, 5)
	assert.Equal(t, "20240301090000", versions[0])
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_assignments.sql": {
			"stop_ids uuid[] NOT NULL",
			"CHECK (distance_km >= 0)",
			"CHECK (status IN ('assigned', 'in_transit', 'finalized', 'cancelled'))",
			"PRIMARY KEY (assignment_id, user_id)",
			"DROP TABLE IF EXISTS assignments",
		},
		"*_create_work_logs.sql": {
			"CONSTRAINT work_logs_assignment_user_key UNIQUE (assignment_id, user_id)",
			"CHECK (hours >= 0)",
			"DROP TABLE IF EXISTS work_logs",
		},
		"*_create_vehicle_presence.sql": {
			"CREATE TABLE IF NOT EXISTS vehicle_presence",
			"near_base boolean NOT NULL",
		},
	}

	for pattern, checks := range cases {
		matches, err := fs.Glob(migrations.FS, pattern)
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := fs.ReadFile(migrations.FS, matches[0])
		require.NoError(t, err)
		for _, sub := range checks {
			assert.Contains(t, string(data), sub, matches[0])
		}
	}
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	up := "-- +goose Up\nSELECT 1;\n"
	full := up + "-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name":     {"1_init.sql": {Data: []byte(full)}},
		"missing down": {"20240101000000_init.sql": {Data: []byte(up)}},
		"down first":   {"20240101000000_init.sql": {Data: []byte("-- +goose Down\n" + up)}},
		"duplicate": {
			"20240101000000_a.sql": {Data: []byte(full)},
			"20240101000000_b.sql": {Data: []byte(full)},
		},
	}
	for name, fsys := range cases {
		_, err := Validate(fsys)
		assert.Error(t, err, name)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Vehicle Index")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_vehicle_index.sql"))

	_, err = Validate(os.DirFS(dir))
	require.NoError(t, err)

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestRunnerAppliesAndRollsBack(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:goose_runner?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	fsys := fstest.MapFS{
		"20240101000000_probe.sql": {Data: []byte("-- +goose Up\nCREATE TABLE probe (id INTEGER PRIMARY KEY);\n\n-- +goose Down\nDROP TABLE probe;\n")},
		"20240102000000_probe_name.sql": {Data: []byte("-- +goose Up\nALTER TABLE probe ADD COLUMN name TEXT;\n\n-- +goose Down\nSELECT 1;\n")},
	}
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Format: logger.FormatJSON, Output: buf})
	runner, err := newRunner(goose.DialectSQLite3, sqlDB, fsys, logg)
	require.NoError(t, err)
	ctx := context.Background()

	pending, err := runner.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	require.NoError(t, runner.Up(ctx))
	version, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20240102000000), version)
	assert.True(t, conn.Migrator().HasTable("probe"))
	assert.Contains(t, buf.String(), "migration applied")

	require.NoError(t, runner.To(ctx, 20240101000000))
	version, err = runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20240101000000), version)

	require.NoError(t, runner.Down(ctx))
	assert.False(t, conn.Migrator().HasTable("probe"))
}

func TestNewRunnerRequiresDependencies(t *testing.T) {
	_, err := NewRunner(nil, logger.New(logger.Options{}))
	assert.Error(t, err)
}
