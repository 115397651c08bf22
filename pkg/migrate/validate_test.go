package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tiendas-backend/pkg/migrate"
)

func embeddedNames() ([]string, error) {
	entries, err := fs.ReadDir(migrate.Embedded, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "  Add Loyalty-Tier Index ")
	require.NoError(t, err)
	require.Regexp(t, `^\d{14}_add_loyalty_tier_index\.sql$`, filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "-- +goose Up")
	require.Contains(t, string(data), "-- +goose Down")

	require.NoError(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := migrate.CreateSQLMigration(t.TempDir(), "!!!")
	require.Error(t, err)

	_, err = migrate.CreateSQLMigration("", "x")
	require.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	t.Run("bad filename", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
		require.ErrorContains(t, migrate.ValidateDir(dir), "invalid migration filename")
	})

	t.Run("duplicate version", func(t *testing.T) {
		dir := t.TempDir()
		body := []byte("-- +goose Up\n-- +goose Down\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
		require.ErrorContains(t, migrate.ValidateDir(dir), "duplicate migration version")
	})

	t.Run("down before up", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), []byte("-- +goose Down\n-- +goose Up\n"), 0o644))
		require.ErrorContains(t, migrate.ValidateDir(dir), "Down before Up")
	})

	t.Run("missing down", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), []byte("-- +goose Up\n"), 0o644))
		require.ErrorContains(t, migrate.ValidateDir(dir), "missing \"-- +goose Down\"")
	})
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateEmbedded())

	names, err := embeddedNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
}

func TestCreateSQLMigrationRejectsFutureVersions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99990101000000_future.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	_, err := migrate.CreateSQLMigration(dir, "late")
	require.ErrorContains(t, err, "does not sort after")
}
