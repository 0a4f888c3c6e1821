package windlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrateCommandUp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli_test.db")

	RunMigrateCommand([]string{"up"}, dbPath, "migrations")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion("migrations")
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// The migrated schema must accept readings.
	require.NoError(t, db.RecordReading(90, 5, 1700000000000))
	n, err := db.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunMigrateCommandStatusAndHelp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli_test.db")

	// Neither action exits or panics on a fresh database.
	RunMigrateCommand([]string{"status"}, dbPath, "migrations")
	RunMigrateCommand([]string{"help"}, dbPath, "migrations")
}
