package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		err := run()
		require.Error(t, err)
		assert.ErrorContains(t, err, "validating configuration")
	})

	t.Run("database unavailable", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))

		t.Setenv("JWT_SECRET", "0123456789abcdef")
		t.Setenv("DATA_BACKEND", "sqlite")
		t.Setenv("SQLITE_DB_PATH", filepath.Join(blocker, "ledger.db"))
		err := run()
		require.Error(t, err)
		assert.ErrorContains(t, err, "database connection")
	})
}
