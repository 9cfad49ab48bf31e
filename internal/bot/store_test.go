package bot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
)

func TestOpenStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.db")
	store, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	open, err := store.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.FileExists(t, path)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "mysql"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown database driver")
}
