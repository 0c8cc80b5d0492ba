package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteHealth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "concierge.db")
	svc, err := NewSQLite(path, zap.NewNop())
	require.NoError(t, err)

	stats := svc.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "sqlite", stats["driver"])
	assert.Equal(t, path, stats["path"])

	require.NoError(t, svc.Close())
	assert.Equal(t, "down", svc.Health()["status"])
}

func TestMemoryHealth(t *testing.T) {
	svc := NewMemory()
	assert.Equal(t, "up", svc.Health()["status"])
	assert.NoError(t, svc.Close())
}
