package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/fuomag9/kabomba-status/internal/config"
)

func TestConnect_RejectsUnknownType(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Type: "mysql", DSN: "x"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestOpen_AppliesPoolSettings(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := open(sqlite.Open(dsn), config.DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 2}, false)
	require.NoError(t, err)
	defer Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://./migrations", sourceURL(""))
	assert.Equal(t, "file:///srv/migrations", sourceURL("/srv/migrations"))
	assert.Equal(t, "file://custom", sourceURL("file://custom"))
}
