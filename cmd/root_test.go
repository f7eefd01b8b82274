package cmd

import (
	"path/filepath"
	"testing"

	"krom-analysis/database"
	"krom-analysis/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "fetch-prices", "analyze", "x-analyze", "migrate"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestLimitOr(t *testing.T) {
	jobLimit = 0
	assert.Equal(t, 7, limitOr(7))
	jobLimit = 3
	t.Cleanup(func() { jobLimit = 0 })
	assert.Equal(t, 3, limitOr(7))
}

func TestMigrateCreatesTables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "krom.db"))
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "migrate"})
	require.NoError(t, rootCmd.Execute())

	db := database.GetDB()
	require.NotNil(t, db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	for _, m := range []any{&models.Call{}, &models.DiscoveryToken{}, &models.RatedProject{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
