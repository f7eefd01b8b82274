package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "DATABASE_DRIVER", "SERVER_PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "CRON_SECRET", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "SCRAPERAPI_KEY", "GECKO_TERMINAL_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "krom.db", cfg.Database.DSN)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.AI.DefaultModel)
	assert.Equal(t, 30, cfg.Prices.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.PriceRequestDelay())
	assert.Equal(t, 200*time.Millisecond, cfg.GeckoDelay())
	assert.Equal(t, 10, cfg.Cron.PriceBatch)
	assert.Equal(t, 20, cfg.Cron.AnalyzeBatch)
	assert.Equal(t, "0.0.0.0:8090", cfg.Addr())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
  allowed_origins: ["https://a.example"]
database:
  driver: sqlite
  dsn: file.db
cron:
  secret: from-file
prices:
  request_delay_ms: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("CRON_SECRET", "from-env")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/krom")
	t.Setenv("DATABASE_DRIVER", "postgres")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Cron.Secret)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/krom", cfg.Database.DSN)
	assert.Equal(t, 50*time.Millisecond, cfg.PriceRequestDelay())
}

func TestDriverInferredFromDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgresql://localhost/krom")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n  dsn: x\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "not supported")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "log.format")

	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
