package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9091", c.HTTPAddress)
	assert.Equal(t, StorageMemory, c.Storage)
	assert.Equal(t, 720*time.Hour, c.CartTTL)
	assert.Equal(t, 5, c.OrderNumberAttempts)
	assert.Equal(t, 5*time.Second, c.NotifyTimeout)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("STOREFRONT_HTTP_ADDRESS=:8080\nSTOREFRONT_REDIS_ADDRESS=localhost:6379\n"), 0o600))
	t.Setenv("STOREFRONT_CART_TTL", "2h")
	t.Cleanup(func() {
		_ = os.Unsetenv("STOREFRONT_HTTP_ADDRESS")
		_ = os.Unsetenv("STOREFRONT_REDIS_ADDRESS")
	})

	c, err := Load(env)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddress)
	assert.Equal(t, "localhost:6379", c.RedisAddress)
	assert.Equal(t, 2*time.Hour, c.CartTTL)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("mysql needs dsn", func(t *testing.T) {
		t.Setenv("STOREFRONT_STORAGE", "mysql")
		_, err := Load(filepath.Join(t.TempDir(), "none"))
		assert.Error(t, err)
	})
	t.Run("unknown storage", func(t *testing.T) {
		t.Setenv("STOREFRONT_STORAGE", "postgres")
		_, err := Load(filepath.Join(t.TempDir(), "none"))
		assert.Error(t, err)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("STOREFRONT_NOTIFY_TIMEOUT", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "none"))
		assert.Error(t, err)
	})
}
