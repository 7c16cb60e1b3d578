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
	for _, k := range []string{"PORT", "STORE_BACKEND", "MAX_UPLOAD_BYTES", "MAX_TRANSACTIONS", "PARSE_TIMEOUT", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 500, cfg.MaxTransactions)
	assert.Equal(t, 15*time.Second, cfg.ParseTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("PREVIEW_TTL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MAX_TRANSACTIONS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, time.Minute, cfg.PreviewTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 500, cfg.MaxTransactions)
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreBackend: StoreSupabase, MaxUploadBytes: 1, MaxTransactions: 1, JWTSecret: "s"}
	assert.Error(t, cfg.Validate())

	cfg.SupabaseURL = "https://x.supabase.co"
	cfg.SupabaseServiceKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.StoreBackend = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport DOTENV_A=\"quoted value\"\nDOTENV_B=plain # trailing\nDOTENV_C=from-file\nbroken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_C", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("DOTENV_A")
		os.Unsetenv("DOTENV_B")
	})

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted value", os.Getenv("DOTENV_A"))
	assert.Equal(t, "plain", os.Getenv("DOTENV_B"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_C"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
