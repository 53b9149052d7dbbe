package consumer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("REPO_BACKEND", "mem")
	t.Setenv("ALLOW_MEM_BACKEND", "true")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_ADDR=127.0.0.1:7070\nREPO_BACKEND=pg\nCARD_BIN=504175\n"), 0o600))

	// godotenv sets process variables; drop them after the test
	t.Cleanup(func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("CARD_BIN")
	})

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7070", cfg.HTTPAddr)
	require.Equal(t, "mem", cfg.RepoBackend)
	require.True(t, cfg.AllowMemBackend)
	require.Equal(t, "504175", cfg.CardBIN)
	require.Equal(t, 16, cfg.CardNumberLength)
	require.Equal(t, "localhost:8583", cfg.ISO8583Addr)
}

func TestLoadConfig_MissingFileIsIgnored(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
