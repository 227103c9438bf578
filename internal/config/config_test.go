package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "donations.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, float64(10), cfg.Directory.RateLimit)
	assert.Equal(t, 300, cfg.Match.CacheTTLSecs)
	assert.Equal(t, 8, cfg.Match.LookupConcurrency)
	assert.Equal(t, 4, cfg.Match.RecordConcurrency)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/donations
match:
  stopwords:
    - foundation
    - fund
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/donations", cfg.Store.DatabaseURL)
	assert.Equal(t, []string{"foundation", "fund"}, cfg.Match.Stopwords)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Unset keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DONATION_STORE_DRIVER", "postgres")
	t.Setenv("DONATION_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadStopwordsInlineWins(t *testing.T) {
	m := MatchConfig{
		Stopwords:     []string{"trust"},
		StopwordsFile: "does-not-exist.yaml",
	}

	words, err := m.LoadStopwords()
	require.NoError(t, err)
	assert.Equal(t, []string{"trust"}, words)
}

func TestLoadStopwordsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stopwords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- foundation\n- charitable\n"), 0o644))

	m := MatchConfig{StopwordsFile: path}
	words, err := m.LoadStopwords()
	require.NoError(t, err)
	assert.Equal(t, []string{"foundation", "charitable"}, words)
}

func TestLoadStopwordsUnsetReturnsNil(t *testing.T) {
	words, err := MatchConfig{}.LoadStopwords()
	require.NoError(t, err)
	assert.Nil(t, words)
}

func TestLoadStopwordsMissingFile(t *testing.T) {
	m := MatchConfig{StopwordsFile: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := m.LoadStopwords()
	assert.Error(t, err)
}

func TestLedgerReceipt(t *testing.T) {
	l := LedgerConfig{DepositAccountID: "acct-1", ItemID: "item-2"}

	rc := l.Receipt()
	assert.Equal(t, "acct-1", rc.DepositAccountID)
	assert.Equal(t, "item-2", rc.ItemID)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	assert.Error(t, err)
}
