package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  api_key: secret\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "http://127.0.0.1:8080/", cfg.Server.PublicBaseURL)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Matcher.Timeout)
	assert.Equal(t, 5, cfg.Vision.TopK)
	assert.InDelta(t, 0.5, cfg.Vision.MinSimilarity, 1e-9)
	assert.Equal(t, 1024, cfg.Server.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, IndexPgvector, cfg.Vision.Index)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadParsesSections(t *testing.T) {
	body := `
server:
  port: 9000
  public_base_url: https://media.example.org
store:
  driver: sqlite
  sqlite_path: /tmp/lf.db
matcher:
  url: http://matcher:5002/match_image
  timeout: 5s
  requests_per_second: 2.5
vision:
  index: memory
  top_k: 3
logging:
  format: text
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://media.example.org/", cfg.Server.PublicBaseURL)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/lf.db", cfg.Store.SQLitePath)
	assert.Equal(t, "http://matcher:5002/match_image", cfg.Matcher.URL)
	assert.Equal(t, 5*time.Second, cfg.Matcher.Timeout)
	assert.InDelta(t, 2.5, cfg.Matcher.RequestsPerSecond, 1e-9)
	assert.Equal(t, IndexMemory, cfg.Vision.Index)
	assert.Equal(t, 3, cfg.Vision.TopK)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadKeepsExplicitZeroSimilarity(t *testing.T) {
	cfg, err := Load(writeConfig(t, "vision:\n  min_similarity: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Vision.MinSimilarity)

	t.Setenv("LF_VISION_MIN_SIMILARITY", "0")
	cfg, err = Load(writeConfig(t, "vision:\n  min_similarity: 0.8\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Vision.MinSimilarity)
}

func TestLoadSessionLimits(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  max_sessions: 10\n  session_ttl: 2m\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Server.MaxSessions)
	assert.Equal(t, 2*time.Minute, cfg.Server.SessionTTL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LF_SERVER_PORT", "7070")
	t.Setenv("LF_STORE_DRIVER", "memory")
	t.Setenv("LF_MATCHER_URL", "http://elsewhere/match_image")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, "http://elsewhere/match_image", cfg.Matcher.URL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "store:\n  driver: mongo\n"},
		{"unknown index", "vision:\n  index: faiss\n"},
		{"similarity out of range", "vision:\n  min_similarity: 1.5\n"},
		{"negative rate", "matcher:\n  requests_per_second: -1\n"},
		{"negative similarity", "vision:\n  min_similarity: -0.1\n"},
		{"negative session ttl", "server:\n  session_ttl: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
