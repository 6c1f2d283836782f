package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, LauncherInProcess, cfg.Launcher)
	assert.Equal(t, 50*time.Millisecond, cfg.StoreLatency)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.PollGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.EnrichMinDelay)
	assert.Equal(t, 2*time.Second, cfg.EnrichMaxDelay)
	assert.Len(t, cfg.SigningSecret, 32)
	assert.False(t, cfg.ExportsEnabled())
	assert.Equal(t, TraceExporterNone, cfg.TraceExporter)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SKYPULSE_ADDRESS", ":9090")
	t.Setenv("SKYPULSE_STORE_DRIVER", "Postgres")
	t.Setenv("SKYPULSE_DATABASE_URL", "postgres://localhost/skypulse")
	t.Setenv("SKYPULSE_LAUNCHER", "asynq")
	t.Setenv("SKYPULSE_WORKERS", "4")
	t.Setenv("SKYPULSE_POLL_INTERVAL", "250ms")
	t.Setenv("SKYPULSE_ENRICH_MIN_DELAY", "3s")
	t.Setenv("SKYPULSE_ENRICH_MAX_DELAY", "1s")
	t.Setenv("SKYPULSE_SIGNING_SECRET", "shh")
	t.Setenv("SKYPULSE_S3_ENDPOINT", "minio:9000")
	t.Setenv("API_KEY", "legacy-key")
	t.Setenv("SKYPULSE_TRACE_EXPORTER", "OTLP")
	t.Setenv("SKYPULSE_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("SKYPULSE_TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, LauncherAsynq, cfg.Launcher)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.EnrichMaxDelay, "max is raised to min")
	assert.Equal(t, []byte("shh"), cfg.SigningSecret)
	assert.Equal(t, "legacy-key", cfg.GeminiAPIKey)
	assert.True(t, cfg.ExportsEnabled())
	assert.Equal(t, TraceExporterOTLP, cfg.TraceExporter)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
}

func TestPrefixedAPIKeyWins(t *testing.T) {
	t.Setenv("API_KEY", "legacy-key")
	t.Setenv("SKYPULSE_GEMINI_API_KEY", "new-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "new-key", cfg.GeminiAPIKey)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skypulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: \":7070\"\nworkers: 3\n"), 0o600))
	t.Setenv("SKYPULSE_CONFIG_FILE", path)
	t.Setenv("SKYPULSE_WORKERS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Address)
	assert.Equal(t, 5, cfg.Workers, "environment overrides the file")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory inprocess", Config{StoreDriver: StoreMemory, Launcher: LauncherInProcess}, true},
		{"badger inprocess", Config{StoreDriver: StoreBadger, Launcher: LauncherInProcess}, true},
		{"postgres without url", Config{StoreDriver: StorePostgres, Launcher: LauncherInProcess}, false},
		{"asynq on memory", Config{StoreDriver: StoreMemory, Launcher: LauncherAsynq}, false},
		{"asynq on postgres", Config{StoreDriver: StorePostgres, DatabaseURL: "postgres://x", Launcher: LauncherAsynq}, true},
		{"unknown driver", Config{StoreDriver: "sqlite", Launcher: LauncherInProcess}, false},
		{"unknown launcher", Config{StoreDriver: StoreMemory, Launcher: "kafka"}, false},
		{"stdout tracing", Config{StoreDriver: StoreMemory, Launcher: LauncherInProcess, TraceExporter: TraceExporterStdout}, true},
		{"unknown trace exporter", Config{StoreDriver: StoreMemory, Launcher: LauncherInProcess, TraceExporter: "zipkin"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
