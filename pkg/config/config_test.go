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

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.MLPort)
	assert.Equal(t, 5002, cfg.Server.RAGPort)
	assert.Equal(t, 400, cfg.Regulations.ChunkSize)
	assert.Equal(t, 80, cfg.Regulations.ChunkOverlap)
	assert.Equal(t, "memory", cfg.VectorStore.Backend)
	assert.Equal(t, []string{"finance-go", "yahoo-chart"}, cfg.MarketData.Providers)
	assert.Equal(t, 15*time.Minute, cfg.MarketData.CacheTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 2, cfg.Redis.MinIdleConns)
	assert.Equal(t, 30*time.Second, cfg.Redis.PoolTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Kafka.BatchTimeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  ml_port: 7001
regulations:
  dir: /data/regs
  reload_cron: "0 3 * * *"
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 7001, cfg.Server.MLPort)
	assert.Equal(t, 5002, cfg.Server.RAGPort)
	assert.Equal(t, "/data/regs", cfg.Regulations.Dir)
	assert.Equal(t, "0 3 * * *", cfg.Regulations.ReloadCron)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("REGULATIONS_DIR", "/env/regs")
	t.Setenv("VECTOR_STORE", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/regs", cfg.Regulations.Dir)
	assert.Equal(t, "redis", cfg.VectorStore.Backend)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, "openai", cfg.Embedding.ResolvedProvider())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "overlap not below chunk size", mutate: func(c *Config) { c.Regulations.ChunkOverlap = c.Regulations.ChunkSize }},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "disk" }},
		{name: "unknown vector store", mutate: func(c *Config) { c.VectorStore.Backend = "faiss" }},
		{name: "openai without key", mutate: func(c *Config) { c.Embedding.Provider = "openai" }},
		{name: "kafka without brokers", mutate: func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
		{name: "zero period", mutate: func(c *Config) { c.MarketData.PeriodDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEmbeddingResolvedProvider(t *testing.T) {
	assert.Equal(t, "ollama", Embedding{Provider: "auto"}.ResolvedProvider())
	assert.Equal(t, "openai", Embedding{Provider: "auto", OpenAIAPIKey: "k"}.ResolvedProvider())
	assert.Equal(t, "ollama", Embedding{Provider: "ollama", OpenAIAPIKey: "k"}.ResolvedProvider())
}
