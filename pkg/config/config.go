package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string      `yaml:"environment" default:"development"`
	Log         Log         `yaml:"log"`
	Server      Server      `yaml:"server"`
	Metrics     Metrics     `yaml:"metrics"`
	RateLimit   RateLimit   `yaml:"rate_limit"`
	MarketData  MarketData  `yaml:"market_data"`
	Cache       Cache       `yaml:"cache"`
	Redis       Redis       `yaml:"redis"`
	Regulations Regulations `yaml:"regulations"`
	Embedding   Embedding   `yaml:"embedding"`
	VectorStore VectorStore `yaml:"vector_store"`
	ClickHouse  ClickHouse  `yaml:"clickhouse"`
	Kafka       Kafka       `yaml:"kafka"`
	Audit       Audit       `yaml:"audit"`
}

type Log struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type Server struct {
	MLPort          int           `yaml:"ml_port" default:"5001"`
	RAGPort         int           `yaml:"rag_port" default:"5002"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"5s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps" default:"10"`
	Burst   int     `yaml:"burst" default:"20"`
}

type MarketData struct {
	// PeriodDays is the number of trading days the window attempt aims to cover.
	PeriodDays     int           `yaml:"period_days" default:"252"`
	Providers      []string      `yaml:"providers" default:"[\"finance-go\",\"yahoo-chart\"]"`
	ChartBaseURL   string        `yaml:"chart_base_url" default:"https://query1.finance.yahoo.com"`
	UserAgent      string        `yaml:"user_agent" default:"Mozilla/5.0"`
	Timeout        time.Duration `yaml:"timeout" default:"20s"`
	CacheTTL       time.Duration `yaml:"cache_ttl" default:"15m"`
	MaxConcurrency int           `yaml:"max_concurrency" default:"4"`
}

type Cache struct {
	Backend       string `yaml:"backend" default:"memory"` // memory, redis, layered
	MemoryMaxSize int    `yaml:"memory_max_size" default:"10000"`
}

type Redis struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix" default:"riskapprove"`
	Timeout      time.Duration `yaml:"timeout" default:"5s"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
}

func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type Regulations struct {
	Dir           string `yaml:"dir" default:"./regulations"`
	EmbeddingsDir string `yaml:"embeddings_dir" default:"./embeddings"`
	ChunkSize     int    `yaml:"chunk_size" default:"400"`
	ChunkOverlap  int    `yaml:"chunk_overlap" default:"80"`
	TopK          int    `yaml:"top_k" default:"5"`
	MaxCitations  int    `yaml:"max_citations" default:"3"`
	CitationChars int    `yaml:"citation_chars" default:"500"`
	// ReloadCron is a robfig/cron spec; empty disables scheduled rebuilds.
	ReloadCron    string        `yaml:"reload_cron"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce" default:"2s"`
	PDFToText     string        `yaml:"pdftotext" default:"pdftotext"`
}

type Embedding struct {
	Provider      string        `yaml:"provider" default:"auto"` // auto, openai, ollama
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `yaml:"openai_model" default:"text-embedding-3-small"`
	OllamaBaseURL string        `yaml:"ollama_base_url" default:"http://localhost:11434"`
	OllamaModel   string        `yaml:"ollama_model" default:"all-minilm"`
	BatchSize     int           `yaml:"batch_size" default:"64"`
	Timeout       time.Duration `yaml:"timeout" default:"60s"`
}

// ResolvedProvider turns "auto" into a concrete provider name.
func (e Embedding) ResolvedProvider() string {
	if e.Provider != "auto" {
		return e.Provider
	}
	if e.OpenAIAPIKey != "" {
		return "openai"
	}
	return "ollama"
}

type VectorStore struct {
	Backend   string `yaml:"backend" default:"memory"` // memory, redis
	IndexName string `yaml:"index_name" default:"regulations"`
}

type ClickHouse struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"riskapprove"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
}

type Kafka struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
	PredictionTopic string        `yaml:"prediction_topic" default:"riskapprove.predictions"`
	ComplianceTopic string        `yaml:"compliance_topic" default:"riskapprove.compliance"`
	RequiredAcks    int           `yaml:"required_acks" default:"1"`
	Compression     string        `yaml:"compression" default:"snappy"`
	MaxAttempts     int           `yaml:"max_attempts" default:"3"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" default:"50ms"`
	Async           bool          `yaml:"async"`
}

type Audit struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path" default:"./data/audit.db"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is honored when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REGULATIONS_DIR"); v != "" {
		c.Regulations.Dir = v
	}
	if v := os.Getenv("EMBEDDINGS_DIR"); v != "" {
		c.Regulations.EmbeddingsDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.OpenAIAPIKey = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Embedding.OllamaBaseURL = v
	}
	if v := os.Getenv("VECTOR_STORE"); v != "" {
		c.VectorStore.Backend = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.MLPort <= 0 || c.Server.RAGPort <= 0 {
		return fmt.Errorf("server ports must be positive")
	}
	if c.MarketData.PeriodDays <= 0 {
		return fmt.Errorf("market_data.period_days must be positive, got %d", c.MarketData.PeriodDays)
	}
	if c.MarketData.MaxConcurrency <= 0 {
		return fmt.Errorf("market_data.max_concurrency must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	if c.Regulations.ChunkSize <= 0 {
		return fmt.Errorf("regulations.chunk_size must be positive")
	}
	if c.Regulations.ChunkOverlap < 0 || c.Regulations.ChunkOverlap >= c.Regulations.ChunkSize {
		return fmt.Errorf("regulations.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Regulations.TopK <= 0 {
		return fmt.Errorf("regulations.top_k must be positive")
	}
	switch c.Embedding.Provider {
	case "auto", "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be 'auto', 'openai' or 'ollama', got '%s'", c.Embedding.Provider)
	}
	if c.Embedding.ResolvedProvider() == "openai" && c.Embedding.OpenAIAPIKey == "" {
		return fmt.Errorf("embedding.openai_api_key is required for the openai provider")
	}
	switch c.VectorStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("vector_store.backend must be 'memory' or 'redis', got '%s'", c.VectorStore.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
