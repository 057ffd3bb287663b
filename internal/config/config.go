package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Vision   VisionConfig   `yaml:"vision"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// PublicBaseURL is prepended to object keys to build the absolute
	// image references stored on reports.
	PublicBaseURL string `yaml:"public_base_url"`
	// MaxSessions and SessionTTL bound the per-session match results kept
	// in memory.
	MaxSessions int           `yaml:"max_sessions"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type StoreDriver string

const (
	StoreDriverPostgres StoreDriver = "postgres"
	StoreDriverSQLite   StoreDriver = "sqlite"
	StoreDriverMemory   StoreDriver = "memory"
)

type StoreConfig struct {
	Driver     StoreDriver `yaml:"driver"`
	SQLitePath string      `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// MatcherConfig describes how the API reaches the image similarity service.
type MatcherConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type IndexKind string

const (
	IndexPgvector IndexKind = "pgvector"
	IndexMemory   IndexKind = "memory"
)

type VisionConfig struct {
	Port          int       `yaml:"port"`
	ModelsDir     string    `yaml:"models_dir"`
	ModelFile     string    `yaml:"model_file"`
	Index         IndexKind `yaml:"index"`
	TopK          int       `yaml:"top_k"`
	MinSimilarity float64   `yaml:"min_similarity"`
	WorkerCount   int       `yaml:"worker_count"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// min_similarity may legitimately be 0, so its default is seeded before
	// decoding instead of filled in afterwards.
	cfg := &Config{Vision: VisionConfig{MinSimilarity: 0.5}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no binary can start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Vision.Index {
	case IndexPgvector, IndexMemory:
	default:
		return fmt.Errorf("unknown vision index %q", c.Vision.Index)
	}
	if c.Vision.MinSimilarity < 0 || c.Vision.MinSimilarity >= 1 {
		return fmt.Errorf("vision.min_similarity must be in [0, 1), got %v", c.Vision.MinSimilarity)
	}
	if c.Server.MaxSessions < 0 || c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.max_sessions and server.session_ttl must not be negative")
	}
	if c.Matcher.RequestsPerSecond < 0 {
		return fmt.Errorf("matcher.requests_per_second must not be negative")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://127.0.0.1:%d/", cfg.Server.Port)
	}
	if !strings.HasSuffix(cfg.Server.PublicBaseURL, "/") {
		cfg.Server.PublicBaseURL += "/"
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1024
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/reports.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "lostfound"
	}
	if cfg.Matcher.URL == "" {
		cfg.Matcher.URL = "http://127.0.0.1:5002/match_image"
	}
	if cfg.Matcher.Timeout == 0 {
		cfg.Matcher.Timeout = 30 * time.Second
	}
	if cfg.Vision.Port == 0 {
		cfg.Vision.Port = 5002
	}
	if cfg.Vision.ModelFile == "" {
		cfg.Vision.ModelFile = "resnet50.onnx"
	}
	if cfg.Vision.Index == "" {
		cfg.Vision.Index = IndexPgvector
	}
	if cfg.Vision.TopK == 0 {
		cfg.Vision.TopK = 5
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LF_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("LF_PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("LF_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = StoreDriver(v)
	}
	if v := os.Getenv("LF_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("LF_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LF_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LF_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LF_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LF_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LF_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("LF_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("LF_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("LF_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("LF_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("LF_MATCHER_URL"); v != "" {
		cfg.Matcher.URL = v
	}
	if v := os.Getenv("LF_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("LF_VISION_INDEX"); v != "" {
		cfg.Vision.Index = IndexKind(v)
	}
	if v := os.Getenv("LF_VISION_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vision.MinSimilarity = f
		}
	}
	if v := os.Getenv("LF_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
}
