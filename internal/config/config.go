// Package config provides configuration management for WarmConnector.
// Settings come from defaults, then an optional YAML file, then environment
// variables with the WARMCONNECTOR_ prefix. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/scrypster/warmconnector/internal/cache"
)

// EnvConfigFile names the environment variable holding the YAML file path.
const EnvConfigFile = "WARMCONNECTOR_CONFIG"

var validate = validator.New()

// Config holds all configuration settings for WarmConnector.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Performance PerformanceConfig `yaml:"performance"`
	Narrative   NarrativeConfig   `yaml:"narrative"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit      float64 `yaml:"rate_limit" validate:"min=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" validate:"min=0"`

	// ReportInterval is how often /ws/performance pushes a report.
	ReportInterval time.Duration `yaml:"report_interval"`
}

// StorageConfig selects and configures the person store.
type StorageConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=sqlite postgres neo4j"`
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// Neo4j only.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// SearchConfig tunes the resolver and the graph search.
type SearchConfig struct {
	DefaultFromPersonID string        `yaml:"default_from_person_id"`
	DefaultMode         string        `yaml:"default_mode" validate:"omitempty,oneof=smart advanced comprehensive"`
	MaxHops             int           `yaml:"max_hops" validate:"min=1,max=3"`
	MinStrength         int           `yaml:"min_strength" validate:"min=0,max=100"`
	ResultLimit         int           `yaml:"result_limit" validate:"min=1,max=100"`
	MaxCandidates       int           `yaml:"max_candidates" validate:"min=1,max=50"`
	DeepMaxNodes        int           `yaml:"deep_max_nodes" validate:"min=0"`
	DeepMaxEdges        int           `yaml:"deep_max_edges" validate:"min=0"`
	DeepTimeout         time.Duration `yaml:"deep_timeout"`
}

// CacheConfig bounds each named cache.
type CacheConfig struct {
	ConnectionSearch   cache.Config `yaml:"connection_search"`
	Pathfinding        cache.Config `yaml:"pathfinding"`
	BatchProfileLookup cache.Config `yaml:"batch_profile_lookup"`

	// EventsDir is watched for graph change events; each one purges every
	// cache. Empty disables the watcher.
	EventsDir string `yaml:"events_dir"`
}

// Configs returns the per-cache settings keyed by cache name.
func (c CacheConfig) Configs() map[cache.Name]cache.Config {
	return map[cache.Name]cache.Config{
		cache.ConnectionSearch:   c.ConnectionSearch,
		cache.Pathfinding:        c.Pathfinding,
		cache.BatchProfileLookup: c.BatchProfileLookup,
	}
}

// PerformanceConfig tunes the performance monitor.
type PerformanceConfig struct {
	WindowSize         int           `yaml:"window_size" validate:"min=1"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// NarrativeConfig configures the optional model narrator. An empty Provider
// disables it.
type NarrativeConfig struct {
	Provider string        `yaml:"provider" validate:"omitempty,oneof=openai ollama"`
	APIKey   string        `yaml:"api_key" validate:"required_if=Provider openai"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether a narrator should be built.
func (n NarrativeConfig) Enabled() bool { return n.Provider != "" }

// EnrichmentConfig configures the optional external directory lookup. An
// empty URL disables it.
type EnrichmentConfig struct {
	URL               string        `yaml:"url" validate:"omitempty,url"`
	APIKey            string        `yaml:"api_key"`
	SourceName        string        `yaml:"source_name"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"min=0"`
	Burst             int           `yaml:"burst" validate:"min=0"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Enabled reports whether an enrichment provider should be built.
func (e EnrichmentConfig) Enabled() bool { return e.URL != "" }

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format    string `yaml:"format" validate:"oneof=text json"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns the built-in configuration.
func Default() *Config {
	caches := cache.DefaultConfigs()
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            6464,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
			RateLimitBurst:  40,
			ReportInterval:  5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          "sqlite",
			DSN:             "./data/warmconnector.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Search: SearchConfig{
			DefaultMode:   "smart",
			MaxHops:       2,
			ResultLimit:   10,
			MaxCandidates: 5,
			DeepMaxNodes:  25,
			DeepMaxEdges:  500,
			DeepTimeout:   2 * time.Second,
		},
		Cache: CacheConfig{
			ConnectionSearch:   caches[cache.ConnectionSearch],
			Pathfinding:        caches[cache.Pathfinding],
			BatchProfileLookup: caches[cache.BatchProfileLookup],
		},
		Performance: PerformanceConfig{
			WindowSize:         100,
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Narrative: NarrativeConfig{
			Timeout: 2 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			RequestsPerSecond: 2,
			Burst:             4,
			Timeout:           3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; when
// empty, WARMCONNECTOR_CONFIG is consulted. Environment variables override
// file values. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays WARMCONNECTOR_* variables. Unset or unparsable
// variables keep the current value.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("WARMCONNECTOR_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("WARMCONNECTOR_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("WARMCONNECTOR_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("WARMCONNECTOR_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("WARMCONNECTOR_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.RateLimit = getEnvFloat("WARMCONNECTOR_RATE_LIMIT", c.Server.RateLimit)
	c.Server.RateLimitBurst = getEnvInt("WARMCONNECTOR_RATE_LIMIT_BURST", c.Server.RateLimitBurst)
	c.Server.ReportInterval = getEnvDuration("WARMCONNECTOR_REPORT_INTERVAL", c.Server.ReportInterval)

	c.Storage.Driver = getEnv("WARMCONNECTOR_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnv("WARMCONNECTOR_STORAGE_DSN", c.Storage.DSN)
	c.Storage.MaxOpenConns = getEnvInt("WARMCONNECTOR_STORAGE_MAX_OPEN_CONNS", c.Storage.MaxOpenConns)
	c.Storage.MaxIdleConns = getEnvInt("WARMCONNECTOR_STORAGE_MAX_IDLE_CONNS", c.Storage.MaxIdleConns)
	c.Storage.ConnMaxLifetime = getEnvDuration("WARMCONNECTOR_STORAGE_CONN_MAX_LIFETIME", c.Storage.ConnMaxLifetime)
	c.Storage.Username = getEnv("WARMCONNECTOR_STORAGE_USERNAME", c.Storage.Username)
	c.Storage.Password = getEnv("WARMCONNECTOR_STORAGE_PASSWORD", c.Storage.Password)
	c.Storage.Database = getEnv("WARMCONNECTOR_STORAGE_DATABASE", c.Storage.Database)

	c.Search.DefaultFromPersonID = getEnv("WARMCONNECTOR_DEFAULT_FROM_PERSON_ID", c.Search.DefaultFromPersonID)
	c.Search.DefaultMode = getEnv("WARMCONNECTOR_SEARCH_MODE", c.Search.DefaultMode)
	c.Search.MaxHops = getEnvInt("WARMCONNECTOR_MAX_HOPS", c.Search.MaxHops)
	c.Search.MinStrength = getEnvInt("WARMCONNECTOR_MIN_STRENGTH", c.Search.MinStrength)
	c.Search.ResultLimit = getEnvInt("WARMCONNECTOR_RESULT_LIMIT", c.Search.ResultLimit)
	c.Search.MaxCandidates = getEnvInt("WARMCONNECTOR_MAX_CANDIDATES", c.Search.MaxCandidates)
	c.Search.DeepMaxNodes = getEnvInt("WARMCONNECTOR_DEEP_MAX_NODES", c.Search.DeepMaxNodes)
	c.Search.DeepMaxEdges = getEnvInt("WARMCONNECTOR_DEEP_MAX_EDGES", c.Search.DeepMaxEdges)
	c.Search.DeepTimeout = getEnvDuration("WARMCONNECTOR_DEEP_TIMEOUT", c.Search.DeepTimeout)

	c.Cache.ConnectionSearch.TTL = getEnvDuration("WARMCONNECTOR_CACHE_SEARCH_TTL", c.Cache.ConnectionSearch.TTL)
	c.Cache.Pathfinding.TTL = getEnvDuration("WARMCONNECTOR_CACHE_PATHFINDING_TTL", c.Cache.Pathfinding.TTL)
	c.Cache.BatchProfileLookup.TTL = getEnvDuration("WARMCONNECTOR_CACHE_PROFILE_TTL", c.Cache.BatchProfileLookup.TTL)
	c.Cache.EventsDir = getEnv("WARMCONNECTOR_CACHE_EVENTS_DIR", c.Cache.EventsDir)
	if n := getEnvInt("WARMCONNECTOR_CACHE_MAX_KEYS", 0); n > 0 {
		c.Cache.ConnectionSearch.MaxKeys = n
		c.Cache.Pathfinding.MaxKeys = n
		c.Cache.BatchProfileLookup.MaxKeys = n
	}

	c.Performance.WindowSize = getEnvInt("WARMCONNECTOR_PERF_WINDOW", c.Performance.WindowSize)
	c.Performance.SlowQueryThreshold = getEnvDuration("WARMCONNECTOR_SLOW_QUERY_THRESHOLD", c.Performance.SlowQueryThreshold)

	c.Narrative.Provider = getEnv("WARMCONNECTOR_LLM_PROVIDER", c.Narrative.Provider)
	c.Narrative.APIKey = getEnv("WARMCONNECTOR_LLM_API_KEY", c.Narrative.APIKey)
	c.Narrative.Model = getEnv("WARMCONNECTOR_LLM_MODEL", c.Narrative.Model)
	c.Narrative.BaseURL = getEnv("WARMCONNECTOR_LLM_BASE_URL", c.Narrative.BaseURL)
	c.Narrative.Timeout = getEnvDuration("WARMCONNECTOR_LLM_TIMEOUT", c.Narrative.Timeout)

	c.Enrichment.URL = getEnv("WARMCONNECTOR_ENRICHMENT_URL", c.Enrichment.URL)
	c.Enrichment.APIKey = getEnv("WARMCONNECTOR_ENRICHMENT_API_KEY", c.Enrichment.APIKey)
	c.Enrichment.SourceName = getEnv("WARMCONNECTOR_ENRICHMENT_SOURCE", c.Enrichment.SourceName)
	c.Enrichment.RequestsPerSecond = getEnvFloat("WARMCONNECTOR_ENRICHMENT_RPS", c.Enrichment.RequestsPerSecond)
	c.Enrichment.Burst = getEnvInt("WARMCONNECTOR_ENRICHMENT_BURST", c.Enrichment.Burst)
	c.Enrichment.Timeout = getEnvDuration("WARMCONNECTOR_ENRICHMENT_TIMEOUT", c.Enrichment.Timeout)

	c.Logging.Level = strings.ToLower(getEnv("WARMCONNECTOR_LOG_LEVEL", c.Logging.Level))
	c.Logging.Format = strings.ToLower(getEnv("WARMCONNECTOR_LOG_FORMAT", c.Logging.Format))
	c.Logging.AddSource = getEnvBool("WARMCONNECTOR_LOG_ADD_SOURCE", c.Logging.AddSource)
}

// Validate checks the configuration against its struct rules. The error
// lists every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed rule '%s'", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("250ms", "5m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
