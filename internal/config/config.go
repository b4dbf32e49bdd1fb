package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable for the service and the ingestion CLI.
// Values are resolved in order: built-in defaults, optional YAML file
// (CONFIG_PATH), environment. Read-only after Load.
type Config struct {
	// Managed-service identity (required; ValidateService / ValidateIngest).
	ProjectID       string `mapstructure:"project_id"`
	Location        string `mapstructure:"location"`
	IndexEndpointID string `mapstructure:"index_endpoint_id"`
	DeployedIndexID string `mapstructure:"deployed_index_id"`

	// Models.
	EmbeddingModel     string `mapstructure:"embedding_model"`
	SummaryModel       string `mapstructure:"summary_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension"`

	// Embedder behavior.
	EmbedBatchSize  int    `mapstructure:"embed_batch_size"`
	EmbedMaxRetries int    `mapstructure:"embed_max_retries"`
	EmbedCacheSize  int    `mapstructure:"embed_cache_size"`
	RedisURL        string `mapstructure:"redis_url"`

	// Result cache.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	CacheMaxEntries int `mapstructure:"cache_max_entries"`

	// Query surface.
	DefaultTopK           int    `mapstructure:"default_top_k"`
	MaxTopK               int    `mapstructure:"max_top_k"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	HTTPPort              int    `mapstructure:"http_port"`
	MetricsPort           int    `mapstructure:"metrics_port"`
	APIURL                string `mapstructure:"api_url"`

	// Endpoint override for all managed services (tests, private endpoints).
	// Empty means the regional default https://{location}-aiplatform.googleapis.com.
	VertexEndpoint string `mapstructure:"vertex_endpoint"`

	// Tracing.
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`

	// Ingestion pacing (0 = unlimited).
	EmbedRPM       int    `mapstructure:"embed_rpm"`
	EmbedTPM       int    `mapstructure:"embed_tpm"`
	RateLimitsPath string `mapstructure:"rate_limits_path"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		EmbeddingModel:        "text-embedding-004",
		SummaryModel:          "gemini-1.5-flash",
		EmbeddingDimension:    768,
		EmbedBatchSize:        100,
		EmbedMaxRetries:       3,
		EmbedCacheSize:        10000,
		CacheTTLSeconds:       300,
		CacheMaxEntries:       1000,
		DefaultTopK:           10,
		MaxTopK:               100,
		RequestTimeoutSeconds: 30,
		HTTPPort:              8080,
		MetricsPort:           2112,
	}
}

// Load resolves the configuration. A YAML file is consulted only when
// CONFIG_PATH is set; a set-but-unreadable file is a hard error so a typo
// does not silently fall back to defaults.
func Load() (*Config, error) {
	cfg := Defaults()

	if cfgPath := os.Getenv("CONFIG_PATH"); cfgPath != "" {
		v := viper.New()
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", cfgPath, err)
		}
	}

	applyEnv(&cfg)

	if cfg.APIURL == "" {
		cfg.APIURL = fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
	}
	return &cfg, nil
}

// applyEnv applies environment overrides on top of file/default values.
func applyEnv(cfg *Config) {
	setString(&cfg.ProjectID, "PROJECT_ID")
	setString(&cfg.Location, "LOCATION")
	setString(&cfg.IndexEndpointID, "INDEX_ENDPOINT_ID")
	setString(&cfg.DeployedIndexID, "DEPLOYED_INDEX_ID")
	setString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.SummaryModel, "SUMMARY_MODEL")
	setInt(&cfg.EmbeddingDimension, "EMBEDDING_DIMENSION")
	setInt(&cfg.EmbedBatchSize, "EMBED_BATCH_SIZE")
	setInt(&cfg.EmbedMaxRetries, "EMBED_MAX_RETRIES")
	setInt(&cfg.EmbedCacheSize, "EMBED_CACHE_SIZE")
	setString(&cfg.RedisURL, "REDIS_URL")
	setInt(&cfg.CacheTTLSeconds, "CACHE_TTL_SECONDS")
	setInt(&cfg.CacheMaxEntries, "CACHE_MAX_ENTRIES")
	setInt(&cfg.DefaultTopK, "DEFAULT_TOP_K")
	setInt(&cfg.MaxTopK, "MAX_TOP_K")
	setInt(&cfg.RequestTimeoutSeconds, "REQUEST_TIMEOUT_SECONDS")
	setInt(&cfg.HTTPPort, "HTTP_PORT")
	setInt(&cfg.MetricsPort, "METRICS_PORT")
	setString(&cfg.APIURL, "API_URL")
	setString(&cfg.VertexEndpoint, "VERTEX_ENDPOINT")
	setBool(&cfg.TracingEnabled, "TRACING_ENABLED")
	setString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setInt(&cfg.EmbedRPM, "EMBED_RPM")
	setInt(&cfg.EmbedTPM, "EMBED_TPM")
	setString(&cfg.RateLimitsPath, "RATE_LIMITS_PATH")
}

// ValidateService checks everything the online query path requires.
func (c *Config) ValidateService() error {
	return c.requireVars(map[string]string{
		"PROJECT_ID":        c.ProjectID,
		"LOCATION":          c.Location,
		"INDEX_ENDPOINT_ID": c.IndexEndpointID,
		"DEPLOYED_INDEX_ID": c.DeployedIndexID,
	})
}

// ValidateIngest checks what the offline pipeline requires. The ingest CLI
// never talks to the ANN endpoint, so the index ids may stay unset.
func (c *Config) ValidateIngest() error {
	return c.requireVars(map[string]string{
		"PROJECT_ID": c.ProjectID,
		"LOCATION":   c.Location,
	})
}

func (c *Config) requireVars(vars map[string]string) error {
	var missing []string
	// Stable order for the error message.
	for _, name := range []string{"PROJECT_ID", "LOCATION", "INDEX_ENDPOINT_ID", "DEPLOYED_INDEX_ID"} {
		if val, ok := vars[name]; ok && strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.DefaultTopK < 1 || c.MaxTopK < c.DefaultTopK {
		return fmt.Errorf("invalid top-k bounds: DEFAULT_TOP_K=%d MAX_TOP_K=%d", c.DefaultTopK, c.MaxTopK)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("invalid EMBEDDING_DIMENSION: %d", c.EmbeddingDimension)
	}
	return nil
}

// RequestTimeout is the per-request budget for /search.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL is the result-cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil {
			*dst = x
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}
