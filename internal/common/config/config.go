// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Upsell       UpsellConfig            `mapstructure:"upsell"`
	HTTP         HTTPConfig              `mapstructure:"http"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Auth         AuthConfig              `mapstructure:"auth"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Registry     RegistryConfig          `mapstructure:"registry"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Tracing      TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Upsell Engine ---

// Signal source backends.
const (
	SignalSourcePostgres      = "postgres"
	SignalSourceElasticsearch = "elasticsearch"
)

// Metadata cache stores.
const (
	CacheStoreNone   = "none"
	CacheStoreMemory = "memory"
	CacheStoreRedis  = "redis"
)

// UpsellConfig holds settings for the recommendation engine.
type UpsellConfig struct {
	DefaultLimit      int      `mapstructure:"default_limit"`
	MaxLimit          int      `mapstructure:"max_limit"`
	SyntheticCartSize int      `mapstructure:"synthetic_cart_size"`
	DefaultCategories []string `mapstructure:"default_categories"`

	SignalSource struct {
		Type    string `mapstructure:"type"` // postgres | elasticsearch
		Index   string `mapstructure:"index"`
		MaxDocs int    `mapstructure:"max_docs"`
	} `mapstructure:"signal_source"`

	Cache struct {
		Store        string `mapstructure:"store"` // none | memory | redis
		TTL          int    `mapstructure:"ttl"`   // milliseconds
		Key          string `mapstructure:"key"`
		BuildTimeout int    `mapstructure:"build_timeout"` // milliseconds
	} `mapstructure:"cache"`

	Breaker struct {
		Enabled          bool `mapstructure:"enabled"`
		FailureThreshold int  `mapstructure:"failure_threshold"`
		OpenTimeout      int  `mapstructure:"open_timeout"` // milliseconds
	} `mapstructure:"breaker"`

	Events struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"events"`

	// IntentHeuristics overrides the intent scoring defaults key by key.
	IntentHeuristics struct {
		Weights      map[string]float64          `mapstructure:"weights"`
		BudgetRanges map[string]BudgetRangeConfig `mapstructure:"budget_ranges"`
	} `mapstructure:"intent_heuristics"`
}

type BudgetRangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// CacheTTL returns the metadata cache TTL.
func (u UpsellConfig) CacheTTL() time.Duration {
	return GetDuration(u.Cache.TTL)
}

// HTTPConfig holds settings for the public and admin API.
type HTTPConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Address        string `mapstructure:"address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	RateLimit      struct {
		Requests int `mapstructure:"requests"`
		Window   int `mapstructure:"window"` // milliseconds
	} `mapstructure:"rate_limit"`
}

// --- Specific Configuration Sections ---

// AuthConfig holds settings for the admin token check.
type AuthConfig struct {
	Keycloak struct {
		Enabled      bool   `mapstructure:"enabled"`
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		AdminRole    string `mapstructure:"admin_role"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for external services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// RegistryConfig points at the activity registry holding input schemas.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// TracingConfig controls span export to an OTLP/HTTP collector.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // host:port
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
