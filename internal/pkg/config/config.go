package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Infra     InfraConfig     `mapstructure:"infra"`
	Areas     AreasConfig     `mapstructure:"areas"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	RequestTimeout int `mapstructure:"request_timeout"`
	RateLimit      int `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// CacheConfig selects the lookup cache backend. Driver is "valkey", "redis" or "none".
type CacheConfig struct {
	Driver   string `mapstructure:"driver"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// InfraConfig configures the Opendatasoft pipe dataset client.
type InfraConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Dataset       string        `mapstructure:"dataset"`
	APIKey        string        `mapstructure:"api_key"`
	PointField    string        `mapstructure:"point_field"`
	ShapeField    string        `mapstructure:"shape_field"`
	IDField       string        `mapstructure:"id_field"`
	OrderBy       string        `mapstructure:"order_by"`
	PageSize      int           `mapstructure:"page_size"`
	MaxOffset     int           `mapstructure:"max_offset"`
	MaxSplitDepth int           `mapstructure:"max_split_depth"`
	PartitionRows int           `mapstructure:"partition_rows"`
	PartitionCols int           `mapstructure:"partition_cols"`
	Concurrency   int           `mapstructure:"concurrency"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// AreasConfig configures the ArcGIS built-up area lookup.
type AreasConfig struct {
	LayerURL   string        `mapstructure:"layer_url"`
	NameField  string        `mapstructure:"name_field"`
	CodeField  string        `mapstructure:"code_field"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from .env, the config file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: INFRAHEX_INFRA_DATASET → infra.dataset
	v.SetEnvPrefix("INFRAHEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.request_timeout", 120)
	v.SetDefault("server.rate_limit", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "infrahex")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "infrahex")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 86400)

	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("infra.base_url", "https://cadentgas.opendatasoft.com/api/explore/v2.1")
	v.SetDefault("infra.dataset", "gpn-pipes")
	v.SetDefault("infra.api_key", "")
	v.SetDefault("infra.point_field", "geo_point_2d")
	v.SetDefault("infra.shape_field", "geo_shape")
	v.SetDefault("infra.id_field", "")
	v.SetDefault("infra.order_by", "")
	v.SetDefault("infra.page_size", 100)
	v.SetDefault("infra.max_offset", 10000)
	v.SetDefault("infra.max_split_depth", 6)
	v.SetDefault("infra.partition_rows", 2)
	v.SetDefault("infra.partition_cols", 2)
	v.SetDefault("infra.concurrency", 4)
	v.SetDefault("infra.rate_per_second", 10.0)
	v.SetDefault("infra.max_retries", 3)
	v.SetDefault("infra.timeout", "30s")

	v.SetDefault("areas.layer_url", "https://services1.arcgis.com/ESMARspQHYMw9BZ9/arcgis/rest/services/BUA_2024_GB/FeatureServer/0")
	v.SetDefault("areas.name_field", "BUA24NM")
	v.SetDefault("areas.code_field", "BUA24CD")
	v.SetDefault("areas.max_retries", 3)
	v.SetDefault("areas.timeout", "30s")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "infrahex-areas")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	switch c.Cache.Driver {
	case "none", "":
	case "valkey", "redis":
		if c.Cache.Addr == "" {
			errs = append(errs, "cache.addr is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver must be valkey, redis or none, got %q", c.Cache.Driver))
	}
	if c.Infra.BaseURL == "" {
		errs = append(errs, "infra.base_url is required")
	}
	if c.Infra.Dataset == "" {
		errs = append(errs, "infra.dataset is required")
	}
	if c.Infra.PointField == "" {
		errs = append(errs, "infra.point_field is required")
	}
	if c.Infra.PageSize <= 0 || c.Infra.PageSize > 100 {
		errs = append(errs, fmt.Sprintf("infra.page_size must be 1-100, got %d", c.Infra.PageSize))
	}
	if c.Infra.PartitionRows <= 0 || c.Infra.PartitionCols <= 0 {
		errs = append(errs, "infra.partition_rows and infra.partition_cols must be positive")
	}
	if c.Infra.Concurrency <= 0 {
		errs = append(errs, "infra.concurrency must be positive")
	}
	if c.Areas.LayerURL == "" {
		errs = append(errs, "areas.layer_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
