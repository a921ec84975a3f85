package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	environmentENV    = "ENVIRONMENT"
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/chaskit.yaml"
)

type Config struct {
	Environment string `koanf:"environment"`

	// APIKey, when set, must be sent by every client.
	APIKey string `koanf:"api_key"`

	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseDriver            string        `koanf:"database_driver"`
	DatabaseMaxOpenConns      int           `koanf:"database_max_open_conns"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	DatabaseURL               string        `koanf:"database_url"`

	DefaultPageSize  int    `koanf:"default_page_size"`
	MaxPageSize      int    `koanf:"max_page_size"`
	DefaultSort      string `koanf:"default_sort"`
	DefaultDirection string `koanf:"default_direction"`

	RedisURL         string        `koanf:"redis_url"`
	TaxonomyCacheTTL time.Duration `koanf:"taxonomy_cache_ttl"`

	ServerHost string `koanf:"server_host"`
	ServerPort int    `koanf:"server_port"`

	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageBucket          string `koanf:"storage_bucket"`
	StorageEndpoint        string `koanf:"storage_endpoint"`
	StoragePublicURL       string `koanf:"storage_public_url"`
	StorageRegion          string `koanf:"storage_region"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
}

// required lists the struct fields that must be non-empty after loading.
var required = []string{"DatabaseURL"}

func defaults() *Config {
	return &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseDriver:            "sqlite",
		DatabaseMaxOpenConns:      10,
		DatabaseMaxRetries:        5,
		DefaultPageSize:           20,
		MaxPageSize:               100,
		DefaultSort:               "date",
		DefaultDirection:          "desc",
		TaxonomyCacheTTL:          10 * time.Minute,
		ServerHost:                "0.0.0.0",
		ServerPort:                3690,
		StorageRegion:             "us-east-1",
	}
}

// New builds the config from the environment defaults, then the YAML file at
// CONFIG_FILE (if it exists), then environment variables named after the
// upper-cased keys.
func New() (*Config, error) {
	cfg := defaults()
	cfg.Environment = os.Getenv(environmentENV)
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	switch cfg.Environment {
	case "development":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
	default:
		return nil, errors.Errorf("unknown environment %q", cfg.Environment)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config pointing at an in-memory database without
// reading the environment.
func NewForTest() *Config {
	cfg := defaults()
	cfg.Environment = "test"
	loadTestConfig(cfg)
	return cfg
}

// StorageEnabled reports whether cover uploads can go to object storage.
func (cfg *Config) StorageEnabled() bool {
	return cfg.StorageEndpoint != "" && cfg.StorageBucket != ""
}

func (cfg *Config) validate() error {
	missing := []string{}
	v := reflect.ValueOf(cfg).Elem()
	for _, field := range required {
		if v.FieldByName(field).IsZero() {
			key := toSnakeCase(field)
			missing = append(missing, strings.ToUpper(key)+" ("+key+")")
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if cfg.DefaultPageSize < 1 || cfg.DefaultPageSize > cfg.MaxPageSize {
		return errors.Errorf("default_page_size must be between 1 and max_page_size (%d)", cfg.MaxPageSize)
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
