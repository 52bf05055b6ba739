package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"port" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,oneof=dev test prod"`
	CORSOrigins string `mapstructure:"cors_origins"`
	TablePrefix string `mapstructure:"table_prefix"`
	// Debug flags
	Debug bool `mapstructure:"debug"`

	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	ObjectStore  ObjectStoreConfig  `mapstructure:"object_store"`
	Verification VerificationConfig `mapstructure:"verification"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// DatabaseConfig selects the entity store. An empty URL means the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig holds JWT verification settings. Without a JWKS URL the
// middleware falls back to the X-Owner-ID header, which is only allowed in dev.
type AuthConfig struct {
	JWKSURL string `mapstructure:"jwks_url" validate:"omitempty,url"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Dir      string `mapstructure:"dir"`
	MaxFiles int    `mapstructure:"max_files" validate:"gte=0"`
}

type ObjectStoreConfig struct {
	Type   string            `mapstructure:"type" validate:"required,oneof=memory s3 badger"`
	S3     S3Config          `mapstructure:"s3"`
	Badger BadgerStoreConfig `mapstructure:"badger"`
}

// S3Config configures the S3 object store. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type BadgerStoreConfig struct {
	Path string `mapstructure:"path"`
}

// VerificationConfig tunes the verifier and the report registry. These are
// knobs, not verification options: callers cannot override them per run.
type VerificationConfig struct {
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=1,lte=256"`
	StorageTimeout time.Duration `mapstructure:"storage_timeout" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// RedisConfig enables the verification report archive when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from an optional YAML file and STOWAGE_* environment
// variables. configPath may be empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.TablePrefix == "" {
		cfg.TablePrefix = getTablePrefix(cfg.Environment)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
// Environment variables use the STOWAGE_ prefix, e.g. STOWAGE_DATABASE_URL.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STOWAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("stowage")
		v.SetConfigType("yaml")
	}
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	env := getEnv("ENVIRONMENT", "dev")

	v.SetDefault("port", getEnv("PORT", "8080"))
	v.SetDefault("environment", env)
	v.SetDefault("cors_origins", getEnv("CORS_ORIGINS", "http://localhost:3000"))
	v.SetDefault("table_prefix", "")
	// Debug defaults to true in dev/test, false in production
	v.SetDefault("debug", env != "prod")

	v.SetDefault("database.url", getEnv("DATABASE_URL", ""))
	v.SetDefault("auth.jwks_url", "")

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.dir", "")
	v.SetDefault("logging.max_files", 10)

	v.SetDefault("object_store.type", "memory")
	v.SetDefault("object_store.s3.bucket", "")
	v.SetDefault("object_store.s3.region", "us-east-1")
	v.SetDefault("object_store.s3.endpoint", "")
	v.SetDefault("object_store.s3.key_prefix", "")
	v.SetDefault("object_store.s3.force_path_style", false)
	v.SetDefault("object_store.s3.access_key_id", "")
	v.SetDefault("object_store.s3.secret_access_key", "")
	v.SetDefault("object_store.badger.path", "./data/objects")

	v.SetDefault("verification.concurrency", 8)
	v.SetDefault("verification.storage_timeout", 30*time.Second)
	v.SetDefault("verification.sweep_interval", 10*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "stowage:verification:")

	v.SetDefault("metrics.enabled", true)
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
