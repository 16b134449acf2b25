package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable consulted by Load.
const EnvPrefix = "COORD"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the given config file instead of
// searching the working directory for config.yaml. An empty path searches.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Backup.Sink == "s3" && (cfg.Backup.S3.Endpoint == "" || cfg.Backup.S3.Bucket == "") {
		return fmt.Errorf("config validation failed: backup.s3.endpoint and backup.s3.bucket are required when backup.sink is s3")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.query_timeout", 30*time.Second)

	v.SetDefault("ledger.initial_balance", 500)

	v.SetDefault("pipeline.consumers", 3)
	v.SetDefault("pipeline.queue_size", 100)
	v.SetDefault("pipeline.produce_rate", 0)

	v.SetDefault("timer.tick", 100*time.Millisecond)
	v.SetDefault("timer.limit", 100)

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.interval", 300*time.Second)
	v.SetDefault("backup.retry_delay", 10*time.Second)
	v.SetDefault("backup.max_files", 10)
	v.SetDefault("backup.compression", "none")
	v.SetDefault("backup.sink", "file")
	v.SetDefault("backup.directory", "backups")
	v.SetDefault("backup.api_base_url", "")
	v.SetDefault("backup.endpoints", []string{"herramientas/", "prestamos/"})
	v.SetDefault("backup.http_timeout", 5*time.Second)
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.prefix", "backups/")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.use_ssl", true)

	v.SetDefault("heartbeat.interval", 2*time.Second)
}
