package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  validate:"required"`
	Timer     TimerConfig     `mapstructure:"timer"     validate:"required"`
	Backup    BackupConfig    `mapstructure:"backup"    validate:"required"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains database-related configuration settings.
// The database is optional: it is only used as a snapshot source.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
	// QueryTimeout bounds each snapshot query.
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

// LedgerConfig configures the shared ledger exposed by the server.
type LedgerConfig struct {
	InitialBalance int64 `mapstructure:"initial_balance" validate:"gte=0"`
}

// PipelineConfig configures the producer/consumer pipeline.
type PipelineConfig struct {
	Consumers int `mapstructure:"consumers"  validate:"gt=0"`
	QueueSize int `mapstructure:"queue_size" validate:"gt=0"`
	// ProduceRate limits items produced per second. Zero disables pacing.
	ProduceRate float64 `mapstructure:"produce_rate" validate:"gte=0"`
}

// TimerConfig configures the resettable countdown timer.
type TimerConfig struct {
	Tick  time.Duration `mapstructure:"tick"  validate:"gt=0"`
	Limit int           `mapstructure:"limit" validate:"gt=0"`
}

// BackupConfig configures the periodic snapshot job.
type BackupConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"     validate:"gt=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"gt=0"`
	MaxFiles    int           `mapstructure:"max_files"    validate:"gt=0"`
	Compression string        `mapstructure:"compression"  validate:"oneof=none zstd"`
	Sink        string        `mapstructure:"sink"         validate:"oneof=file s3"`
	Directory   string        `mapstructure:"directory"    validate:"required"`
	APIBaseURL  string        `mapstructure:"api_base_url" validate:"omitempty,url"`
	Endpoints   []string      `mapstructure:"endpoints"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	// Tables maps a section name to a table name or a SQL query producing its rows.
	Tables map[string]string `mapstructure:"tables"`
	S3     S3Config          `mapstructure:"s3"`
}

// S3Config holds object storage settings used when Backup.Sink is "s3".
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// HeartbeatConfig configures the background status logger.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}
