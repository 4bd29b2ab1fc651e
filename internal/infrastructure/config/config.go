package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	Crisis    CrisisConfig    `koanf:"crisis"`
	Backup    BackupConfig    `koanf:"backup"`
	Migration MigrationConfig `koanf:"migration"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

// CrisisConfig carries the emergency dispatch targets and deadlines. The
// numbers here end up verbatim in fallback messages when a deep link cannot
// be opened, so they must stay dialable as written.
type CrisisConfig struct {
	HotlineNumber           string        `koanf:"hotline_number"`
	EmergencyServicesNumber string        `koanf:"emergency_services_number"`
	TextLineNumber          string        `koanf:"text_line_number"`
	TextLineKeyword         string        `koanf:"text_line_keyword"`
	MaxExecutionTime        time.Duration `koanf:"max_execution_time"`
	GuaranteedExecutionTime time.Duration `koanf:"guaranteed_execution_time"`
	QueueRatePerSecond      int           `koanf:"queue_rate_per_second"`
	QueueBurst              int           `koanf:"queue_burst"`
}

type BackupConfig struct {
	EncryptionKey string                   `koanf:"encryption_key"`
	Retention     map[string]time.Duration `koanf:"retention"`
}

type MigrationConfig struct {
	ConvertedOpSLA time.Duration `koanf:"converted_op_sla"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
		Crisis: CrisisConfig{
			HotlineNumber:           "988",
			EmergencyServicesNumber: "911",
			TextLineNumber:          "741741",
			TextLineKeyword:         "HOME",
			MaxExecutionTime:        200 * time.Millisecond,
			GuaranteedExecutionTime: 100 * time.Millisecond,
			QueueRatePerSecond:      10,
			QueueBurst:              20,
		},
		Backup: BackupConfig{
			Retention: map[string]time.Duration{
				"crisis":     3 * time.Hour,
				"assessment": 3 * time.Hour,
				"settings":   3 * time.Hour,
			},
		},
		Migration: MigrationConfig{
			ConvertedOpSLA: 50 * time.Millisecond,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if one was given or the default exists.
	// The file is optional; defaults plus env cover a full configuration.
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Override with environment variables
	if err := k.Load(env.Provider("CRISIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CRISIS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// RetentionFor returns the configured retention for a store family,
// falling back to the crisis window.
func (c *Config) RetentionFor(storeType string) time.Duration {
	if d, ok := c.Backup.Retention[storeType]; ok && d > 0 {
		return d
	}
	return 3 * time.Hour
}
