package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global    GlobalConfig    `yaml:"global"`
	Intake    IntakeConfig    `yaml:"intake"`
	Archival  ArchivalConfig  `yaml:"archival"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Stores    StoresConfig    `yaml:"stores"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Retry     RetryConfig     `yaml:"retry"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// IntakeConfig represents upload validation settings
type IntakeConfig struct {
	MaxFileSizeBytes  int64    `yaml:"max_file_size_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// ArchivalConfig represents archival sweep settings
type ArchivalConfig struct {
	AgeThreshold     time.Duration `yaml:"age_threshold"`
	CompressionLevel int           `yaml:"compression_level"`

	// Retention knobs are external policy inputs. Zero disables purging.
	BackupRetention  time.Duration `yaml:"backup_retention"`
	ArchiveRetention time.Duration `yaml:"archive_retention"`
}

// PipelineConfig represents batch run settings
type PipelineConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

// StoresConfig holds per-tier object store settings
type StoresConfig struct {
	Intake  StoreConfig `yaml:"intake"`
	Backup  StoreConfig `yaml:"backup"`
	Archive StoreConfig `yaml:"archive"`
}

// StoreConfig represents one object store namespace
type StoreConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// SecretsConfig represents secret resolution settings
type SecretsConfig struct {
	// Provider selects the secret backend: "aws" or "env".
	Provider string `yaml:"provider"`
	Region   string `yaml:"region"`

	// StorageSecretName resolves to the storage credential material.
	StorageSecretName string `yaml:"storage_secret_name"`
}

// RetryConfig represents retry settings applied by the orchestrator
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// ServerConfig represents the HTTP trigger surface settings
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TelemetryConfig represents metrics settings
type TelemetryConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Intake: IntakeConfig{
			MaxFileSizeBytes:  50 * 1024 * 1024,
			AllowedExtensions: []string{".jpg", ".png", ".pdf", ".docx"},
		},
		Archival: ArchivalConfig{
			AgeThreshold:     30 * 24 * time.Hour,
			CompressionLevel: 6,
		},
		Pipeline: PipelineConfig{
			MaxConcurrency: 8,
			RunTimeout:     15 * time.Minute,
		},
		Stores: StoresConfig{
			Intake:  StoreConfig{Bucket: "tiervault-intake", Region: "us-east-1"},
			Backup:  StoreConfig{Bucket: "tiervault-backup", Region: "us-east-1"},
			Archive: StoreConfig{Bucket: "tiervault-archive", Region: "us-east-1"},
		},
		Secrets: SecretsConfig{
			Provider: "env",
			Region:   "us-east-1",
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
		},
		Server: ServerConfig{
			Address:      "localhost:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			Namespace: "tiervault",
			Labels:    map[string]string{"service": "tiervault"},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("TIERVAULT_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("TIERVAULT_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("TIERVAULT_MAX_FILE_SIZE"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Intake.MaxFileSizeBytes = size
		}
	}
	if val := os.Getenv("TIERVAULT_ALLOWED_EXTENSIONS"); val != "" {
		c.Intake.AllowedExtensions = strings.Split(val, ",")
	}

	if val := os.Getenv("TIERVAULT_ARCHIVAL_AGE_THRESHOLD"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Archival.AgeThreshold = duration
		}
	}
	if val := os.Getenv("TIERVAULT_COMPRESSION_LEVEL"); val != "" {
		if level, err := strconv.Atoi(val); err == nil {
			c.Archival.CompressionLevel = level
		}
	}

	if val := os.Getenv("TIERVAULT_MAX_CONCURRENCY"); val != "" {
		if concurrency, err := strconv.Atoi(val); err == nil {
			c.Pipeline.MaxConcurrency = concurrency
		}
	}

	if val := os.Getenv("TIERVAULT_SERVER_ADDRESS"); val != "" {
		c.Server.Address = val
	}

	if val := os.Getenv("TIERVAULT_SECRETS_PROVIDER"); val != "" {
		c.Secrets.Provider = val
	}
	if val := os.Getenv("TIERVAULT_STORAGE_SECRET_NAME"); val != "" {
		c.Secrets.StorageSecretName = val
	}

	if val := os.Getenv("TIERVAULT_TELEMETRY_ENABLED"); val != "" {
		c.Telemetry.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Intake.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("max_file_size_bytes must be greater than 0")
	}

	if len(c.Intake.AllowedExtensions) == 0 {
		return fmt.Errorf("allowed_extensions must not be empty")
	}
	for _, ext := range c.Intake.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q: must start with a dot", ext)
		}
	}

	if c.Archival.AgeThreshold <= 0 {
		return fmt.Errorf("age_threshold must be greater than 0")
	}

	if c.Archival.CompressionLevel < 1 || c.Archival.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between 1 and 9")
	}

	if c.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be greater than 0")
	}

	if c.Stores.Intake.Bucket == "" || c.Stores.Backup.Bucket == "" || c.Stores.Archive.Bucket == "" {
		return fmt.Errorf("all three tier buckets must be configured")
	}
	if c.Stores.Intake.Bucket == c.Stores.Backup.Bucket ||
		c.Stores.Backup.Bucket == c.Stores.Archive.Bucket ||
		c.Stores.Intake.Bucket == c.Stores.Archive.Bucket {
		return fmt.Errorf("tier buckets must be distinct namespaces")
	}

	switch c.Secrets.Provider {
	case "aws", "env":
	default:
		return fmt.Errorf("invalid secrets provider: %s (must be one of: aws, env)", c.Secrets.Provider)
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
