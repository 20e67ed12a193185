// Package config loads and validates the gateway configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the IGW_ prefix (e.g., IGW_AUDIT_SHEETS_RANGE
// overrides audit.sheets.range in the YAML). The variable names used by the first
// deployments (SHEET_ID, DRIVE_FOLDER_ID, GOOGLE_SERVICE_ACCOUNT_JSON, ALLOWED_API_KEY, ...)
// are bound as aliases so existing environments keep working unchanged.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Google    GoogleConfig    `mapstructure:"google"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GoogleConfig holds the service account used by the Drive, Sheets and GCS clients.
// When neither field is set, Application Default Credentials are used.
type GoogleConfig struct {
	CredentialsJSON string `mapstructure:"credentials_json"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// StorageConfig holds blob store configuration
type StorageConfig struct {
	DefaultBackend string `mapstructure:"default_backend"`
	// LinkBase is the origin used to build canonical <base>/file/d/<id>/view links
	// from caller-supplied references.
	LinkBase string             `mapstructure:"link_base"`
	Drive    DriveStorageConfig `mapstructure:"drive"`
	GCS      GCSStorageConfig   `mapstructure:"gcs"`
	S3       S3StorageConfig    `mapstructure:"s3"`
	Azure    AzureStorageConfig `mapstructure:"azure"`
	Local    LocalStorageConfig `mapstructure:"local"`
}

// DriveStorageConfig holds Google Drive configuration
type DriveStorageConfig struct {
	// FolderID is the Drive folder that receives uploads
	FolderID string `mapstructure:"folder_id"`
	// Endpoint overrides the Drive API endpoint (tests, private access)
	Endpoint string `mapstructure:"endpoint"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for MinIO, DigitalOcean Spaces, etc.)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`

	// Authentication method: "default", "static", "assume_role"
	AuthMethod      string `mapstructure:"auth_method"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	RoleARN         string `mapstructure:"role_arn"`
	RoleSessionName string `mapstructure:"role_session_name"`
	ExternalID      string `mapstructure:"external_id"`
}

// AzureStorageConfig holds Azure Blob Storage configuration
type AzureStorageConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
	Prefix        string `mapstructure:"prefix"`
	CDNURL        string `mapstructure:"cdn_url"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	ServeDirectly bool   `mapstructure:"serve_directly"`
}

// AuditConfig holds tabular store configuration
type AuditConfig struct {
	// Backend is the primary tabular store: sheets, postgres, file, webhook
	Backend  string              `mapstructure:"backend"`
	Sheets   SheetsAuditConfig   `mapstructure:"sheets"`
	Database DatabaseConfig      `mapstructure:"database"`
	File     FileAuditConfig     `mapstructure:"file"`
	Webhook  WebhookAuditConfig  `mapstructure:"webhook"`
	Mirrors  []AuditMirrorConfig `mapstructure:"mirrors"`
}

// SheetsAuditConfig holds Google Sheets configuration
type SheetsAuditConfig struct {
	SpreadsheetID    string `mapstructure:"spreadsheet_id"`
	Range            string `mapstructure:"range"`
	ValueInputOption string `mapstructure:"value_input_option"`
	Endpoint         string `mapstructure:"endpoint"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// FileAuditConfig holds JSON-lines file sink configuration
type FileAuditConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// WebhookAuditConfig holds webhook sink configuration
type WebhookAuditConfig struct {
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	TimeoutSecs int               `mapstructure:"timeout_secs"`
}

// AuditMirrorConfig describes a secondary sink that receives a copy of every row
type AuditMirrorConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Type    string              `mapstructure:"type"` // file, webhook
	File    *FileAuditConfig    `mapstructure:"file"`
	Webhook *WebhookAuditConfig `mapstructure:"webhook"`
}

// IntakeConfig holds request handling configuration
type IntakeConfig struct {
	Timezone         string           `mapstructure:"timezone"`
	TimestampFormat  string           `mapstructure:"timestamp_format"`
	VerifyReferences bool             `mapstructure:"verify_references"`
	MaxUploadSizeMB  int              `mapstructure:"max_upload_size_mb"`
	Defaults         DefaultsConfig   `mapstructure:"defaults"`
	Validation       ValidationConfig `mapstructure:"validation"`
}

// DefaultsConfig holds the values applied to absent submission fields
type DefaultsConfig struct {
	TaskID         string `mapstructure:"task_id"`
	CommandedBy    string `mapstructure:"commanded_by"`
	ExecutedBy     string `mapstructure:"executed_by"`
	TaskActionType string `mapstructure:"task_action_type"`
	FileActionType string `mapstructure:"file_action_type"`
	TaskStatus     string `mapstructure:"task_status"`
	FileStatus     string `mapstructure:"file_status"`
	Filename       string `mapstructure:"filename"`
	ContentType    string `mapstructure:"content_type"`
}

// ValidationConfig holds the free-text input policy
type ValidationConfig struct {
	// Mode is "permissive" (log values verbatim) or "strict" (length and control-character checks)
	Mode             string `mapstructure:"mode"`
	MaxFieldLength   int    `mapstructure:"max_field_length"`
	MaxContentLength int    `mapstructure:"max_content_length"`
}

// AuthConfig holds caller authentication configuration
type AuthConfig struct {
	// APIKey is the shared secret compared against the API key header
	APIKey string `mapstructure:"api_key"`
	// APIKeyHash is a bcrypt hash of the shared secret, used instead of APIKey when set
	APIKeyHash string `mapstructure:"api_key_hash"`
	Header     string `mapstructure:"header"`
	// RequireAPIKey rejects every mutating request when no key is configured
	RequireAPIKey bool `mapstructure:"require_api_key"`
}

// KeyConfigured reports whether a shared secret (plain or hashed) is set
func (a *AuthConfig) KeyConfigured() bool {
	return a.APIKey != "" || a.APIKeyHash != ""
}

// UpstreamConfig bounds calls to the blob and tabular stores
type UpstreamConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool        `mapstructure:"enabled"`
	Backend           string      `mapstructure:"backend"` // memory, redis
	RequestsPerMinute int         `mapstructure:"requests_per_minute"`
	Burst             int         `mapstructure:"burst"`
	Redis             RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings for the shared rate limiter
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// legacyEnv maps config keys to the unprefixed variable names of the original deployments.
var legacyEnv = map[string][]string{
	"google.credentials_json":     {"GOOGLE_SERVICE_ACCOUNT_JSON"},
	"audit.sheets.spreadsheet_id": {"SHEET_ID"},
	"audit.sheets.range":          {"SHEET_RANGE"},
	"storage.drive.folder_id":     {"DRIVE_FOLDER_ID"},
	"auth.api_key":                {"ALLOWED_API_KEY"},
	"server.port":                 {"PORT"},
	"intake.timezone":             {"TZ_NAME"},
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.read_timeout",
		"server.write_timeout",

		// Google
		"google.credentials_json",
		"google.credentials_file",

		// Storage
		"storage.default_backend",
		"storage.link_base",
		"storage.drive.folder_id",
		"storage.drive.endpoint",
		"storage.gcs.bucket",
		"storage.gcs.prefix",
		"storage.gcs.endpoint",
		"storage.s3.endpoint",
		"storage.s3.region",
		"storage.s3.bucket",
		"storage.s3.prefix",
		"storage.s3.auth_method",
		"storage.s3.access_key_id",
		"storage.s3.secret_access_key",
		"storage.s3.role_arn",
		"storage.s3.role_session_name",
		"storage.s3.external_id",
		"storage.azure.account_name",
		"storage.azure.account_key",
		"storage.azure.container_name",
		"storage.azure.prefix",
		"storage.azure.cdn_url",
		"storage.local.base_path",
		"storage.local.serve_directly",

		// Audit
		"audit.backend",
		"audit.sheets.spreadsheet_id",
		"audit.sheets.range",
		"audit.sheets.value_input_option",
		"audit.sheets.endpoint",
		"audit.database.host",
		"audit.database.port",
		"audit.database.name",
		"audit.database.user",
		"audit.database.password",
		"audit.database.ssl_mode",
		"audit.database.max_connections",
		"audit.database.min_idle_connections",
		"audit.file.path",
		"audit.file.max_size_mb",
		"audit.file.max_backups",
		"audit.webhook.url",
		"audit.webhook.timeout_secs",

		// Intake
		"intake.timezone",
		"intake.timestamp_format",
		"intake.verify_references",
		"intake.max_upload_size_mb",
		"intake.defaults.task_id",
		"intake.defaults.commanded_by",
		"intake.defaults.executed_by",
		"intake.defaults.task_action_type",
		"intake.defaults.file_action_type",
		"intake.defaults.task_status",
		"intake.defaults.file_status",
		"intake.defaults.filename",
		"intake.defaults.content_type",
		"intake.validation.mode",
		"intake.validation.max_field_length",
		"intake.validation.max_content_length",

		// Auth
		"auth.api_key",
		"auth.api_key_hash",
		"auth.header",
		"auth.require_api_key",

		// Upstream
		"upstream.timeout",

		// Security
		"security.cors.allowed_origins",
		"security.rate_limiting.enabled",
		"security.rate_limiting.backend",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.redis.addr",
		"security.rate_limiting.redis.password",
		"security.rate_limiting.redis.db",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",
	}
	for _, key := range keys {
		envKey := "IGW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, envKey}, legacyEnv[key]...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/intake-gateway")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("IGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Google.CredentialsJSON = expandEnv(cfg.Google.CredentialsJSON)
	cfg.Audit.Database.Password = expandEnv(cfg.Audit.Database.Password)
	cfg.Storage.Azure.AccountKey = expandEnv(cfg.Storage.Azure.AccountKey)
	cfg.Storage.S3.AccessKeyID = expandEnv(cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = expandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Auth.APIKey = expandEnv(cfg.Auth.APIKey)
	cfg.Security.RateLimiting.Redis.Password = expandEnv(cfg.Security.RateLimiting.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")

	// Storage defaults
	v.SetDefault("storage.default_backend", "drive")
	v.SetDefault("storage.link_base", "https://drive.google.com")
	v.SetDefault("storage.gcs.prefix", "uploads/")
	v.SetDefault("storage.s3.prefix", "uploads/")
	v.SetDefault("storage.azure.prefix", "uploads/")
	v.SetDefault("storage.local.base_path", "./storage")
	v.SetDefault("storage.local.serve_directly", true)

	// Audit defaults
	v.SetDefault("audit.backend", "sheets")
	v.SetDefault("audit.sheets.range", "Sheet1!A:G")
	v.SetDefault("audit.sheets.value_input_option", "USER_ENTERED")
	v.SetDefault("audit.database.host", "localhost")
	v.SetDefault("audit.database.port", 5432)
	v.SetDefault("audit.database.name", "intake_gateway")
	v.SetDefault("audit.database.user", "gateway")
	v.SetDefault("audit.database.ssl_mode", "require")
	v.SetDefault("audit.database.max_connections", 10)
	v.SetDefault("audit.database.min_idle_connections", 2)
	v.SetDefault("audit.file.path", "./audit.log")
	v.SetDefault("audit.file.max_size_mb", 100)
	v.SetDefault("audit.file.max_backups", 5)
	v.SetDefault("audit.webhook.timeout_secs", 10)

	// Intake defaults
	v.SetDefault("intake.timezone", "Europe/Sofia")
	v.SetDefault("intake.timestamp_format", "2006-01-02 15:04:05 MST")
	v.SetDefault("intake.verify_references", true)
	v.SetDefault("intake.max_upload_size_mb", 100)
	v.SetDefault("intake.defaults.task_id", "AUTO")
	v.SetDefault("intake.defaults.commanded_by", "Costa")
	v.SetDefault("intake.defaults.executed_by", "Pepi")
	v.SetDefault("intake.defaults.task_action_type", "Task")
	v.SetDefault("intake.defaults.file_action_type", "Content")
	v.SetDefault("intake.defaults.task_status", "success")
	v.SetDefault("intake.defaults.file_status", "uploaded")
	v.SetDefault("intake.defaults.filename", "upload.bin")
	v.SetDefault("intake.defaults.content_type", "application/octet-stream")
	v.SetDefault("intake.validation.mode", "permissive")
	v.SetDefault("intake.validation.max_field_length", 256)
	v.SetDefault("intake.validation.max_content_length", 5000)

	// Auth defaults
	v.SetDefault("auth.header", "X-API-Key")
	v.SetDefault("auth.require_api_key", false)

	// Upstream defaults
	v.SetDefault("upstream.timeout", "30s")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.rate_limiting.redis.addr", "localhost:6379")
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.DefaultBackend {
	case "drive":
		if c.Storage.Drive.FolderID == "" {
			return fmt.Errorf("storage.drive.folder_id is required when using Drive backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required when using GCS backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when using S3 backend")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when using S3 backend")
		}
	case "azure":
		if c.Storage.Azure.AccountName == "" {
			return fmt.Errorf("storage.azure.account_name is required when using Azure backend")
		}
		if c.Storage.Azure.AccountKey == "" {
			return fmt.Errorf("storage.azure.account_key is required when using Azure backend")
		}
		if c.Storage.Azure.ContainerName == "" {
			return fmt.Errorf("storage.azure.container_name is required when using Azure backend")
		}
	case "local":
		if c.Storage.Local.BasePath == "" {
			return fmt.Errorf("storage.local.base_path is required when using local backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be drive, gcs, s3, azure, or local)", c.Storage.DefaultBackend)
	}

	switch c.Audit.Backend {
	case "sheets":
		if c.Audit.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("audit.sheets.spreadsheet_id is required when using Sheets backend")
		}
		if c.Audit.Sheets.Range == "" {
			return fmt.Errorf("audit.sheets.range is required when using Sheets backend")
		}
	case "postgres":
		if c.Audit.Database.Host == "" || c.Audit.Database.Name == "" || c.Audit.Database.User == "" {
			return fmt.Errorf("audit.database host, name and user are required when using postgres backend")
		}
	case "file":
		if c.Audit.File.Path == "" {
			return fmt.Errorf("audit.file.path is required when using file backend")
		}
	case "webhook":
		if c.Audit.Webhook.URL == "" {
			return fmt.Errorf("audit.webhook.url is required when using webhook backend")
		}
	default:
		return fmt.Errorf("invalid audit backend: %s (must be sheets, postgres, file, or webhook)", c.Audit.Backend)
	}

	for i, m := range c.Audit.Mirrors {
		if !m.Enabled {
			continue
		}
		switch m.Type {
		case "file":
			if m.File == nil || m.File.Path == "" {
				return fmt.Errorf("audit.mirrors[%d]: file.path is required for file mirror", i)
			}
		case "webhook":
			if m.Webhook == nil || m.Webhook.URL == "" {
				return fmt.Errorf("audit.mirrors[%d]: webhook.url is required for webhook mirror", i)
			}
		default:
			return fmt.Errorf("audit.mirrors[%d]: unknown mirror type: %s (must be file or webhook)", i, m.Type)
		}
	}

	if c.Intake.Timezone != "" {
		if _, err := time.LoadLocation(c.Intake.Timezone); err != nil {
			return fmt.Errorf("invalid intake.timezone %q: %w", c.Intake.Timezone, err)
		}
	}
	if c.Intake.MaxUploadSizeMB < 1 {
		return fmt.Errorf("intake.max_upload_size_mb must be positive")
	}
	switch c.Intake.Validation.Mode {
	case "permissive", "strict":
	default:
		return fmt.Errorf("invalid intake.validation.mode: %s (must be permissive or strict)", c.Intake.Validation.Mode)
	}

	if c.Auth.Header == "" {
		return fmt.Errorf("auth.header must not be empty")
	}

	if c.Security.RateLimiting.Enabled {
		switch c.Security.RateLimiting.Backend {
		case "memory":
		case "redis":
			if c.Security.RateLimiting.Redis.Addr == "" {
				return fmt.Errorf("security.rate_limiting.redis.addr is required for redis rate limiting")
			}
		default:
			return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", c.Security.RateLimiting.Backend)
		}
		if c.Security.RateLimiting.RequestsPerMinute < 1 {
			return fmt.Errorf("security.rate_limiting.requests_per_minute must be positive")
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
