package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration. Keys are flat environment-style names.
type Config struct {
	Database DatabaseConfig `mapstructure:",squash"`
	Server   ServerConfig   `mapstructure:",squash"`
	OCR      OCRConfig      `mapstructure:",squash"`
	Jobs     JobsConfig     `mapstructure:",squash"`
	Storage  StorageConfig  `mapstructure:",squash"`
	Cleanup  CleanupConfig  `mapstructure:",squash"`
	Log      LogConfig      `mapstructure:",squash"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"db_driver" validate:"oneof=sqlite postgres"`
	DSN              string        `mapstructure:"db_url" validate:"required"`
	MaxConns         int32         `mapstructure:"db_max_conns" validate:"gte=1"`
	MinConns         int32         `mapstructure:"db_min_conns" validate:"gte=0"`
	MaxConnLifetime  time.Duration `mapstructure:"db_max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"db_max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"db_dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"db_statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpc_addr" validate:"required"`
	HTTPAddr        string        `mapstructure:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// WatchDir enables drop-folder ingestion when set.
	WatchDir string `mapstructure:"watch_dir"`
}

// OCRConfig selects and tunes the recognition backends.
type OCRConfig struct {
	Backend              string  `mapstructure:"ocr_backend" validate:"oneof=auto structured region wordcluster mock dots easyocr tesseract"`
	ConfidenceThreshold  float64 `mapstructure:"ocr_confidence_threshold" validate:"gte=0,lte=1"`
	LineClusterThreshold int     `mapstructure:"line_cluster_threshold" validate:"gt=0"`

	StructuredProvider     string        `mapstructure:"structured_provider" validate:"oneof=openai gemini"`
	StructuredModel        string        `mapstructure:"structured_model"`
	StructuredBaseURL      string        `mapstructure:"structured_base_url" validate:"omitempty,url"`
	StructuredAPIKey       string        `mapstructure:"structured_api_key"`
	GeminiAPIKey           string        `mapstructure:"gemini_api_key"`
	GeminiModel            string        `mapstructure:"gemini_model"`
	StructuredMaxTokens    int           `mapstructure:"structured_max_tokens" validate:"gt=0"`
	StructuredMaxImageSide int           `mapstructure:"structured_max_image_side" validate:"gte=0"`
	StructuredTimeout      time.Duration `mapstructure:"structured_timeout"`

	RegionCommand  string `mapstructure:"region_command"`
	TesseractBin   string `mapstructure:"tesseract_bin"`
	TesseractLang  string `mapstructure:"tesseract_lang"`
	TessdataPrefix string `mapstructure:"tessdata_prefix"`
	TesseractPSM   int    `mapstructure:"tesseract_psm" validate:"gte=0,lte=13"`
}

// JobsConfig tunes the lifecycle and its queue.
type JobsConfig struct {
	MaxAttempts  int           `mapstructure:"job_max_attempts" validate:"gte=1"`
	RetryDelay   time.Duration `mapstructure:"job_retry_delay" validate:"gte=0"`
	TimeLimit    time.Duration `mapstructure:"job_time_limit" validate:"gt=0"`
	QueueDriver  string        `mapstructure:"queue_driver" validate:"oneof=memory river"`
	QueueWorkers int           `mapstructure:"queue_workers" validate:"gte=1"`
	QueueSize    int           `mapstructure:"queue_size" validate:"gte=1"`
}

// StorageConfig selects where uploaded images live.
type StorageConfig struct {
	Driver         string `mapstructure:"storage_driver" validate:"oneof=fs minio"`
	Dir            string `mapstructure:"storage_dir"`
	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioBucket    string `mapstructure:"minio_bucket"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioPrefix    string `mapstructure:"minio_prefix"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// CleanupConfig controls retention of finished jobs.
type CleanupConfig struct {
	Schedule  string        `mapstructure:"cleanup_schedule"`
	Retention time.Duration `mapstructure:"cleanup_retention" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"cleanup_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"log_format" validate:"oneof=text json"`
}

var defaults = map[string]any{
	"db_driver":             "sqlite",
	"db_url":                "file:notetasks.db?_pragma=foreign_keys(1)",
	"db_max_conns":          20,
	"db_min_conns":          2,
	"db_max_conn_lifetime":  30 * time.Minute,
	"db_max_conn_idle_time": 5 * time.Minute,
	"db_dial_timeout":       3 * time.Second,
	"db_statement_timeout":  0,

	"grpc_addr":        ":9090",
	"http_addr":        ":8080",
	"shutdown_timeout": 30 * time.Second,
	"watch_dir":        "",

	"ocr_backend":               "auto",
	"ocr_confidence_threshold":  0.6,
	"line_cluster_threshold":    20,
	"structured_provider":       "openai",
	"structured_model":          "./weights/DotsOCR",
	"structured_base_url":       "http://localhost:8000/v1",
	"structured_api_key":        "",
	"gemini_api_key":            "",
	"gemini_model":              "gemini-2.0-flash",
	"structured_max_tokens":     512,
	"structured_max_image_side": 1024,
	"structured_timeout":        2 * time.Minute,
	"region_command":            "easyocr-regions",
	"tesseract_bin":             "tesseract",
	"tesseract_lang":            "eng",
	"tessdata_prefix":           "",
	"tesseract_psm":             0,

	"job_max_attempts": 3,
	"job_retry_delay":  60 * time.Second,
	"job_time_limit":   30 * time.Minute,
	"queue_driver":     "memory",
	"queue_workers":    4,
	"queue_size":       256,

	"storage_driver":   "fs",
	"storage_dir":      "./media",
	"minio_endpoint":   "",
	"minio_bucket":     "notetasks",
	"minio_access_key": "",
	"minio_secret_key": "",
	"minio_prefix":     "",
	"minio_use_ssl":    false,
	"max_upload_bytes": 10 << 20,

	"cleanup_schedule":  "@daily",
	"cleanup_retention": 30 * 24 * time.Hour,
	"cleanup_timeout":   10 * time.Minute,

	"log_level":  "info",
	"log_format": "text",
}

var configValidator = validator.New()

// LoadConfig reads defaults, then the optional config file at path, then environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), errors.Join(ErrInvalidInput, err))
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", errors.Join(ErrInvalidInput, err))
	}
	cfg.OCR.Backend = strings.ToLower(strings.TrimSpace(cfg.OCR.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the combinations they cannot express.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return NewAppError("CONFIG_ERROR", strings.Join(msgs, "; "), ErrInvalidInput)
		}
		return NewAppError("CONFIG_ERROR", err.Error(), ErrInvalidInput)
	}
	if c.Jobs.QueueDriver == "river" && c.Database.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "QUEUE_DRIVER=river requires DB_DRIVER=postgres", ErrInvalidInput)
	}
	if c.Storage.Driver == "minio" && (c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "") {
		return NewAppError("CONFIG_ERROR", "MINIO_ENDPOINT and MINIO_BUCKET are required for STORAGE_DRIVER=minio", ErrInvalidInput)
	}
	if c.Storage.Driver == "fs" && c.Storage.Dir == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_DIR is required for STORAGE_DRIVER=fs", ErrInvalidInput)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return NewAppError("CONFIG_ERROR", "DB_MIN_CONNS exceeds DB_MAX_CONNS", ErrInvalidInput)
	}
	return nil
}
