// Package config centralizes every tunable the pipeline uses. The loaded
// *Config is immutable after Load and is handed to every component at
// construction time — there is no package-level mutable config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Thresholds holds every tunable numeric threshold the pipeline consults.
type Thresholds struct {
	CrossValidationThreshold float64 `mapstructure:"cross_validation_threshold"`
	FaceMatchThreshold       float64 `mapstructure:"face_match_threshold"`
	LivenessThreshold        float64 `mapstructure:"liveness_threshold"`
	OcrMaxDimPx              int     `mapstructure:"ocr_max_dim_px"`
	BackOcrMinDimPx          int     `mapstructure:"back_ocr_min_dim_px"`
	AddressSimilarityPass    float64 `mapstructure:"address_similarity_pass"`
	WeightToleranceLbs       float64 `mapstructure:"weight_tolerance_lbs"`
	HeightToleranceIn        int     `mapstructure:"height_tolerance_in"`
}

// DefaultThresholds returns the built-in threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CrossValidationThreshold: 0.7,
		FaceMatchThreshold:       0.65,
		LivenessThreshold:        0.6,
		OcrMaxDimPx:              2000,
		BackOcrMinDimPx:          1200,
		AddressSimilarityPass:    0.7,
		WeightToleranceLbs:       5,
		HeightToleranceIn:        1,
	}
}

// AppConfig carries process identity metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig configures the Postgres-backed KeyValueStore.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the read-through cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig selects and configures the BlobStore backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "memory" | "minio"
	Minio   struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
}

// VisionConfig configures the optional external multi-modal VisionModel.
type VisionConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// OcrConfig configures the Tesseract-backed OCR capability.
type OcrConfig struct {
	Backend  string `mapstructure:"backend"` // "tesseract" | "noop"
	Language string `mapstructure:"language"`
}

// FaceDetectorConfig configures the optional enhanced face-detector path.
type FaceDetectorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EventsConfig configures the Kafka-backed pipeline progress event bus.
type EventsConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// LogConfig holds the log level and format settings loaded from
// configuration. The logger does not read them: logger.New configures
// itself from the app environment alone.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full process configuration.
type Config struct {
	App        AppConfig          `mapstructure:"app"`
	Log        LogConfig          `mapstructure:"log"`
	Thresholds Thresholds         `mapstructure:"thresholds"`
	Database   DatabaseConfig     `mapstructure:"database"`
	Redis      RedisConfig        `mapstructure:"redis"`
	Storage    StorageConfig      `mapstructure:"storage"`
	Vision     VisionConfig       `mapstructure:"vision"`
	Ocr        OcrConfig          `mapstructure:"ocr"`
	FaceDetect FaceDetectorConfig `mapstructure:"face_detector"`
	Events     EventsConfig       `mapstructure:"events"`
}

// Load reads config.base.yaml, layers config.<APP_ENV>.yaml on top, then
// applies APP_-prefixed environment variable overrides.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.base")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read %s config: %w", env, err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.App.Environment = env

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultThresholds()
	v.SetDefault("app.name", "identity-verification")
	v.SetDefault("app.version", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("thresholds.cross_validation_threshold", d.CrossValidationThreshold)
	v.SetDefault("thresholds.face_match_threshold", d.FaceMatchThreshold)
	v.SetDefault("thresholds.liveness_threshold", d.LivenessThreshold)
	v.SetDefault("thresholds.ocr_max_dim_px", d.OcrMaxDimPx)
	v.SetDefault("thresholds.back_ocr_min_dim_px", d.BackOcrMinDimPx)
	v.SetDefault("thresholds.address_similarity_pass", d.AddressSimilarityPass)
	v.SetDefault("thresholds.weight_tolerance_lbs", d.WeightToleranceLbs)
	v.SetDefault("thresholds.height_tolerance_in", d.HeightToleranceIn)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("ocr.backend", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.timeout", 15*time.Second)
	v.SetDefault("face_detector.enabled", false)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic_prefix", "identity-verification")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", 10*time.Minute)
}

func validate(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	t := cfg.Thresholds
	for name, val := range map[string]float64{
		"cross_validation_threshold": t.CrossValidationThreshold,
		"face_match_threshold":       t.FaceMatchThreshold,
		"liveness_threshold":         t.LivenessThreshold,
		"address_similarity_pass":    t.AddressSimilarityPass,
	} {
		if val < 0 || val > 1 {
			return fmt.Errorf("thresholds.%s must be in [0,1], got %f", name, val)
		}
	}
	if t.OcrMaxDimPx <= 0 || t.BackOcrMinDimPx <= 0 {
		return fmt.Errorf("thresholds.ocr_max_dim_px and back_ocr_min_dim_px must be positive")
	}
	return nil
}
