package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/tasktracker-backend/internal/data/db"
	"github.com/yungbote/tasktracker-backend/internal/http/handlers"
	"github.com/yungbote/tasktracker-backend/internal/platform/envutil"
)

const defaultJWTSecret = "defaultsecret"

type OtelSettings struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type Config struct {
	Port             string        `yaml:"port"`
	LogMode          string        `yaml:"log_mode"`
	GinMode          string        `yaml:"gin_mode"`
	JWTSecretKey     string        `yaml:"jwt_secret_key"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl"`
	PublicBaseURL    string        `yaml:"public_base_url"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	CORSAllowOrigins []string      `yaml:"cors_allow_origins"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	Database         db.Config     `yaml:"database"`
	Otel             OtelSettings  `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		Port:             "8080",
		LogMode:          "development",
		GinMode:          "debug",
		JWTSecretKey:     defaultJWTSecret,
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
		PasswordResetTTL: 72 * time.Hour,
		PublicBaseURL:    "http://localhost:8000",
		MaxUploadBytes:   handlers.DefaultMaxUploadBytes,
		Otel:             OtelSettings{ServiceName: "tasktracker"},
	}
}

// LoadConfig reads CONFIG_FILE (if set) over the defaults, then applies
// environment variables, which always win.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg = applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.GinMode = envutil.String("GIN_MODE", cfg.GinMode)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTL = envutil.Seconds("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.RefreshTokenTTL = envutil.Seconds("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL)
	cfg.PasswordResetTTL = envutil.Seconds("PASSWORD_RESET_TTL", cfg.PasswordResetTTL)
	cfg.PublicBaseURL = envutil.String("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.MaxUploadBytes = envutil.Int64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.CORSAllowOrigins = envutil.List("CORS_ALLOW_ORIGINS", cfg.CORSAllowOrigins)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
	cfg.Database = db.ConfigFromEnv(cfg.Database)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("APP_ENV", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("APP_VERSION", cfg.Otel.Version)
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.GinMode == "release" && c.JWTSecretKey == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET_KEY must be set in release mode")
	}
	return nil
}

func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
