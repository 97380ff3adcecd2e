package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	CORS     CORSConfig
	Log      LogConfig
	Process  ProcessConfig
	Webhook  WebhookConfig
	Telegram TelegramConfig
	Buffer   BufferConfig
	Redis    RedisConfig
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ProcessConfig bounds the upload pipeline: admission ceilings, the
// concurrency window and the per-file retry policy.
type ProcessConfig struct {
	Concurrency  int
	MaxAttempts  int
	BackoffBase  time.Duration
	MaxUploads   int
	MaxFileBytes int64
	TempDir      string
}

// WebhookConfig points at the external processing endpoint.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// TelegramConfig targets the bot API used for archive delivery.
type TelegramConfig struct {
	BotToken         string
	ChatID           string
	APIBase          string
	MaxDocumentBytes int64
}

// BufferConfig tunes retention of processed bytes held for preview and
// archive assembly.
type BufferConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileMB := v.GetInt64("MAX_FILE_MB")
	if maxFileMB <= 0 {
		maxFileMB = 30
	}
	cfg.Process = ProcessConfig{
		Concurrency:  v.GetInt("PROCESS_CONCURRENCY"),
		MaxAttempts:  v.GetInt("PROCESS_MAX_ATTEMPTS"),
		BackoffBase:  parseDuration(v.GetString("PROCESS_BACKOFF_BASE"), time.Second),
		MaxUploads:   v.GetInt("MAX_UPLOADS"),
		MaxFileBytes: maxFileMB * 1024 * 1024,
		TempDir:      v.GetString("TEMP_DIR"),
	}

	cfg.Webhook = WebhookConfig{
		URL:     strings.TrimSpace(v.GetString("WEBHOOK_URL")),
		Timeout: parseDuration(v.GetString("WEBHOOK_TIMEOUT"), 60*time.Second),
	}

	maxDocMB := v.GetInt64("TELEGRAM_MAX_DOCUMENT_MB")
	if maxDocMB <= 0 {
		maxDocMB = 50
	}
	cfg.Telegram = TelegramConfig{
		BotToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		ChatID:           v.GetString("TELEGRAM_CHAT_ID"),
		APIBase:          strings.TrimRight(v.GetString("TELEGRAM_API_BASE"), "/"),
		MaxDocumentBytes: maxDocMB * 1024 * 1024,
	}

	cfg.Buffer = BufferConfig{
		TTL:           parseDuration(v.GetString("BUFFER_TTL"), time.Hour),
		SweepInterval: parseDuration(v.GetString("BUFFER_SWEEP_INTERVAL"), 10*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROCESS_CONCURRENCY", 3)
	v.SetDefault("PROCESS_MAX_ATTEMPTS", 3)
	v.SetDefault("PROCESS_BACKOFF_BASE", "1s")
	v.SetDefault("MAX_UPLOADS", 30)
	v.SetDefault("MAX_FILE_MB", 30)
	v.SetDefault("TEMP_DIR", "./tmp")

	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "60s")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("TELEGRAM_API_BASE", "https://api.telegram.org")
	v.SetDefault("TELEGRAM_MAX_DOCUMENT_MB", 50)

	v.SetDefault("BUFFER_TTL", "1h")
	v.SetDefault("BUFFER_SWEEP_INTERVAL", "10m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
