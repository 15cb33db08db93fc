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
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Batch      BatchConfig
	Uploads    UploadsConfig
	Exports    ExportsConfig
	Notifier   NotifierConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig carries the admission caps and durations. The env keys are
// the ones the legacy service recognised, so existing deployments keep their
// tuning.
type SchedulingConfig struct {
	// OverlapWindowMinutes is the window used by the overlap check
	// (CLASS_DURATION_MINUTES).
	OverlapWindowMinutes int
	// StoredDurationMinutes is the duration written onto new registrations
	// (CLASS_DURATION). Independent of the overlap window.
	StoredDurationMinutes int
	StudentDailyCap       int
	InstructorDailyCap    int
	ClassDailyCap         int
}

// BatchConfig tunes batch orchestration behaviour.
type BatchConfig struct {
	// ClassCapAbortsBatch reinstates the legacy behaviour where a class-type
	// cap rejection terminates the whole batch instead of the current row.
	ClassCapAbortsBatch bool
	// RevalidateUpdates re-runs admission checks on update rows.
	RevalidateUpdates bool
	// RowTimeout bounds the processing time of a single row.
	RowTimeout time.Duration
	// Async worker pool sizing for background batch submissions.
	AsyncWorkers   int
	AsyncBuffer    int
	AsyncResultTTL time.Duration
}

// UploadsConfig controls archiving of submitted batch files.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
}

// ExportsConfig controls report export storage and signed downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// NotifierConfig controls the per-row progress push channel.
type NotifierConfig struct {
	Enabled       bool
	ChannelPrefix string
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
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		OverlapWindowMinutes:  v.GetInt("CLASS_DURATION_MINUTES"),
		StoredDurationMinutes: v.GetInt("CLASS_DURATION"),
		StudentDailyCap:       v.GetInt("STUDENT_MAX_CLASSES"),
		InstructorDailyCap:    v.GetInt("INSTRUCTOR_MAX_CLASSES"),
		ClassDailyCap:         v.GetInt("MAX_CLASSES_PER_CLASS_TYPE"),
	}

	cfg.Batch = BatchConfig{
		ClassCapAbortsBatch: v.GetBool("CLASS_CAP_ABORTS_BATCH"),
		RevalidateUpdates:   v.GetBool("REVALIDATE_UPDATES"),
		RowTimeout:          parseDuration(v.GetString("BATCH_ROW_TIMEOUT"), 5*time.Second),
		AsyncWorkers:        v.GetInt("BATCH_ASYNC_WORKERS"),
		AsyncBuffer:         v.GetInt("BATCH_ASYNC_BUFFER"),
		AsyncResultTTL:      parseDuration(v.GetString("BATCH_ASYNC_RESULT_TTL"), 24*time.Hour),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUploadSize,
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Notifier = NotifierConfig{
		Enabled:       v.GetBool("ENABLE_PROGRESS_NOTIFIER"),
		ChannelPrefix: v.GetString("PROGRESS_CHANNEL_PREFIX"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "class_schedules")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLASS_DURATION_MINUTES", 45)
	v.SetDefault("CLASS_DURATION", 60)
	v.SetDefault("STUDENT_MAX_CLASSES", 5)
	v.SetDefault("INSTRUCTOR_MAX_CLASSES", 5)
	v.SetDefault("MAX_CLASSES_PER_CLASS_TYPE", 5)

	v.SetDefault("CLASS_CAP_ABORTS_BATCH", false)
	v.SetDefault("REVALIDATE_UPDATES", false)
	v.SetDefault("BATCH_ROW_TIMEOUT", "5s")
	v.SetDefault("BATCH_ASYNC_WORKERS", 1)
	v.SetDefault("BATCH_ASYNC_BUFFER", 8)
	v.SetDefault("BATCH_ASYNC_RESULT_TTL", "24h")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")

	v.SetDefault("ENABLE_PROGRESS_NOTIFIER", false)
	v.SetDefault("PROGRESS_CHANNEL_PREFIX", "batch:progress:")
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
