package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (issued by the platform's auth service)
	JWTSecret string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
	BodyLimitMB int
	AppEnv      string
	LogLevel    string
	SentryDSN   string

	// Storage
	StorageBackend  string
	UploadDir       string
	PublicURLPrefix string
	GCSBucket       string
	GCSCredentials  string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicURL  string

	// Vision
	VisionCredentials string
	VisionEndpoint    string
	VisionTimeout     time.Duration
	VisionMaxLabels   int64

	// Tinify
	TinifyAPIKey    string
	TinifyEndpoint  string
	OptimizeTimeout time.Duration
	OptimizeWidth   int
	OptimizeHeight  int
	OptimizeConvert string

	// Moderation policy
	PolicyPath         string
	ThresholdOverrides map[moderation.Category]string
	MaxFilesPerUpload  int
	LogRetentionDays   int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "imageguard"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		BodyLimitMB: getInt("BODY_LIMIT_MB", 50),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		StorageBackend:  getEnv("STORAGE_BACKEND", "local"),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		PublicURLPrefix: getEnv("PUBLIC_URL_PREFIX", "/uploads"),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSCredentials:  getEnv("GCS_CREDENTIALS", ""),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "uploads"),
		MinioUseSSL:     getBool("MINIO_USE_SSL", true),
		MinioPublicURL:  getEnv("MINIO_PUBLIC_URL", ""),

		VisionCredentials: getEnv("GOOGLE_VISION_CREDENTIALS", ""),
		VisionEndpoint:    getEnv("VISION_ENDPOINT", ""),
		VisionTimeout:     parseDuration(getEnv("VISION_TIMEOUT", "15s"), 15*time.Second),
		VisionMaxLabels:   int64(getInt("VISION_MAX_LABELS", 20)),

		TinifyAPIKey:    getEnv("TINIFY_API_KEY", ""),
		TinifyEndpoint:  getEnv("TINIFY_ENDPOINT", "https://api.tinify.com"),
		OptimizeTimeout: parseDuration(getEnv("OPTIMIZE_TIMEOUT", "30s"), 30*time.Second),
		OptimizeWidth:   getInt("OPTIMIZE_MAX_WIDTH", 1920),
		OptimizeHeight:  getInt("OPTIMIZE_MAX_HEIGHT", 1080),
		OptimizeConvert: getEnv("OPTIMIZE_CONVERT", ""),

		PolicyPath:         getEnv("MODERATION_POLICY_PATH", ""),
		ThresholdOverrides: thresholdOverrides(),
		MaxFilesPerUpload:  getInt("MAX_FILES_PER_UPLOAD", 10),
		LogRetentionDays:   getInt("LOG_RETENTION_DAYS", 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// ModerationPolicy resolves the effective policy: defaults, then the YAML
// file, then per-category env overrides.
func (c *Config) ModerationPolicy() (moderation.Policy, error) {
	policy := moderation.DefaultPolicy()
	if c.PolicyPath != "" {
		p, err := moderation.LoadPolicy(c.PolicyPath)
		if err != nil {
			return policy, err
		}
		policy = p
	}
	for cat, raw := range c.ThresholdOverrides {
		l, err := moderation.ParseThreshold(raw)
		if err != nil {
			slog.Warn("ignoring threshold override", "category", string(cat), "error", err)
			continue
		}
		policy.Thresholds[cat] = l
	}
	return policy, nil
}

func thresholdOverrides() map[moderation.Category]string {
	out := make(map[moderation.Category]string)
	for _, cat := range moderation.SafeSearchCategories {
		key := "MODERATION_THRESHOLD_" + strings.ToUpper(string(cat))
		if v := os.Getenv(key); v != "" {
			out[cat] = v
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
