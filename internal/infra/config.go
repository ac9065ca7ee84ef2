package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gateway/internal/domain"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Storage backends for inline image payloads.
const (
	StorageBackendNone  = "none"
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	PublicBaseURL      string
	GenerationBaseURL  string
	PublishingBaseURL  string
	UpstreamTimeout    time.Duration
	WebhookSecret      string
	Transitions        domain.TransitionPolicy
	StorageBackend     string
	StoragePath        string
	StorageBaseURL     string
	GCSBucket          string
	GeoIPDBPath        string
	DefaultLocale      string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	publicBase := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/")

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          os.Getenv("JWT_ISSUER"),
		JWTAudience:        os.Getenv("JWT_AUDIENCE"),
		PublicBaseURL:      publicBase,
		GenerationBaseURL:  strings.TrimRight(getEnv("GENERATION_BASE_URL", "http://api_google:8000/api/v1"), "/"),
		PublishingBaseURL:  strings.TrimRight(getEnv("PUBLISHING_BASE_URL", "http://api_rrss:8002/api/v1"), "/"),
		UpstreamTimeout:    time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendLocal)),
		StoragePath:        getEnv("STORAGE_PATH", "./data/uploads"),
		StorageBaseURL:     strings.TrimRight(getEnv("STORAGE_BASE_URL", publicBase+"/static"), "/"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	policy, err := domain.ParseTransitionPolicy(os.Getenv("OPERATION_TRANSITIONS"))
	if err != nil {
		return nil, fmt.Errorf("OPERATION_TRANSITIONS: %w", err)
	}
	cfg.Transitions = policy

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageBackend {
	case StorageBackendNone, StorageBackendLocal:
	case StorageBackendGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	for name, raw := range map[string]string{
		"PUBLIC_BASE_URL":     cfg.PublicBaseURL,
		"GENERATION_BASE_URL": cfg.GenerationBaseURL,
		"PUBLISHING_BASE_URL": cfg.PublishingBaseURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s must be an absolute URL", name)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
