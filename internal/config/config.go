package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store, blob and cache backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port            int
	LogLevel        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	// Backends
	StoreBackend string // supabase | postgres | sqlite
	BlobBackend  string // supabase | s3 | none
	CacheBackend string // memory | redis

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Observability
	OTLPEndpoint string
	ServiceName  string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	SupabaseJWKSURL    string
	LogoBucket         string

	// SQL stores
	DatabaseURL string
	SQLitePath  string

	// S3
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	S3Endpoint      string
	S3PublicBaseURL string

	// Events
	NATSURL           string
	NATSSubjectPrefix string

	// Local auth (sql stores) and guest mode
	JWTSecret    string
	JWTAccessTTL time.Duration
	GuestEnabled bool
	GuestSecret  string
	GuestTTL     time.Duration

	// Locale
	Locale         string
	CurrencySymbol string
	DateLayout     string
	Timezone       string

	// Export
	PDFExportEnabled     bool
	MaxConcurrentExports int
	AssetMaxBytes        int64
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	jwtSecret := getEnv("JWT_SECRET", "propostas-default-dev-secret-change-me")
	return &Config{
		Port:            getEnvInt("PORT", 8080),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		BlobBackend:  strings.ToLower(getEnv("BLOB_BACKEND", defaultBlobBackend())),
		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL:        getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 64),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "proposta-facil"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseJWKSURL:    getEnv("SUPABASE_JWKS_URL", ""),
		LogoBucket:         getEnv("SUPABASE_LOGO_BUCKET", "logos"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "propostas.db"),

		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Prefix:        getEnv("S3_PREFIX", "logos/"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "propostas"),

		JWTSecret:    jwtSecret,
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 12*time.Hour),
		GuestEnabled: getEnvBool("GUEST_MODE", true),
		GuestSecret:  getEnv("GUEST_SECRET", jwtSecret),
		GuestTTL:     getEnvDuration("GUEST_TTL", 24*time.Hour),

		Locale:         getEnv("LOCALE", "pt-BR"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "R$"),
		DateLayout:     getEnv("DATE_LAYOUT", "02/01/2006"),
		Timezone:       getEnv("TIMEZONE", "America/Sao_Paulo"),

		PDFExportEnabled:     getEnvBool("PDF_EXPORT_ENABLED", true),
		MaxConcurrentExports: getEnvInt("MAX_CONCURRENT_EXPORTS", 2),
		AssetMaxBytes:        int64(getEnvInt("ASSET_MAX_BYTES", 5<<20)),
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("STORE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_ANON_KEY"))
		}
		if c.SupabaseJWTSecret == "" && c.SupabaseJWKSURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=supabase requires SUPABASE_JWT_SECRET or SUPABASE_JWKS_URL"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.BlobBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, errors.New("BLOB_BACKEND=supabase requires SUPABASE_URL"))
		}
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("BLOB_BACKEND=s3 requires S3_BUCKET"))
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend))
	}

	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
	}

	if c.GuestEnabled && c.GuestSecret == "" {
		errs = append(errs, errors.New("GUEST_MODE requires GUEST_SECRET or JWT_SECRET"))
	}
	if c.MaxConcurrentExports < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENT_EXPORTS must be at least 1"))
	}
	return errors.Join(errs...)
}

// defaultBlobBackend picks the logo storage that is configured, if any.
func defaultBlobBackend() string {
	switch {
	case os.Getenv("S3_BUCKET") != "":
		return BackendS3
	case os.Getenv("SUPABASE_URL") != "":
		return BackendSupabase
	default:
		return BackendNone
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
