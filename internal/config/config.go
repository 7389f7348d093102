package config

import "os"

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Stream   StreamConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Log      LogConfig
	Sentry   SentryConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Addr string
}

type AuthConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessTTL        string
	RefreshTTL       string
	MaxLoginAttempts string
	LockDuration     string
	CookieSecure     string
	CookieSameSite   string
	CookiePath       string
	CookieDomain     string
}

type StreamConfig struct {
	Secret string
	TTL    string
}

type StorageConfig struct {
	BaseURL string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type LogConfig struct {
	Level string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type CORSConfig struct {
	AllowedOrigins string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr: getenv("SERVER_ADDR", ":8080"),
		},
		Auth: AuthConfig{
			AccessSecret:     os.Getenv("AUTH_ACCESS_SECRET"),
			RefreshSecret:    os.Getenv("AUTH_REFRESH_SECRET"),
			AccessTTL:        getenv("AUTH_ACCESS_TTL", "15m"),
			RefreshTTL:       getenv("AUTH_REFRESH_TTL", "168h"),
			MaxLoginAttempts: getenv("AUTH_MAX_LOGIN_ATTEMPTS", "5"),
			LockDuration:     getenv("AUTH_LOCK_DURATION", "15m"),
			CookieSecure:     os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:   os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookiePath:       os.Getenv("AUTH_COOKIE_PATH"),
			CookieDomain:     os.Getenv("AUTH_COOKIE_DOMAIN"),
		},
		Stream: StreamConfig{
			Secret: os.Getenv("STREAM_TOKEN_SECRET"),
			TTL:    getenv("STREAM_TOKEN_TTL", "60s"),
		},
		Storage: StorageConfig{
			BaseURL: os.Getenv("STORAGE_BASE_URL"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: getenv("SENTRY_ENVIRONMENT", "development"),
		},
		CORS: CORSConfig{
			AllowedOrigins: os.Getenv("CORS_ALLOWED_ORIGINS"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
