package config

import (
	"time"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
)

type Config struct {
	ServiceName       string
	HTTPAddr          string
	DatabaseURL       string
	RabbitURL         string
	AuthPublicKeyPath string
	AuthIssuer        string
	OTLPEndpoint      string
	LockTimeout       time.Duration
}

// Load reads the environment. RABBITMQ_URL is only needed by the worker and
// is checked there.
func Load() (*Config, error) {
	var env pkgconfig.Env
	cfg := &Config{
		ServiceName:       env.String("SERVICE_NAME", "user-stats-service"),
		HTTPAddr:          env.String("HTTP_ADDR", ":8082"),
		DatabaseURL:       env.Required("USER_STATS_DB_URL"),
		RabbitURL:         env.String("RABBITMQ_URL", ""),
		AuthPublicKeyPath: env.String("AUTH_PUBLIC_KEY_PATH", "keys/auth_public.pem"),
		AuthIssuer:        env.String("AUTH_ISSUER", "campus-market-auth"),
		OTLPEndpoint:      env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LockTimeout:       env.Duration("DB_LOCK_TIMEOUT", 5*time.Second),
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
