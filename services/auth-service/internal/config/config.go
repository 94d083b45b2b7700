package config

import (
	"time"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	"github.com/campusbay/marketplace/services/auth-service/internal/domain/users"
)

type Config struct {
	ServiceName        string
	HTTPAddr           string
	DatabaseURL        string
	RabbitURL          string
	PrivateKeyPath     string
	PublicKeyPath      string
	Issuer             string
	OTLPEndpoint       string
	EmailDomains       []string
	RefreshTokenTTL    time.Duration
	LockTimeout        time.Duration
	OutboxPollInterval time.Duration
}

// Load reads the environment. Call pkgconfig.LoadDotEnv first to pick up .env files.
func Load() (*Config, error) {
	var env pkgconfig.Env
	cfg := &Config{
		ServiceName:        env.String("SERVICE_NAME", "auth-service"),
		HTTPAddr:           env.String("HTTP_ADDR", ":8081"),
		DatabaseURL:        env.Required("AUTH_DB_URL"),
		RabbitURL:          env.Required("RABBITMQ_URL"),
		PrivateKeyPath:     env.Required("AUTH_PRIVATE_KEY_PATH"),
		PublicKeyPath:      env.Required("AUTH_PUBLIC_KEY_PATH"),
		Issuer:             env.String("AUTH_ISSUER", "campus-market-auth"),
		OTLPEndpoint:       env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EmailDomains:       env.List("CAMPUS_EMAIL_DOMAINS", users.DefaultEmailDomains),
		RefreshTokenTTL:    env.Duration("REFRESH_TOKEN_TTL", users.DefaultRefreshTokenTTL),
		LockTimeout:        env.Duration("DB_LOCK_TIMEOUT", 3*time.Second),
		OutboxPollInterval: env.Duration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
