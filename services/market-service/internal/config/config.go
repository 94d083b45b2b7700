package config

import (
	"time"

	pkgconfig "github.com/campusbay/marketplace/pkg/config"
	"github.com/campusbay/marketplace/services/market-service/internal/adapters/cache"
	"github.com/campusbay/marketplace/services/market-service/internal/domain/listings"
)

// Config holds the market-service settings shared by the api and worker processes
type Config struct {
	ServiceName       string
	HTTPAddr          string
	DatabaseURL       string
	RabbitURL         string
	RedisAddr         string
	AuthPublicKeyPath string
	AuthIssuer        string
	OTLPEndpoint      string
	LockTimeout       time.Duration
	CacheTTL          time.Duration
	MinBidIncrement   int64
	Campuses          []string
}

// Load reads the environment. Call pkgconfig.LoadDotEnv first to pick up .env files.
func Load() (*Config, error) {
	var env pkgconfig.Env
	cfg := &Config{
		ServiceName:       env.String("SERVICE_NAME", "market-service"),
		HTTPAddr:          env.String("HTTP_ADDR", ":8080"),
		DatabaseURL:       env.Required("MARKET_DB_URL"),
		RabbitURL:         env.Required("RABBITMQ_URL"),
		RedisAddr:         env.String("REDIS_URL", ""),
		AuthPublicKeyPath: env.String("AUTH_PUBLIC_KEY_PATH", "keys/auth_public.pem"),
		AuthIssuer:        env.String("AUTH_ISSUER", "campus-market-auth"),
		OTLPEndpoint:      env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LockTimeout:       env.Duration("DB_LOCK_TIMEOUT", 3*time.Second),
		CacheTTL:          env.Duration("LISTING_CACHE_TTL", cache.DefaultTTL),
		MinBidIncrement:   env.Int64("MIN_BID_INCREMENT_CENTS", 0),
		Campuses:          env.List("PICKUP_CAMPUSES", listings.DefaultCampuses),
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
