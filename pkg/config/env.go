// Package config reads service settings from the environment after godotenv
// has loaded .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env.local then .env. Variables already set win, so
// .env.local overrides .env and the real environment overrides both.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

// Env collects lookup errors so a service can report every bad variable at once.
type Env struct {
	errs []error
}

// String returns the variable or def when unset.
func (e *Env) String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Required returns the variable and records an error when it is unset.
func (e *Env) Required(key string) string {
	v := e.String(key, "")
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is not set", key))
	}
	return v
}

func (e *Env) Duration(key string, def time.Duration) time.Duration {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *Env) Int64(key string, def int64) int64 {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// List splits a comma separated variable, dropping empty entries.
func (e *Env) List(key string, def []string) []string {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Err returns every recorded problem joined, or nil.
func (e *Env) Err() error {
	return errors.Join(e.errs...)
}
