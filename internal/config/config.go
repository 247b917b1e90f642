// Package config reads process settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"PointsCalc/internal/catalog"
	"PointsCalc/internal/kv"
)

type Config struct {
	Port        string
	LogLevel    string
	Storage     kv.Options
	StorageKey  string
	WriteLimit  int
	TrustProxy  bool
	Metrics     bool
	MetricsAuth string
}

// Load applies envFiles (".env" when none are given) without overriding
// variables already set, then reads the environment. A missing .env file
// is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		StorageKey:  getenv("STORAGE_KEY", catalog.DefaultKey),
		MetricsAuth: os.Getenv("METRICS_TOKEN"),
		Storage: kv.Options{
			Driver: strings.ToLower(getenv("STORAGE_DRIVER", kv.DriverSQLite)),
		},
	}

	switch cfg.Storage.Driver {
	case kv.DriverSQLite:
		cfg.Storage.DSN = getenv("SQLITE_PATH", "points.db")
	case kv.DriverPostgres:
		cfg.Storage.DSN = os.Getenv("DATABASE_URL")
		if cfg.Storage.DSN == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres driver")
		}
	case kv.DriverMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", cfg.Storage.Driver)
	}

	var err error
	if cfg.WriteLimit, err = getint("WRITE_LIMIT_PER_MIN", 120); err != nil {
		return Config{}, err
	}
	if cfg.TrustProxy, err = getbool("TRUST_PROXY", false); err != nil {
		return Config{}, err
	}
	if cfg.Metrics, err = getbool("METRICS_ENABLED", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getbool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
