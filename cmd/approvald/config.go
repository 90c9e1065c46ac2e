package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/auth"
	"github.com/goliatone/go-approvals/core"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite3"
)

// serverConfig is everything the daemon reads from the environment. Tenant
// profiles and policy come from the JSON config file instead; keys and DSNs
// stay out of that file so it can be committed.
type serverConfig struct {
	HTTPAddr        string
	ConfigPath      string
	DBDriver        string
	DBDSN           string
	Migrate         bool
	APIKeyHeader    string
	APIKeys         []auth.NamedKey
	RateLimit       int
	RateBurst       int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

func loadServerConfig() (serverConfig, error) {
	cfg := serverConfig{
		HTTPAddr:        envDefault("APPROVALS_HTTP_ADDR", ":8080"),
		ConfigPath:      strings.TrimSpace(os.Getenv("APPROVALS_CONFIG")),
		DBDriver:        normalizeDriver(envDefault("APPROVALS_DB_DRIVER", driverPostgres)),
		DBDSN:           strings.TrimSpace(os.Getenv("APPROVALS_DB_DSN")),
		Migrate:         envBool("APPROVALS_DB_MIGRATE", true),
		APIKeyHeader:    envDefault("APPROVALS_API_KEY_HEADER", auth.DefaultHeader),
		RateLimit:       envInt("APPROVALS_RATE_LIMIT", 0),
		RateBurst:       envInt("APPROVALS_RATE_BURST", 0),
		MaxBodyBytes:    int64(envInt("APPROVALS_MAX_BODY_BYTES", 0)),
		ShutdownTimeout: envDuration("APPROVALS_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	switch cfg.DBDriver {
	case driverPostgres, driverSQLite:
	default:
		return serverConfig{}, fmt.Errorf("unsupported APPROVALS_DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return serverConfig{}, fmt.Errorf("APPROVALS_DB_DSN is required")
	}

	keys, err := parseAPIKeys(os.Getenv("APPROVALS_API_KEYS"))
	if err != nil {
		return serverConfig{}, err
	}
	cfg.APIKeys = keys

	return cfg, nil
}

// parseAPIKeys reads "id:key,id:key" pairs. A bare entry without an id is
// accepted; the verifier assigns it a positional name.
func parseAPIKeys(raw string) ([]auth.NamedKey, error) {
	entries := strings.Split(raw, ",")
	keys := make([]auth.NamedKey, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, material, found := strings.Cut(entry, ":")
		if !found {
			keys = append(keys, auth.NamedKey{Key: core.Secret(entry)})
			continue
		}
		id = strings.TrimSpace(id)
		material = strings.TrimSpace(material)
		if material == "" {
			return nil, fmt.Errorf("APPROVALS_API_KEYS entry %q has no key material", id)
		}
		keys = append(keys, auth.NamedKey{ID: id, Key: core.Secret(material)})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("APPROVALS_API_KEYS is required")
	}
	return keys, nil
}

// newConfigProvider wraps the JSON config file for the service's config
// layering. Without a file the service runs on defaults plus runtime values,
// which means no tenants and every decision failing closed.
func newConfigProvider(path string) (*core.CfgxConfigProvider, error) {
	if path == "" {
		return core.NewCfgxConfigProvider(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(values)), nil
}

func normalizeDriver(raw string) string {
	driver := strings.ToLower(strings.TrimSpace(raw))
	if driver == "sqlite" {
		return driverSQLite
	}
	return driver
}

func envDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
