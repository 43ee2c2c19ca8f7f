// Package config assembles runtime configuration from the environment.
// A .env file in the working directory is honored when present, which keeps
// local development and the deployed environment on the same variable names.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// StoreKind selects the storage backend ("postgres", "mssql", "sqlite").
	StoreKind string
	// DSN is the backend connection string. For postgres it may be left
	// empty and assembled from the PG* variables instead.
	DSN string

	Table       string
	AuditColumn string

	HTTPAddr string
	// ArtifactsDir overrides the built-in KPI artifact set when non-empty.
	ArtifactsDir string

	DatadogEnabled bool
	DatadogJob     string
	DatadogTags    string
}

// Load reads configuration, layering: defaults < .env file < real env.
// godotenv never overwrites variables already set, so the real environment
// always wins. SNAPLOAD_DSN may embed ${VAR} references; they expand against
// the environment, so a DSN template can keep the password in its own var.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StoreKind:      envOr("SNAPLOAD_STORE", "postgres"),
		DSN:            os.ExpandEnv(os.Getenv("SNAPLOAD_DSN")),
		Table:          envOr("SNAPLOAD_TABLE", "jira_issues"),
		AuditColumn:    envOr("SNAPLOAD_AUDIT_COLUMN", "loaded_at"),
		HTTPAddr:       envOr("SNAPLOAD_HTTP_ADDR", ":8080"),
		ArtifactsDir:   os.Getenv("SNAPLOAD_ARTIFACTS_DIR"),
		DatadogEnabled: envBool("SNAPLOAD_DATADOG"),
		DatadogJob:     envOr("SNAPLOAD_DATADOG_JOB", "snapload"),
		DatadogTags:    os.Getenv("SNAPLOAD_DATADOG_TAGS"),
	}

	if cfg.DSN == "" && cfg.StoreKind == "postgres" {
		dsn, err := postgresDSNFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.DSN = dsn
	}
	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("config: SNAPLOAD_DSN is required for store %q", cfg.StoreKind)
	}
	return cfg, nil
}

// postgresDSNFromEnv builds a pgx URL from the conventional PG* variables.
// sslmode defaults to require because the usual target is a managed instance.
func postgresDSNFromEnv() (string, error) {
	host := os.Getenv("PGHOST")
	db := os.Getenv("PGDATABASE")
	user := os.Getenv("PGUSER")
	pass := os.Getenv("PGPASSWORD")
	if host == "" || db == "" || user == "" {
		return "", fmt.Errorf("config: set SNAPLOAD_DSN or PGHOST/PGDATABASE/PGUSER")
	}

	port := envOr("PGPORT", "5432")
	ssl := envOr("PGSSLMODE", "require")

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}
