package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "session:\n  secret: s3cret\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "local" || cfg.ApiHost != "localhost" || cfg.ApiPort != 8080 {
		t.Errorf("unexpected server defaults %+v", cfg)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Storage.Postgres.Port != "5433" {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Session.TTL != 24*time.Hour || cfg.Session.PruneEvery != 10*time.Minute {
		t.Errorf("unexpected session defaults %+v", cfg.Session)
	}
	if len(cfg.Kafka.Brokers) != 0 || cfg.Kafka.Topic != "market.trades" {
		t.Errorf("unexpected kafka defaults %+v", cfg.Kafka)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
env: prod
api_port: 9090
storage:
  driver: sqlite
  sqlite:
    path: /var/lib/market.db
session:
  secret: s3cret
  ttl: 2h
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "prod" || cfg.ApiPort != 9090 {
		t.Errorf("unexpected server config %+v", cfg)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.SQLite.Path != "/var/lib/market.db" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("unexpected ttl %v", cfg.Session.TTL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "session:\n  secret: from-file\n")
	t.Setenv("MARKET_SESSION_SECRET", "from-env")
	t.Setenv("MARKET_API_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Secret != "from-env" || cfg.ApiPort != 7070 {
		t.Errorf("expected env overrides, got %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "storage:\n  driver: mysql\nsession:\n  secret: s\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Errorf("expected unsupported driver error, got %v", err)
	}

	path = writeConfig(t, "env: local\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing session secret")
	}
}

func TestPostgresURL(t *testing.T) {
	p := Postgres{Host: "db", Port: "5432", User: "u", Pass: "p", Db: "market"}
	want := "postgres://u:p@db:5432/market?sslmode=disable"
	if got := p.PostgresURL(); got != want {
		t.Errorf("PostgresURL() = %q, want %q", got, want)
	}
}
