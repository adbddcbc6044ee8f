package config

import (
	"strings"
	"testing"
	"time"
)

func validPostgres() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "citizen"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, key := range []string{"APP_ENV", "APP_PORT", "DB_HOST", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %q", key, err.Error())
		}
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validPostgres()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsAreApplied(t *testing.T) {
	c := validPostgres()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.Driver != DriverPostgres {
		t.Fatalf("expected pgx default driver, got %q", c.DB.Driver)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute || c.Cache.TTL != 5*time.Minute || c.Cache.MutationLeaseTTL != 10*time.Second {
		t.Fatalf("expected duration defaults, got %+v %+v", c.Auth, c.Cache)
	}
	if c.RedisEnabled() {
		t.Fatalf("redis must be disabled without REDIS_HOST")
	}
}

func TestValidate_SQLiteNeedsPathOnly(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "dev", Port: 8080},
		DB:   DBConfig{Driver: DriverSQLite, Path: "/tmp/citizen.db"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	driver, dsn := c.DataSource()
	if driver != DriverSQLite || !strings.HasPrefix(dsn, "file:/tmp/citizen.db?") {
		t.Fatalf("unexpected data source %q %q", driver, dsn)
	}

	c.DB.Path = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without DB_PATH")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	c := validPostgres()
	c.DB.Driver = "mysql"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestValidate_RedisPortDefault(t *testing.T) {
	c := validPostgres()
	c.Redis.Host = "cache"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected redis addr %q", c.RedisAddr())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("POLICY_FILE", "policy.yml")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9090 || c.Cache.TTL != 30*time.Second || c.Policy.File != "policy.yml" {
		t.Fatalf("unexpected config %+v", c)
	}
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CACHE_TTL", "soon")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CACHE_TTL") {
		t.Fatalf("expected CACHE_TTL error, got %v", err)
	}
}

func TestLoad_TracesStdout(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("OTEL_TRACES_STDOUT", "true")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Telemetry.TracesStdout {
		t.Fatalf("expected stdout tracing enabled")
	}

	t.Setenv("OTEL_TRACES_STDOUT", "sometimes")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "OTEL_TRACES_STDOUT") {
		t.Fatalf("expected OTEL_TRACES_STDOUT error, got %v", err)
	}
}

func TestLoad_RedisClientSettings(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_POOL_SIZE", "7")
	t.Setenv("REDIS_READ_TIMEOUT", "250ms")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Redis.PoolSize != 7 || c.Redis.ReadTimeout != 250*time.Millisecond || c.Redis.Port != 6379 {
		t.Fatalf("unexpected redis config %+v", c.Redis)
	}

	t.Setenv("REDIS_POOL_SIZE", "-1")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_POOL_SIZE") {
		t.Fatalf("expected REDIS_POOL_SIZE error, got %v", err)
	}
}
