package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "COURSEGRID_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	RBAC     RBACConfig     `koanf:"rbac"`
	Audit    AuditConfig    `koanf:"audit"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey         string `koanf:"signingkey"`
	Issuer             string `koanf:"issuer"`
	ExpiryHours        int    `koanf:"expiryhours"`
	RefreshExpiryHours int    `koanf:"refreshexpiryhours"`
}

type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
	// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For
	// header is believed.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
	// StatementTimeoutMS bounds every statement; 0 keeps the server default.
	StatementTimeoutMS int `koanf:"statement_timeout_ms"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RBACConfig controls the in-process role cache. Role edits made through the
// API reload the cache immediately; the interval covers edits made by other
// instances.
type RBACConfig struct {
	ReloadIntervalSecs int `koanf:"reload_interval_secs"`
}

type AuditConfig struct {
	Enabled bool `koanf:"enabled"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                   8080,
		"server.host":                   "0.0.0.0",
		"server.cors_origins":           []string{},
		"server.trusted_proxies":        []string{},
		"database.max_conns":            25,
		"database.migrations_path":      "migrations",
		"database.statement_timeout_ms": 30000,
		"log.level":                     "info",
		"log.format":                    "json",
		"auth.devmode":                  false,
		"auth.jwt.issuer":               "coursegrid",
		"auth.jwt.expiryhours":          24,
		"auth.jwt.refreshexpiryhours":   168,
		"rbac.reload_interval_secs":     60,
		"audit.enabled":                 true,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			continue
		}
	}

	// COURSEGRID_SERVER_PORT -> server.port,
	// COURSEGRID_DATABASE_MAX_CONNS -> database.max_conns
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	_ = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
