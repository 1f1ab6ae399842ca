// Package config loads trafficd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"trafficcap/internal/blob"
	"trafficcap/internal/core"
)

// Prefix is prepended to every variable name read by Load.
const Prefix = "TRAFFICCAP_"

// EnvFileVar names an optional dotenv file loaded before reading variables.
const EnvFileVar = Prefix + "ENV_FILE"

// Config is the resolved daemon configuration.
type Config struct {
	HTTPAddr         string
	LogLevel         string
	Storage          core.StorageConfig
	Blob             blob.Config
	SnapshotSchedule string
	SnapshotKeep     int
	Redis            RedisConfig
	StrictTrafficRef bool
}

// RedisConfig configures audit event publishing. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// DefaultRedisChannel is used when TRAFFICCAP_REDIS_CHANNEL is unset.
const DefaultRedisChannel = "trafficcap.audit"

// Load reads the environment, after loading TRAFFICCAP_ENV_FILE or ./.env when present.
// Variables already set in the process take precedence over the file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}
	var p parser
	cfg := Config{
		HTTPAddr: p.str("HTTP_ADDR", ":8080"),
		LogLevel: p.str("LOG_LEVEL", "info"),
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(strings.ToLower(p.str("STORAGE_DRIVER", string(core.StorageSQLite)))),
			SQLitePath:  p.str("SQLITE_PATH", ""),
			PostgresDSN: p.str("POSTGRES_DSN", ""),
		},
		Blob: blob.Config{
			Driver: blob.Driver(strings.ToLower(p.str("BLOB_DRIVER", string(blob.DriverFilesystem)))),
			FSRoot: p.str("BLOB_FS_ROOT", ""),
			S3: blob.S3Config{
				Bucket:    p.str("BLOB_S3_BUCKET", ""),
				Region:    p.str("BLOB_S3_REGION", ""),
				Endpoint:  p.str("BLOB_S3_ENDPOINT", ""),
				PathStyle: p.boolean("BLOB_S3_PATH_STYLE", false),
			},
		},
		SnapshotSchedule: p.str("SNAPSHOT_SCHEDULE", ""),
		SnapshotKeep:     p.integer("SNAPSHOT_KEEP", 0),
		Redis: RedisConfig{
			Addr:     p.str("REDIS_ADDR", ""),
			Password: p.str("REDIS_PASSWORD", ""),
			DB:       p.integer("REDIS_DB", 0),
			Channel:  p.str("REDIS_CHANNEL", DefaultRedisChannel),
		},
		StrictTrafficRef: p.boolean("STRICT_TRAFFIC_REF", true),
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	switch cfg.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return Config{}, fmt.Errorf("%sSTORAGE_DRIVER: unsupported driver %q", Prefix, cfg.Storage.Driver)
	}
	return cfg, nil
}

func loadEnvFile() error {
	if path := os.Getenv(EnvFileVar); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

// parser collects conversion errors so Load reports every bad variable at once.
type parser struct {
	errs []error
}

func (p *parser) str(name, fallback string) string {
	if v, ok := os.LookupEnv(Prefix + name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (p *parser) integer(name string, fallback int) int {
	raw := p.str(name, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid integer %q", Prefix, name, raw))
		return fallback
	}
	return n
}

func (p *parser) boolean(name string, fallback bool) bool {
	raw := p.str(name, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: invalid boolean %q", Prefix, name, raw))
		return fallback
	}
	return b
}
