// Package config loads worker settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/ports"
	"github.com/goliatone/go-manufacture/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MANUFACTURE_"

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type Config struct {
	Logger  LoggerConfig          `yaml:"logger"`
	Mongo   MongoConfig           `yaml:"mongo"`
	Redis   RedisConfig           `yaml:"redis"`
	Kafka   transport.KafkaConfig `yaml:"kafka"`
	Dedup   DedupConfig           `yaml:"dedup"`
	Bus     BusConfig             `yaml:"bus"`
	Sweeper SweeperConfig         `yaml:"sweeper"`
	Metrics MetricsConfig         `yaml:"metrics"`
	Breaker ports.BreakerConfig   `yaml:"breaker"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MongoConfig struct {
	URI             string        `yaml:"uri"`
	Database        string        `yaml:"database"`
	DedupCollection string        `yaml:"dedup_collection"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DedupConfig selects the deduplication backend. Retention zero keeps
// markers forever.
type DedupConfig struct {
	Backend   string        `yaml:"backend"`
	Namespace string        `yaml:"namespace"`
	Retention time.Duration `yaml:"retention"`
}

type BusConfig struct {
	Locker               string                    `yaml:"locker"`
	LockTTL              time.Duration             `yaml:"lock_ttl"`
	LockRetries          int                       `yaml:"lock_retries"`
	LockBackoff          time.Duration             `yaml:"lock_backoff"`
	PerOrderPackageDedup bool                      `yaml:"per_order_package_dedup"`
	Handler              manufacture.HandlerConfig `yaml:"handler"`
}

type SweeperConfig struct {
	Enabled       bool                      `yaml:"enabled"`
	SettledWindow time.Duration             `yaml:"settled_window"`
	Job           manufacture.HandlerConfig `yaml:"job"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Defaults returns a configuration that runs entirely in memory.
func Defaults() Config {
	return Config{
		Logger: LoggerConfig{Level: "info", Format: "json"},
		Mongo: MongoConfig{
			URI:             "mongodb://localhost:27017",
			Database:        "manufacture",
			DedupCollection: "deduplication",
			ConnectTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: "manufacture:"},
		Kafka: transport.DefaultKafkaConfig(),
		Dedup: DedupConfig{Backend: BackendMemory, Namespace: "default"},
		Bus: BusConfig{
			Locker:      BackendMemory,
			LockTTL:     30 * time.Second,
			LockRetries: 20,
			LockBackoff: 100 * time.Millisecond,
			Handler:     manufacture.HandlerConfig{Timeout: 30 * time.Second},
		},
		Sweeper: SweeperConfig{
			Enabled:       true,
			SettledWindow: 24 * time.Hour,
			Job:           manufacture.HandlerConfig{Expression: "@every 5m", Timeout: 2 * time.Minute},
		},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090", Path: "/metrics"},
		Breaker: ports.DefaultBreakerConfig(""),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML into cfg, keeping values the document omits.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return manufacture.NewError(manufacture.ErrValidation, "invalid configuration document", err, nil)
	}
	return nil
}

// ApplyEnv overrides fields from MANUFACTURE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &c.Logger.Level)
	str("LOG_FORMAT", &c.Logger.Format)
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("KAFKA_GROUP_ID", &c.Kafka.GroupID)
	str("DEDUP_BACKEND", &c.Dedup.Backend)
	dur("DEDUP_RETENTION", &c.Dedup.Retention)
	str("BUS_LOCKER", &c.Bus.Locker)
	dur("BUS_LOCK_TTL", &c.Bus.LockTTL)
	boolean("BUS_PER_ORDER_PACKAGE_DEDUP", &c.Bus.PerOrderPackageDedup)
	boolean("SWEEPER_ENABLED", &c.Sweeper.Enabled)
	str("SWEEPER_EXPRESSION", &c.Sweeper.Job.Expression)
	dur("SWEEPER_SETTLED_WINDOW", &c.Sweeper.SettledWindow)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if len(errs) > 0 {
		return manufacture.NewError(manufacture.ErrValidation, "invalid environment override", nil, map[string]any{
			"variables": errs,
		})
	}
	return nil
}

// Validate checks backend names and the settings each backend requires.
func (c Config) Validate() error {
	problems := map[string]any{}

	switch c.Dedup.Backend {
	case BackendMemory:
	case BackendMongo:
		c.requireMongo(problems)
	case BackendRedis:
		c.requireRedis(problems)
	default:
		problems["dedup.backend"] = fmt.Sprintf("unknown backend %q", c.Dedup.Backend)
	}

	switch c.Bus.Locker {
	case BackendMemory:
	case BackendRedis:
		c.requireRedis(problems)
		if c.Bus.LockTTL <= 0 {
			problems["bus.lock_ttl"] = "must be positive"
		}
	default:
		problems["bus.locker"] = fmt.Sprintf("unknown locker %q", c.Bus.Locker)
	}

	if c.Dedup.Retention < 0 {
		problems["dedup.retention"] = "must not be negative"
	}
	if c.Sweeper.Enabled && strings.TrimSpace(c.Sweeper.Job.Expression) == "" {
		problems["sweeper.job.expression"] = "required when the sweeper is enabled"
	}
	if c.Sweeper.Enabled && c.Sweeper.SettledWindow <= 0 {
		problems["sweeper.settled_window"] = "must be positive when the sweeper is enabled"
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		problems["metrics.addr"] = "required when metrics are enabled"
	}

	if len(problems) == 0 {
		return nil
	}
	return manufacture.NewError(manufacture.ErrValidation, "invalid configuration", nil, problems)
}

// UsesMongo reports whether any component needs a Mongo connection. Batch
// persistence moves to Mongo as soon as dedup does.
func (c Config) UsesMongo() bool { return c.Dedup.Backend == BackendMongo }

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.Dedup.Backend == BackendRedis || c.Bus.Locker == BackendRedis
}

func (c Config) requireMongo(problems map[string]any) {
	if c.Mongo.URI == "" {
		problems["mongo.uri"] = "required for the mongo backend"
	}
	if c.Mongo.Database == "" {
		problems["mongo.database"] = "required for the mongo backend"
	}
}

func (c Config) requireRedis(problems map[string]any) {
	if c.Redis.Addr == "" {
		problems["redis.addr"] = "required for the redis backend"
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
