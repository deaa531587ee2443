package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	TopUp    TopUpConfig    `mapstructure:"topup"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type GatewayConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	AuthUsername  string        `mapstructure:"auth_username"`
	AuthToken     string        `mapstructure:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExpiryMinutes int           `mapstructure:"expiry_minutes"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type TopUpConfig struct {
	MinAmount    int64 `mapstructure:"min_amount"`
	HistoryLimit int   `mapstructure:"history_limit"`
}

type LedgerConfig struct {
	Backend     string `mapstructure:"backend"`
	DataDir     string `mapstructure:"data_dir"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	Retention   int    `mapstructure:"retention"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// envBindings keeps the variable names the bot deployment already uses.
var envBindings = map[string]string{
	"server.port":                  "PORT",
	"logger.level":                 "LOG_LEVEL",
	"gateway.api_url":              "API_URL",
	"gateway.auth_username":        "AUTH_USERNAME",
	"gateway.auth_token":           "AUTH_TOKEN",
	"gateway.expiry_minutes":       "EXPIRY_TIME",
	"gateway.webhook_secret":       "WEBHOOK_SECRET",
	"ledger.backend":               "LEDGER_BACKEND",
	"ledger.data_dir":              "LEDGER_DATA_DIR",
	"database.host":                "DATABASE_HOST",
	"database.port":                "DATABASE_PORT",
	"database.user":                "DATABASE_USER",
	"database.password":            "DATABASE_PASSWORD",
	"database.name":                "DATABASE_NAME",
	"database.ssl_mode":            "DATABASE_SSL_MODE",
	"redis.host":                   "REDIS_HOST",
	"redis.port":                   "REDIS_PORT",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"jwt.secret_key":               "JWT_SECRET_KEY",
	"topup.min_amount":             "TOPUP_MIN_AMOUNT",
	"ledger.retention":             "LEDGER_RETENTION",
	"gateway.timeout":              "GATEWAY_TIMEOUT",
	"gateway.breaker.max_failures": "GATEWAY_BREAKER_MAX_FAILURES",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("gateway.api_url", "https://zeppelin-api.vercel.app")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.expiry_minutes", 5)
	v.SetDefault("gateway.breaker.max_failures", 5)
	v.SetDefault("gateway.breaker.open_timeout", 30*time.Second)

	v.SetDefault("topup.min_amount", 1000)
	v.SetDefault("topup.history_limit", 5)

	v.SetDefault("ledger.backend", BackendFile)
	v.SetDefault("ledger.data_dir", "./database")
	v.SetDefault("ledger.redis_prefix", "ledger")
	v.SetDefault("ledger.retention", 50)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "topup_ledger")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Load reads defaults, then the optional config file at path, then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ValidationErrors collects per-field configuration problems.
type ValidationErrors map[string]string

func (ve ValidationErrors) Add(field, msg string) {
	ve[field] = msg
}

func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	parts := make([]string, 0, len(ve))
	for field, msg := range ve {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := ValidationErrors{}

	if c.Server.Port == "" {
		ve.Add("server.port", "cannot be empty")
	}
	if c.Gateway.APIURL == "" {
		ve.Add("gateway.api_url", "cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		ve.Add("gateway.timeout", "must be positive")
	}
	if c.Gateway.ExpiryMinutes <= 0 {
		ve.Add("gateway.expiry_minutes", "must be positive")
	}
	if c.TopUp.MinAmount <= 0 {
		ve.Add("topup.min_amount", "must be positive")
	}
	if c.TopUp.HistoryLimit <= 0 {
		ve.Add("topup.history_limit", "must be positive")
	}
	if c.Ledger.Retention < 0 {
		ve.Add("ledger.retention", "cannot be negative")
	}
	switch c.Ledger.Backend {
	case BackendFile:
		if c.Ledger.DataDir == "" {
			ve.Add("ledger.data_dir", "cannot be empty for the file backend")
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			ve.Add("redis.host", "cannot be empty for the redis backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			ve.Add("database", "host and name are required for the postgres backend")
		}
	default:
		ve.Add("ledger.backend", "must be one of file, redis, postgres")
	}
	if c.JWT.SecretKey == "" {
		ve.Add("jwt.secret_key", "cannot be empty")
	}

	return ve.Err()
}
