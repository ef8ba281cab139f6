package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Events   EventsConfig   `mapstructure:"events"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// EngineConfig selects the persistence and locking backends.
type EngineConfig struct {
	Store               string        `mapstructure:"store"` // memory | mysql
	Lock                string        `mapstructure:"lock"`  // local | redis
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	LockWait            time.Duration `mapstructure:"lock_wait"`
	DefaultMinIncrement string        `mapstructure:"default_min_increment"`
	ViewCacheTTL        time.Duration `mapstructure:"view_cache_ttl"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
	LockLocal   = "local"
	LockRedis   = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "marketplace-service-1")
	v.SetDefault("engine.store", StoreMemory)
	v.SetDefault("engine.lock", LockLocal)
	v.SetDefault("engine.lock_ttl", 10*time.Second)
	v.SetDefault("engine.lock_wait", 3*time.Second)
	v.SetDefault("engine.default_min_increment", "5")
	v.SetDefault("engine.view_cache_ttl", 30*time.Second)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", 60*time.Second)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.channel", "market_events")
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()

	// Environment variable mappings
	bindings := map[string]string{
		"server.port":                  "SERVER_PORT",
		"server.host":                  "SERVER_HOST",
		"log.level":                    "LOG_LEVEL",
		"redis.address":                "REDIS_ADDRESS",
		"redis.password":               "REDIS_PASSWORD",
		"redis.db":                     "REDIS_DB",
		"mysql.dsn":                    "MYSQL_DSN",
		"mysql.max_open_conns":         "MYSQL_MAX_OPEN_CONNS",
		"mysql.max_idle_conns":         "MYSQL_MAX_IDLE_CONNS",
		"mysql.conn_max_lifetime":      "MYSQL_CONN_MAX_LIFETIME",
		"mysql.migrate":                "MYSQL_MIGRATE",
		"leader.ttl":                   "LEADER_TTL",
		"instance.id":                  "INSTANCE_ID",
		"engine.store":                 "ENGINE_STORE",
		"engine.lock":                  "ENGINE_LOCK",
		"engine.lock_ttl":              "ENGINE_LOCK_TTL",
		"engine.lock_wait":             "ENGINE_LOCK_WAIT",
		"engine.default_min_increment": "ENGINE_DEFAULT_MIN_INCREMENT",
		"engine.view_cache_ttl":        "ENGINE_VIEW_CACHE_TTL",
		"sweeper.enabled":              "SWEEPER_ENABLED",
		"sweeper.interval":             "SWEEPER_INTERVAL",
		"events.enabled":               "EVENTS_ENABLED",
		"events.channel":               "EVENTS_CHANNEL",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-settlement/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Engine.Store {
	case StoreMemory, StoreMySQL:
	default:
		return fmt.Errorf("config: unknown engine.store %q", c.Engine.Store)
	}
	switch c.Engine.Lock {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("config: unknown engine.lock %q", c.Engine.Lock)
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return errors.New("config: sweeper.interval must be positive")
	}
	if c.Leader.TTL <= 0 {
		return errors.New("config: leader.ttl must be positive")
	}
	if c.Engine.LockTTL <= 0 {
		return errors.New("config: engine.lock_ttl must be positive")
	}
	increment, err := decimal.NewFromString(c.Engine.DefaultMinIncrement)
	if err != nil {
		return fmt.Errorf("config: engine.default_min_increment: %w", err)
	}
	if increment.IsNegative() {
		return fmt.Errorf("config: engine.default_min_increment %s must not be negative", increment)
	}
	return nil
}

// UsesRedis reports whether any configured component needs a Redis connection.
// The listing view cache follows: Redis when connected, in-process otherwise.
func (c *Config) UsesRedis() bool {
	return c.Engine.Lock == LockRedis || c.Events.Enabled
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Store: %s, Lock: %s, Redis: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Engine.Store,
		c.Engine.Lock,
		c.Redis.Address,
		c.Instance.ID,
	)
}
