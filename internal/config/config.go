package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env     string  `yaml:"env" env:"MARKET_ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort int     `yaml:"api_port" env:"MARKET_API_PORT" env-default:"8080"`
	ApiHost string  `yaml:"api_host" env:"MARKET_API_HOST" env-default:"localhost"`
	Storage Storage `yaml:"storage"`
	Session Session `yaml:"session"`
	Kafka   Kafka   `yaml:"kafka"`
}

type Storage struct {
	Driver   string `yaml:"driver" env:"MARKET_STORAGE_DRIVER" env-default:"postgres" env-description:"postgres or sqlite"`
	Postgres `yaml:"postgres"`
	SQLite   `yaml:"sqlite"`
}

type Postgres struct {
	Host string `yaml:"host" env:"MARKET_POSTGRES_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"MARKET_POSTGRES_PORT" env-default:"5433"`
	User string `yaml:"user" env:"MARKET_POSTGRES_USER" env-default:"test"`
	Pass string `yaml:"pass" env:"MARKET_POSTGRES_PASS" env-default:"12345"`
	Db   string `yaml:"db" env:"MARKET_POSTGRES_DB" env-default:"test_db"`
}

type SQLite struct {
	Path string `yaml:"path" env:"MARKET_SQLITE_PATH" env-default:"./market.db"`
}

type Session struct {
	Secret       string        `yaml:"secret" env:"MARKET_SESSION_SECRET" env-required:"true"`
	TTL          time.Duration `yaml:"ttl" env:"MARKET_SESSION_TTL" env-default:"24h"`
	PruneEvery   time.Duration `yaml:"prune_every" env:"MARKET_SESSION_PRUNE_EVERY" env-default:"10m"`
	CookieSecure bool          `yaml:"cookie_secure" env:"MARKET_SESSION_COOKIE_SECURE" env-default:"false"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"MARKET_KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"MARKET_KAFKA_TOPIC" env-default:"market.trades"`
}

// PostgresURL builds the connection string for lib/pq.
func (p Postgres) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Pass, p.Host, p.Port, p.Db)
}

func MustLoad() *Config {
	path := fetchConfigPath()

	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Session.PruneEvery <= 0 {
		return fmt.Errorf("session prune_every must be positive")
	}
	return nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
