package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "STOREFRONT"

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

type Config struct {
	HTTPAddress         string        `envconfig:"HTTP_ADDRESS" default:":9091"`
	Storage             string        `envconfig:"STORAGE" default:"memory"`
	MySQLDSN            string        `envconfig:"MYSQL_DSN"`
	RedisAddress        string        `envconfig:"REDIS_ADDRESS"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD"`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	CartTTL             time.Duration `envconfig:"CART_TTL" default:"720h"`
	JWTSecret           string        `envconfig:"JWT_SECRET"`
	NotifyWebhook       string        `envconfig:"NOTIFY_WEBHOOK_URL"`
	NotifyTimeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
	OrderNumberAttempts int           `envconfig:"ORDER_NUMBER_ATTEMPTS" default:"5"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat           string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load reads an optional .env file and then the STOREFRONT_* environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	var c Config
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageMySQL:
		if c.MySQLDSN == "" {
			return errors.New("STOREFRONT_MYSQL_DSN is required for mysql storage")
		}
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.OrderNumberAttempts < 1 {
		return errors.New("STOREFRONT_ORDER_NUMBER_ATTEMPTS must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("STOREFRONT_NOTIFY_TIMEOUT must be positive")
	}
	return nil
}
