package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdigest/internal/domain"

	"github.com/caarlos0/env/v11"
)

const (
	StoreBackendJSON   = "json"
	StoreBackendSQLite = "sqlite"

	defaultJSONStorePath   = "data/users.json"
	defaultSQLiteStorePath = "data/users.sqlite"
)

type Config struct {
	Token                 string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	DefaultTopics         []string      `env:"DEFAULT_TOPICS"           envDefault:"technology,world"`
	ArticlesPerTopic      int           `env:"ARTICLES_PER_TOPIC"       envDefault:"3"`
	DailyArticlesPerTopic int           `env:"DAILY_ARTICLES_PER_TOPIC" envDefault:"5"`
	StoreBackend          string        `env:"STORE_BACKEND"            envDefault:"json"`
	StorePath             string        `env:"STORE_PATH"               envDefault:"data/users.json"`
	TopicsFile            string        `env:"TOPICS_FILE"`
	Timezone              string        `env:"TIMEZONE"                 envDefault:"Local"`
	FetchTimeout          time.Duration `env:"FETCH_TIMEOUT"            envDefault:"12s"`
	ExtractCacheTTL       time.Duration `env:"EXTRACT_CACHE_TTL"        envDefault:"1h"`
	SummarySentences      int           `env:"SUMMARY_SENTENCES"        envDefault:"3"`
	AllowedUsers          []int64       `env:"ALLOWED_USERS"`
	MetricsAddr           string        `env:"METRICS_ADDR"`
	AllowPrivateNetworks  bool          `env:"ALLOW_PRIVATE_NETWORKS"   envDefault:"false"`
}

// LoadConfig reads the configuration from the environment. A missing bot
// token is an error.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.normalize(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) normalize() error {
	c.Token = strings.TrimSpace(c.Token)
	if c.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is empty")
	}

	topics := make([]string, 0, len(c.DefaultTopics))
	for _, t := range c.DefaultTopics {
		topics = append(topics, strings.ToLower(t))
	}
	c.DefaultTopics = domain.UniqueTopics(topics)

	c.ArticlesPerTopic = domain.ClampCount(c.ArticlesPerTopic)
	c.DailyArticlesPerTopic = domain.ClampCount(c.DailyArticlesPerTopic)

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend != StoreBackendJSON && c.StoreBackend != StoreBackendSQLite {
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	c.StorePath = strings.TrimSpace(c.StorePath)
	if c.StoreBackend == StoreBackendSQLite && c.StorePath == defaultJSONStorePath {
		c.StorePath = defaultSQLiteStorePath
	}

	if c.SummarySentences <= 0 {
		return fmt.Errorf("SUMMARY_SENTENCES must be positive, got %d", c.SummarySentences)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Location resolves Timezone. "Local" is the system zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", c.Timezone, err)
	}

	return loc, nil
}
