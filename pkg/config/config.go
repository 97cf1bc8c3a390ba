package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Market MarketConfig `mapstructure:"market"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Logger LoggerConfig `mapstructure:"logger"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

// MarketConfig drives the synthetic price engine: which symbols exist,
// where they start, how often they move and by how much.
type MarketConfig struct {
	Tickers         []string           `mapstructure:"tickers"`
	SeedPrices      map[string]float64 `mapstructure:"seed_prices"`
	TickIntervalMS  int                `mapstructure:"tick_interval_ms"`
	PerturbationPct float64            `mapstructure:"perturbation_pct"` // max relative move per tick
}

// RedisConfig configures the optional last-price mirror.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures the optional tick egress for downstream consumers.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LoggerConfig struct {
	Env   string `mapstructure:"env"`   // "local" -> development logger
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	// This ensures variables like APP_PORT are available as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.port", ":2000")
	v.SetDefault("app.env", "local")

	v.SetDefault("market.tickers", []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"})
	v.SetDefault("market.seed_prices", map[string]float64{
		"GOOG": 2800.00,
		"TSLA": 700.00,
		"AMZN": 3100.00,
		"META": 330.00,
		"NVDA": 180.00,
	})
	v.SetDefault("market.tick_interval_ms", 1000)
	v.SetDefault("market.perturbation_pct", 0.02)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")

	v.SetDefault("logger.env", "local")
	v.SetDefault("logger.level", "info")

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (APP_PORT) to nested structs (App.Port)
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "market.tickers", "market.tick_interval_ms", "market.perturbation_pct")
	bindEnv(v, "redis.enabled", "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic")
	bindEnv(v, "logger.env", "logger.level")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// Viper lowercases map keys on the way through; symbols are uppercase
	normalized := make(map[string]float64, len(cfg.Market.SeedPrices))
	for sym, price := range cfg.Market.SeedPrices {
		normalized[strings.ToUpper(sym)] = price
	}
	cfg.Market.SeedPrices = normalized

	// 6. Basic Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Market.Tickers) == 0 {
		return fmt.Errorf("market tickers cannot be empty")
	}
	for _, t := range c.Market.Tickers {
		seed, ok := c.Market.SeedPrices[t]
		if !ok {
			return fmt.Errorf("ticker %s has no seed price", t)
		}
		if seed <= 0 {
			return fmt.Errorf("ticker %s seed price must be positive", t)
		}
	}
	if c.Market.TickIntervalMS <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Market.PerturbationPct <= 0 || c.Market.PerturbationPct >= 1 {
		return fmt.Errorf("perturbation pct must be in (0, 1)")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
