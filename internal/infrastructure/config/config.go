package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Webhooks    WebhooksConfig    `mapstructure:"webhooks"`
	PriceOracle PriceOracleConfig `mapstructure:"price_oracle"`
	Email       EmailConfig       `mapstructure:"email"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Workers     WorkerConfig      `mapstructure:"workers"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProvidersConfig contains the environment-level fallback credentials and
// endpoints for every history provider. A per-user integration, when present,
// takes precedence over these keys.
type ProvidersConfig struct {
	Moralis     ProviderConfig `mapstructure:"moralis"`
	Etherscan   ProviderConfig `mapstructure:"etherscan"`
	BlockCypher ProviderConfig `mapstructure:"blockcypher"`
	Solscan     ProviderConfig `mapstructure:"solscan"`
	TronGrid    ProviderConfig `mapstructure:"trongrid"`
	Timeout     int            `mapstructure:"timeout"`
	MaxRetries  int            `mapstructure:"max_retries"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// WebhooksConfig contains the shared secrets for inbound push vendors.
type WebhooksConfig struct {
	AlchemySigningKey    string `mapstructure:"alchemy_signing_key"`
	MoralisStreamsSecret string `mapstructure:"moralis_streams_secret"`
}

// PriceOracleConfig configures the cached USD price lookup.
type PriceOracleConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type EmailConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// SyncConfig configures the periodic wallet sync scheduler.
type SyncConfig struct {
	Schedule    string `mapstructure:"schedule"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// WorkerConfig contains background worker configuration.
type WorkerConfig struct {
	Count        int `mapstructure:"count"`
	PollInterval int `mapstructure:"poll_interval"`
	JobTimeout   int `mapstructure:"job_timeout"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "whalewatch")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("providers.timeout", 30)
	viper.SetDefault("providers.max_retries", 2)
	viper.SetDefault("providers.moralis.base_url", "https://deep-index.moralis.io/api/v2.2")
	viper.SetDefault("providers.etherscan.base_url", "https://api.etherscan.io/api")
	viper.SetDefault("providers.blockcypher.base_url", "https://api.blockcypher.com/v1")
	viper.SetDefault("providers.solscan.base_url", "https://pro-api.solscan.io/v2.0")
	viper.SetDefault("providers.trongrid.base_url", "https://api.trongrid.io")

	viper.SetDefault("price_oracle.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("price_oracle.cache_ttl_seconds", 300)

	viper.SetDefault("sync.schedule", "@every 10m")
	viper.SetDefault("sync.max_attempts", 3)

	viper.SetDefault("workers.count", 5)
	viper.SetDefault("workers.poll_interval", 5)
	viper.SetDefault("workers.job_timeout", 120)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
}

func validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if config.Environment == "production" {
		if config.Webhooks.AlchemySigningKey == "" {
			return fmt.Errorf("webhooks.alchemy_signing_key is required in production")
		}
		if config.Webhooks.MoralisStreamsSecret == "" {
			return fmt.Errorf("webhooks.moralis_streams_secret is required in production")
		}
	}
	return nil
}
