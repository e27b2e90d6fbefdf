package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Market    MarketConfig    `yaml:"market"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	AI        AIConfig        `yaml:"ai"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type ServerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Address          string        `yaml:"address"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	LogHistory       int           `yaml:"log_history"`
	MetricsHistory   int           `yaml:"metrics_history"`
	ResourceInterval time.Duration `yaml:"resource_interval"`
}

type StorageConfig struct {
	Backend string        `yaml:"backend"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
	Redis   RedisConfig   `yaml:"redis"`
	S3      S3Config      `yaml:"s3"`
	Timeout time.Duration `yaml:"timeout"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ProvidersConfig struct {
	CoinGecko HTTPProviderConfig `yaml:"coingecko"`
	News      HTTPProviderConfig `yaml:"news"`
	Twitter   HTTPProviderConfig `yaml:"twitter"`
}

// HTTPProviderConfig drives one httpx client.
type HTTPProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Host       string        `yaml:"host"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
	Queue      QueueConfig   `yaml:"queue"`
}

// QueueConfig caps a client at Cap calls per Interval with Concurrency calls in flight.
type QueueConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Concurrency int           `yaml:"concurrency"`
	Interval    time.Duration `yaml:"interval"`
	Cap         int           `yaml:"cap"`
}

type MarketConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	SelectedToken  string        `yaml:"selected_token"`
	Timeframe      string        `yaml:"timeframe"`
	Currency       string        `yaml:"currency"`
	TopCoinsLimit  int           `yaml:"top_coins_limit"`
	MoversLimit    int           `yaml:"movers_limit"`
}

type PortfolioConfig struct {
	ImportDelay          time.Duration `yaml:"import_delay"`
	PriceRefreshInterval time.Duration `yaml:"price_refresh_interval"`
}

type ExchangeConfig struct {
	Binance BinanceConfig `yaml:"binance"`
}

type BinanceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	QuoteAsset string `yaml:"quote_asset"`
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
}

type AIConfig struct {
	Perplexity         AIBackendConfig      `yaml:"perplexity"`
	Groq               AIBackendConfig      `yaml:"groq"`
	Timeout            time.Duration        `yaml:"timeout"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
	FallbackChunkDelay time.Duration        `yaml:"fallback_chunk_delay"`
}

type AIBackendConfig struct {
	APIKey              string  `yaml:"api_key"`
	URL                 string  `yaml:"url"`
	Model               string  `yaml:"model"`
	Temperature         float64 `yaml:"temperature"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
	TopP                float64 `yaml:"top_p"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// Default returns a configuration that runs fully offline against the
// public upstream endpoints with in-memory storage.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "tradesxbt", Version: "dev"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Server: ServerConfig{
			Enabled:          true,
			Address:          ":8080",
			CORSOrigins:      []string{"http://localhost:5173"},
			LogHistory:       500,
			MetricsHistory:   200,
			ResourceInterval: 5 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
			SQLite:  SQLiteConfig{Path: "tradesxbt.db"},
			Redis:   RedisConfig{URL: "redis://localhost:6379/0", Prefix: "tradesxbt:"},
			S3:      S3Config{Prefix: "state/"},
			Timeout: 5 * time.Second,
		},
		Providers: ProvidersConfig{
			CoinGecko: HTTPProviderConfig{
				BaseURL:    "https://api.coingecko.com/api/v3",
				Timeout:    10 * time.Second,
				Retries:    5,
				BackoffMin: time.Second,
				BackoffMax: 30 * time.Second,
				Queue: QueueConfig{
					Enabled:     true,
					Concurrency: 1,
					Interval:    2 * time.Second,
					Cap:         5,
				},
			},
			News: HTTPProviderConfig{
				BaseURL:    "https://min-api.cryptocompare.com/data",
				Timeout:    10 * time.Second,
				Retries:    3,
				BackoffMin: time.Second,
				BackoffMax: 10 * time.Second,
			},
			Twitter: HTTPProviderConfig{
				BaseURL:    "https://twitter-api45.p.rapidapi.com",
				Host:       "twitter-api45.p.rapidapi.com",
				Timeout:    10 * time.Second,
				Retries:    2,
				BackoffMin: time.Second,
				BackoffMax: 10 * time.Second,
			},
		},
		Market: MarketConfig{
			PollInterval:   30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			SelectedToken:  "bitcoin",
			Timeframe:      "24h",
			Currency:       "usd",
			TopCoinsLimit:  100,
			MoversLimit:    10,
		},
		Portfolio: PortfolioConfig{
			ImportDelay:          2 * time.Second,
			PriceRefreshInterval: time.Minute,
		},
		Exchange: ExchangeConfig{
			Binance: BinanceConfig{
				BaseURL:    "https://api.binance.com",
				QuoteAsset: "USDT",
			},
		},
		AI: AIConfig{
			Perplexity: AIBackendConfig{
				URL:         "https://api.perplexity.ai/chat/completions",
				Model:       "sonar",
				Temperature: 0.7,
			},
			Groq: AIBackendConfig{
				URL:                 "https://api.groq.com/openai/v1/chat/completions",
				Model:               "deepseek-r1-distill-llama-70b",
				Temperature:         0.6,
				MaxCompletionTokens: 4096,
				TopP:                0.95,
			},
			Timeout: 60 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 3,
				RecoveryTimeout:  time.Minute,
			},
			FallbackChunkDelay: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{Namespace: "TradesXBT"},
		},
	}
}

// LoadConfig reads the YAML file at path on top of Default, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	override := func(dst *string, env string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	override(&config.Providers.CoinGecko.APIKey, "COINGECKO_API_KEY")
	override(&config.Providers.Twitter.APIKey, "RAPIDAPI_KEY")
	override(&config.Providers.News.APIKey, "CRYPTOCOMPARE_API_KEY")
	override(&config.AI.Perplexity.APIKey, "PERPLEXITY_API_KEY")
	override(&config.AI.Groq.APIKey, "GROQ_API_KEY")
	override(&config.Exchange.Binance.APIKey, "BINANCE_API_KEY")
	override(&config.Exchange.Binance.SecretKey, "BINANCE_SECRET_KEY")

	switch config.Storage.Backend {
	case "redis":
		override(&config.Storage.Redis.URL, "REDIS_URL")
		override(&config.Storage.Redis.Password, "REDIS_PASSWORD")
	case "s3":
		override(&config.Storage.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
		override(&config.Storage.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
		override(&config.Storage.S3.Region, "AWS_REGION")
		override(&config.Storage.S3.Bucket, "S3_BUCKET")
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return errors.New("app.name is required")
	}

	if cfg.Server.Enabled && cfg.Server.Address == "" {
		return errors.New("server.address is required when the server is enabled")
	}

	for name, p := range map[string]HTTPProviderConfig{
		"coingecko": cfg.Providers.CoinGecko,
		"news":      cfg.Providers.News,
		"twitter":   cfg.Providers.Twitter,
	} {
		if p.BaseURL == "" {
			return fmt.Errorf("providers.%s.base_url is required", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("providers.%s.timeout must be greater than 0", name)
		}
		if p.Retries < 0 {
			return fmt.Errorf("providers.%s.retries must not be negative", name)
		}
		if p.Queue.Enabled && (p.Queue.Concurrency <= 0 || p.Queue.Cap <= 0 || p.Queue.Interval <= 0) {
			return fmt.Errorf("providers.%s.queue needs positive concurrency, cap and interval", name)
		}
	}

	if cfg.Market.PollInterval <= 0 {
		return errors.New("market.poll_interval must be greater than 0")
	}
	if cfg.Market.MaxRetries <= 0 {
		return errors.New("market.max_retries must be greater than 0")
	}
	switch cfg.Market.Timeframe {
	case "1h", "24h", "7d":
	default:
		return fmt.Errorf("market.timeframe '%s' is invalid", cfg.Market.Timeframe)
	}

	switch cfg.Storage.Backend {
	case "memory":
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for the sqlite backend")
		}
	case "redis":
		if cfg.Storage.Redis.URL == "" {
			return errors.New("storage.redis.url is required for the redis backend")
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
		if cfg.Storage.S3.Region == "" {
			return errors.New("storage.s3.region is required for the s3 backend")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	default:
		return fmt.Errorf("storage.backend '%s' is not supported", cfg.Storage.Backend)
	}

	if cfg.Exchange.Binance.Enabled && cfg.Exchange.Binance.QuoteAsset == "" {
		return errors.New("exchange.binance.quote_asset is required when binance is enabled")
	}

	if cfg.AI.CircuitBreaker.FailureThreshold <= 0 {
		return errors.New("ai.circuit_breaker.failure_threshold must be greater than 0")
	}

	return nil
}

var s3BucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	return s3BucketPattern.MatchString(name) && !strings.Contains(name, "..")
}
