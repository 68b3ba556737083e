package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is loaded once at process start and passed by reference into each
// stage. There is no global settings object.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Fetch     FetchConfig             `mapstructure:"fetch"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Pipeline  PipelineConfig          `mapstructure:"pipeline"`
	Matching  MatchingConfig          `mapstructure:"matching"`
	Fees      FeesConfig              `mapstructure:"fees"`
	Report    ReportConfig            `mapstructure:"report"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Redis     RedisConfig             `mapstructure:"redis"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Suppliers map[string]SupplierSite `mapstructure:"suppliers"`
	Amazon    AmazonConfig            `mapstructure:"amazon"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	RateLimitMin time.Duration `mapstructure:"rate_limit_min"`
	RateLimitMax time.Duration `mapstructure:"rate_limit_max"`
	UserAgents   []string      `mapstructure:"user_agents"`
	ProxyURL     string        `mapstructure:"proxy_url"`
}

type CacheConfig struct {
	Dir           string        `mapstructure:"dir"`
	AmazonTTL     time.Duration `mapstructure:"amazon_ttl"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	FlushBatch    int           `mapstructure:"flush_batch"`
}

type PipelineConfig struct {
	MaxProducts            int           `mapstructure:"max_products"`
	MaxProductsPerCategory int           `mapstructure:"max_products_per_category"`
	ChunkSize              int           `mapstructure:"chunk_size"`
	StateFile              string        `mapstructure:"state_file"`
	ChunkPause             time.Duration `mapstructure:"chunk_pause"`
}

type MatchingConfig struct {
	TitleThreshold float64 `mapstructure:"title_threshold"`
	BrandBonus     float64 `mapstructure:"brand_bonus"`
}

type FeesConfig struct {
	ReferralFeeRate       float64 `mapstructure:"referral_fee_rate"`
	FulfillmentFeeMinimum float64 `mapstructure:"fulfillment_fee_minimum"`
	PrepFeePerUnit        float64 `mapstructure:"prep_fee_per_unit"`
	MinROI                float64 `mapstructure:"min_roi"`
	MinProfit             float64 `mapstructure:"min_profit"`
}

type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SupplierSite describes one supplier storefront: its category pages and the
// CSS selectors used to pull product fields out of listing pages.
type SupplierSite struct {
	Name         string            `mapstructure:"name"`
	BaseURL      string            `mapstructure:"base_url"`
	CategoryURLs []string          `mapstructure:"category_urls"`
	Selectors    SupplierSelectors `mapstructure:"selectors"`
}

type SupplierSelectors struct {
	ProductCard string `mapstructure:"product_card"`
	Title       string `mapstructure:"title"`
	Price       string `mapstructure:"price"`
	URL         string `mapstructure:"url"`
	EAN         string `mapstructure:"ean"`
	Image       string `mapstructure:"image"`
	NextPage    string `mapstructure:"next_page"`
}

type AmazonConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SearchPath string `mapstructure:"search_path"`
}

// Load reads config/system_config.json (or an explicit path), applies
// SFBA_-prefixed environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay", 5*time.Second)
	v.SetDefault("fetch.rate_limit_min", 2*time.Second)
	v.SetDefault("fetch.rate_limit_max", 8*time.Second)
	v.SetDefault("fetch.user_agents", defaultUserAgents())

	v.SetDefault("cache.dir", "OUTPUTS/CACHE")
	v.SetDefault("cache.amazon_ttl", 336*time.Hour)
	v.SetDefault("cache.flush_interval", 2*time.Minute)
	v.SetDefault("cache.flush_batch", 25)

	v.SetDefault("pipeline.max_products", 0)
	v.SetDefault("pipeline.max_products_per_category", 0)
	v.SetDefault("pipeline.chunk_size", 3)
	v.SetDefault("pipeline.state_file", "OUTPUTS/CACHE/processing_state.json")
	v.SetDefault("pipeline.chunk_pause", 10*time.Second)

	v.SetDefault("matching.title_threshold", 0.45)
	v.SetDefault("matching.brand_bonus", 0.15)

	v.SetDefault("fees.referral_fee_rate", 0.15)
	v.SetDefault("fees.fulfillment_fee_minimum", 2.41)
	v.SetDefault("fees.prep_fee_per_unit", 0.0)
	v.SetDefault("fees.min_roi", 0.3)
	v.SetDefault("fees.min_profit", 1.0)

	v.SetDefault("report.output_dir", "OUTPUTS/REPORTS")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "simpler_fba")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("amazon.base_url", "https://www.amazon.co.uk")
	v.SetDefault("amazon.search_path", "/s")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("system_config")
		v.SetConfigType("json")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SFBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults plus env carry the tool.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Fetch.RateLimitMin > c.Fetch.RateLimitMax {
		return fmt.Errorf("fetch.rate_limit_min cannot be greater than fetch.rate_limit_max")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries cannot be negative")
	}
	if c.Cache.AmazonTTL <= 0 {
		return fmt.Errorf("cache.amazon_ttl must be positive")
	}
	if c.Cache.FlushBatch < 1 {
		return fmt.Errorf("cache.flush_batch must be at least 1")
	}
	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("pipeline.chunk_size must be at least 1")
	}
	if c.Fees.ReferralFeeRate < 0 || c.Fees.ReferralFeeRate >= 1 {
		return fmt.Errorf("fees.referral_fee_rate must be in [0, 1)")
	}
	if c.Matching.TitleThreshold < 0 || c.Matching.TitleThreshold > 1 {
		return fmt.Errorf("matching.title_threshold must be in [0, 1]")
	}
	return nil
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
