package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	YouTube YouTubeConfig `yaml:"youtube" mapstructure:"youtube"`
	Proxy   ProxyConfig   `yaml:"proxy" mapstructure:"proxy"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Find    FindConfig    `yaml:"find" mapstructure:"find"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ProxyConfig configures the rotating proxy pool.
type ProxyConfig struct {
	File               string `yaml:"file" mapstructure:"file"`
	RotationInterval   int    `yaml:"rotation_interval" mapstructure:"rotation_interval"`
	BlacklistThreshold int    `yaml:"blacklist_threshold" mapstructure:"blacklist_threshold"`
}

// ScrapeConfig configures page extraction.
type ScrapeConfig struct {
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// FindConfig holds discovery defaults, overridable per run by flags.
type FindConfig struct {
	MaxResults     int    `yaml:"max_results" mapstructure:"max_results"`
	RegionCode     string `yaml:"region_code" mapstructure:"region_code"`
	MinSubscribers int64  `yaml:"min_subscribers" mapstructure:"min_subscribers"`
	SampleVideos   int    `yaml:"sample_videos" mapstructure:"sample_videos"`
}

// OutputConfig configures the results directory.
type OutputConfig struct {
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one, even if zero: AutomaticEnv only
	// resolves SCOUT_* vars for keys viper already knows about.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "scout.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.rate_limit", 10.0)
	v.SetDefault("proxy.file", "")
	v.SetDefault("proxy.rotation_interval", 4)
	v.SetDefault("proxy.blacklist_threshold", 5)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.rate_limit", 1.0)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("find.max_results", 20)
	v.SetDefault("find.region_code", "")
	v.SetDefault("find.min_subscribers", 0)
	v.SetDefault("find.sample_videos", 3)
	v.SetDefault("output.results_dir", "results")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// RequireAPIKey fails when no YouTube API key is configured. Discovery
// cannot run without one; explicit scrapes can.
func (c *Config) RequireAPIKey() error {
	if c.YouTube.APIKey == "" {
		return eris.New("config: youtube.api_key is required (set SCOUT_YOUTUBE_API_KEY or youtube.api_key in config.yaml)")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
