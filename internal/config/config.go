// Package config provides configuration loading and validation for the CLI and servers.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonathan/weixin-spider/internal/browser"
	"github.com/jonathan/weixin-spider/internal/extract"
	"github.com/jonathan/weixin-spider/internal/fetch"
	"github.com/jonathan/weixin-spider/internal/tools"
)

// EnvPrefix prefixes every environment override, e.g. WEIXIN_SPIDER_CRAWL_WAIT_SECONDS.
const EnvPrefix = "WEIXIN_SPIDER"

// DefaultConfigName is looked up in the working directory when no path is given.
const DefaultConfigName = "weixin_spider"

// Config is the full application configuration.
type Config struct {
	Backend      string             `yaml:"backend" mapstructure:"backend" validate:"oneof=auto chrome agent-browser static"`
	AgentBrowser AgentBrowserConfig `yaml:"agent_browser" mapstructure:"agent_browser"`
	Chrome       ChromeConfig       `yaml:"chrome" mapstructure:"chrome"`
	Crawl        CrawlConfig        `yaml:"crawl" mapstructure:"crawl"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// AgentBrowserConfig configures the agent-browser CLI backend.
type AgentBrowserConfig struct {
	Bin                string `yaml:"bin" mapstructure:"bin" validate:"required"`
	Session            string `yaml:"session" mapstructure:"session" validate:"required"`
	CommandTimeoutSecs int    `yaml:"command_timeout_secs" mapstructure:"command_timeout_secs" validate:"gte=1"`
}

// ChromeConfig configures the headless Chrome backend.
type ChromeConfig struct {
	ExecPath            string `yaml:"exec_path" mapstructure:"exec_path"`
	Headless            bool   `yaml:"headless" mapstructure:"headless"`
	WindowWidth         int    `yaml:"window_width" mapstructure:"window_width" validate:"gte=0"`
	WindowHeight        int    `yaml:"window_height" mapstructure:"window_height" validate:"gte=0"`
	PageLoadTimeoutSecs int    `yaml:"page_load_timeout_secs" mapstructure:"page_load_timeout_secs" validate:"gte=1"`
}

// CrawlConfig configures extraction.
type CrawlConfig struct {
	DownloadImages   bool     `yaml:"download_images" mapstructure:"download_images"`
	WaitSeconds      int      `yaml:"wait_seconds" mapstructure:"wait_seconds" validate:"gte=1,lte=120"`
	SettleMillis     int      `yaml:"settle_millis" mapstructure:"settle_millis" validate:"gte=0"`
	OutputDir        string   `yaml:"output_dir" mapstructure:"output_dir" validate:"required"`
	ImageTimeoutSecs int      `yaml:"image_timeout_secs" mapstructure:"image_timeout_secs" validate:"gte=1"`
	AllowedHosts     []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts" validate:"min=1,dive,required"`
	ChallengeMarkers []string `yaml:"challenge_markers" mapstructure:"challenge_markers" validate:"dive,required"`
	MaxBatch         int      `yaml:"max_batch" mapstructure:"max_batch" validate:"gte=1,lte=100"`
	CacheTTLSecs     int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// envAliases maps config keys to the plain environment names older
// deployments already set.
var envAliases = map[string]string{
	"crawl.download_images": "DOWNLOAD_IMAGES",
	"crawl.wait_seconds":    "WAIT_TIME",
	"crawl.output_dir":      "OUTPUT_DIR",
	"agent_browser.bin":     "AGENT_BROWSER_BIN",
}

func setDefaults(v *viper.Viper) {
	rules := extract.DefaultRules()

	v.SetDefault("backend", browser.BackendAuto)
	v.SetDefault("agent_browser.bin", "agent-browser")
	v.SetDefault("agent_browser.session", "weixin_spider")
	v.SetDefault("agent_browser.command_timeout_secs", 60)
	v.SetDefault("chrome.exec_path", "")
	v.SetDefault("chrome.headless", true)
	v.SetDefault("chrome.window_width", 1920)
	v.SetDefault("chrome.window_height", 1080)
	v.SetDefault("chrome.page_load_timeout_secs", 30)
	v.SetDefault("crawl.download_images", true)
	v.SetDefault("crawl.wait_seconds", int(extract.DefaultWait/time.Second))
	v.SetDefault("crawl.settle_millis", int(rules.SettleDelay/time.Millisecond))
	v.SetDefault("crawl.output_dir", "./downloads")
	v.SetDefault("crawl.image_timeout_secs", int(extract.DefaultImageTimeout/time.Second))
	v.SetDefault("crawl.allowed_hosts", rules.AllowedHosts)
	v.SetDefault("crawl.challenge_markers", rules.ChallengeMarkers)
	v.SetDefault("crawl.max_batch", 10)
	v.SetDefault("crawl.cache_ttl_secs", 300)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. An empty path looks for
// weixin_spider.yaml in the working directory and tolerates its absence;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", alias)
		}
	}

	setDefaults(v)

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

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Errorf("config error: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("config error: %w", err)
}

// Rules returns the extraction rules with configured overrides applied.
func (c *Config) Rules() extract.Rules {
	rules := extract.DefaultRules()
	rules.AllowedHosts = c.Crawl.AllowedHosts
	rules.ChallengeMarkers = c.Crawl.ChallengeMarkers
	rules.SettleDelay = time.Duration(c.Crawl.SettleMillis) * time.Millisecond
	return rules
}

// BrowserOptions returns the backend selection and settings.
func (c *Config) BrowserOptions() browser.Options {
	chrome := browser.DefaultChromeOptions()
	chrome.ExecPath = c.Chrome.ExecPath
	chrome.Headless = c.Chrome.Headless
	chrome.WindowWidth = c.Chrome.WindowWidth
	chrome.WindowHeight = c.Chrome.WindowHeight
	chrome.PageLoadTimeout = time.Duration(c.Chrome.PageLoadTimeoutSecs) * time.Second

	static := fetch.DefaultOptions()
	static.Timeout = chrome.PageLoadTimeout

	return browser.Options{
		Backend:         c.Backend,
		Chrome:          chrome,
		AgentBrowserBin: c.AgentBrowser.Bin,
		AgentBrowser: browser.AgentBrowserOptions{
			Session:         c.AgentBrowser.Session,
			CommandTimeout:  time.Duration(c.AgentBrowser.CommandTimeoutSecs) * time.Second,
			PageLoadTimeout: chrome.PageLoadTimeout,
		},
		Static: static,
	}
}

// OutputDir returns the absolute image output root.
func (c *Config) OutputDir() string {
	abs, err := filepath.Abs(c.Crawl.OutputDir)
	if err != nil {
		return c.Crawl.OutputDir
	}
	return abs
}

// ImageTimeout returns the per-image download bound.
func (c *Config) ImageTimeout() time.Duration {
	return time.Duration(c.Crawl.ImageTimeoutSecs) * time.Second
}

// ServiceConfig returns the tool service settings.
func (c *Config) ServiceConfig() tools.Config {
	return tools.Config{
		DownloadImages: c.Crawl.DownloadImages,
		DefaultWait:    time.Duration(c.Crawl.WaitSeconds) * time.Second,
		CacheTTL:       time.Duration(c.Crawl.CacheTTLSecs) * time.Second,
		MaxBatch:       c.Crawl.MaxBatch,
	}
}

// NewLogger builds a zap logger writing to stderr. Stdout is left free for
// command output and the MCP stdio transport.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(parsed)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
