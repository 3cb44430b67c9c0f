package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the course search service
type Config struct {
	Crawl      CrawlConfig      `yaml:"crawl"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CrawlConfig holds crawl controller configuration
type CrawlConfig struct {
	StartURL      string `yaml:"start_url"`
	Domain        string `yaml:"domain"`
	MaxPages      int    `yaml:"max_pages"`
	Workers       int    `yaml:"workers"`
	CourseMapFile string `yaml:"course_map_file"`
	IndexFile     string `yaml:"index_file"`
}

// FetcherConfig holds page fetcher configuration
type FetcherConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// PolitenessConfig holds politeness manager configuration
type PolitenessConfig struct {
	EnableRobotsCheck   bool          `yaml:"enable_robots_check"`
	MinDelay            time.Duration `yaml:"min_delay"`
	RobotsCacheDuration time.Duration `yaml:"robots_cache_duration"`
	RobotsTimeout       time.Duration `yaml:"robots_timeout"`
	UserAgent           string        `yaml:"user_agent"`
}

// StoreConfig holds the relational store location
type StoreConfig struct {
	Path        string `yaml:"path"`
	CatalogFile string `yaml:"catalog_file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Crawl: CrawlConfig{
			StartURL:      "http://www.classes.cs.uchicago.edu/archive/2015/winter/12200-1/new.collegecatalog.uchicago.edu/index.html",
			Domain:        "classes.cs.uchicago.edu",
			MaxPages:      1000,
			Workers:       1,
			CourseMapFile: "course_map.json",
			IndexFile:     "catalog_index.csv",
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 30 * time.Second,
			UserAgent:      "CourseSearch-Crawler/1.0",
		},
		Politeness: PolitenessConfig{
			EnableRobotsCheck:   true,
			MinDelay:            0,
			RobotsCacheDuration: 24 * time.Hour,
			RobotsTimeout:       10 * time.Second,
			UserAgent:           "CourseSearch-Crawler/1.0",
		},
		Store: StoreConfig{
			Path: "data/course-information.sqlite3",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Crawl.StartURL = GetStringEnv("CRAWL_START_URL", cfg.Crawl.StartURL)
	cfg.Crawl.Domain = GetStringEnv("CRAWL_DOMAIN", cfg.Crawl.Domain)
	cfg.Crawl.MaxPages = GetIntEnv("CRAWL_MAX_PAGES", cfg.Crawl.MaxPages)
	cfg.Crawl.Workers = GetIntEnv("CRAWL_WORKERS", cfg.Crawl.Workers)
	cfg.Crawl.CourseMapFile = GetStringEnv("CRAWL_COURSE_MAP_FILE", cfg.Crawl.CourseMapFile)
	cfg.Crawl.IndexFile = GetStringEnv("CRAWL_INDEX_FILE", cfg.Crawl.IndexFile)

	cfg.Fetcher.RequestTimeout = GetDurationEnv("FETCHER_REQUEST_TIMEOUT", cfg.Fetcher.RequestTimeout)
	cfg.Fetcher.UserAgent = GetStringEnv("FETCHER_USER_AGENT", cfg.Fetcher.UserAgent)

	cfg.Politeness.EnableRobotsCheck = GetBoolEnv("POLITENESS_ENABLE_ROBOTS_CHECK", cfg.Politeness.EnableRobotsCheck)
	cfg.Politeness.MinDelay = GetDurationEnv("POLITENESS_MIN_DELAY", cfg.Politeness.MinDelay)
	cfg.Politeness.RobotsCacheDuration = GetDurationEnv("POLITENESS_ROBOTS_CACHE_DURATION", cfg.Politeness.RobotsCacheDuration)
	cfg.Politeness.RobotsTimeout = GetDurationEnv("POLITENESS_ROBOTS_TIMEOUT", cfg.Politeness.RobotsTimeout)
	cfg.Politeness.UserAgent = GetStringEnv("POLITENESS_USER_AGENT", cfg.Politeness.UserAgent)

	cfg.Store.Path = GetStringEnv("STORE_PATH", cfg.Store.Path)
	cfg.Store.CatalogFile = GetStringEnv("STORE_CATALOG_FILE", cfg.Store.CatalogFile)

	cfg.Server.Addr = GetStringEnv("SERVER_ADDR", cfg.Server.Addr)

	cfg.Logging.Level = GetStringEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = GetStringEnv("LOG_FORMAT", cfg.Logging.Format)
}

// Validate rejects configurations the crawler cannot run with
func (c *Config) Validate() error {
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0, got %d", c.Crawl.MaxPages)
	}
	if c.Crawl.Workers < 1 {
		return fmt.Errorf("crawl.workers must be >= 1, got %d", c.Crawl.Workers)
	}
	if c.Crawl.Domain == "" {
		return errors.New("crawl.domain must be set")
	}
	u, err := url.Parse(c.Crawl.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crawl.start_url %q is not an absolute http(s) URL", c.Crawl.StartURL)
	}
	if c.Politeness.MinDelay < 0 {
		return fmt.Errorf("politeness.min_delay must be >= 0, got %s", c.Politeness.MinDelay)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
