package shared

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultQuoteBaseURL   = "https://query1.finance.yahoo.com"
	DefaultFinnhubBaseURL = "https://finnhub.io/api/v1"
	DefaultProfileBaseURL = "https://finance.yahoo.com"
)

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Quote     ServiceConfig   `json:"quote"`
	Cache     CacheConfig     `json:"cache"`
	Ingestion IngestionConfig `json:"ingestion"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServiceConfig holds HTTP service configuration
type ServiceConfig struct {
	BaseURL            string        `json:"base_url"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	MaxRetryAttempts   int           `json:"max_retries"`
	RetryBackoff       time.Duration `json:"retry_backoff"`
}

// CacheConfig holds quote cache configuration
type CacheConfig struct {
	DefaultTTL  time.Duration `json:"default_ttl"`
	NegativeTTL time.Duration `json:"negative_ttl"`
	MaxSize     int           `json:"max_size"`
}

// IngestionConfig holds configuration of the calendar and profile scrapers
type IngestionConfig struct {
	Calendar         ServiceConfig `json:"calendar"`
	Profile          ServiceConfig `json:"profile"`
	ChunkDays        int           `json:"chunk_days"`
	StartDate        string        `json:"start_date"`
	EnableRenderer   bool          `json:"enable_renderer"`
	RenderTimeout    time.Duration `json:"render_timeout"`
	FirstTradeWindow time.Duration `json:"first_trade_window"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Quote: ServiceConfig{
			BaseURL:            DefaultQuoteBaseURL,
			HTTPRequestTimeout: 10 * time.Second,
			MaxRetryAttempts:   1,
			RetryBackoff:       500 * time.Millisecond,
		},
		Cache: CacheConfig{
			DefaultTTL:  5 * time.Minute,
			NegativeTTL: 1 * time.Minute,
			MaxSize:     1000,
		},
		Ingestion: IngestionConfig{
			Calendar: ServiceConfig{
				BaseURL:            DefaultFinnhubBaseURL,
				HTTPRequestTimeout: 30 * time.Second,
				RequestRateLimit:   1 * time.Second,
				MaxRetryAttempts:   2,
				RetryBackoff:       1 * time.Second,
			},
			Profile: ServiceConfig{
				BaseURL:            DefaultProfileBaseURL,
				HTTPRequestTimeout: 20 * time.Second,
				RequestRateLimit:   2 * time.Second,
				MaxRetryAttempts:   1,
				RetryBackoff:       1 * time.Second,
			},
			ChunkDays:        90,
			StartDate:        "2023-01-01",
			EnableRenderer:   true,
			RenderTimeout:    30 * time.Second,
			FirstTradeWindow: 14 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			ServiceName: "ipo-scorecard",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	applyServiceDefaults(&c.Quote, defaults.Quote, "Quote", logger)
	applyServiceDefaults(&c.Ingestion.Calendar, defaults.Ingestion.Calendar, "Ingestion.Calendar", logger)
	applyServiceDefaults(&c.Ingestion.Profile, defaults.Ingestion.Profile, "Ingestion.Profile", logger)

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}

	// Failed lookups must expire before successful ones
	if c.Cache.NegativeTTL <= 0 || c.Cache.NegativeTTL >= c.Cache.DefaultTTL {
		corrected := c.Cache.DefaultTTL / 5
		logger.WithFields(logrus.Fields{
			"negative_ttl": c.Cache.NegativeTTL,
			"default_ttl":  c.Cache.DefaultTTL,
			"corrected":    corrected,
		}).Warn("Cache.NegativeTTL must be positive and below Cache.DefaultTTL")
		c.Cache.NegativeTTL = corrected
	}

	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	if c.Ingestion.ChunkDays <= 0 {
		c.Ingestion.ChunkDays = defaults.Ingestion.ChunkDays
		logger.Debug("Applied default Ingestion.ChunkDays")
	}

	if _, err := time.Parse("2006-01-02", c.Ingestion.StartDate); err != nil {
		c.Ingestion.StartDate = defaults.Ingestion.StartDate
		logger.Debug("Applied default Ingestion.StartDate")
	}

	if c.Ingestion.RenderTimeout <= 0 {
		c.Ingestion.RenderTimeout = defaults.Ingestion.RenderTimeout
	}

	if c.Ingestion.FirstTradeWindow <= 0 {
		c.Ingestion.FirstTradeWindow = defaults.Ingestion.FirstTradeWindow
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
		logger.Debug("Applied default Logging.Format")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
	}
}

func applyServiceDefaults(target *ServiceConfig, defaults ServiceConfig, name string, logger *logrus.Entry) {
	if target.BaseURL == "" {
		target.BaseURL = defaults.BaseURL
		logger.Debugf("Applied default %s.BaseURL", name)
	}
	target.BaseURL = strings.TrimRight(target.BaseURL, "/")

	if target.HTTPRequestTimeout <= 0 {
		target.HTTPRequestTimeout = defaults.HTTPRequestTimeout
		logger.Debugf("Applied default %s.HTTPRequestTimeout", name)
	}

	if target.RequestRateLimit < 0 {
		target.RequestRateLimit = defaults.RequestRateLimit
	}

	if target.MaxRetryAttempts < 0 {
		target.MaxRetryAttempts = defaults.MaxRetryAttempts
	}

	if target.RetryBackoff < 0 {
		target.RetryBackoff = defaults.RetryBackoff
	}
}

// ConfigureLogging applies the logging section to the standard logrus logger
func ConfigureLogging(cfg LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logrus.WithFields(logrus.Fields{
		"component": "Logging",
		"level":     level.String(),
		"format":    cfg.Format,
		"service":   cfg.ServiceName,
	}).Debug("Logging configured")
}
