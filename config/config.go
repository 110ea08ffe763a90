package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadPolicy decides what happens to invalid records in the backing file
type LoadPolicy string

const (
	// LoadPolicyStrict fails the whole load on the first invalid record
	LoadPolicyStrict LoadPolicy = "strict"
	// LoadPolicyLenient skips invalid records with a warning
	LoadPolicyLenient LoadPolicy = "lenient"
)

type Config struct {
	ServerPort    string
	DataFile      string
	LoadPolicy    LoadPolicy
	MergedTickers []string
	RedisURL      string
	DatabaseURL   string
	AdminToken    string
	FinnhubAPIKey string
	PendingFile   string
	FailedFile    string
	BackupFile    string

	Unified *shared.UnifiedConfiguration
}

// ParseLoadPolicy maps a config value onto a policy, defaulting to strict
func ParseLoadPolicy(value string) LoadPolicy {
	switch LoadPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case LoadPolicyLenient:
		return LoadPolicyLenient
	case LoadPolicyStrict, "":
		return LoadPolicyStrict
	default:
		logrus.Warnf("Invalid LOAD_POLICY value: %s, using strict", value)
		return LoadPolicyStrict
	}
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return FromEnvironment()
}

// FromEnvironment builds the configuration from the process environment only
func FromEnvironment() *Config {
	unified := shared.NewDefaultUnifiedConfiguration()

	unified.Quote.BaseURL = getEnv("QUOTE_BASE_URL", unified.Quote.BaseURL)
	unified.Quote.HTTPRequestTimeout = getDuration("QUOTE_TIMEOUT", unified.Quote.HTTPRequestTimeout)
	unified.Quote.MaxRetryAttempts = getInt("QUOTE_MAX_RETRIES", unified.Quote.MaxRetryAttempts)

	unified.Cache.DefaultTTL = getDuration("QUOTE_TTL", unified.Cache.DefaultTTL)
	unified.Cache.NegativeTTL = getDuration("QUOTE_NEGATIVE_TTL", unified.Cache.NegativeTTL)
	unified.Cache.MaxSize = getInt("CACHE_MAX_SIZE", unified.Cache.MaxSize)

	unified.Ingestion.Calendar.BaseURL = getEnv("FINNHUB_BASE_URL", unified.Ingestion.Calendar.BaseURL)
	unified.Ingestion.Profile.BaseURL = getEnv("PROFILE_BASE_URL", unified.Ingestion.Profile.BaseURL)
	unified.Ingestion.StartDate = getEnv("INGEST_START_DATE", unified.Ingestion.StartDate)
	unified.Ingestion.EnableRenderer = getBool("INGEST_ENABLE_RENDERER", unified.Ingestion.EnableRenderer)

	unified.Logging.Level = getEnv("LOG_LEVEL", unified.Logging.Level)
	unified.Logging.Format = getEnv("LOG_FORMAT", unified.Logging.Format)

	unified.ValidateAndApplyDefaults()

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DataFile:      getEnv("DATA_FILE", "data/ipos.json"),
		LoadPolicy:    ParseLoadPolicy(getEnv("LOAD_POLICY", string(LoadPolicyStrict))),
		MergedTickers: splitList(getEnv("MERGED_TICKERS", "")),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),
		PendingFile:   getEnv("PENDING_FILE", "data/pending_ipos.json"),
		FailedFile:    getEnv("FAILED_FILE", "data/failed_ipos.json"),
		BackupFile:    getEnv("BACKUP_FILE", "data/ipos_backup.json"),
		Unified:       unified,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %v", key, value, fallback)
		return fallback
	}
	return duration
}

func getInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %t", key, value, fallback)
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
