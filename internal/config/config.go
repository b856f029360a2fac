package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries every tunable the ETL needs. It is loaded once in main and
// passed explicitly into the orchestrator and the collaborators; nothing in
// this repo reads the environment after startup.
type Config struct {
	FX        FXConfig
	Ingestion IngestionConfig
	GCP       GCPConfig
	Logger    LoggerConfig
	CDC       CDCConfig
}

type FXConfig struct {
	APIKey           string
	BaseCurrency     string
	TargetCurrencies []string
	CachePath        string
}

type IngestionConfig struct {
	RawDataPath       string
	ProcessedDataPath string
}

type GCPConfig struct {
	ProjectID  string
	DatasetID  string
	BucketName string
}

type LoggerConfig struct {
	Level string
}

type CDCConfig struct {
	SplitRatio float64
}

func Load() (*Config, error) {
	cfg := &Config{
		FX: FXConfig{
			APIKey:           getEnvString("EXCHANGE_RATE_API_KEY", ""),
			BaseCurrency:     getEnvString("BASE_CURRENCY", "GBP"),
			TargetCurrencies: getEnvStringSlice("TARGET_CURRENCIES", []string{"USD", "EUR", "MAD"}),
			CachePath:        getEnvString("FX_CACHE_PATH", "data/processed/fx_cache.json"),
		},
		Ingestion: IngestionConfig{
			RawDataPath:       getEnvString("RAW_DATA_PATH", "data/raw"),
			ProcessedDataPath: getEnvString("PROCESSED_DATA_PATH", "data/processed"),
		},
		GCP: GCPConfig{
			ProjectID:  getEnvString("GCP_PROJECT_ID", ""),
			DatasetID:  getEnvString("GCP_DATASET_ID", "retail_dw"),
			BucketName: getEnvString("GCP_BUCKET_NAME", ""),
		},
		Logger: LoggerConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
		CDC: CDCConfig{
			SplitRatio: getEnvFloat("CDC_SPLIT_RATIO", 0.8),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.FX.BaseCurrency == "" {
		return fmt.Errorf("base currency cannot be empty")
	}

	for _, cur := range c.FX.TargetCurrencies {
		if len(cur) != 3 {
			return fmt.Errorf("target currency %q is not a 3-letter code", cur)
		}
	}

	if c.CDC.SplitRatio <= 0 || c.CDC.SplitRatio >= 1 {
		return fmt.Errorf("CDC split ratio must be in (0, 1), got %v", c.CDC.SplitRatio)
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
