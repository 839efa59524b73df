package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIKey          string
	BaseURL         string
	Symbols         []string
	OutputSize      string
	DBPath          string
	RawDataDir      string
	RequestInterval time.Duration
	Port            string
}

// Load reads configuration from the environment, honoring a local .env file
// when present. The request interval default matches the provider's free
// tier limit of 5 requests per minute.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIKey:          getEnv("ALPHAVANTAGE_API_KEY", ""),
		BaseURL:         getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		Symbols:         getEnvList("SYMBOLS", []string{"AAPL", "GOOG", "MSFT"}),
		OutputSize:      getEnv("OUTPUT_SIZE", "compact"),
		DBPath:          getEnv("DB_PATH", "stock_data.db"),
		RawDataDir:      getEnv("RAW_DATA_DIR", "raw_data"),
		RequestInterval: getEnvDuration("REQUEST_INTERVAL", 12*time.Second),
		Port:            getEnv("PORT", "8080"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
