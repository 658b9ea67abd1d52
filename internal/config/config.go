package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/orchid/internal/constants"
)

// ErrConfiguration is returned when a configuration value is missing or invalid.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Database   DatabaseConfig
	Classifier ClassifierConfig
	Media      MediaConfig
	Web        WebConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the phenotype HNSW index (optional, if empty index is rebuilt on startup)
}

// ClassifierConfig points the web application at a trained network.
type ClassifierConfig struct {
	TrainerConfig string  // YAML file with feature extraction parameters and class query
	ANN           string  // trained network file
	TaxaDB        string  // taxonomy database (SQLite path or mysql:// DSN)
	MaxError      float64 // maximum squared error for a positive classification
}

// Enabled reports whether all files needed for identification are configured.
func (c *ClassifierConfig) Enabled() bool {
	return c.TrainerConfig != "" && c.ANN != "" && c.TaxaDB != ""
}

type MediaConfig struct {
	Dir string // uploaded photos and thumbnails (defaults to ./media)
}

type WebConfig struct {
	Host           string   // listen host (defaults to 0.0.0.0)
	Port           int      // listen port (defaults to 8080)
	SessionSecret  string   // HMAC key for session cookies
	AllowedOrigins []string // CORS origins besides localhost
}

type LogConfig struct {
	Level string // debug, info, warn, error (defaults to info)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Classifier: ClassifierConfig{
			TrainerConfig: os.Getenv("ORCHID_TRAINER_CONFIG"),
			ANN:           os.Getenv("ORCHID_ANN"),
			TaxaDB:        os.Getenv("ORCHID_TAXA_DB"),
			MaxError:      envFloat("ORCHID_MAX_ERROR", constants.DefaultMaxError),
		},
		Media: MediaConfig{
			Dir: envString("ORCHID_MEDIA_DIR", "media"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
	}
}
