package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

type Config struct {
	Database   DatabaseConfig
	SQLite     SQLiteConfig
	Collection CollectionConfig
	Similarity SimilarityConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, empty selects SQLite
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SQLiteConfig struct {
	Path string // defaults to ~/.photo-dupes/signatures.db
}

type CollectionConfig struct {
	DatabaseURL string // MariaDB DSN of a digiKam collection (e.g. digikam:digikam@tcp(mariadb:3306)/digikam)
}

type SimilarityConfig struct {
	Threshold   float64 // minimum score for duplicates and threshold queries (default 0.9)
	Limit       int     // best-match result count (default 20)
	Sketch      bool    // use the hand-drawn weight table
	WeightsFile string  // optional YAML file replacing the built-in weight tables
}

// SketchType returns the weight table selected by Sketch.
func (c *SimilarityConfig) SketchType() fingerprint.SketchType {
	if c.Sketch {
		return fingerprint.HandDrawn
	}
	return fingerprint.Photo
}

// Weights loads WeightsFile, or returns nil for the built-in tables.
func (c *SimilarityConfig) Weights() (*fingerprint.Weights, error) {
	if c.WeightsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.WeightsFile)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	w, err := fingerprint.ParseWeights(data)
	if err != nil {
		return nil, fmt.Errorf("parse weights file %s: %w", c.WeightsFile, err)
	}
	return w, nil
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

// envFraction reads a float in [0, 1], falling back to defaultVal.
func envFraction(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envBool reads a boolean ("1", "true", "yes", ...), falling back to defaultVal.
func envBool(key string, defaultVal bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "1", "t", "true", "y", "yes", "on":
		return true
	case "0", "f", "false", "n", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".photo-dupes", "signatures.db")
	}
	return filepath.Join(home, ".photo-dupes", "signatures.db")
}

func Load() *Config {
	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = defaultSQLitePath()
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SQLite: SQLiteConfig{
			Path: sqlitePath,
		},
		Collection: CollectionConfig{
			DatabaseURL: os.Getenv("COLLECTION_DATABASE_URL"),
		},
		Similarity: SimilarityConfig{
			Threshold:   envFraction("SIMILARITY_THRESHOLD", 0.9),
			Limit:       envInt("SIMILARITY_LIMIT", 20),
			Sketch:      envBool("SIMILARITY_SKETCH", false),
			WeightsFile: os.Getenv("SIMILARITY_WEIGHTS_FILE"),
		},
	}
}
