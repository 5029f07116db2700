package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
		"SQLITE_PATH", "COLLECTION_DATABASE_URL",
		"SIMILARITY_THRESHOLD", "SIMILARITY_LIMIT", "SIMILARITY_SKETCH", "SIMILARITY_WEIGHTS_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Database.URL != "" {
		t.Errorf("expected empty database URL, got %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Database)
	}
	if !strings.HasSuffix(cfg.SQLite.Path, filepath.Join(".photo-dupes", "signatures.db")) {
		t.Errorf("unexpected default SQLite path %q", cfg.SQLite.Path)
	}
	if cfg.Similarity.Threshold != 0.9 {
		t.Errorf("expected default threshold 0.9, got %f", cfg.Similarity.Threshold)
	}
	if cfg.Similarity.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", cfg.Similarity.Limit)
	}
	if cfg.Similarity.SketchType() != fingerprint.Photo {
		t.Error("expected photo weights by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/dupes")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "10")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("COLLECTION_DATABASE_URL", "digikam:digikam@tcp(localhost:3306)/digikam")
	t.Setenv("SIMILARITY_THRESHOLD", "0.75")
	t.Setenv("SIMILARITY_LIMIT", "5")
	t.Setenv("SIMILARITY_SKETCH", "true")

	cfg := Load()

	if cfg.Database.URL != "postgres://u:p@localhost/dupes" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("expected 10 open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.SQLite.Path != "/tmp/x.db" {
		t.Errorf("unexpected SQLite path %q", cfg.SQLite.Path)
	}
	if cfg.Collection.DatabaseURL != "digikam:digikam@tcp(localhost:3306)/digikam" {
		t.Errorf("unexpected collection DSN %q", cfg.Collection.DatabaseURL)
	}
	if cfg.Similarity.Threshold != 0.75 || cfg.Similarity.Limit != 5 {
		t.Errorf("unexpected similarity config %+v", cfg.Similarity)
	}
	if cfg.Similarity.SketchType() != fingerprint.HandDrawn {
		t.Error("expected hand-drawn weights")
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"12", 12},
		{"invalid", 7},
		{"-100", 7},
		{"0", 7},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tc.value)
			if got := envInt("TEST_ENV_INT", 7); got != tc.want {
				t.Errorf("envInt(%q) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestEnvFraction(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"", 0.9},
		{"0", 0},
		{"1", 1},
		{"0.5", 0.5},
		{"1.5", 0.9},
		{"-0.1", 0.9},
		{"abc", 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_FRACTION", tc.value)
			if got := envFraction("TEST_ENV_FRACTION", 0.9); got != tc.want {
				t.Errorf("envFraction(%q) = %f, want %f", tc.value, got, tc.want)
			}
		})
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value      string
		defaultVal bool
		want       bool
	}{
		{"", true, true},
		{"", false, false},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"maybe", true, true},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL", tc.defaultVal); got != tc.want {
				t.Errorf("envBool(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestSimilarityWeights(t *testing.T) {
	cfg := SimilarityConfig{}
	w, err := cfg.Weights()
	if err != nil || w != nil {
		t.Errorf("no weights file should give nil weights, got %v, %v", w, err)
	}

	cfg.WeightsFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Weights(); err == nil {
		t.Error("expected error for missing weights file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("photo: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.WeightsFile = bad
	if _, err := cfg.Weights(); err == nil {
		t.Error("expected error for malformed weights file")
	}
}
