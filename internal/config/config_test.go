package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "ORCHID_MEDIA_DIR", "ORCHID_MAX_ERROR", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected MaxOpenConns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected MaxIdleConns 5, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Media.Dir != "media" {
		t.Errorf("expected media dir 'media', got '%s'", cfg.Media.Dir)
	}
	if cfg.Classifier.MaxError != 0.00001 {
		t.Errorf("expected max error 0.00001, got %g", cfg.Classifier.MaxError)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/orchid")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("ORCHID_MAX_ERROR", "0.01")
	t.Setenv("ORCHID_TRAINER_CONFIG", "orchids.yml")
	t.Setenv("ORCHID_ANN", "orchids.ann")
	t.Setenv("ORCHID_TAXA_DB", "photos.db")

	cfg := Load()

	if cfg.Database.URL != "postgres://localhost/orchid" {
		t.Errorf("unexpected database URL '%s'", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 7 {
		t.Errorf("expected MaxOpenConns 7, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Classifier.MaxError != 0.01 {
		t.Errorf("expected max error 0.01, got %g", cfg.Classifier.MaxError)
	}
	if !cfg.Classifier.Enabled() {
		t.Error("expected classifier to be enabled")
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		value    string
		expected int
	}{
		{"", 3},
		{"abc", 3},
		{"-4", 3},
		{"0", 3},
		{"12", 12},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("ORCHID_TEST_INT", tc.value)
			if got := envInt("ORCHID_TEST_INT", 3); got != tc.expected {
				t.Errorf("envInt(%q) = %d; want %d", tc.value, got, tc.expected)
			}
		})
	}
}

func TestLoad_Web(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_HOST", "")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://orchid.example.com, ,https://b.example.com")

	cfg := Load()

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected default host, got '%s'", cfg.Web.Host)
	}
	want := []string{"https://orchid.example.com", "https://b.example.com"}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[0] != want[0] || cfg.Web.AllowedOrigins[1] != want[1] {
		t.Errorf("expected origins %v, got %v", want, cfg.Web.AllowedOrigins)
	}
}

func TestClassifierConfig_Enabled(t *testing.T) {
	cfg := ClassifierConfig{TrainerConfig: "a.yml", ANN: "a.ann"}
	if cfg.Enabled() {
		t.Error("expected classifier without taxonomy database to be disabled")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadTrainer_MissingFile(t *testing.T) {
	_, err := LoadTrainer(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("a missing file is an I/O error, not a configuration error")
	}
}
