package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Interval != 800*time.Millisecond {
		t.Errorf("expected interval 800ms, got %s", cfg.Interval)
	}
	if cfg.Analyzer.Mode != ModeLocal {
		t.Errorf("expected local analyzer, got %s", cfg.Analyzer.Mode)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("expected addr :5000, got %s", cfg.Server.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Interval = 250 * time.Millisecond
	cfg.Analyzer.Mode = ModeRemote
	cfg.Theme = "ocean"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Interval != 250*time.Millisecond {
		t.Errorf("expected interval 250ms, got %s", loaded.Interval)
	}
	if loaded.Analyzer.Mode != ModeRemote || loaded.Theme != "ocean" {
		t.Errorf("unexpected config %+v", loaded)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "interval: 1.5s\nanalyzer:\n  url: http://example.test\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Interval != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", cfg.Interval)
	}
	if cfg.Analyzer.URL != "http://example.test" {
		t.Errorf("expected url override, got %s", cfg.Analyzer.URL)
	}
	if cfg.Analyzer.Timeout != DefaultAnalyzerTimeout {
		t.Errorf("expected default timeout, got %s", cfg.Analyzer.Timeout)
	}
}

func TestLoadOrDefault(t *testing.T) {
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Sample != DefaultSample {
		t.Errorf("expected default sample, got %s", cfg.Sample)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"unknown mode", func(c *Config) { c.Analyzer.Mode = "cloud" }},
		{"remote without url", func(c *Config) { c.Analyzer.Mode = ModeRemote; c.Analyzer.URL = "" }},
		{"zero timeout", func(c *Config) { c.Analyzer.Timeout = 0 }},
		{"negative burst", func(c *Config) { c.Server.Burst = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestGetSample(t *testing.T) {
	src, ok := GetSample("squares")
	if !ok || src == "" {
		t.Fatal("expected squares sample")
	}
	if _, ok := GetSample("nonexistent"); ok {
		t.Error("expected no sample for unknown name")
	}
	if _, ok := GetSample(DefaultSample); !ok {
		t.Error("default sample must exist")
	}
}

func TestListSamples(t *testing.T) {
	names := ListSamples()
	if len(names) != len(Samples) {
		t.Errorf("expected %d samples, got %d", len(Samples), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("samples not sorted: %v", names)
		}
	}
}
