package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval        = 800 * time.Millisecond
	DefaultAnalyzerMode    = ModeLocal
	DefaultAnalyzerURL     = "http://localhost:5000"
	DefaultAnalyzerTimeout = 5 * time.Second
	DefaultMaxSourceSize   = 1 << 20
	DefaultServerAddr      = ":5000"
	DefaultRate            = 20.0
	DefaultBurst           = 40
	DefaultTheme           = "midnight"
	DefaultSample          = "hello"
	DefaultLogLevel        = "info"
)

// Analyzer modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Interval time.Duration  `yaml:"interval"`
	Theme    string         `yaml:"theme"`
	Sample   string         `yaml:"sample"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type AnalyzerConfig struct {
	// Mode is "local" to analyze in process or "remote" to call URL.
	Mode    string        `yaml:"mode"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	MaxSize int           `yaml:"max_size"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Rate is requests per second allowed per server; zero disables limiting.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "text" or "json"; empty picks text on a terminal.
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Theme:    DefaultTheme,
		Sample:   DefaultSample,
		Analyzer: AnalyzerConfig{
			Mode:    DefaultAnalyzerMode,
			URL:     DefaultAnalyzerURL,
			Timeout: DefaultAnalyzerTimeout,
			MaxSize: DefaultMaxSourceSize,
		},
		Server: ServerConfig{
			Addr:  DefaultServerAddr,
			Rate:  DefaultRate,
			Burst: DefaultBurst,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "loopviz", "config.yaml")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or the default path when path is empty. A
// missing default file is not an error; a missing explicit file is.
func LoadOrDefault(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalid, c.Interval))
	}
	switch c.Analyzer.Mode {
	case ModeLocal:
	case ModeRemote:
		if c.Analyzer.URL == "" {
			errs = append(errs, fmt.Errorf("%w: remote analyzer needs a url", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown analyzer mode %q", ErrInvalid, c.Analyzer.Mode))
	}
	if c.Analyzer.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: analyzer timeout must be positive", ErrInvalid))
	}
	if c.Server.Rate < 0 || c.Server.Burst < 0 {
		errs = append(errs, fmt.Errorf("%w: rate and burst must not be negative", ErrInvalid))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}
