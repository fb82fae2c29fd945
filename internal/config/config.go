package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	storaged "github.com/i5heu/ouroboros-storaged"
	"github.com/i5heu/ouroboros-storaged/pkg/logging"
)

type Config struct {
	Path               string        `yaml:"path"`
	MinimumFreeGB      uint          `yaml:"minimumFreeGB"`
	GracePeriod        time.Duration `yaml:"gracePeriod"`
	SyncWrites         bool          `yaml:"syncWrites"`
	ValueLogFileSizeMB int64         `yaml:"valueLogFileSizeMB"`
	LogLevel           string        `yaml:"logLevel"`
}

// Load reads a YAML config file. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse(nil)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var config Config
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if config.Path == "" {
		config.Path = "./data"
	}

	if config.GracePeriod < 0 {
		return Config{}, fmt.Errorf("gracePeriod must not be negative: %s", config.GracePeriod)
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config, nil
}

// Storaged turns the file config into the options storaged.Open takes.
func (c Config) Storaged() storaged.Config {
	return storaged.Config{
		Paths:            []string{c.Path},
		MinimumFreeGB:    c.MinimumFreeGB,
		SyncWrites:       c.SyncWrites,
		ValueLogFileSize: c.ValueLogFileSizeMB * 1024 * 1024,
		GracePeriod:      c.GracePeriod,
		Logger:           logging.New(os.Stderr, logging.ParseLevel(c.LogLevel)),
	}
}
