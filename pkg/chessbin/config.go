package chessbin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the corpus build settings read from config.json.
type Config struct {
	WindowSize int     `json:"window_size"`
	TrainRatio float64 `json:"train_ratio"`
	Seed       uint64  `json:"seed"`
	Workers    int     `json:"workers"`
	LogEvery   int     `json:"log_every"`
	Encoding   string  `json:"encoding"`
}

// DefaultConfig returns the settings used when config.json is absent.
func DefaultConfig() Config {
	return Config{
		WindowSize: 5,
		TrainRatio: DefaultTrainRatio,
		Workers:    1,
		LogEvery:   1000,
		Encoding:   EncodingAuto,
	}
}

// ConfigFileName is the file FindConfigPath looks for.
const ConfigFileName = "config.json"

// FindConfigPath returns the nearest config.json in dir or one of its
// parents.
func FindConfigPath(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for start := dir; ; {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in %s or its parents: %w", ConfigFileName, start, os.ErrNotExist)
		}
		dir = parent
	}
}

// LoadConfig reads path and fills unset fields with defaults. A train_ratio
// of 0 in the file means "unset"; use -ratio on the command line to route
// everything to eval.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.TrainRatio <= 0 {
		c.TrainRatio = def.TrainRatio
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.LogEvery <= 0 {
		c.LogEvery = def.LogEvery
	}
	if c.Encoding == "" {
		c.Encoding = def.Encoding
	}
	return c
}

// Validate reports settings no run can use.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be >= 1, got %d", c.WindowSize)
	}
	if c.TrainRatio < 0 || c.TrainRatio > 1 {
		return fmt.Errorf("train_ratio must be within [0, 1], got %v", c.TrainRatio)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}
