package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAssignmentSize  = 5
	defaultLeaderboardSize = 10
	defaultEpochWindow     = time.Hour
	defaultQuestionTTL     = 10 * time.Minute
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		AssignmentSize int    `yaml:"assignmentSize"`
		EpochWindow    string `yaml:"epochWindow"`
		CatalogPath    string `yaml:"catalogPath"`
		TTL            string `yaml:"ttl"`
	} `yaml:"quiz"`
	Leaderboard struct {
		Size int `yaml:"size"`
	} `yaml:"leaderboard"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads YAML config from path and fills in defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Quiz.AssignmentSize == 0 {
		c.Quiz.AssignmentSize = defaultAssignmentSize
	}
	if c.Leaderboard.Size == 0 {
		c.Leaderboard.Size = defaultLeaderboardSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Quiz.AssignmentSize < 1 {
		return fmt.Errorf("quiz.assignmentSize must be at least 1, got %d", c.Quiz.AssignmentSize)
	}
	if c.Leaderboard.Size < 1 {
		return fmt.Errorf("leaderboard.size must be at least 1, got %d", c.Leaderboard.Size)
	}
	if c.Quiz.EpochWindow != "" {
		d, err := time.ParseDuration(c.Quiz.EpochWindow)
		if err != nil {
			return fmt.Errorf("quiz.epochWindow: %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("quiz.epochWindow must be at least 1s, got %s", d)
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// EpochWindow returns the configured window length.
func (c Config) EpochWindow() time.Duration {
	return TTLDuration(c.Quiz.EpochWindow, defaultEpochWindow)
}

// QuestionTTL returns how long a loaded catalog is cached.
func (c Config) QuestionTTL() time.Duration {
	return TTLDuration(c.Quiz.TTL, defaultQuestionTTL)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
