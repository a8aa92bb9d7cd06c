package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen          string  `yaml:"listen"`
	Logger          Logger  `yaml:"logger"`
	Storage         Storage `yaml:"storage"`
	Auth            Auth    `yaml:"auth"`
	Redis           Redis   `yaml:"redis"`
	Judge           Judge   `yaml:"judge"`
	Cache           Cache   `yaml:"cache"`
	Reset           Reset   `yaml:"reset"`
	CORS            CORS    `yaml:"cors"`
	SubmissionLimit int     `yaml:"submission_limit"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

type JWT struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// Redis is optional; when Addr is empty the server falls back to the
// in-process cache.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Judge struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	QueueSize int    `yaml:"queue_size"`
}

type Cache struct {
	CompletionTTLHours    int `yaml:"completion_ttl_hours"`
	HotProblemsTTLMinutes int `yaml:"hot_problems_ttl_minutes"`
}

type Reset struct {
	TokenExpiryHours int `yaml:"token_expiry_hours"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.SubmissionLimit == 0 {
		cfg.SubmissionLimit = 5
	}
	if cfg.SubmissionLimit < 0 {
		return nil, fmt.Errorf("submission_limit must be positive, got %d", cfg.SubmissionLimit)
	}
	if cfg.Judge.QueueSize == 0 {
		cfg.Judge.QueueSize = 1024
	}
	if cfg.Cache.CompletionTTLHours == 0 {
		cfg.Cache.CompletionTTLHours = 24
	}
	if cfg.Cache.HotProblemsTTLMinutes == 0 {
		cfg.Cache.HotProblemsTTLMinutes = 15
	}
	if cfg.Reset.TokenExpiryHours == 0 {
		cfg.Reset.TokenExpiryHours = 24
	}
	if cfg.Auth.JWT.ExpireHours == 0 {
		cfg.Auth.JWT.ExpireHours = 72
	}

	return &cfg, nil
}
