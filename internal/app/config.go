package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	NetworkPath   string // reaction network file
	TemplatesPath string // directory of template files, optional
	OutputPath    string // directory for rendered output
	LanguagePaths []string
	Language      string // force one language for every template
	Label         string
	NoValidate    bool
	RateTablePath string

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.NetworkPath == "" {
		return nil, errors.New("NetworkPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
