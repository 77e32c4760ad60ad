package workspacefinder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// LoadConfig loads briefcase.yaml from the workspace root and applies defaults.
func LoadConfig(root string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	path := filepath.Join(root, ConfigFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, &domain.OpError{
			Op:   "workspacefinder.loadconfig",
			Kind: domain.KindNotFound,
			Path: path,
			Err:  err,
		}
	}

	var y yamlConfig
	if err := yaml.Unmarshal(b, &y); err != nil {
		return cfg, &domain.OpError{
			Op:   "workspacefinder.loadconfig",
			Kind: domain.KindInvalidConfig,
			Path: path,
			Err:  err,
		}
	}

	// Apply parsed values on top of defaults.
	bc := y.Briefcase
	if strings.TrimSpace(bc.StorageDir) != "" {
		cfg.StorageDir = bc.StorageDir
	}
	if bc.Pull.BatchSize != nil {
		if *bc.Pull.BatchSize <= 0 {
			return cfg, invalid(path, fmt.Errorf("pull.batch_size must be positive, got %d", *bc.Pull.BatchSize))
		}
		cfg.Pull.BatchSize = *bc.Pull.BatchSize
	}
	if bc.Pull.IncludeIncomplete != nil {
		cfg.Pull.IncludeIncomplete = *bc.Pull.IncludeIncomplete
	}
	if bc.Pull.Parallel != nil && *bc.Pull.Parallel > 0 {
		cfg.Pull.Parallel = *bc.Pull.Parallel
	}
	if bc.Push.Force != nil {
		cfg.Push.Force = *bc.Push.Force
	}
	if bc.Push.Parallel != nil && *bc.Push.Parallel > 0 {
		cfg.Push.Parallel = *bc.Push.Parallel
	}
	if bc.HTTP.Timeout != "" {
		d, err := time.ParseDuration(bc.HTTP.Timeout)
		if err != nil {
			return cfg, invalid(path, fmt.Errorf("http.timeout: %w", err))
		}
		cfg.HTTP.Timeout = d
	}
	if bc.HTTP.MaxIdleConnsPerHost != nil {
		cfg.HTTP.MaxIdleConnsPerHost = *bc.HTTP.MaxIdleConnsPerHost
	}

	return cfg, nil
}

func invalid(path string, err error) error {
	return &domain.OpError{
		Op:   "workspacefinder.loadconfig",
		Kind: domain.KindInvalidConfig,
		Path: path,
		Err:  err,
	}
}

type yamlConfig struct {
	Briefcase struct {
		StorageDir string `yaml:"storage_dir"`

		Pull struct {
			BatchSize         *int  `yaml:"batch_size"`
			IncludeIncomplete *bool `yaml:"include_incomplete"`
			Parallel          *int  `yaml:"parallel"`
		} `yaml:"pull"`

		Push struct {
			Force    *bool `yaml:"force"`
			Parallel *int  `yaml:"parallel"`
		} `yaml:"push"`

		HTTP struct {
			Timeout             string `yaml:"timeout"`
			MaxIdleConnsPerHost *int   `yaml:"max_idle_conns_per_host"`
		} `yaml:"http"`
	} `yaml:"briefcase"`
}
