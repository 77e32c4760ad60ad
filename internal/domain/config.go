package domain

import "time"

// Config represents the workspace configuration loaded from briefcase.yaml.
type Config struct {
	StorageDir string
	Pull       PullConfig
	Push       PushConfig
	HTTP       HTTPConfig
}

type PullConfig struct {
	BatchSize         int
	IncludeIncomplete bool
	Parallel          int
}

type PushConfig struct {
	Force    bool
	Parallel int
}

type HTTPConfig struct {
	Timeout             time.Duration
	MaxIdleConnsPerHost int
}

const DefaultBatchSize = 100

// DefaultConfig provides sane defaults if briefcase.yaml is partially missing.
func DefaultConfig() Config {
	return Config{
		StorageDir: "ODK Briefcase Storage",
		Pull: PullConfig{
			BatchSize: DefaultBatchSize,
			Parallel:  1,
		},
		Push: PushConfig{
			Parallel: 1,
		},
		HTTP: HTTPConfig{
			Timeout:             30 * time.Second,
			MaxIdleConnsPerHost: 20,
		},
	}
}

// WorkspaceSpec describes a workspace to initialise.
type WorkspaceSpec struct {
	Root string
}
