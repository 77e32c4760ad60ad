package config

import "time"

// YAMLEndpoint is an endpoint record tagged by its "type" key.
type YAMLEndpoint map[string]string

// YAMLEndpoints is the credential store document.
type YAMLEndpoints struct {
	PullSource YAMLEndpoint `yaml:"pull_source,omitempty"`
	PushTarget YAMLEndpoint `yaml:"push_target,omitempty"`
}

// YAMLFormMetadata is the per-form metadata document.
type YAMLFormMetadata struct {
	ID       string `yaml:"id"`
	Version  string `yaml:"version,omitempty"`
	Name     string `yaml:"name,omitempty"`
	FormFile string `yaml:"form_file,omitempty"`
	MediaDir string `yaml:"media_dir,omitempty"`

	PullSource YAMLEndpoint `yaml:"pull_source,omitempty"`
	Cursor     string       `yaml:"cursor,omitempty"`

	LastPulledAt *time.Time `yaml:"last_pulled_at,omitempty"`
	LastPushedAt *time.Time `yaml:"last_pushed_at,omitempty"`
}
