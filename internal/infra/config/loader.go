package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func LoadFormMetadata(path string) (domain.FormMetadata, error) {
	var dto YAMLFormMetadata
	if err := readYAML("config.load_form_metadata", path, &dto); err != nil {
		return domain.FormMetadata{}, err
	}
	return MapFormMetadata(path, dto)
}

// LoadEndpoints reads the credential store document. A missing file is an
// empty store.
func LoadEndpoints(path string) (YAMLEndpoints, error) {
	var dto YAMLEndpoints
	err := readYAML("config.load_endpoints", path, &dto)
	if domain.IsKind(err, domain.KindNotFound) {
		return YAMLEndpoints{}, nil
	}
	return dto, err
}

func readYAML(op, path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		kind := domain.KindExecution
		if errors.Is(err, os.ErrNotExist) {
			kind = domain.KindNotFound
		}
		return &domain.OpError{Op: op, Kind: kind, Path: path, Err: err}
	}

	if err := yaml.Unmarshal(b, v); err != nil {
		return &domain.OpError{Op: op, Kind: domain.KindInvalidConfig, Path: path, Err: err}
	}
	return nil
}

// Marshal renders v as YAML.
func Marshal(v any) ([]byte, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, &domain.OpError{Op: "config.marshal", Kind: domain.KindExecution, Err: err}
	}
	return b, nil
}
