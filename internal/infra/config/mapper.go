package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// MapEndpoint decodes an endpoint record. A nil or empty record maps to nil.
func MapEndpoint(path string, y YAMLEndpoint) (domain.Endpoint, error) {
	if len(y) == 0 {
		return nil, nil
	}
	e, err := domain.DecodeEndpoint(y)
	if err != nil {
		return nil, &domain.OpError{Op: "config.map_endpoint", Kind: domain.KindInvalidConfig, Path: path, Err: err}
	}
	return e, nil
}

func ToYAMLEndpoint(e domain.Endpoint) (YAMLEndpoint, error) {
	if e == nil {
		return nil, nil
	}
	rec, err := domain.EncodeEndpoint(e)
	if err != nil {
		return nil, err
	}
	out := YAMLEndpoint{}
	for k, v := range rec {
		if v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// WithoutSecrets drops credentials and tokens from e.
func WithoutSecrets(e domain.Endpoint) domain.Endpoint {
	switch v := e.(type) {
	case domain.AggregateServer:
		v.Credentials = nil
		return v
	case domain.CentralServer:
		v.Credentials = domain.Credentials{}
		v.Token = ""
		return v
	default:
		return e
	}
}

func MapFormMetadata(path string, y YAMLFormMetadata) (domain.FormMetadata, error) {
	if strings.TrimSpace(y.ID) == "" {
		return domain.FormMetadata{}, invalidField(path, "id", "form id is required")
	}

	cursor, err := domain.ParseCursor(y.Cursor)
	if err != nil {
		return domain.FormMetadata{}, invalidField(path, "cursor", err.Error())
	}

	source, err := MapEndpoint(path, y.PullSource)
	if err != nil {
		return domain.FormMetadata{}, err
	}

	return domain.FormMetadata{
		Key:          domain.NewFormKey(y.ID, y.Version),
		Name:         y.Name,
		FormFile:     y.FormFile,
		MediaDir:     y.MediaDir,
		PullSource:   source,
		Cursor:       cursor,
		LastPulledAt: deref(y.LastPulledAt),
		LastPushedAt: deref(y.LastPushedAt),
	}, nil
}

// ToYAMLFormMetadata renders meta for storage. Pull source credentials are
// never written to form metadata.
func ToYAMLFormMetadata(meta domain.FormMetadata) (YAMLFormMetadata, error) {
	var source YAMLEndpoint
	if meta.PullSource != nil {
		var err error
		source, err = ToYAMLEndpoint(WithoutSecrets(meta.PullSource))
		if err != nil {
			return YAMLFormMetadata{}, err
		}
	}

	return YAMLFormMetadata{
		ID:           meta.Key.ID,
		Version:      meta.Key.Version,
		Name:         meta.Name,
		FormFile:     meta.FormFile,
		MediaDir:     meta.MediaDir,
		PullSource:   source,
		Cursor:       meta.Cursor.XML(),
		LastPulledAt: ref(meta.LastPulledAt),
		LastPushedAt: ref(meta.LastPushedAt),
	}, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func ref(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func invalidField(path, field, msg string) error {
	return &domain.OpError{
		Op:   "config.map",
		Kind: domain.KindInvalidConfig,
		Path: path,
		Err:  fmt.Errorf("field %s: %s: %w", field, msg, domain.ErrInvalidConfig),
	}
}
