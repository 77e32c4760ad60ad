package domain

import (
	"strings"
	"time"
)

// FormKey identifies a form across every operation: (form id, version).
// An empty version is a valid, distinct version.
type FormKey struct {
	ID      string
	Version string
}

func NewFormKey(id, version string) FormKey {
	return FormKey{ID: strings.TrimSpace(id), Version: strings.TrimSpace(version)}
}

func (k FormKey) String() string {
	if k.Version == "" {
		return k.ID
	}
	return k.ID + "[" + k.Version + "]"
}

// FormMetadata is what the workspace knows about one form.
type FormMetadata struct {
	Key  FormKey
	Name string

	// Local paths, relative to the workspace storage root.
	FormFile string
	MediaDir string

	// PullSource is the endpoint the form was last pulled from (optional).
	PullSource Endpoint

	// Cursor is the last committed position in the remote submission history.
	Cursor Cursor

	LastPulledAt time.Time
	LastPushedAt time.Time
}

// DisplayName prefers the human title and falls back to the form id.
func (m FormMetadata) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.Key.ID
}

// WithCursor returns a copy whose cursor is the furthest of the current one
// and c. A form's cursor never moves backwards.
func (m FormMetadata) WithCursor(c Cursor) FormMetadata {
	m.Cursor = MaxCursor(m.Cursor, c)
	return m
}

// RemoteForm is a form as advertised by a remote endpoint.
type RemoteForm struct {
	Key         FormKey
	Name        string
	Hash        string
	DownloadURL string
	ManifestURL string
}

// AttachmentRef points at a binary file belonging to a form or submission.
type AttachmentRef struct {
	Name        string
	Hash        string
	DownloadURL string
}
