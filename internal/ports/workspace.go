package ports

import "github.com/getodk/briefcase-sub006/internal/domain"

// WorkspaceInitializer creates the storage layout of a new workspace.
type WorkspaceInitializer interface {
	Init(spec domain.WorkspaceSpec, force bool) error
}

// WorkspacePathResolver maps forms and submissions to their local paths.
// Every path is relative to the storage root and confined to the form's own
// directory, so transfers of different forms never touch the same files.
type WorkspacePathResolver interface {
	FormDir(key domain.FormKey, name string) string
	FormFile(key domain.FormKey, name string) string
	MediaDir(key domain.FormKey, name string) string
	InstanceDir(key domain.FormKey, name, instanceID string) string
	SubmissionFile(key domain.FormKey, name, instanceID string) string
}

// FormStorage reads and writes form files inside the workspace.
//
// Writes that replace existing content leave the old bytes in place when the
// new ones are identical, so re-pulling unchanged data writes nothing.
type FormStorage interface {
	WorkspacePathResolver

	// WriteFile stores data at path (relative to the storage root) and
	// reports whether anything changed on disk.
	WriteFile(path string, data []byte) (bool, error)
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool

	HasSubmission(key domain.FormKey, name, instanceID string) bool
	ListSubmissions(key domain.FormKey, name string) ([]domain.LocalSubmission, error)
	ListMedia(key domain.FormKey, name string) ([]string, error)
}
