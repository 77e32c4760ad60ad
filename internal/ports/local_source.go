package ports

import (
	"context"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// LocalForm is a form definition found on a local endpoint.
type LocalForm struct {
	Info     domain.FormInfo
	File     string
	MediaDir string
}

// LocalInstance is a submission found on a local endpoint. InstanceID is
// empty when the document declares none; Name is the directory it lives in.
type LocalInstance struct {
	Name        string
	InstanceID  string
	File        string
	Attachments []string
}

// LocalSource reads forms and submissions from a Collect directory or a
// single form file. Paths are relative to the source root.
type LocalSource interface {
	ListForms(ctx context.Context) ([]LocalForm, error)
	ListInstances(ctx context.Context, key domain.FormKey) ([]LocalInstance, error)
	ListFiles(dir string) ([]string, error)
	ReadFile(path string) ([]byte, error)
}
