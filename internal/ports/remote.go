package ports

import (
	"context"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// AggregateAPI is the protocol A surface used by the pull and push engines.
type AggregateAPI interface {
	ListForms(ctx context.Context) ([]domain.RemoteForm, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Manifest(ctx context.Context, manifestURL string) ([]domain.AttachmentRef, error)
	InstanceIDBatch(ctx context.Context, formID string, cursor domain.Cursor, batchSize int, includeIncomplete bool) (domain.InstanceIDBatch, error)
	DownloadSubmission(ctx context.Context, formID, topElement, instanceID string) (domain.Submission, error)
	PushForm(ctx context.Context, definition []byte, media []domain.Part) error
	PushSubmission(ctx context.Context, submission []byte, attachments []domain.Part) error
}

// CentralAPI is the protocol B surface. Login must be called once per
// transfer; the returned session is used for every subsequent call.
type CentralAPI interface {
	Login(ctx context.Context) (CentralSession, error)
}

// CentralSession is an authenticated protocol B conversation.
type CentralSession interface {
	ListForms(ctx context.Context) ([]domain.RemoteForm, error)
	FormExists(ctx context.Context, key domain.FormKey) (exists bool, sameVersion bool, err error)
	FormDefinition(ctx context.Context, formID string) ([]byte, error)
	FormAttachments(ctx context.Context, formID string) ([]domain.AttachmentRef, error)
	FormAttachment(ctx context.Context, formID, name string) ([]byte, error)
	SubmissionIDs(ctx context.Context, formID string) ([]string, error)
	Submission(ctx context.Context, formID, instanceID string) ([]byte, error)
	SubmissionAttachments(ctx context.Context, formID, instanceID string) ([]domain.AttachmentRef, error)
	SubmissionAttachment(ctx context.Context, formID, instanceID, name string) ([]byte, error)
	PushForm(ctx context.Context, key domain.FormKey, definition []byte, media []domain.Part, exists bool) error
	PushSubmission(ctx context.Context, submission []byte, attachments []domain.Part) (alreadyExists bool, err error)
}
