// Package aggregate talks to ODK Aggregate servers: OpenRosa form lists and
// manifests, the Briefcase submission API and the multipart upload
// endpoints.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/httpclient"
	"github.com/getodk/briefcase-sub006/internal/infra/xform"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

var errEmptySubmission = errors.New("submission document has no data")

type Client struct {
	server domain.AggregateServer
	exec   *httpclient.Executor
	log    *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(server domain.AggregateServer, exec *httpclient.Executor, opts ...Option) *Client {
	c := &Client{
		server: server,
		exec:   exec,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = httpclient.NewExecutor()
	}
	return c
}

var _ ports.AggregateAPI = (*Client)(nil)

func (c *Client) send(ctx context.Context, spec domain.RequestSpec) ([]byte, error) {
	resp, err := c.exec.Send(ctx, spec)
	if err != nil {
		c.log.Debug("aggregate.request.failed", "op", spec.Name, "url", spec.URL, "status", resp.Status, "err", err)
		return nil, err
	}
	c.log.Debug("aggregate.request.ok", "op", spec.Name, "status", resp.Status, "latency_ms", resp.Duration.Milliseconds())
	return resp.BodyBytes, nil
}

func (c *Client) ListForms(ctx context.Context) ([]domain.RemoteForm, error) {
	body, err := c.send(ctx, c.server.FormListRequest())
	if err != nil {
		return nil, err
	}
	return parseFormList(body)
}

func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.send(ctx, c.server.DownloadRequest(url))
}

func (c *Client) Manifest(ctx context.Context, manifestURL string) ([]domain.AttachmentRef, error) {
	if manifestURL == "" {
		return nil, nil
	}
	body, err := c.send(ctx, c.server.DownloadRequest(manifestURL))
	if err != nil {
		return nil, err
	}
	return parseManifest(body)
}

func (c *Client) InstanceIDBatch(ctx context.Context, formID string, cursor domain.Cursor, batchSize int, includeIncomplete bool) (domain.InstanceIDBatch, error) {
	body, err := c.send(ctx, c.server.InstanceIDBatchRequest(formID, cursor, batchSize, includeIncomplete))
	if err != nil {
		return domain.InstanceIDBatch{}, err
	}
	return parseIDChunk(body)
}

func (c *Client) DownloadSubmission(ctx context.Context, formID, topElement, instanceID string) (domain.Submission, error) {
	body, err := c.send(ctx, c.server.DownloadSubmissionRequest(formID, topElement, instanceID))
	if err != nil {
		return domain.Submission{}, err
	}

	doc, refs, err := parseSubmission(body)
	if err != nil {
		return domain.Submission{}, err
	}

	info, err := xform.ParseSubmission(doc)
	if err != nil {
		return domain.Submission{}, err
	}

	return domain.Submission{
		InstanceID:  info.InstanceID,
		FormKey:     info.Key,
		XML:         doc,
		Attachments: refs,
	}, nil
}

func (c *Client) PushForm(ctx context.Context, definition []byte, media []domain.Part) error {
	_, err := c.send(ctx, c.server.PushFormRequest(definition, media))
	return err
}

// PushSubmission uploads one submission. Aggregate answers 201 for a new
// submission and 202 when it already holds it; both count as success.
func (c *Client) PushSubmission(ctx context.Context, submission []byte, attachments []domain.Part) error {
	resp, err := c.exec.Send(ctx, c.server.PushSubmissionRequest(submission, attachments))
	if err != nil {
		return err
	}
	if resp.Status != http.StatusCreated && resp.Status != http.StatusAccepted {
		c.log.Warn("aggregate.submission.unexpected_status", "status", resp.Status)
	}
	return nil
}
