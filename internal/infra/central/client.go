// Package central talks to ODK Central servers through their REST API.
// A Client logs in once and hands out a Session that carries the token on
// every later request.
package central

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/httpclient"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

var errNoToken = errors.New("login response carries no token")

type Client struct {
	server domain.CentralServer
	exec   *httpclient.Executor
	log    *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(server domain.CentralServer, exec *httpclient.Executor, opts ...Option) *Client {
	c := &Client{server: server, exec: exec, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = httpclient.NewExecutor()
	}
	return c
}

var (
	_ ports.CentralAPI     = (*Client)(nil)
	_ ports.CentralSession = (*Session)(nil)
)

// Login exchanges the stored credentials for a session token. A server
// configured with a token and no credentials reuses that token.
func (c *Client) Login(ctx context.Context) (ports.CentralSession, error) {
	if c.server.Credentials.Username == "" {
		if c.server.Token == "" {
			return nil, domain.AuthError("central.session", c.server.URL, errors.New("no credentials configured"))
		}
		return &Session{server: c.server, exec: c.exec, log: c.log}, nil
	}

	resp, err := c.exec.Send(ctx, c.server.SessionRequest())
	if err != nil {
		return nil, err
	}

	doc, err := parseJSON("central.session", resp.BodyBytes)
	if err != nil {
		return nil, err
	}
	token := str(doc, "$.token")
	if token == "" {
		return nil, domain.AuthError("central.session", c.server.URL, errNoToken)
	}

	c.log.Debug("central.session.ok", "url", c.server.URL, "project", c.server.ProjectID)
	return &Session{server: c.server.WithToken(token), exec: c.exec, log: c.log}, nil
}

// Session is an authenticated conversation with one Central project.
// Unauthorized answers are returned as authentication errors; the token is
// never refreshed.
type Session struct {
	server domain.CentralServer
	exec   *httpclient.Executor
	log    *slog.Logger
}

func (s *Session) send(ctx context.Context, spec domain.RequestSpec) ([]byte, error) {
	resp, err := s.exec.Send(ctx, spec)
	if err != nil {
		s.log.Debug("central.request.failed", "op", spec.Name, "url", spec.URL, "status", resp.Status, "err", err)
		return nil, err
	}
	s.log.Debug("central.request.ok", "op", spec.Name, "status", resp.Status, "latency_ms", resp.Duration.Milliseconds())
	return resp.BodyBytes, nil
}

func (s *Session) sendJSON(ctx context.Context, spec domain.RequestSpec) (any, error) {
	body, err := s.send(ctx, spec)
	if err != nil {
		return nil, err
	}
	return parseJSON(spec.Name, body)
}

func (s *Session) ListForms(ctx context.Context) ([]domain.RemoteForm, error) {
	spec := s.server.FormsRequest()
	doc, err := s.sendJSON(ctx, spec)
	if err != nil {
		return nil, err
	}
	list, err := items(spec.Name, doc, "$")
	if err != nil {
		return nil, err
	}

	out := make([]domain.RemoteForm, 0, len(list))
	for _, it := range list {
		id := str(it, "$.xmlFormId")
		if id == "" {
			continue
		}
		out = append(out, domain.RemoteForm{
			Key:  domain.NewFormKey(id, str(it, "$.version")),
			Name: str(it, "$.name"),
			Hash: str(it, "$.hash"),
		})
	}
	return out, nil
}

func (s *Session) FormExists(ctx context.Context, key domain.FormKey) (bool, bool, error) {
	doc, err := s.sendJSON(ctx, s.server.FormRequest(key.ID))
	if domain.IsKind(err, domain.KindNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, str(doc, "$.version") == key.Version, nil
}

func (s *Session) FormDefinition(ctx context.Context, formID string) ([]byte, error) {
	return s.send(ctx, s.server.FormDefinitionRequest(formID))
}

func (s *Session) FormAttachments(ctx context.Context, formID string) ([]domain.AttachmentRef, error) {
	return s.attachments(ctx, s.server.FormAttachmentsRequest(formID))
}

func (s *Session) FormAttachment(ctx context.Context, formID, name string) ([]byte, error) {
	return s.send(ctx, s.server.FormAttachmentRequest(formID, name))
}

// SubmissionIDs lists instance ids in the order the server returns them.
func (s *Session) SubmissionIDs(ctx context.Context, formID string) ([]string, error) {
	spec := s.server.SubmissionsRequest(formID)
	doc, err := s.sendJSON(ctx, spec)
	if err != nil {
		return nil, err
	}
	list, err := items(spec.Name, doc, "$")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list))
	for _, it := range list {
		if id := str(it, "$.instanceId"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Session) Submission(ctx context.Context, formID, instanceID string) ([]byte, error) {
	return s.send(ctx, s.server.SubmissionRequest(formID, instanceID))
}

func (s *Session) SubmissionAttachments(ctx context.Context, formID, instanceID string) ([]domain.AttachmentRef, error) {
	return s.attachments(ctx, s.server.SubmissionAttachmentsRequest(formID, instanceID))
}

func (s *Session) SubmissionAttachment(ctx context.Context, formID, instanceID, name string) ([]byte, error) {
	return s.send(ctx, s.server.SubmissionAttachmentRequest(formID, instanceID, name))
}

// attachments lists the attachments the server actually holds.
func (s *Session) attachments(ctx context.Context, spec domain.RequestSpec) ([]domain.AttachmentRef, error) {
	doc, err := s.sendJSON(ctx, spec)
	if err != nil {
		return nil, err
	}
	list, err := items(spec.Name, doc, "$")
	if err != nil {
		return nil, err
	}

	out := make([]domain.AttachmentRef, 0, len(list))
	for _, it := range list {
		name := str(it, "$.name")
		if name == "" || !boolean(it, "$.exists") {
			continue
		}
		out = append(out, domain.AttachmentRef{Name: name})
	}
	return out, nil
}

// PushForm creates the form (or a new draft of an existing one), uploads
// its media to the draft and publishes it.
func (s *Session) PushForm(ctx context.Context, key domain.FormKey, definition []byte, media []domain.Part, exists bool) error {
	create := s.server.CreateFormRequest(definition)
	if exists {
		create = s.server.CreateDraftRequest(key.ID, definition)
	}
	if _, err := s.send(ctx, create); err != nil {
		return err
	}

	for _, m := range media {
		if _, err := s.send(ctx, s.server.FormDraftAttachmentRequest(key.ID, m.Name, m.Data)); err != nil {
			return err
		}
	}

	_, err := s.send(ctx, s.server.PublishDraftRequest(key.ID))
	return err
}

// PushSubmission uploads one submission. A conflict means the server
// already holds it and is reported through alreadyExists.
func (s *Session) PushSubmission(ctx context.Context, submission []byte, attachments []domain.Part) (bool, error) {
	resp, err := s.exec.Send(ctx, s.server.PushSubmissionRequest(submission, attachments))
	if resp.Status == http.StatusConflict {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
