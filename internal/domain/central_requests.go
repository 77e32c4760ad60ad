package domain

import (
	"fmt"
	"net/url"
	"strings"
)

func (c CentralServer) resolve(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.TrimRight(c.URL, "/") + "/v1/" + strings.Join(escaped, "/")
}

func (c CentralServer) project(segments ...string) string {
	return c.resolve(append([]string{"projects", fmt.Sprint(c.ProjectID)}, segments...)...)
}

// WithToken returns a copy carrying a session token.
func (c CentralServer) WithToken(token string) CentralServer {
	c.Token = token
	return c
}

func (c CentralServer) authed(name string, method HTTPMethod, rawURL string) RequestSpec {
	return RequestSpec{
		Name:    name,
		Method:  method,
		URL:     rawURL,
		Headers: Headers{},
		Body:    BodySpec{Type: BodyNone},
		Auth:    AuthSpec{Type: AuthBearer, Token: c.Token},
	}
}

// SessionRequest exchanges the stored credentials for a session token.
func (c CentralServer) SessionRequest() RequestSpec {
	return RequestSpec{
		Name:    "central.session",
		Method:  MethodPost,
		URL:     c.resolve("sessions"),
		Headers: Headers{},
		Body: BodySpec{
			Type: BodyJSON,
			JSON: map[string]any{
				"email":    c.Credentials.Username,
				"password": c.Credentials.Password,
			},
		},
		Auth: AuthSpec{Type: AuthNone},
	}
}

func (c CentralServer) FormsRequest() RequestSpec {
	return c.authed("central.forms", MethodGet, c.project("forms"))
}

func (c CentralServer) FormRequest(formID string) RequestSpec {
	return c.authed("central.form", MethodGet, c.project("forms", formID))
}

func (c CentralServer) FormDefinitionRequest(formID string) RequestSpec {
	return c.authed("central.form.xml", MethodGet, c.project("forms", formID+".xml"))
}

func (c CentralServer) FormAttachmentsRequest(formID string) RequestSpec {
	return c.authed("central.form.attachments", MethodGet, c.project("forms", formID, "attachments"))
}

func (c CentralServer) FormAttachmentRequest(formID, name string) RequestSpec {
	return c.authed("central.form.attachment", MethodGet, c.project("forms", formID, "attachments", name))
}

// SubmissionsRequest lists submissions in the server's own order.
func (c CentralServer) SubmissionsRequest(formID string) RequestSpec {
	return c.authed("central.submissions", MethodGet, c.project("forms", formID, "submissions"))
}

func (c CentralServer) SubmissionRequest(formID, instanceID string) RequestSpec {
	return c.authed("central.submission.xml", MethodGet, c.project("forms", formID, "submissions", instanceID+".xml"))
}

func (c CentralServer) SubmissionAttachmentsRequest(formID, instanceID string) RequestSpec {
	return c.authed("central.submission.attachments", MethodGet, c.project("forms", formID, "submissions", instanceID, "attachments"))
}

func (c CentralServer) SubmissionAttachmentRequest(formID, instanceID, name string) RequestSpec {
	return c.authed("central.submission.attachment", MethodGet, c.project("forms", formID, "submissions", instanceID, "attachments", name))
}

// CreateFormRequest creates a new form whose definition starts as a draft.
func (c CentralServer) CreateFormRequest(definition []byte) RequestSpec {
	r := c.authed("central.form.create", MethodPost, c.project("forms"))
	r.Query = url.Values{"ignoreWarnings": {"true"}}
	r.Body = BodySpec{Type: BodyRaw, Raw: definition, ContentType: "application/xml"}
	return r
}

// CreateDraftRequest starts a new draft version of an existing form.
func (c CentralServer) CreateDraftRequest(formID string, definition []byte) RequestSpec {
	r := c.authed("central.form.draft", MethodPost, c.project("forms", formID, "draft"))
	r.Query = url.Values{"ignoreWarnings": {"true"}}
	r.Body = BodySpec{Type: BodyRaw, Raw: definition, ContentType: "application/xml"}
	return r
}

func (c CentralServer) FormDraftAttachmentRequest(formID, name string, data []byte) RequestSpec {
	r := c.authed("central.form.draft.attachment", MethodPost, c.project("forms", formID, "draft", "attachments", name))
	r.Body = BodySpec{Type: BodyRaw, Raw: data, ContentType: "application/octet-stream"}
	return r
}

func (c CentralServer) PublishDraftRequest(formID string) RequestSpec {
	return c.authed("central.form.publish", MethodPost, c.project("forms", formID, "draft", "publish"))
}

// PushSubmissionRequest uploads a submission and its attachments through the
// project's OpenRosa submission endpoint.
func (c CentralServer) PushSubmissionRequest(submission []byte, attachments []Part) RequestSpec {
	parts := make([]Part, 0, len(attachments)+1)
	parts = append(parts, Part{
		Name:        "xml_submission_file",
		Filename:    "submission.xml",
		ContentType: "text/xml",
		Data:        submission,
	})
	parts = append(parts, attachments...)

	r := c.authed("central.submission.push", MethodPost, c.project("submission"))
	r.Headers["X-OpenRosa-Version"] = openRosaVersion
	r.Body = BodySpec{Type: BodyMultipart, Parts: parts}
	return r
}
