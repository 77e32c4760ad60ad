package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const openRosaVersion = "1.0"

func (a AggregateServer) auth() AuthSpec {
	if a.Credentials == nil {
		return AuthSpec{Type: AuthNone}
	}
	return AuthSpec{Type: AuthDigest, Username: a.Credentials.Username, Password: a.Credentials.Password}
}

func (a AggregateServer) resolve(path string) string {
	u, err := url.JoinPath(a.URL, path)
	if err != nil {
		return strings.TrimRight(a.URL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return u
}

func (a AggregateServer) get(name, rawURL string, query url.Values) RequestSpec {
	return RequestSpec{
		Name:    name,
		Method:  MethodGet,
		URL:     rawURL,
		Query:   query,
		Headers: Headers{"X-OpenRosa-Version": openRosaVersion},
		Body:    BodySpec{Type: BodyNone},
		Auth:    a.auth(),
	}
}

// FormListRequest lists the forms the server offers (OpenRosa formList).
func (a AggregateServer) FormListRequest() RequestSpec {
	return a.get("aggregate.formlist", a.resolve("formList"), nil)
}

// DownloadRequest fetches an absolute URL advertised by the server
// (form definitions, manifests, media and submission attachments).
func (a AggregateServer) DownloadRequest(rawURL string) RequestSpec {
	return a.get("aggregate.download", rawURL, nil)
}

// InstanceIDBatchRequest asks for the ids of submissions after cursor.
func (a AggregateServer) InstanceIDBatchRequest(formID string, cursor Cursor, batchSize int, includeIncomplete bool) RequestSpec {
	q := url.Values{}
	q.Set("formId", formID)
	q.Set("cursor", cursor.XML())
	q.Set("numEntries", strconv.Itoa(batchSize))
	q.Set("includeIncomplete", strconv.FormatBool(includeIncomplete))
	return a.get("aggregate.submissionlist", a.resolve("view/submissionList"), q)
}

// DownloadSubmissionRequest fetches one submission with its media manifest.
func (a AggregateServer) DownloadSubmissionRequest(formID, topElement, instanceID string) RequestSpec {
	q := url.Values{}
	q.Set("formId", fmt.Sprintf("%s[@version=null and @uiVersion=null]/%s[@key=%s]", formID, topElement, instanceID))
	return a.get("aggregate.downloadsubmission", a.resolve("view/downloadSubmission"), q)
}

// PushFormRequest uploads a form definition and its media files.
func (a AggregateServer) PushFormRequest(definition []byte, media []Part) RequestSpec {
	parts := make([]Part, 0, len(media)+1)
	parts = append(parts, Part{
		Name:        "form_def_file",
		Filename:    "form.xml",
		ContentType: "application/xml",
		Data:        definition,
	})
	parts = append(parts, media...)
	return a.multipart("aggregate.formupload", a.resolve("formUpload"), parts)
}

// PushSubmissionRequest uploads one submission and its attachments.
func (a AggregateServer) PushSubmissionRequest(submission []byte, attachments []Part) RequestSpec {
	parts := make([]Part, 0, len(attachments)+1)
	parts = append(parts, Part{
		Name:        "xml_submission_file",
		Filename:    "submission.xml",
		ContentType: "text/xml",
		Data:        submission,
	})
	parts = append(parts, attachments...)
	return a.multipart("aggregate.submission", a.resolve("submission"), parts)
}

func (a AggregateServer) multipart(name, rawURL string, parts []Part) RequestSpec {
	return RequestSpec{
		Name:    name,
		Method:  MethodPost,
		URL:     rawURL,
		Headers: Headers{"X-OpenRosa-Version": openRosaVersion},
		Body:    BodySpec{Type: BodyMultipart, Parts: parts},
		Auth:    a.auth(),
	}
}
