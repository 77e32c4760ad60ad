package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func TestBuildRequestJSON(t *testing.T) {
	payload := map[string]any{"email": "me@x.org"}
	assert := func(r *http.Request, body []byte) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected method POST, got %s", r.Method)
		}
		if r.URL.Path != "/json" {
			t.Fatalf("expected path /json, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Fatalf("expected header X-Test")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type json, got %s", ct)
		}
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("expected valid json body: %v", err)
		}
		if decoded["email"] != "me@x.org" {
			t.Fatalf("expected json payload")
		}
	}

	runRequest(t, domain.RequestSpec{
		Method:  domain.MethodPost,
		Headers: domain.Headers{"X-Test": "yes"},
		Body: domain.BodySpec{
			Type: domain.BodyJSON,
			JSON: payload,
		},
	}, "/json", assert)
}

func TestBuildRequestRawWithBearer(t *testing.T) {
	assert := func(r *http.Request, body []byte) {
		if ct := r.Header.Get("Content-Type"); ct != "application/xml" {
			t.Fatalf("expected raw content-type, got %s", ct)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("expected bearer header, got %q", got)
		}
		if strings.TrimSpace(string(body)) != "<data/>" {
			t.Fatalf("expected raw body")
		}
		if r.URL.Query().Get("ignoreWarnings") != "true" {
			t.Fatalf("expected query to be appended")
		}
	}

	runRequest(t, domain.RequestSpec{
		Method: domain.MethodPost,
		Query:  map[string][]string{"ignoreWarnings": {"true"}},
		Body: domain.BodySpec{
			Type:        domain.BodyRaw,
			Raw:         []byte("<data/>"),
			ContentType: "application/xml",
		},
		Auth: domain.AuthSpec{Type: domain.AuthBearer, Token: "tok"},
	}, "/raw", assert)
}

func TestBuildRequestMultipart(t *testing.T) {
	assert := func(r *http.Request, body []byte) {
		mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "multipart/form-data" {
			t.Fatalf("expected multipart content-type, got %q", r.Header.Get("Content-Type"))
		}
		mr := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])

		var names []string
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("next part: %v", err)
			}
			names = append(names, p.FormName()+"|"+p.FileName())
		}
		if strings.Join(names, ",") != "xml_submission_file|submission.xml,photo.jpg|photo.jpg" {
			t.Fatalf("unexpected parts %v", names)
		}
	}

	runRequest(t, domain.RequestSpec{
		Method: domain.MethodPost,
		Body: domain.BodySpec{
			Type: domain.BodyMultipart,
			Parts: []domain.Part{
				{Name: "xml_submission_file", Filename: "submission.xml", ContentType: "text/xml", Data: []byte("<data/>")},
				{Name: "photo.jpg", Filename: "photo.jpg", Data: []byte{0xff, 0xd8}},
			},
		},
	}, "/submission", assert)
}

func TestBuildRequestRejectsEmptyURL(t *testing.T) {
	_, err := BuildRequest(context.Background(), domain.RequestSpec{Method: domain.MethodGet})
	if !domain.IsKind(err, domain.KindInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func runRequest(t *testing.T, spec domain.RequestSpec, path string, assert func(*http.Request, []byte)) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed reading body: %v", err)
		}
		assert(r, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	spec.URL = server.URL + path

	req, err := BuildRequest(context.Background(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed request: %v", err)
	}
	resp.Body.Close()
}
