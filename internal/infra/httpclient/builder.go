package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// BuildRequest builds an HTTP request from a domain RequestSpec.
// Digest credentials are applied by the executor's transport, not here.
func BuildRequest(ctx context.Context, spec domain.RequestSpec) (*http.Request, error) {
	if strings.TrimSpace(spec.URL) == "" {
		return nil, &domain.OpError{
			Op:   "httpclient.build",
			Kind: domain.KindInvalidConfig,
			Err:  domain.ErrInvalidRequest,
		}
	}

	var bodyReader *bytes.Reader
	contentType := ""

	switch spec.Body.Type {
	case domain.BodyNone, "":
		bodyReader = bytes.NewReader(nil)
	case domain.BodyJSON:
		if spec.Body.JSON != nil {
			payload, err := json.Marshal(spec.Body.JSON)
			if err != nil {
				return nil, &domain.OpError{
					Op:   "httpclient.build",
					Kind: domain.KindInvalidConfig,
					Err:  err,
				}
			}
			bodyReader = bytes.NewReader(payload)
			contentType = "application/json"
		} else {
			bodyReader = bytes.NewReader(nil)
		}
	case domain.BodyRaw:
		bodyReader = bytes.NewReader(spec.Body.Raw)
		contentType = spec.Body.ContentType
	case domain.BodyMultipart:
		payload, ct, err := encodeMultipart(spec.Body.Parts)
		if err != nil {
			return nil, &domain.OpError{
				Op:   "httpclient.build",
				Kind: domain.KindInvalidConfig,
				Err:  err,
			}
		}
		bodyReader = bytes.NewReader(payload)
		contentType = ct
	default:
		return nil, &domain.OpError{
			Op:   "httpclient.build",
			Kind: domain.KindInvalidConfig,
			Err:  domain.ErrInvalidRequest,
		}
	}

	req, err := http.NewRequestWithContext(ctx, string(spec.Method), spec.FullURL(), bodyReader)
	if err != nil {
		return nil, &domain.OpError{
			Op:   "httpclient.build",
			Kind: domain.KindInvalidConfig,
			Err:  err,
		}
	}

	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	if spec.Auth.Type == domain.AuthBearer && spec.Auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+spec.Auth.Token)
	}

	return req, nil
}

func encodeMultipart(parts []domain.Part) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		h := textproto.MIMEHeader{}
		disposition := `form-data; name="` + escapeQuotes(p.Name) + `"`
		if p.Filename != "" {
			disposition += `; filename="` + escapeQuotes(p.Filename) + `"`
		}
		h.Set("Content-Disposition", disposition)
		ct := p.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(p.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
