package domain

import "net/url"

// HTTPMethod represents an HTTP method (e.g., GET, POST).
type HTTPMethod string

const (
	MethodGet  HTTPMethod = "GET"
	MethodPost HTTPMethod = "POST"
	MethodHead HTTPMethod = "HEAD"
)

// BodyType represents the type of payload for a request body.
type BodyType string

const (
	BodyNone      BodyType = "none"
	BodyJSON      BodyType = "json"
	BodyRaw       BodyType = "raw"
	BodyMultipart BodyType = "multipart"
)

// AuthType selects how a request authenticates.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthDigest AuthType = "digest"
	AuthBearer AuthType = "bearer"
)

// Headers is a map representation of HTTP headers.
type Headers map[string]string

// Part is one field of a multipart body. File parts carry a Filename.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// BodySpec describes an HTTP request body.
// Only one of JSON/Raw/Parts is used depending on Type.
type BodySpec struct {
	Type        BodyType
	JSON        map[string]any
	Raw         []byte
	ContentType string // Optional override (useful for raw payloads).
	Parts       []Part
}

// AuthSpec carries the credentials a request is sent with.
type AuthSpec struct {
	Type     AuthType
	Username string
	Password string
	Token    string
}

// RequestSpec describes a single remote call independent of net/http.
// Endpoint variants build these; the http adapter turns them into requests.
type RequestSpec struct {
	Name    string
	Method  HTTPMethod
	URL     string
	Query   url.Values
	Headers Headers
	Body    BodySpec
	Auth    AuthSpec
}

// FullURL returns URL with Query appended.
func (r RequestSpec) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	q := u.Query()
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
