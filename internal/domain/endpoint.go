package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EndpointType is the discriminant of the closed set of endpoint variants.
type EndpointType string

const (
	EndpointAggregate  EndpointType = "aggregate"
	EndpointCentral    EndpointType = "central"
	EndpointCollectDir EndpointType = "collect_dir"
	EndpointFormFile   EndpointType = "form_file"
)

// EndpointTypes lists every variant tag in a stable order.
var EndpointTypes = []EndpointType{EndpointAggregate, EndpointCentral, EndpointCollectDir, EndpointFormFile}

// Endpoint is a pull source or push target. The set of implementations is
// closed: AggregateServer, CentralServer, CollectDirectory and FormFile.
// Code dispatching on an Endpoint switches over all four and treats any other
// value as a programming error.
type Endpoint interface {
	Type() EndpointType
	Describe() string
	endpoint()
}

// Credentials is a username/password pair. Central uses the username as the
// account email.
type Credentials struct {
	Username string
	Password string
}

// AggregateServer is a protocol A remote (OpenRosa + Briefcase API, digest
// authentication).
type AggregateServer struct {
	URL         string
	Credentials *Credentials
}

// CentralServer is a protocol B remote (REST v1, session token).
type CentralServer struct {
	URL         string
	ProjectID   int
	Credentials Credentials
	Token       string
}

// CollectDirectory is a Collect "odk" directory with forms/ and instances/.
type CollectDirectory struct {
	Path string
}

// FormFile is a single form definition file on disk.
type FormFile struct {
	Path string
}

func (AggregateServer) Type() EndpointType  { return EndpointAggregate }
func (CentralServer) Type() EndpointType    { return EndpointCentral }
func (CollectDirectory) Type() EndpointType { return EndpointCollectDir }
func (FormFile) Type() EndpointType         { return EndpointFormFile }

func (AggregateServer) endpoint()  {}
func (CentralServer) endpoint()    {}
func (CollectDirectory) endpoint() {}
func (FormFile) endpoint()         {}

func (a AggregateServer) Describe() string  { return "Aggregate server " + a.URL }
func (c CentralServer) Describe() string    { return fmt.Sprintf("Central server %s (project %d)", c.URL, c.ProjectID) }
func (d CollectDirectory) Describe() string { return "Collect directory " + d.Path }
func (f FormFile) Describe() string         { return "Form file " + f.Path }

// CanPull reports whether e may serve as a pull source. Every variant can.
func CanPull(e Endpoint) bool {
	switch e.(type) {
	case AggregateServer, CentralServer, CollectDirectory, FormFile:
		return true
	default:
		return false
	}
}

// CanPush reports whether e may serve as a push target. Only remotes can.
func CanPush(e Endpoint) bool {
	switch e.(type) {
	case AggregateServer, CentralServer:
		return true
	case CollectDirectory, FormFile:
		return false
	default:
		return false
	}
}

// EncodeEndpoint flattens e into a tagged record keyed by "type". Passwords
// are never part of the record.
func EncodeEndpoint(e Endpoint) (map[string]string, error) {
	switch v := e.(type) {
	case AggregateServer:
		out := map[string]string{"type": string(EndpointAggregate), "url": v.URL}
		if v.Credentials != nil {
			out["username"] = v.Credentials.Username
		}
		return out, nil
	case CentralServer:
		return map[string]string{
			"type":       string(EndpointCentral),
			"url":        v.URL,
			"project_id": strconv.Itoa(v.ProjectID),
			"username":   v.Credentials.Username,
			"token":      v.Token,
		}, nil
	case CollectDirectory:
		return map[string]string{"type": string(EndpointCollectDir), "path": v.Path}, nil
	case FormFile:
		return map[string]string{"type": string(EndpointFormFile), "path": v.Path}, nil
	default:
		return nil, &OpError{Op: "endpoint.encode", Kind: KindInvalidConfig, Err: ErrUnknownEndpointType}
	}
}

// DecodeEndpoint rebuilds an Endpoint from its tagged record. An unknown or
// missing "type" fails with ErrUnknownEndpointType.
func DecodeEndpoint(rec map[string]string) (Endpoint, error) {
	tag := EndpointType(strings.TrimSpace(rec["type"]))
	switch tag {
	case EndpointAggregate:
		a := AggregateServer{URL: rec["url"]}
		if rec["username"] != "" {
			a.Credentials = &Credentials{Username: rec["username"]}
		}
		return checked(a, requireField("url", a.URL))
	case EndpointCentral:
		pid, err := strconv.Atoi(strings.TrimSpace(rec["project_id"]))
		if err != nil {
			return nil, &OpError{Op: "endpoint.decode", Kind: KindInvalidConfig, Err: fmt.Errorf("project_id: %w", err)}
		}
		c := CentralServer{
			URL:         rec["url"],
			ProjectID:   pid,
			Credentials: Credentials{Username: rec["username"]},
			Token:       rec["token"],
		}
		return checked(c, requireField("url", c.URL))
	case EndpointCollectDir:
		d := CollectDirectory{Path: rec["path"]}
		return checked(d, requireField("path", d.Path))
	case EndpointFormFile:
		f := FormFile{Path: rec["path"]}
		return checked(f, requireField("path", f.Path))
	default:
		return nil, &OpError{
			Op:   "endpoint.decode",
			Kind: KindInvalidConfig,
			Err:  fmt.Errorf("%w: %q", ErrUnknownEndpointType, tag),
		}
	}
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &OpError{Op: "endpoint.decode", Kind: KindInvalidConfig, Err: fmt.Errorf("missing %s", name)}
	}
	return nil
}

func checked(e Endpoint, err error) (Endpoint, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}
