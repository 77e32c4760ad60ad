package ports

import "github.com/getodk/briefcase-sub006/internal/domain"

// EndpointRole selects which remembered endpoint is read or written.
type EndpointRole string

const (
	RolePullSource EndpointRole = "pull_source"
	RolePushTarget EndpointRole = "push_target"
)

// EndpointStore remembers the endpoint last chosen for each role together
// with its credentials.
type EndpointStore interface {
	Load(role EndpointRole) (domain.Endpoint, bool, error)
	Save(role EndpointRole, e domain.Endpoint) error
	Clear(role EndpointRole) error
}
