// Package domain contains the core model of the form transfer engine.
//
// The domain is transport- and persistence-agnostic: it does not depend on
// net/http, the filesystem or any YAML/XML adapter beyond the small cursor
// fragment it owns. Infra adapters map remote and local representations into
// and out of these types.
package domain
