package fsworkspace

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

const (
	formsDir      = "forms"
	instancesDir  = "instances"
	submissionXML = "submission.xml"
)

// Layout resolves workspace paths, relative to the storage root:
//
//	forms/<name>/<name>.xml
//	forms/<name>/<name>-media/
//	forms/<name>/instances/<instance>/submission.xml
type Layout struct{}

func (Layout) FormDir(key domain.FormKey, name string) string {
	return path.Join(formsDir, dirName(key, name))
}

func (l Layout) FormFile(key domain.FormKey, name string) string {
	d := dirName(key, name)
	return path.Join(formsDir, d, d+".xml")
}

func (l Layout) MediaDir(key domain.FormKey, name string) string {
	d := dirName(key, name)
	return path.Join(formsDir, d, d+"-media")
}

func (l Layout) InstancesDir(key domain.FormKey, name string) string {
	return path.Join(l.FormDir(key, name), instancesDir)
}

func (l Layout) InstanceDir(key domain.FormKey, name, instanceID string) string {
	return path.Join(l.InstancesDir(key, name), instanceDirName(instanceID))
}

func (l Layout) SubmissionFile(key domain.FormKey, name, instanceID string) string {
	return path.Join(l.InstanceDir(key, name, instanceID), submissionXML)
}

func dirName(key domain.FormKey, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		n = key.ID
	}
	if s := sanitize(n); s != "" {
		return s
	}
	return "form"
}

// instanceDirName drops the scheme separator so "uuid:1234" maps to
// "uuid1234".
func instanceDirName(instanceID string) string {
	return sanitize(strings.ReplaceAll(instanceID, ":", ""))
}

// sanitize normalises s to NFC and replaces characters that are not valid
// in file names on common filesystems.
func sanitize(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(strings.TrimSpace(b.String()), ".")
}
