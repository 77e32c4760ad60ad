// Package xform reads the few facts the transfer engine needs out of form
// definitions and submission documents.
package xform

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

var errNoFormID = errors.New("form definition has no primary instance")

// ParseForm extracts the form id, version, title, top element and whether
// the body declares repeat groups.
func ParseForm(def []byte) (domain.FormInfo, error) {
	dec := xml.NewDecoder(bytes.NewReader(def))

	var (
		info          domain.FormInfo
		title         strings.Builder
		inTitle       bool
		inInstance    bool
		instanceDepth = -1
		depth         int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.FormInfo{}, domain.ProtocolError("xform.parse", "", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case inInstance && depth == instanceDepth+1 && info.TopElement == "":
				info.TopElement = t.Name.Local
				id := attr(t, "id")
				if id == "" {
					id = t.Name.Local
				}
				info.Key = domain.NewFormKey(id, attr(t, "version"))
			case inInstance:
			case t.Name.Local == "title" && title.Len() == 0:
				inTitle = true
			case t.Name.Local == "instance" && info.TopElement == "" && attr(t, "id") == "":
				inInstance = true
				instanceDepth = depth
			case t.Name.Local == "repeat":
				info.HasRepeats = true
			}
		case xml.EndElement:
			if inInstance && depth == instanceDepth {
				inInstance = false
			}
			if t.Name.Local == "title" {
				inTitle = false
			}
			depth--
		case xml.CharData:
			if inTitle {
				title.WriteString(strings.TrimSpace(string(t)))
			}
		}
	}

	if info.Key.ID == "" {
		return domain.FormInfo{}, domain.ProtocolError("xform.parse", "", errNoFormID)
	}
	info.Name = title.String()
	return info, nil
}

// SubmissionInfo is what a submission document says about itself.
type SubmissionInfo struct {
	Key        domain.FormKey
	InstanceID string
}

// ParseSubmission reads the root element's form id and version and the
// instance id from meta/instanceID (or the root instanceID attribute).
func ParseSubmission(doc []byte) (SubmissionInfo, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var (
		info  SubmissionInfo
		stack []string
		text  strings.Builder
		found bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return SubmissionInfo{}, domain.ProtocolError("xform.submission", "", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				id := attr(t, "id")
				if id == "" {
					id = t.Name.Local
				}
				info.Key = domain.NewFormKey(id, attr(t, "version"))
				info.InstanceID = strings.TrimSpace(attr(t, "instanceID"))
			}
			stack = append(stack, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n := len(stack)
			if !found && n >= 2 && stack[n-1] == "instanceID" && stack[n-2] == "meta" {
				if v := strings.TrimSpace(text.String()); v != "" {
					info.InstanceID = v
					found = true
				}
			}
			if n > 0 {
				stack = stack[:n-1]
			}
		}
	}

	if info.Key.ID == "" {
		return SubmissionInfo{}, domain.ProtocolError("xform.submission", "", errors.New("empty submission document"))
	}
	return info, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}
