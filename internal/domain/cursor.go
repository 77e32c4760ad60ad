package domain

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	cursorNamespace      = "http://www.opendatakit.org/cursor"
	DefaultCursorAttr    = "_LAST_UPDATE_DATE"
	cursorTimestampStyle = "2006-01-02T15:04:05.000-0700"
)

// Accepted timestamp notations. Fractional seconds are optional when parsing.
var cursorLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
}

// Cursor is a resumable position in a remote submission history: the
// last-update timestamp of the last returned submission plus its id.
// The zero value means "from the beginning of history".
type Cursor struct {
	AttributeName  string
	AttributeValue string
	LastReturnedID string
	Forward        bool
}

// NewCursor builds a forward cursor positioned at (lastUpdate, lastID).
func NewCursor(lastUpdate time.Time, lastID string) Cursor {
	return Cursor{
		AttributeName:  DefaultCursorAttr,
		AttributeValue: lastUpdate.Format(cursorTimestampStyle),
		LastReturnedID: lastID,
		Forward:        true,
	}
}

type cursorDoc struct {
	XMLName        xml.Name `xml:"cursor"`
	AttributeName  string   `xml:"attributeName"`
	AttributeValue string   `xml:"attributeValue"`
	LastReturned   string   `xml:"uriLastReturnedValue"`
	Forward        string   `xml:"isForwardCursor"`
}

// ParseCursor reads the XML cursor fragment. Blank input is the empty cursor.
func ParseCursor(s string) (Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cursor{}, nil
	}

	var doc cursorDoc
	if err := xml.Unmarshal([]byte(s), &doc); err != nil {
		return Cursor{}, ProtocolError("cursor.parse", "", err)
	}

	return Cursor{
		AttributeName:  strings.TrimSpace(doc.AttributeName),
		AttributeValue: strings.TrimSpace(doc.AttributeValue),
		LastReturnedID: strings.TrimSpace(doc.LastReturned),
		Forward:        !strings.EqualFold(strings.TrimSpace(doc.Forward), "false"),
	}, nil
}

// XML renders the cursor fragment, or "" for the empty cursor.
func (c Cursor) XML() string {
	if c.IsEmpty() && c.LastReturnedID == "" {
		return ""
	}

	var b bytes.Buffer
	b.WriteString(`<cursor xmlns="` + cursorNamespace + `">`)
	writeElem(&b, "attributeName", c.AttributeName)
	writeElem(&b, "attributeValue", c.AttributeValue)
	writeElem(&b, "uriLastReturnedValue", c.LastReturnedID)
	writeElem(&b, "isForwardCursor", fmt.Sprintf("%t", c.Forward))
	b.WriteString("</cursor>")
	return b.String()
}

func writeElem(b *bytes.Buffer, name, value string) {
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString("</" + name + ">")
}

// IsEmpty reports whether the cursor carries no timestamp.
func (c Cursor) IsEmpty() bool {
	return strings.TrimSpace(c.AttributeValue) == ""
}

// Instant parses the timestamp, normalising offset notation so that +0800
// and +08:00 denote the same instant.
func (c Cursor) Instant() (time.Time, bool) {
	v := strings.TrimSpace(c.AttributeValue)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range cursorLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Compare orders cursors by timestamp, then by last returned id.
// Two cursors without a timestamp are the same position whatever their ids.
func (c Cursor) Compare(o Cursor) int {
	switch {
	case c.IsEmpty() && o.IsEmpty():
		return 0
	case c.IsEmpty():
		return -1
	case o.IsEmpty():
		return 1
	}

	ct, cok := c.Instant()
	ot, ook := o.Instant()
	if cok && ook {
		switch {
		case ct.Before(ot):
			return -1
		case ct.After(ot):
			return 1
		}
	} else if r := strings.Compare(c.AttributeValue, o.AttributeValue); r != 0 {
		return r
	}

	return strings.Compare(c.LastReturnedID, o.LastReturnedID)
}

// Equal reports position equivalence.
func (c Cursor) Equal(o Cursor) bool {
	return c.Compare(o) == 0
}

// MaxCursor returns the furthest of a and b, preferring a on ties.
func MaxCursor(a, b Cursor) Cursor {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}
