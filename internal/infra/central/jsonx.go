package central

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func parseJSON(op string, body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, domain.ProtocolError(op, "", fmt.Errorf("response body is not valid JSON: %w", err))
	}
	return doc, nil
}

// items returns the elements of the array selected by expr.
func items(op string, doc any, expr string) ([]any, error) {
	v, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, domain.ProtocolError(op, "", fmt.Errorf("jsonpath %s: %w", expr, err))
	}
	list, ok := v.([]any)
	if !ok {
		return nil, domain.ProtocolError(op, "", fmt.Errorf("jsonpath %s: expected an array, got %T", expr, v))
	}
	return list, nil
}

// str reads expr from doc as a string. Missing keys and null read as "".
func str(doc any, expr string) string {
	v, err := jsonpath.Get(expr, doc)
	if err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return ""
	}
}

func boolean(doc any, expr string) bool {
	v, err := jsonpath.Get(expr, doc)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
