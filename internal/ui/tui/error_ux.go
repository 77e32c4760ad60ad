package tui

import (
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/httpclient"
)

var reLine = regexp.MustCompile(`(?i)\bline\s+(\d+)\b`)

// UserMessage turns an engine error into one short line for people.
func UserMessage(err error) string {
	return userMessage(err)
}

func userMessage(err error) string {
	if err == nil {
		return ""
	}

	var oe *domain.OpError
	if errors.As(err, &oe) {
		switch oe.Kind {

		case domain.KindNotFound:
			if strings.Contains(oe.Op, "transfer.find_form") {
				return "Form not offered by the source"
			}
			if strings.Contains(oe.Op, "workspacefinder.findroot") {
				return "Workspace not found"
			}
			return "Not found"

		case domain.KindAuthentication:
			return "Authentication failed, check the username and password"

		case domain.KindNetwork:
			return "Cannot reach the server"

		case domain.KindProtocol:
			if code := httpclient.StatusOf(err); code != 0 {
				return "Server rejected the request (HTTP " + strconv.Itoa(code) + ")"
			}
			return "Unexpected response from the server"

		case domain.KindValidation:
			if errors.Is(err, domain.ErrMissingInstanceID) {
				return "Submission has no instance id"
			}
			return "Invalid submission"

		case domain.KindCancelled:
			return "Cancelled"

		case domain.KindInvalidConfig:
			if errors.Is(err, domain.ErrUnsupportedTransfer) {
				return "This endpoint cannot be used in this direction"
			}
			base := "config"
			if strings.TrimSpace(oe.Path) != "" {
				base = filepath.Base(oe.Path)
			}

			line := extractLine(err.Error())
			if line != "" {
				return "Invalid YAML at " + base + " line " + line
			}

			if looksLikeYAMLProblem(err.Error()) {
				return "Invalid YAML at " + base
			}
			return "Invalid config"

		default:
			return "Unexpected error (see logs)"
		}
	}

	if looksLikeYAMLProblem(err.Error()) {
		line := extractLine(err.Error())
		if line != "" {
			return "Invalid YAML line " + line
		}
		return "Invalid YAML"
	}

	return "Unexpected error (see logs)"
}

func looksLikeYAMLProblem(s string) bool {
	ls := strings.ToLower(s)
	return strings.Contains(ls, "yaml:") || strings.Contains(ls, "did not find expected") || strings.Contains(ls, "cannot unmarshal")
}

func extractLine(s string) string {
	m := reLine.FindStringSubmatch(s)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}
