package tui

import "github.com/getodk/briefcase-sub006/internal/domain"

type formEventMsg domain.FormStatusEvent

type formDoneMsg struct {
	form    domain.FormKey
	summary string
	err     error
}

type feedClosedMsg struct{}
