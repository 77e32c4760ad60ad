package tui

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const displayErrorToast = "Display error, transfer continues (see logs)"

// safeModel keeps a rendering bug from taking the transfer down with the
// view: the runner keeps going and progress falls back to plain text.
type safeModel struct {
	m   model
	log *slog.Logger
}

func wrapSafe(m model, log *slog.Logger) safeModel {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return safeModel{m: m, log: log}
}

func (s safeModel) Init() tea.Cmd {
	return s.m.Init()
}

func (s safeModel) Update(msg tea.Msg) (tm tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			s.recovered("tui.update", r, "msg", fmt.Sprintf("%T", msg))
			s.m.toast = displayErrorToast
			tm, cmd = s, s.afterPanic(msg)
		}
	}()

	inner, c := s.m.Update(msg)

	if mm, ok := inner.(model); ok {
		s.m = mm
	} else if sm, ok := inner.(safeModel); ok {
		s = sm
	}

	return s, c
}

// afterPanic picks up the feed again, or leaves when the panicking message
// was the last one the runner will send.
func (s safeModel) afterPanic(msg tea.Msg) tea.Cmd {
	if _, closed := msg.(feedClosedMsg); closed {
		return tea.Quit
	}
	return listenFeed(s.m.feed.ch)
}

func (s safeModel) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			s.recovered("tui.view", r)
			out = plainView(s.m.deps.Title, s.m.rows)
		}
	}()
	return s.m.View()
}

func (s safeModel) recovered(where string, r any, attrs ...any) {
	args := append([]any{"where", where, "panic", fmt.Sprint(r)}, attrs...)
	args = append(args, "stack", string(debug.Stack()))
	s.log.Error("panic.recovered", args...)
}

// plainView renders progress without styling.
func plainView(title string, rows []formRow) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n")
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s: %s\n", r.name, r.message)
	}
	b.WriteString(summaryLine(rows) + "\n")
	b.WriteString(displayErrorToast + "\n")
	return b.String()
}

var _ tea.Model = (*safeModel)(nil)
