package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

type formState int

const (
	statePending formState = iota
	stateRunning
	stateDone
	stateFailed
	stateCancelled
)

type formRow struct {
	key     domain.FormKey
	name    string
	state   formState
	message string
}

type model struct {
	theme Theme
	deps  Deps
	feed  *Feed

	spin  spinner.Model
	rows  []formRow
	index map[domain.FormKey]int
	width int

	cancelling bool
	finished   bool
	toast      string
}

// Run shows transfer progress until the runner behind feed finishes. The
// first ctrl+c cancels the transfer; a second one leaves the view without
// waiting.
func Run(deps Deps, feed *Feed) error {
	m := newModel(deps, feed)
	p := tea.NewProgram(wrapSafe(m, deps.Logger))
	_, err := p.Run()
	feed.detach()
	return err
}

func newModel(deps Deps, feed *Feed) model {
	t := DefaultTheme()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = t.Running

	m := model{
		theme: t,
		deps:  deps,
		feed:  feed,
		spin:  s,
		index: make(map[domain.FormKey]int, len(deps.Forms)),
	}
	for i, f := range deps.Forms {
		m.rows = append(m.rows, formRow{key: f.Key, name: f.DisplayName(), message: "Waiting"})
		m.index[f.Key] = i
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, listenFeed(m.feed.ch))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.finished || m.cancelling {
				return m, tea.Quit
			}
			m.cancelling = true
			m.toast = "Cancelling, waiting for running forms to stop (press again to quit)"
			if m.deps.Cancel != nil {
				m.deps.Cancel()
			}
			return m, nil
		}
		return m, nil

	case formEventMsg:
		if i, ok := m.index[msg.Form]; ok {
			r := &m.rows[i]
			if r.state == statePending {
				r.state = stateRunning
			}
			r.message = msg.Message
		}
		return m, listenFeed(m.feed.ch)

	case formDoneMsg:
		if i, ok := m.index[msg.form]; ok {
			r := &m.rows[i]
			switch {
			case msg.err != nil && domain.IsKind(msg.err, domain.KindCancelled):
				r.state, r.message = stateCancelled, "Cancelled"
			case msg.err != nil:
				r.state, r.message = stateFailed, userMessage(msg.err)
			default:
				r.state, r.message = stateDone, msg.summary
			}
		}
		return m, listenFeed(m.feed.ch)

	case feedClosedMsg:
		m.finished = true
		for i := range m.rows {
			if m.rows[i].state == statePending || m.rows[i].state == stateRunning {
				m.rows[i].state = stateCancelled
				m.rows[i].message = "Not started"
			}
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	wrap := lipgloss.NewStyle().Padding(1, 2)

	var b strings.Builder
	b.WriteString(m.theme.Title.Render(m.deps.Title))
	b.WriteString("\n")
	b.WriteString(m.theme.Subtitle.Render(summaryLine(m.rows)))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, r := range m.rows {
		nameWidth = max(nameWidth, len([]rune(r.name)))
	}
	nameWidth = min(nameWidth, 32)

	var lines []string
	for _, r := range m.rows {
		lines = append(lines, m.renderRow(r, nameWidth))
	}
	b.WriteString(m.theme.Card.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if m.toast != "" {
		b.WriteString(m.theme.Help.Render(m.toast))
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString(m.theme.Help.Render("ctrl+c cancel"))
	}
	return wrap.Render(b.String())
}

func (m model) renderRow(r formRow, nameWidth int) string {
	var mark string
	switch r.state {
	case statePending:
		mark = m.theme.Help.Render("·")
	case stateRunning:
		mark = m.spin.View()
	case stateDone:
		mark = m.theme.Success.Render("✓")
	case stateFailed:
		mark = m.theme.Failure.Render("✗")
	case stateCancelled:
		mark = m.theme.Help.Render("-")
	}

	msgWidth := 60
	if m.width > 0 {
		msgWidth = max(m.width-nameWidth-16, 10)
	}
	return fmt.Sprintf("%s %-*s  %s", mark, nameWidth, clampString(r.name, nameWidth), clampString(r.message, msgWidth))
}
