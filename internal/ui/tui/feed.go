package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// Feed carries transfer progress from the job runner to the view. It is a
// ports.ProgressSink; once the view has exited every send is dropped.
type Feed struct {
	ch   chan tea.Msg
	stop chan struct{}

	closeOnce sync.Once
	stopOnce  sync.Once
}

var _ ports.ProgressSink = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{
		ch:   make(chan tea.Msg, 64),
		stop: make(chan struct{}),
	}
}

func (f *Feed) Report(ev domain.FormStatusEvent) {
	f.send(formEventMsg(ev))
}

// Done marks form finished, with a one-line summary or the error that
// stopped it.
func (f *Feed) Done(form domain.FormKey, summary string, err error) {
	f.send(formDoneMsg{form: form, summary: summary, err: err})
}

// Close tells the view the runner has finished.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.send(feedClosedMsg{})
		close(f.ch)
	})
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case <-f.stop:
	case f.ch <- msg:
	}
}

func (f *Feed) detach() {
	f.stopOnce.Do(func() { close(f.stop) })
}

func listenFeed(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return msg
	}
}
