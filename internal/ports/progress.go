package ports

import "github.com/getodk/briefcase-sub006/internal/domain"

// ProgressSink receives per-form status events. Implementations must be safe
// for concurrent use: jobs for different forms report in parallel.
type ProgressSink interface {
	Report(ev domain.FormStatusEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ev domain.FormStatusEvent)

func (f ProgressFunc) Report(ev domain.FormStatusEvent) {
	if f != nil {
		f(ev)
	}
}

// DiscardProgress drops every event.
var DiscardProgress ProgressSink = ProgressFunc(nil)
