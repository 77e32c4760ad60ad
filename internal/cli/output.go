package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ui/tui"
)

// report gathers job callbacks and progress events; callbacks arrive on
// worker goroutines.
type report[T any] struct {
	mu      sync.Mutex
	results []T
	errors  []error
	events  []domain.FormStatusEvent
}

func (r *report[T]) success(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, v)
}

func (r *report[T]) failure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *report[T]) event(ev domain.FormStatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *report[T]) writePretty(w io.Writer, title string, summarize func(T) string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(w, title)
	fmt.Fprintln(w)
	for _, v := range r.results {
		fmt.Fprintf(w, "- [OK]   %s\n", summarize(v))
	}
	for _, err := range r.errors {
		fmt.Fprintf(w, "- [FAIL] %s: %s\n", formOf(err), tui.UserMessage(err))
		fmt.Fprintf(w, "  error: %v\n", err)
	}
}

type errorJSON struct {
	Form    string `json:"form"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type eventJSON struct {
	Form    string    `json:"form"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (r *report[T]) writeJSON(w io.Writer, toJSON func(T) any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload := struct {
		Results []any       `json:"results"`
		Errors  []errorJSON `json:"errors"`
		Events  []eventJSON `json:"events"`
	}{
		Results: make([]any, 0, len(r.results)),
		Errors:  make([]errorJSON, 0, len(r.errors)),
		Events:  make([]eventJSON, 0, len(r.events)),
	}
	for _, v := range r.results {
		payload.Results = append(payload.Results, toJSON(v))
	}
	for _, err := range r.errors {
		payload.Errors = append(payload.Errors, errorJSON{
			Form:    formOf(err).String(),
			Kind:    string(domain.KindOf(err)),
			Message: err.Error(),
		})
	}
	for _, ev := range r.events {
		payload.Events = append(payload.Events, eventJSON{
			Form:    ev.Form.String(),
			Kind:    string(ev.Kind),
			Message: ev.Message,
			At:      ev.At,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

type failureJSON struct {
	InstanceID string `json:"instance_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

func failuresJSON(in []domain.SubmissionFailure) []failureJSON {
	out := make([]failureJSON, 0, len(in))
	for _, f := range in {
		out = append(out, failureJSON{InstanceID: f.InstanceID, Kind: string(f.Kind), Message: f.Message})
	}
	return out
}

func pullSummary(r domain.PullResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d downloaded, %d already present", r.Form, r.Downloaded, r.Skipped)
	if n := len(r.Invalid); n > 0 {
		fmt.Fprintf(&b, ", %d invalid", n)
	}
	if r.FormUpdated {
		b.WriteString(", form updated")
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}

func pullJSON(r domain.PullResult) any {
	return struct {
		Form        string        `json:"form"`
		Batches     int           `json:"batches"`
		Downloaded  int           `json:"downloaded"`
		Skipped     int           `json:"skipped"`
		Invalid     []failureJSON `json:"invalid"`
		Cursor      string        `json:"cursor,omitempty"`
		FormUpdated bool          `json:"form_updated"`
		Cancelled   bool          `json:"cancelled"`
		DurationMS  int64         `json:"duration_ms"`
	}{
		Form:        r.Form.String(),
		Batches:     r.Batches,
		Downloaded:  r.Downloaded,
		Skipped:     r.Skipped,
		Invalid:     failuresJSON(r.Invalid),
		Cursor:      cursorText(r.Cursor),
		FormUpdated: r.FormUpdated,
		Cancelled:   r.Cancelled,
		DurationMS:  r.EndedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

func cursorText(c domain.Cursor) string {
	if c.IsEmpty() {
		return ""
	}
	return c.XML()
}

func pushSummary(r domain.PushResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d submissions pushed", r.Form, r.Succeeded, r.Attempted)
	if n := r.Failed(); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	switch {
	case r.FormPushed:
		b.WriteString(", form uploaded")
	case r.FormSkipped:
		b.WriteString(", form already on server")
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}

func pushJSON(r domain.PushResult) any {
	return struct {
		Form        string        `json:"form"`
		FormPushed  bool          `json:"form_pushed"`
		FormSkipped bool          `json:"form_skipped"`
		Attempted   int           `json:"attempted"`
		Succeeded   int           `json:"succeeded"`
		Failures    []failureJSON `json:"failures"`
		Cancelled   bool          `json:"cancelled"`
		DurationMS  int64         `json:"duration_ms"`
	}{
		Form:        r.Form.String(),
		FormPushed:  r.FormPushed,
		FormSkipped: r.FormSkipped,
		Attempted:   r.Attempted,
		Succeeded:   r.Succeeded,
		Failures:    failuresJSON(r.Failures),
		Cancelled:   r.Cancelled,
		DurationMS:  r.EndedAt.Sub(r.StartedAt).Milliseconds(),
	}
}
