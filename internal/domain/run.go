package domain

import "time"

// EventKind classifies a progress event.
type EventKind string

const (
	EventInfo      EventKind = "info"
	EventSuccess   EventKind = "success"
	EventFailure   EventKind = "failure"
	EventCancelled EventKind = "cancelled"
)

// FormStatusEvent is a human-readable status line about one form.
type FormStatusEvent struct {
	Form    FormKey
	Kind    EventKind
	Message string
	At      time.Time
}

// SubmissionFailure records why one submission could not be transferred.
type SubmissionFailure struct {
	InstanceID string
	Kind       ErrorKind
	Message    string
}

// PullResult summarises one form pull. A cancelled pull keeps everything
// committed before cancellation was observed.
type PullResult struct {
	Form        FormKey
	Batches     int
	Downloaded  int
	Skipped     int
	Invalid     []SubmissionFailure
	Cursor      Cursor
	FormUpdated bool
	Cancelled   bool
	StartedAt   time.Time
	EndedAt     time.Time
}

// PushResult tallies one form push. Submissions are pushed independently,
// so Succeeded+len(Failures) equals the number attempted.
type PushResult struct {
	Form        FormKey
	FormPushed  bool
	FormSkipped bool
	Attempted   int
	Succeeded   int
	Failures    []SubmissionFailure
	Cancelled   bool
	StartedAt   time.Time
	EndedAt     time.Time
}

func (r PushResult) Failed() int { return len(r.Failures) }

// FormError attributes a job failure to the form it was transferring.
type FormError struct {
	Form FormKey
	Err  error
}

func (e *FormError) Error() string { return e.Form.String() + ": " + e.Err.Error() }

func (e *FormError) Unwrap() error { return e.Err }
