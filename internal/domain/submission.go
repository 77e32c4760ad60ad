package domain

import "fmt"

// Submission is one completed instance of a form.
type Submission struct {
	InstanceID  string
	FormKey     FormKey
	XML         []byte
	Attachments []AttachmentRef
}

// LocalSubmission is a submission as stored in the workspace.
type LocalSubmission struct {
	InstanceID  string
	Dir         string
	File        string
	Attachments []string
}

// ValidateSubmission applies the structural validity rule: a submission with
// an instance id is valid; one without is valid only when the form declares
// no repeat groups, since repeat children cannot be reconciled without it.
func ValidateSubmission(sub Submission, formHasRepeats bool) error {
	if sub.InstanceID != "" {
		return nil
	}
	if !formHasRepeats {
		return nil
	}
	return ValidationError("submission.validate", sub.FormKey.String(),
		fmt.Errorf("%w and form %s has repeat groups", ErrMissingInstanceID, sub.FormKey))
}

// InstanceIDBatch is one page of submission ids and the cursor positioned
// at its last item.
type InstanceIDBatch struct {
	IDs    []string
	Cursor Cursor
}

// FormInfo is what the engine needs to know about a form definition.
type FormInfo struct {
	Key        FormKey
	Name       string
	TopElement string
	HasRepeats bool
}
