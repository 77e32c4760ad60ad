package usecase

import (
	"path"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PushAggregate uploads a stored form and its submissions to an Aggregate
// server.
type PushAggregate struct {
	api ports.AggregateAPI
	workspace
}

func NewPushAggregate(api ports.AggregateAPI, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *PushAggregate {
	return &PushAggregate{api: api, workspace: newWorkspace(storage, meta, opts)}
}

// Push sends the form unless the server already lists the same id and
// version (or opts.Force is set), then every stored submission. A failed
// submission is recorded and the rest are still attempted, unless the server
// rejected the credentials.
func (uc *PushAggregate) Push(s *job.RunnerStatus, form domain.FormMetadata, opts PushOptions) (res domain.PushResult, err error) {
	res = domain.PushResult{Form: form.Key, StartedAt: uc.now()}
	defer func() { res.EndedAt = uc.now() }()

	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}
	ctx := s.Context()

	meta, err := uc.localForm(form.Key, form)
	if err != nil {
		return res, err
	}
	def, media, err := readForm(uc.storage, meta)
	if err != nil {
		return res, err
	}

	remote, err := uc.api.ListForms(ctx)
	if err != nil {
		return res, err
	}
	if hasForm(remote, form.Key) && !opts.Force {
		res.FormSkipped = true
		uc.report(form.Key, domain.EventInfo, "Form already on server, skipping form upload")
	} else {
		if s.IsCancelled() {
			res.Cancelled = true
			return res, nil
		}
		uc.report(form.Key, domain.EventInfo, "Uploading form")
		if err := uc.api.PushForm(ctx, def, media); err != nil {
			return res, err
		}
		res.FormPushed = true
	}

	subs, err := uc.storage.ListSubmissions(form.Key, meta.Name)
	if err != nil {
		return res, err
	}

	for _, sub := range subs {
		if s.IsCancelled() {
			res.Cancelled = true
			break
		}
		res.Attempted++

		doc, atts, err := readSubmission(uc.storage, sub)
		if err == nil {
			err = uc.api.PushSubmission(ctx, doc, atts)
		}
		if err != nil {
			if uc.submissionFailed(&res, sub, err) {
				return res, err
			}
			continue
		}
		res.Succeeded++
	}

	return res, uc.finishPush(meta, &res)
}

// finishPush records the push time and emits the closing event.
func (w workspace) finishPush(meta domain.FormMetadata, res *domain.PushResult) error {
	meta.LastPushedAt = w.now()
	if err := w.meta.Put(meta); err != nil {
		return err
	}

	switch {
	case res.Cancelled:
		w.report(res.Form, domain.EventCancelled, "Cancelled after %d submissions", res.Attempted)
	case res.Failed() > 0:
		w.report(res.Form, domain.EventFailure, "Pushed %d submissions, %d failed", res.Succeeded, res.Failed())
	default:
		w.report(res.Form, domain.EventSuccess, "Pushed %d submissions", res.Succeeded)
	}
	return nil
}

// submissionFailed records a failed upload and reports whether the push has
// to stop, which is the case once the server rejects the credentials.
func (w workspace) submissionFailed(res *domain.PushResult, sub domain.LocalSubmission, err error) bool {
	res.Failures = append(res.Failures, domain.SubmissionFailure{InstanceID: sub.InstanceID, Kind: domain.KindOf(err), Message: err.Error()})
	w.log.Warn("push.submission.failed", "form", res.Form.String(), "instance", sub.InstanceID, "err", err)
	w.report(res.Form, domain.EventFailure, "Submission %s failed: %v", sub.InstanceID, err)
	return domain.IsKind(err, domain.KindAuthentication)
}

func hasForm(forms []domain.RemoteForm, key domain.FormKey) bool {
	for _, f := range forms {
		if f.Key == key {
			return true
		}
	}
	return false
}

// readForm loads the stored definition and media files as upload parts.
func readForm(storage ports.FormStorage, meta domain.FormMetadata) ([]byte, []domain.Part, error) {
	file := meta.FormFile
	if file == "" {
		file = storage.FormFile(meta.Key, meta.Name)
	}
	def, err := storage.ReadFile(file)
	if err != nil {
		return nil, nil, err
	}

	names, err := storage.ListMedia(meta.Key, meta.Name)
	if err != nil {
		return nil, nil, err
	}
	dir := storage.MediaDir(meta.Key, meta.Name)

	parts := make([]domain.Part, 0, len(names))
	for _, n := range names {
		b, err := storage.ReadFile(path.Join(dir, n))
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, filePart(n, b))
	}
	return def, parts, nil
}

func readSubmission(storage ports.FormStorage, sub domain.LocalSubmission) ([]byte, []domain.Part, error) {
	doc, err := storage.ReadFile(sub.File)
	if err != nil {
		return nil, nil, err
	}

	parts := make([]domain.Part, 0, len(sub.Attachments))
	for _, a := range sub.Attachments {
		b, err := storage.ReadFile(path.Join(sub.Dir, a))
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, filePart(a, b))
	}
	return doc, parts, nil
}

// filePart names the multipart field after the file, as OpenRosa servers
// expect.
func filePart(name string, data []byte) domain.Part {
	return domain.Part{Name: name, Filename: name, Data: data}
}
