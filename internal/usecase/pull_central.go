package usecase

import (
	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/xform"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PullCentral downloads a form and its submissions from a Central project
// over an already authenticated session.
type PullCentral struct {
	session ports.CentralSession
	source  domain.Endpoint
	workspace
}

func NewPullCentral(session ports.CentralSession, source domain.Endpoint, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *PullCentral {
	return &PullCentral{
		session:   session,
		source:    source,
		workspace: newWorkspace(storage, meta, opts),
	}
}

// Pull transfers form following the server's own submission listing.
// Authentication failures abort the pull; the session is never refreshed.
func (uc *PullCentral) Pull(s *job.RunnerStatus, form domain.FormMetadata) (res domain.PullResult, err error) {
	res = domain.PullResult{Form: form.Key, StartedAt: uc.now()}
	defer func() { res.EndedAt = uc.now() }()

	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}
	ctx := s.Context()
	uc.report(form.Key, domain.EventInfo, "Downloading form")

	def, err := uc.session.FormDefinition(ctx, form.Key.ID)
	if err != nil {
		return res, err
	}
	info, err := xform.ParseForm(def)
	if err != nil {
		return res, err
	}
	if form.Name == "" {
		form.Name = info.Name
	}

	meta, err := uc.localForm(form.Key, form)
	if err != nil {
		return res, err
	}
	if res.FormUpdated, err = uc.storeDefinition(&meta, def); err != nil {
		return res, err
	}

	refs, err := uc.session.FormAttachments(ctx, form.Key.ID)
	if err != nil {
		return res, err
	}
	for _, ref := range refs {
		if s.IsCancelled() {
			res.Cancelled = true
			return res, nil
		}
		b, err := uc.session.FormAttachment(ctx, form.Key.ID, ref.Name)
		if err != nil {
			return res, err
		}
		if _, err := uc.storage.WriteFile(attachmentPath(meta.MediaDir, ref.Name), b); err != nil {
			return res, err
		}
	}

	meta.PullSource = uc.source
	if err := uc.meta.Put(meta); err != nil {
		return res, err
	}

	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}
	ids, err := uc.session.SubmissionIDs(ctx, form.Key.ID)
	if err != nil {
		return res, err
	}
	res.Batches = 1
	uc.report(form.Key, domain.EventInfo, "Found %d submissions", len(ids))

	for _, id := range ids {
		if s.IsCancelled() {
			res.Cancelled = true
			break
		}
		if uc.storage.HasSubmission(form.Key, meta.Name, id) {
			res.Skipped++
			continue
		}

		done, err := uc.pullSubmission(s, info, meta, id)
		if domain.IsKind(err, domain.KindValidation) {
			res.Invalid = append(res.Invalid, domain.SubmissionFailure{InstanceID: id, Kind: domain.KindValidation, Message: err.Error()})
			uc.report(form.Key, domain.EventFailure, "Skipping invalid submission %s: %v", id, err)
			continue
		}
		if err != nil {
			return res, err
		}
		if !done {
			res.Cancelled = true
			break
		}
		res.Downloaded++
	}

	if err := uc.stampPull(meta, res); err != nil {
		return res, err
	}

	if res.Cancelled {
		uc.report(form.Key, domain.EventCancelled, "Cancelled after %d submissions", res.Downloaded)
		return res, nil
	}
	uc.report(form.Key, domain.EventSuccess, "Pulled %d submissions (%d already present, %d invalid)", res.Downloaded, res.Skipped, len(res.Invalid))
	return res, nil
}

func (uc *PullCentral) pullSubmission(s *job.RunnerStatus, info domain.FormInfo, meta domain.FormMetadata, id string) (bool, error) {
	ctx := s.Context()

	doc, err := uc.session.Submission(ctx, meta.Key.ID, id)
	if err != nil {
		return false, err
	}
	parsed, err := xform.ParseSubmission(doc)
	if err != nil {
		return false, err
	}
	sub := domain.Submission{InstanceID: parsed.InstanceID, FormKey: parsed.Key, XML: doc}
	if err := domain.ValidateSubmission(sub, info.HasRepeats); err != nil {
		return false, err
	}

	if s.IsCancelled() {
		return false, nil
	}
	atts, err := uc.session.SubmissionAttachments(ctx, meta.Key.ID, id)
	if err != nil {
		return false, err
	}

	dir := uc.storage.InstanceDir(meta.Key, meta.Name, id)
	for _, att := range atts {
		if s.IsCancelled() {
			return false, nil
		}
		b, err := uc.session.SubmissionAttachment(ctx, meta.Key.ID, id, att.Name)
		if err != nil {
			return false, err
		}
		if _, err := uc.storage.WriteFile(attachmentPath(dir, att.Name), b); err != nil {
			return false, err
		}
	}

	if _, err := uc.storage.WriteFile(uc.storage.SubmissionFile(meta.Key, meta.Name, id), doc); err != nil {
		return false, err
	}
	return true, nil
}
