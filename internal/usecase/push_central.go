package usecase

import (
	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PushCentral uploads a stored form and its submissions to a Central
// project over an authenticated session.
type PushCentral struct {
	session ports.CentralSession
	workspace
}

func NewPushCentral(session ports.CentralSession, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *PushCentral {
	return &PushCentral{session: session, workspace: newWorkspace(storage, meta, opts)}
}

// Push makes sure the form exists server side with this version, then
// uploads every stored submission. Submissions the server already holds
// count as pushed.
func (uc *PushCentral) Push(s *job.RunnerStatus, form domain.FormMetadata, opts PushOptions) (res domain.PushResult, err error) {
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

	exists, sameVersion, err := uc.session.FormExists(ctx, form.Key)
	if err != nil {
		return res, err
	}
	if exists && sameVersion && !opts.Force {
		res.FormSkipped = true
		uc.report(form.Key, domain.EventInfo, "Form already on server, skipping form upload")
	} else {
		if s.IsCancelled() {
			res.Cancelled = true
			return res, nil
		}
		uc.report(form.Key, domain.EventInfo, "Uploading form")
		err := uc.session.PushForm(ctx, form.Key, def, media, exists)
		switch {
		case domain.IsKind(err, domain.KindAlreadyExists) && sameVersion:
			// Central never accepts a second definition with the same version.
			res.FormSkipped = true
		case err != nil:
			return res, err
		default:
			res.FormPushed = true
		}
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
		var existed bool
		if err == nil {
			existed, err = uc.session.PushSubmission(ctx, doc, atts)
		}
		if err != nil {
			if uc.submissionFailed(&res, sub, err) {
				return res, err
			}
			continue
		}
		if existed {
			uc.log.Debug("push.submission.exists", "form", form.Key.String(), "instance", sub.InstanceID)
		}
		res.Succeeded++
	}

	return res, uc.finishPush(meta, &res)
}
