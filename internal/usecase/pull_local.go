package usecase

import (
	"path"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PullLocal imports a form, its media and any matching instances from a
// Collect directory or a form file.
type PullLocal struct {
	src    ports.LocalSource
	source domain.Endpoint
	workspace
}

func NewPullLocal(src ports.LocalSource, source domain.Endpoint, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *PullLocal {
	return &PullLocal{
		src:       src,
		source:    source,
		workspace: newWorkspace(storage, meta, opts),
	}
}

func (uc *PullLocal) Pull(s *job.RunnerStatus, form ports.LocalForm) (res domain.PullResult, err error) {
	key := form.Info.Key
	res = domain.PullResult{Form: key, StartedAt: uc.now()}
	defer func() { res.EndedAt = uc.now() }()

	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}
	uc.report(key, domain.EventInfo, "Importing form")

	def, err := uc.src.ReadFile(form.File)
	if err != nil {
		return res, err
	}
	meta, err := uc.localForm(key, domain.FormMetadata{Name: form.Info.Name})
	if err != nil {
		return res, err
	}
	if res.FormUpdated, err = uc.storeDefinition(&meta, def); err != nil {
		return res, err
	}

	media, err := uc.src.ListFiles(form.MediaDir)
	if err != nil {
		return res, err
	}
	for _, m := range media {
		if err := uc.copy(m, attachmentPath(meta.MediaDir, m)); err != nil {
			return res, err
		}
	}

	meta.PullSource = uc.source
	if err := uc.meta.Put(meta); err != nil {
		return res, err
	}

	insts, err := uc.src.ListInstances(s.Context(), key)
	if err != nil {
		return res, err
	}
	if len(insts) > 0 {
		res.Batches = 1
	}

	for _, inst := range insts {
		if s.IsCancelled() {
			res.Cancelled = true
			break
		}

		id := inst.InstanceID
		if id == "" {
			id = inst.Name
		}
		if uc.storage.HasSubmission(key, meta.Name, id) {
			res.Skipped++
			continue
		}

		err := uc.importInstance(form.Info, meta, inst, id)
		if domain.IsKind(err, domain.KindValidation) {
			res.Invalid = append(res.Invalid, domain.SubmissionFailure{InstanceID: id, Kind: domain.KindValidation, Message: err.Error()})
			uc.report(key, domain.EventFailure, "Skipping invalid submission %s: %v", id, err)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Downloaded++
	}

	if err := uc.stampPull(meta, res); err != nil {
		return res, err
	}

	if res.Cancelled {
		uc.report(key, domain.EventCancelled, "Cancelled after %d submissions", res.Downloaded)
		return res, nil
	}
	uc.report(key, domain.EventSuccess, "Imported %d submissions (%d already present, %d invalid)", res.Downloaded, res.Skipped, len(res.Invalid))
	return res, nil
}

func (uc *PullLocal) importInstance(info domain.FormInfo, meta domain.FormMetadata, inst ports.LocalInstance, id string) error {
	sub := domain.Submission{InstanceID: inst.InstanceID, FormKey: info.Key}
	if err := domain.ValidateSubmission(sub, info.HasRepeats); err != nil {
		return err
	}

	dir := uc.storage.InstanceDir(meta.Key, meta.Name, id)
	for _, a := range inst.Attachments {
		if err := uc.copy(a, path.Join(dir, path.Base(a))); err != nil {
			return err
		}
	}
	return uc.copy(inst.File, uc.storage.SubmissionFile(meta.Key, meta.Name, id))
}

func (uc *PullLocal) copy(from, to string) error {
	b, err := uc.src.ReadFile(from)
	if err != nil {
		return err
	}
	_, err = uc.storage.WriteFile(to, b)
	return err
}
