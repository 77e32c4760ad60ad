package usecase

import (
	"context"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/xform"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PullAggregate downloads a form and its submissions from an Aggregate
// server, paging through submission ids with a cursor.
type PullAggregate struct {
	api    ports.AggregateAPI
	source domain.Endpoint
	workspace
}

func NewPullAggregate(api ports.AggregateAPI, source domain.Endpoint, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *PullAggregate {
	return &PullAggregate{
		api:       api,
		source:    source,
		workspace: newWorkspace(storage, meta, opts),
	}
}

// Pull transfers form. Batches are requested from the last committed cursor
// until the server answers with an empty one; the cursor is committed only
// after every submission of a batch is on disk. A cancelled pull returns
// what was committed with Cancelled set and no error.
func (uc *PullAggregate) Pull(s *job.RunnerStatus, form domain.RemoteForm, opts PullOptions) (res domain.PullResult, err error) {
	res = domain.PullResult{Form: form.Key, StartedAt: uc.now()}
	defer func() { res.EndedAt = uc.now() }()

	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}
	ctx := s.Context()
	uc.report(form.Key, domain.EventInfo, "Downloading form")

	def, err := uc.api.Download(ctx, form.DownloadURL)
	if err != nil {
		return res, err
	}
	info, err := xform.ParseForm(def)
	if err != nil {
		return res, err
	}

	fallback := domain.FormMetadata{Name: form.Name}
	if fallback.Name == "" {
		fallback.Name = info.Name
	}
	meta, err := uc.localForm(form.Key, fallback)
	if err != nil {
		return res, err
	}
	if res.FormUpdated, err = uc.storeDefinition(&meta, def); err != nil {
		return res, err
	}

	if err := uc.pullMedia(s, form, meta); err != nil {
		return res, err
	}
	if s.IsCancelled() {
		res.Cancelled = true
		return res, nil
	}

	meta.PullSource = uc.source
	if err := uc.meta.Put(meta); err != nil {
		return res, err
	}
	res.Cursor = meta.Cursor

	size := opts.batchSize()
	for {
		if s.IsCancelled() {
			res.Cancelled = true
			break
		}

		uc.report(form.Key, domain.EventInfo, "Requesting submissions after batch %d", res.Batches)
		batch, err := uc.api.InstanceIDBatch(ctx, form.Key.ID, meta.Cursor, size, opts.IncludeIncomplete)
		if err != nil {
			return res, err
		}
		if len(batch.IDs) == 0 {
			break
		}
		res.Batches++

		for _, id := range batch.IDs {
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
		if res.Cancelled {
			break
		}

		if batch.Cursor.Compare(meta.Cursor) <= 0 {
			uc.log.Warn("pull.cursor.stalled", "form", form.Key.String(), "cursor", batch.Cursor.XML())
			break
		}
		meta = meta.WithCursor(batch.Cursor)
		meta.LastPulledAt = uc.now()
		if err := uc.meta.Put(meta); err != nil {
			return res, err
		}
		res.Cursor = meta.Cursor
		uc.log.Info("pull.batch.committed", "form", form.Key.String(), "batch", res.Batches, "ids", len(batch.IDs))
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

func (uc *PullAggregate) pullMedia(s *job.RunnerStatus, form domain.RemoteForm, meta domain.FormMetadata) error {
	if form.ManifestURL == "" {
		return nil
	}
	ctx := s.Context()

	refs, err := uc.api.Manifest(ctx, form.ManifestURL)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if s.IsCancelled() {
			return nil
		}
		p := attachmentPath(meta.MediaDir, ref.Name)
		if err := uc.download(ctx, p, ref); err != nil {
			return err
		}
	}
	return nil
}

// download fetches ref into p unless p already holds the same content.
func (uc *PullAggregate) download(ctx context.Context, p string, ref domain.AttachmentRef) error {
	if current, err := uc.storage.ReadFile(p); err == nil && sameContent(current, ref.Hash) {
		return nil
	}
	b, err := uc.api.Download(ctx, ref.DownloadURL)
	if err != nil {
		return err
	}
	_, err = uc.storage.WriteFile(p, b)
	return err
}

// pullSubmission downloads one submission. Attachments go first and the
// submission document last, so a stored document always means a complete
// submission. It returns false when cancellation stopped it midway.
func (uc *PullAggregate) pullSubmission(s *job.RunnerStatus, info domain.FormInfo, meta domain.FormMetadata, id string) (bool, error) {
	ctx := s.Context()

	sub, err := uc.api.DownloadSubmission(ctx, meta.Key.ID, info.TopElement, id)
	if err != nil {
		return false, err
	}
	if err := domain.ValidateSubmission(sub, info.HasRepeats); err != nil {
		return false, err
	}

	dir := uc.storage.InstanceDir(meta.Key, meta.Name, id)
	for _, att := range sub.Attachments {
		if s.IsCancelled() {
			return false, nil
		}
		if err := uc.download(ctx, attachmentPath(dir, att.Name), att); err != nil {
			return false, err
		}
	}

	if _, err := uc.storage.WriteFile(uc.storage.SubmissionFile(meta.Key, meta.Name, id), sub.XML); err != nil {
		return false, err
	}
	return true, nil
}
