package usecase

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// PullOptions tune a pull from a remote or local source.
type PullOptions struct {
	BatchSize         int
	IncludeIncomplete bool
	Parallel          int
}

func (o PullOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return domain.DefaultBatchSize
	}
	return o.BatchSize
}

// PushOptions tune a push to a remote target.
type PushOptions struct {
	Force    bool
	Parallel int
}

// workspace bundles what every engine needs: local storage, per-form
// metadata, a progress sink, a logger and a clock.
type workspace struct {
	storage  ports.FormStorage
	meta     ports.FormMetadataStore
	progress ports.ProgressSink
	log      *slog.Logger
	now      func() time.Time
}

// Option configures an engine.
type Option func(*workspace)

func WithLogger(l *slog.Logger) Option {
	return func(w *workspace) {
		if l != nil {
			w.log = l
		}
	}
}

func WithProgress(p ports.ProgressSink) Option {
	return func(w *workspace) {
		if p != nil {
			w.progress = p
		}
	}
}

// WithClock is useful for tests.
func WithClock(now func() time.Time) Option {
	return func(w *workspace) {
		if now != nil {
			w.now = now
		}
	}
}

func newWorkspace(storage ports.FormStorage, meta ports.FormMetadataStore, opts []Option) workspace {
	w := workspace{
		storage:  storage,
		meta:     meta,
		progress: ports.DiscardProgress,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func (w workspace) report(form domain.FormKey, kind domain.EventKind, format string, args ...any) {
	w.progress.Report(domain.FormStatusEvent{
		Form:    form,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		At:      w.now(),
	})
}

// reportOutcome turns a job's terminal error into a progress event.
func (w workspace) reportOutcome(form domain.FormKey, err error) {
	if domain.IsKind(err, domain.KindCancelled) {
		w.report(form, domain.EventCancelled, "Cancelled")
		return
	}
	w.report(form, domain.EventFailure, "Failed: %v", err)
}

// localForm loads the stored metadata for key, seeding a fresh record from
// fallback. The stored name wins so a form keeps its directory across
// transfers.
func (w workspace) localForm(key domain.FormKey, fallback domain.FormMetadata) (domain.FormMetadata, error) {
	meta, ok, err := w.meta.Get(key)
	if err != nil {
		return domain.FormMetadata{}, err
	}
	if !ok {
		meta = domain.FormMetadata{Key: key}
	}
	if strings.TrimSpace(meta.Name) == "" {
		meta.Name = fallback.Name
	}
	return meta, nil
}

// storeDefinition writes the form definition and refreshes the metadata
// paths. It reports whether the file on disk changed.
func (w workspace) storeDefinition(meta *domain.FormMetadata, def []byte) (bool, error) {
	meta.FormFile = w.storage.FormFile(meta.Key, meta.Name)
	meta.MediaDir = w.storage.MediaDir(meta.Key, meta.Name)
	return w.storage.WriteFile(meta.FormFile, def)
}

// stampPull records the pull time once a pull stored something new. A pull
// that found nothing to fetch leaves the metadata record as it was.
func (w workspace) stampPull(meta domain.FormMetadata, res domain.PullResult) error {
	if res.Downloaded == 0 && !res.FormUpdated {
		return nil
	}
	meta.LastPulledAt = w.now()
	return w.meta.Put(meta)
}

func attachmentPath(dir, name string) string {
	return path.Join(dir, path.Base(name))
}

// sameContent reports whether data matches an OpenRosa "md5:<hex>" hash.
// An unknown hash format never matches.
func sameContent(data []byte, hash string) bool {
	hexSum, ok := strings.CutPrefix(strings.TrimSpace(hash), "md5:")
	if !ok {
		return false
	}
	sum := md5.Sum(data)
	return strings.EqualFold(hex.EncodeToString(sum[:]), hexSum)
}
