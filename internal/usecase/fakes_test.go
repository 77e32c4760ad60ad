package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/fsworkspace"
	"github.com/getodk/briefcase-sub006/internal/infra/metastore"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

const householdDef = `<h:html xmlns:h="http://www.w3.org/1999/xhtml"><h:head><h:title>Household</h:title><model><instance><data id="household" version="1"><name/><meta><instanceID/></meta></data></instance></model></h:head><h:body/></h:html>`

const membersDef = `<h:html xmlns:h="http://www.w3.org/1999/xhtml"><h:head><h:title>Members</h:title><model><instance><data id="members"><member><name/></member><meta><instanceID/></meta></data></instance></model></h:head><h:body><repeat nodeset="/data/member"/></h:body></h:html>`

var (
	householdKey = domain.NewFormKey("household", "1")
	membersKey   = domain.NewFormKey("members", "")
	baseTime     = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
)

func submissionXML(key domain.FormKey, id string) []byte {
	root := fmt.Sprintf(`<data id=%q`, key.ID)
	if key.Version != "" {
		root += fmt.Sprintf(` version=%q`, key.Version)
	}
	if id == "" {
		return []byte(root + `><name>x</name></data>`)
	}
	return []byte(fmt.Sprintf(`%s><name>x</name><meta><instanceID>%s</instanceID></meta></data>`, root, id))
}

func md5Hash(b []byte) string {
	sum := md5.Sum(b)
	return "md5:" + hex.EncodeToString(sum[:])
}

// countingStorage counts writes that changed a file on disk.
type countingStorage struct {
	*fsworkspace.Storage

	mu     sync.Mutex
	writes map[string]int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Storage: fsworkspace.NewStorage(memfs.New()), writes: map[string]int{}}
}

func (c *countingStorage) WriteFile(p string, data []byte) (bool, error) {
	changed, err := c.Storage.WriteFile(p, data)
	if changed {
		c.mu.Lock()
		c.writes[p]++
		c.mu.Unlock()
	}
	return changed, err
}

func (c *countingStorage) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.writes {
		n += v
	}
	return n
}

func (c *countingStorage) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = map[string]int{}
}

// cursorLog records every cursor change a metadata store accepts.
type cursorLog struct {
	ports.FormMetadataStore
	dir string

	mu       sync.Mutex
	advances []domain.Cursor
}

func newCursorLog(t *testing.T) *cursorLog {
	dir := t.TempDir()
	return &cursorLog{FormMetadataStore: metastore.NewYAMLStore(dir), dir: dir}
}

// age backdates every stored metadata document to at.
func (c *cursorLog) age(t *testing.T, at time.Time) {
	t.Helper()
	for name := range c.files(t) {
		require.NoError(t, os.Chtimes(filepath.Join(c.dir, ".metadata", name), at, at))
	}
}

// files returns the stored metadata documents with their modification times.
func (c *cursorLog) files(t *testing.T) map[string]time.Time {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(c.dir, ".metadata"))
	require.NoError(t, err)
	out := map[string]time.Time{}
	for _, e := range entries {
		info, err := e.Info()
		require.NoError(t, err)
		out[e.Name()] = info.ModTime().UTC()
	}
	return out
}

func (c *cursorLog) Put(meta domain.FormMetadata) error {
	prev, _, err := c.FormMetadataStore.Get(meta.Key)
	if err != nil {
		return err
	}
	if err := c.FormMetadataStore.Put(meta); err != nil {
		return err
	}
	if meta.Cursor.Compare(prev.Cursor) > 0 {
		c.mu.Lock()
		c.advances = append(c.advances, meta.Cursor)
		c.mu.Unlock()
	}
	return nil
}

func (c *cursorLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.advances)
}

type remoteSubmission struct {
	id     string
	cursor domain.Cursor
	xml    []byte
	media  map[string][]byte
}

// fakeAggregate serves one form and an ordered submission history.
type fakeAggregate struct {
	mu sync.Mutex

	form  domain.RemoteForm
	def   []byte
	media map[string][]byte
	subs  []remoteSubmission

	batchCursors []domain.Cursor
	downloads    int
	onSubmission func(id string)

	listed      []domain.RemoteForm
	pushedForms int
	pushed      []string
	failPush    map[string]error
}

func newFakeAggregate(def []byte, key domain.FormKey, n int) *fakeAggregate {
	f := &fakeAggregate{
		form: domain.RemoteForm{Key: key, Name: "", DownloadURL: "form://" + key.ID, ManifestURL: "manifest://" + key.ID},
		def:  def,
		media: map[string][]byte{
			"logo.png": []byte("png"),
		},
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("uuid:%04d", i)
		f.subs = append(f.subs, remoteSubmission{
			id:     id,
			cursor: domain.NewCursor(baseTime.Add(time.Duration(i)*time.Minute), id),
			xml:    submissionXML(key, id),
		})
	}
	f.listed = []domain.RemoteForm{f.form}
	return f
}

var _ ports.AggregateAPI = (*fakeAggregate)(nil)

func (f *fakeAggregate) ListForms(context.Context) ([]domain.RemoteForm, error) {
	return f.listed, nil
}

func (f *fakeAggregate) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++

	switch {
	case url == f.form.DownloadURL:
		return f.def, nil
	case strings.HasPrefix(url, "media://"):
		return f.media[strings.TrimPrefix(url, "media://")], nil
	case strings.HasPrefix(url, "att://"):
		return []byte("attachment " + strings.TrimPrefix(url, "att://")), nil
	}
	return nil, &domain.OpError{Op: "fake.download", Kind: domain.KindNotFound, Path: url, Err: domain.ErrNotFound}
}

func (f *fakeAggregate) Manifest(context.Context, string) ([]domain.AttachmentRef, error) {
	var refs []domain.AttachmentRef
	for name, b := range f.media {
		refs = append(refs, domain.AttachmentRef{Name: name, Hash: md5Hash(b), DownloadURL: "media://" + name})
	}
	return refs, nil
}

func (f *fakeAggregate) InstanceIDBatch(_ context.Context, _ string, cursor domain.Cursor, n int, _ bool) (domain.InstanceIDBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCursors = append(f.batchCursors, cursor)

	batch := domain.InstanceIDBatch{Cursor: cursor}
	for _, s := range f.subs {
		if !cursor.IsEmpty() && s.cursor.Compare(cursor) <= 0 {
			continue
		}
		batch.IDs = append(batch.IDs, s.id)
		batch.Cursor = s.cursor
		if len(batch.IDs) == n {
			break
		}
	}
	return batch, nil
}

func (f *fakeAggregate) DownloadSubmission(_ context.Context, formID, _ string, id string) (domain.Submission, error) {
	if f.onSubmission != nil {
		f.onSubmission(id)
	}
	for _, s := range f.subs {
		if s.id != id {
			continue
		}
		sub := domain.Submission{InstanceID: instanceIDOf(s.xml), FormKey: f.form.Key, XML: s.xml}
		for name := range s.media {
			sub.Attachments = append(sub.Attachments, domain.AttachmentRef{Name: name, DownloadURL: "att://" + id + "/" + name})
		}
		return sub, nil
	}
	return domain.Submission{}, &domain.OpError{Op: "fake.submission", Kind: domain.KindNotFound, Path: formID + "/" + id, Err: domain.ErrNotFound}
}

func instanceIDOf(doc []byte) string {
	s := string(doc)
	i := strings.Index(s, "<instanceID>")
	if i < 0 {
		return ""
	}
	rest := s[i+len("<instanceID>"):]
	return rest[:strings.Index(rest, "<")]
}

func (f *fakeAggregate) batches() []domain.Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Cursor(nil), f.batchCursors...)
}

func (f *fakeAggregate) PushForm(context.Context, []byte, []domain.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushedForms++
	return nil
}

func (f *fakeAggregate) PushSubmission(_ context.Context, doc []byte, _ []domain.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := instanceIDOf(doc)
	f.pushed = append(f.pushed, id)
	return f.failPush[id]
}

// fakeCentral serves Central sessions over fixed data.
type fakeCentral struct {
	mu sync.Mutex

	def    []byte
	key    domain.FormKey
	ids    []string
	docs   map[string][]byte
	logins int

	authFailAfter int // fail Submission calls after this many, 0 disables
	served        int

	remoteVersion string
	remoteExists  bool
	formPushes    int
	existing      map[string]bool
	pushed        []string
	failPush      map[string]error
}

var (
	_ ports.CentralAPI     = (*fakeCentral)(nil)
	_ ports.CentralSession = (*fakeCentral)(nil)
)

func newFakeCentral(def []byte, key domain.FormKey, ids ...string) *fakeCentral {
	f := &fakeCentral{def: def, key: key, docs: map[string][]byte{}, existing: map[string]bool{}}
	for _, id := range ids {
		f.ids = append(f.ids, id)
		f.docs[id] = submissionXML(key, id)
	}
	return f
}

func (f *fakeCentral) Login(context.Context) (ports.CentralSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f, nil
}

func (f *fakeCentral) ListForms(context.Context) ([]domain.RemoteForm, error) {
	return []domain.RemoteForm{{Key: f.key, Name: "Household"}}, nil
}

func (f *fakeCentral) FormExists(context.Context, domain.FormKey) (bool, bool, error) {
	return f.remoteExists, f.remoteVersion == f.key.Version, nil
}

func (f *fakeCentral) FormDefinition(context.Context, string) ([]byte, error) { return f.def, nil }

func (f *fakeCentral) FormAttachments(context.Context, string) ([]domain.AttachmentRef, error) {
	return []domain.AttachmentRef{{Name: "items.csv"}}, nil
}

func (f *fakeCentral) FormAttachment(context.Context, string, string) ([]byte, error) {
	return []byte("a,b"), nil
}

func (f *fakeCentral) SubmissionIDs(context.Context, string) ([]string, error) { return f.ids, nil }

func (f *fakeCentral) Submission(_ context.Context, _ string, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.served++
	if f.authFailAfter > 0 && f.served > f.authFailAfter {
		return nil, domain.AuthError("central.submission.xml", id, nil)
	}
	return f.docs[id], nil
}

func (f *fakeCentral) SubmissionAttachments(context.Context, string, string) ([]domain.AttachmentRef, error) {
	return []domain.AttachmentRef{{Name: "photo.jpg"}}, nil
}

func (f *fakeCentral) SubmissionAttachment(_ context.Context, _ string, id, name string) ([]byte, error) {
	return []byte(id + "/" + name), nil
}

func (f *fakeCentral) PushForm(context.Context, domain.FormKey, []byte, []domain.Part, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formPushes++
	return nil
}

func (f *fakeCentral) PushSubmission(_ context.Context, doc []byte, _ []domain.Part) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := instanceIDOf(doc)
	f.pushed = append(f.pushed, id)
	if err := f.failPush[id]; err != nil {
		return false, err
	}
	return f.existing[id], nil
}

// events collects progress events.
type events struct {
	mu  sync.Mutex
	all []domain.FormStatusEvent
}

func (e *events) Report(ev domain.FormStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) last() domain.FormStatusEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.all) == 0 {
		return domain.FormStatusEvent{}
	}
	return e.all[len(e.all)-1]
}
