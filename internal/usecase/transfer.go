package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// Clients builds protocol clients for endpoints.
type Clients struct {
	Aggregate func(domain.AggregateServer) ports.AggregateAPI
	Central   func(domain.CentralServer) ports.CentralAPI
	Local     func(domain.Endpoint) (ports.LocalSource, error)
}

// Transfer plans pulls and pushes: it picks the engine for an endpoint and
// launches one job per form.
type Transfer struct {
	clients Clients
	opts    []Option
	workspace
}

func NewTransfer(clients Clients, storage ports.FormStorage, meta ports.FormMetadataStore, opts ...Option) *Transfer {
	return &Transfer{
		clients:   clients,
		opts:      opts,
		workspace: newWorkspace(storage, meta, opts),
	}
}

// LocalForms lists the forms stored in the workspace.
func (t *Transfer) LocalForms() ([]domain.FormMetadata, error) {
	return t.meta.List()
}

// ListForms lists the forms an endpoint offers.
func (t *Transfer) ListForms(ctx context.Context, e domain.Endpoint) ([]domain.FormMetadata, error) {
	switch v := e.(type) {
	case domain.AggregateServer:
		forms, err := t.clients.Aggregate(v).ListForms(ctx)
		if err != nil {
			return nil, err
		}
		return fromRemote(forms), nil
	case domain.CentralServer:
		session, err := t.clients.Central(v).Login(ctx)
		if err != nil {
			return nil, err
		}
		forms, err := session.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		return fromRemote(forms), nil
	case domain.CollectDirectory, domain.FormFile:
		src, err := t.clients.Local(v)
		if err != nil {
			return nil, err
		}
		forms, err := src.ListForms(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]domain.FormMetadata, 0, len(forms))
		for _, f := range forms {
			out = append(out, domain.FormMetadata{Key: f.Info.Key, Name: f.Info.Name})
		}
		return out, nil
	default:
		return nil, unknownEndpoint("transfer.list_forms", e)
	}
}

// PullForms launches one pull job per form. Each job reports exactly one of
// onSuccess or onError unless the runner was cancelled before it started.
// Errors are *domain.FormError values.
func (t *Transfer) PullForms(ctx context.Context, source domain.Endpoint, forms []domain.FormMetadata, opts PullOptions, onSuccess func(domain.PullResult), onError func(error)) (*job.Runner, error) {
	if source == nil || !domain.CanPull(source) {
		return nil, unsupported("transfer.pull", source)
	}

	jobs := make([]job.Job[domain.PullResult], 0, len(forms))
	switch v := source.(type) {
	case domain.AggregateServer:
		api := t.clients.Aggregate(v)
		puller := NewPullAggregate(api, v, t.storage, t.meta, t.opts...)
		listing := sync.OnceValues(func() ([]domain.RemoteForm, error) { return api.ListForms(ctx) })
		for _, f := range forms {
			find := job.Run(func(*job.RunnerStatus) (domain.RemoteForm, error) {
				return findRemote(listing, f.Key)
			})
			jobs = append(jobs, job.Then(find, func(s *job.RunnerStatus, rf domain.RemoteForm) (domain.PullResult, error) {
				return puller.Pull(s, rf, opts)
			}))
		}

	case domain.CentralServer:
		api := t.clients.Central(v)
		session := sync.OnceValues(func() (ports.CentralSession, error) { return api.Login(ctx) })
		for _, f := range forms {
			login := job.Run(func(*job.RunnerStatus) (ports.CentralSession, error) { return session() })
			jobs = append(jobs, job.Then(login, func(s *job.RunnerStatus, sess ports.CentralSession) (domain.PullResult, error) {
				return NewPullCentral(sess, v, t.storage, t.meta, t.opts...).Pull(s, f)
			}))
		}

	case domain.CollectDirectory, domain.FormFile:
		src, err := t.clients.Local(v)
		if err != nil {
			return nil, err
		}
		puller := NewPullLocal(src, v, t.storage, t.meta, t.opts...)
		listing := sync.OnceValues(func() ([]ports.LocalForm, error) { return src.ListForms(ctx) })
		for _, f := range forms {
			find := job.Run(func(*job.RunnerStatus) (ports.LocalForm, error) {
				return findLocal(listing, f.Key)
			})
			jobs = append(jobs, job.Then(find, func(s *job.RunnerStatus, lf ports.LocalForm) (domain.PullResult, error) {
				return puller.Pull(s, lf)
			}))
		}

	default:
		return nil, unknownEndpoint("transfer.pull", source)
	}

	for i, f := range forms {
		jobs[i] = withForm(t.workspace, f.Key, jobs[i], func(res domain.PullResult) {
			t.log.Info("pull.form.done", "form", res.Form.String(), "downloaded", res.Downloaded, "skipped", res.Skipped, "invalid", len(res.Invalid), "cancelled", res.Cancelled)
		})
	}

	t.log.Info("pull.started", "source", source.Describe(), "forms", len(forms))
	return job.Launch(ctx, jobs, onSuccess, onError, job.WithConcurrency(opts.Parallel), job.WithLogger(t.log)), nil
}

// PushForms launches one push job per form, with the same callback rules as
// PullForms.
func (t *Transfer) PushForms(ctx context.Context, target domain.Endpoint, forms []domain.FormMetadata, opts PushOptions, onSuccess func(domain.PushResult), onError func(error)) (*job.Runner, error) {
	if target == nil || !domain.CanPush(target) {
		return nil, unsupported("transfer.push", target)
	}

	jobs := make([]job.Job[domain.PushResult], 0, len(forms))
	switch v := target.(type) {
	case domain.AggregateServer:
		pusher := NewPushAggregate(t.clients.Aggregate(v), t.storage, t.meta, t.opts...)
		for _, f := range forms {
			jobs = append(jobs, job.Run(func(s *job.RunnerStatus) (domain.PushResult, error) {
				return pusher.Push(s, f, opts)
			}))
		}

	case domain.CentralServer:
		api := t.clients.Central(v)
		session := sync.OnceValues(func() (ports.CentralSession, error) { return api.Login(ctx) })
		for _, f := range forms {
			login := job.Run(func(*job.RunnerStatus) (ports.CentralSession, error) { return session() })
			jobs = append(jobs, job.Then(login, func(s *job.RunnerStatus, sess ports.CentralSession) (domain.PushResult, error) {
				return NewPushCentral(sess, t.storage, t.meta, t.opts...).Push(s, f, opts)
			}))
		}

	case domain.CollectDirectory, domain.FormFile:
		return nil, unsupported("transfer.push", target)

	default:
		return nil, unknownEndpoint("transfer.push", target)
	}

	for i, f := range forms {
		jobs[i] = withForm(t.workspace, f.Key, jobs[i], func(res domain.PushResult) {
			t.log.Info("push.form.done", "form", res.Form.String(), "attempted", res.Attempted, "succeeded", res.Succeeded, "failed", res.Failed(), "cancelled", res.Cancelled)
		})
	}

	t.log.Info("push.started", "target", target.Describe(), "forms", len(forms))
	return job.Launch(ctx, jobs, onSuccess, onError, job.WithConcurrency(opts.Parallel), job.WithLogger(t.log)), nil
}

// withForm reports a failed job on the progress sink and tags its error
// with the form. done sees every successful result, cancelled ones
// included.
func withForm[T any](w workspace, key domain.FormKey, j job.Job[T], done func(T)) job.Job[T] {
	return job.Run(func(s *job.RunnerStatus) (T, error) {
		v, err := j.Execute(s)
		if err != nil {
			w.reportOutcome(key, err)
			w.log.Error("transfer.form.failed", "form", key.String(), "kind", string(domain.KindOf(err)), "err", err)
			return v, &domain.FormError{Form: key, Err: err}
		}
		done(v)
		return v, nil
	})
}

func findRemote(listing func() ([]domain.RemoteForm, error), key domain.FormKey) (domain.RemoteForm, error) {
	forms, err := listing()
	if err != nil {
		return domain.RemoteForm{}, err
	}
	for _, f := range forms {
		if f.Key == key {
			return f, nil
		}
	}
	return domain.RemoteForm{}, notOffered(key)
}

func findLocal(listing func() ([]ports.LocalForm, error), key domain.FormKey) (ports.LocalForm, error) {
	forms, err := listing()
	if err != nil {
		return ports.LocalForm{}, err
	}
	for _, f := range forms {
		if f.Info.Key == key {
			return f, nil
		}
	}
	return ports.LocalForm{}, notOffered(key)
}

func fromRemote(forms []domain.RemoteForm) []domain.FormMetadata {
	out := make([]domain.FormMetadata, 0, len(forms))
	for _, f := range forms {
		out = append(out, domain.FormMetadata{Key: f.Key, Name: f.Name})
	}
	return out
}

func notOffered(key domain.FormKey) error {
	return &domain.OpError{Op: "transfer.find_form", Kind: domain.KindNotFound, Path: key.String(), Err: domain.ErrNotFound}
}

func unsupported(op string, e domain.Endpoint) error {
	what := "no endpoint"
	if e != nil {
		what = e.Describe()
	}
	return &domain.OpError{Op: op, Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%w: %s", domain.ErrUnsupportedTransfer, what)}
}

func unknownEndpoint(op string, e domain.Endpoint) error {
	return &domain.OpError{Op: op, Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%w: %T", domain.ErrUnknownEndpointType, e)}
}
